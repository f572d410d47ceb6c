package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"midgard-metrics/internal/storage"
)

// CheckpointStore is an in-memory implementation of storage.CheckpointStore.
type CheckpointStore struct {
	mu          sync.RWMutex
	checkpoints map[string]storage.Checkpoint
}

// NewCheckpointStore creates a new in-memory checkpoint store.
func NewCheckpointStore() *CheckpointStore {
	return &CheckpointStore{
		checkpoints: make(map[string]storage.Checkpoint),
	}
}

func checkpointKey(family, pool string) string {
	return family + "|" + pool
}

// Get returns the checkpoint of a stream.
func (s *CheckpointStore) Get(_ context.Context, family, pool string) (*storage.Checkpoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cp, ok := s.checkpoints[checkpointKey(family, pool)]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return &cp, nil
}

// Save stores the checkpoint, replacing any previous one.
func (s *CheckpointStore) Save(_ context.Context, cp *storage.Checkpoint) error {
	if cp == nil || cp.Family == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	saved := *cp
	if saved.UpdatedAt == 0 {
		saved.UpdatedAt = time.Now().Unix()
	}
	s.checkpoints[checkpointKey(cp.Family, cp.Pool)] = saved
	return nil
}

// List returns all checkpoints ordered by family and pool.
func (s *CheckpointStore) List(_ context.Context) ([]*storage.Checkpoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*storage.Checkpoint, 0, len(s.checkpoints))
	for _, cp := range s.checkpoints {
		c := cp
		result = append(result, &c)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Family != result[j].Family {
			return result[i].Family < result[j].Family
		}
		return result[i].Pool < result[j].Pool
	})
	return result, nil
}

var _ storage.CheckpointStore = (*CheckpointStore)(nil)
