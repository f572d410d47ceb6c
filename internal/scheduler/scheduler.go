// Package scheduler drives periodic ingestion of every configured stream.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/raulk/clock"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"midgard-metrics/internal/domain"
	"midgard-metrics/internal/ingestion"
	"midgard-metrics/internal/observability"
)

// DefaultPeriod is the time between ticks.
const DefaultPeriod = time.Hour

// Runner runs one ingestion stream. *ingestion.Ingester satisfies it.
type Runner interface {
	Run(ctx context.Context, req ingestion.Request) (*ingestion.RunResult, error)
}

// Stream identifies one (family, pool) ingestion stream.
// Pool is empty for network-wide families.
type Stream struct {
	Family string `json:"family"`
	Pool   string `json:"pool,omitempty"`
}

func (s Stream) String() string {
	if s.Pool == "" {
		return s.Family
	}
	return s.Family + "/" + s.Pool
}

// Streams expands pools into the full stream set: depths and swaps for
// each pool, then earnings and runepool once.
func Streams(pools []string) []Stream {
	var streams []Stream
	for _, pool := range pools {
		streams = append(streams,
			Stream{Family: domain.FamilyDepths, Pool: pool},
			Stream{Family: domain.FamilySwaps, Pool: pool},
		)
	}
	return append(streams,
		Stream{Family: domain.FamilyEarnings},
		Stream{Family: domain.FamilyRunePool},
	)
}

// StreamResult is the outcome of one stream within a batch.
type StreamResult struct {
	Stream
	Result *ingestion.RunResult `json:"result,omitempty"`
	Error  string               `json:"error,omitempty"`
}

// BatchResult is the outcome of running a set of streams together.
type BatchResult struct {
	From    int64          `json:"from"`
	Streams []StreamResult `json:"streams"`
}

// Status contains scheduler statistics.
type Status struct {
	Running     bool      `json:"running"`
	Period      string    `json:"period"`
	Ticks       int       `json:"ticks"`
	FailedTicks int       `json:"failed_ticks"`
	LastTick    time.Time `json:"last_tick"`
	LastSuccess time.Time `json:"last_success"`
	LastErrors  []string  `json:"last_errors,omitempty"`
}

// Options contains configuration for creating a Scheduler.
type Options struct {
	Runner Runner
	Pools  []string
	Period time.Duration // Default: DefaultPeriod
	Clock  clock.Clock   // Default: wall clock
	Logger *zap.Logger
}

// Scheduler fires a tick on start and then every period. A tick runs every
// stream concurrently from now minus one period and waits for all of them.
type Scheduler struct {
	runner  Runner
	streams []Stream
	period  time.Duration
	clock   clock.Clock
	logger  *zap.Logger

	mu     sync.Mutex
	status Status
}

// New creates a new Scheduler.
func New(opts Options) *Scheduler {
	period := opts.Period
	if period <= 0 {
		period = DefaultPeriod
	}

	clk := opts.Clock
	if clk == nil {
		clk = clock.New()
	}

	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Scheduler{
		runner:  opts.Runner,
		streams: Streams(opts.Pools),
		period:  period,
		clock:   clk,
		logger:  logger.Named("scheduler"),
		status:  Status{Period: period.String()},
	}
}

// Run ticks immediately and then every period until ctx is done.
// Tick failures are logged; the next tick fires regardless.
func (s *Scheduler) Run(ctx context.Context) error {
	ticker := s.clock.Ticker(s.period)
	defer ticker.Stop()

	s.logger.Info("scheduler started",
		zap.Duration("period", s.period),
		zap.Int("streams", len(s.streams)))

	_ = s.Tick(ctx)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler stopped")
			return ctx.Err()
		case <-ticker.C:
			_ = s.Tick(ctx)
		}
	}
}

// Tick runs every configured stream once from now minus one period.
// It returns the combined error of all failed streams.
func (s *Scheduler) Tick(ctx context.Context) error {
	s.mu.Lock()
	if s.status.Running {
		s.mu.Unlock()
		s.logger.Warn("previous tick still running, skipping")
		observability.RecordSchedulerTick("skipped", 0)
		return nil
	}
	s.status.Running = true
	s.mu.Unlock()

	now := s.clock.Now()
	batch, err := s.RunAll(ctx, now.Add(-s.period).Unix(), nil)

	s.mu.Lock()
	s.status.Running = false
	s.status.Ticks++
	s.status.LastTick = now
	s.status.LastErrors = nil
	for _, r := range batch.Streams {
		if r.Error != "" {
			s.status.LastErrors = append(s.status.LastErrors, r.Stream.String()+": "+r.Error)
		}
	}
	if err != nil {
		s.status.FailedTicks++
	} else {
		s.status.LastSuccess = now
	}
	s.mu.Unlock()

	if err != nil {
		observability.RecordSchedulerTick("failed", now.Unix())
		s.logger.Error("tick failed",
			zap.Int("failed_streams", len(multierr.Errors(err))),
			zap.Error(err))
		return err
	}
	observability.RecordSchedulerTick("success", now.Unix())
	s.logger.Info("tick complete", zap.Int("streams", len(batch.Streams)))
	return nil
}

// RunAll runs streams concurrently from the given position and waits for
// all of them. A nil streams slice means every configured stream. One
// stream failing never cancels the others.
func (s *Scheduler) RunAll(ctx context.Context, from int64, streams []Stream) (*BatchResult, error) {
	if streams == nil {
		streams = s.streams
	}

	batch := &BatchResult{From: from, Streams: make([]StreamResult, len(streams))}
	errs := make([]error, len(streams))

	var wg sync.WaitGroup
	for i, st := range streams {
		wg.Add(1)
		go func(i int, st Stream) {
			defer wg.Done()

			result, err := s.runner.Run(ctx, ingestion.Request{
				Family:   st.Family,
				Pool:     st.Pool,
				Interval: domain.IntervalHour,
				From:     from,
			})
			batch.Streams[i] = StreamResult{Stream: st, Result: result}
			if err != nil {
				batch.Streams[i].Error = err.Error()
				errs[i] = fmt.Errorf("%s: %w", st, err)
				s.logger.Warn("stream failed",
					zap.String("family", st.Family),
					zap.String("pool", st.Pool),
					zap.Error(err))
			}
		}(i, st)
	}
	wg.Wait()

	return batch, multierr.Combine(errs...)
}

// Status returns a snapshot of the scheduler statistics.
func (s *Scheduler) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := s.status
	st.LastErrors = append([]string(nil), s.status.LastErrors...)
	return st
}

// Streams returns the configured stream set.
func (s *Scheduler) Streams() []Stream {
	return append([]Stream(nil), s.streams...)
}
