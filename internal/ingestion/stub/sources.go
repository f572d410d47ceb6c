// Package stub provides scripted upstream sources for tests.
package stub

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"midgard-metrics/internal/midgard"
)

// ErrExhausted is returned once a scripted source has no responses left.
var ErrExhausted = errors.New("stub: no scripted responses left")

// Response is one scripted FetchPage result.
type Response struct {
	Page *midgard.Page
	Err  error
}

// Source replays scripted responses in order and records every request.
// Implements ingestion.Source interface.
type Source struct {
	mu        sync.Mutex
	responses []Response
	calls     []midgard.PageRequest
}

// NewSource creates a source returning responses in order.
func NewSource(responses ...Response) *Source {
	return &Source{responses: responses}
}

// FetchPage returns the next scripted response.
func (s *Source) FetchPage(ctx context.Context, req midgard.PageRequest) (*midgard.Page, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls = append(s.calls, req)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(s.responses) == 0 {
		return nil, ErrExhausted
	}
	next := s.responses[0]
	s.responses = s.responses[1:]
	return next.Page, next.Err
}

// Calls returns a copy of the requests seen so far.
func (s *Source) Calls() []midgard.PageRequest {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]midgard.PageRequest, len(s.calls))
	copy(out, s.calls)
	return out
}

// Func adapts a function to ingestion.Source.
type Func func(ctx context.Context, req midgard.PageRequest) (*midgard.Page, error)

// FetchPage calls f.
func (f Func) FetchPage(ctx context.Context, req midgard.PageRequest) (*midgard.Page, error) {
	return f(ctx, req)
}

// Page builds a page from arbitrary interval values, encoding each as JSON.
// Values that are already json.RawMessage are used as is.
func Page(endTime int64, intervals ...any) *midgard.Page {
	page := &midgard.Page{EndTime: endTime}
	for _, iv := range intervals {
		if raw, ok := iv.(json.RawMessage); ok {
			page.Intervals = append(page.Intervals, raw)
			continue
		}
		raw, err := json.Marshal(iv)
		if err != nil {
			panic(err)
		}
		page.Intervals = append(page.Intervals, raw)
	}
	return page
}
