package ingestion

import (
	"context"

	"midgard-metrics/internal/midgard"
)

// Source provides pages of hourly history from the upstream API.
// Implemented by *midgard.HTTPClient and stub.Source.
type Source interface {
	// FetchPage returns the intervals starting at req.From and the upstream
	// watermark. Any error is request-level and fails the run.
	FetchPage(ctx context.Context, req midgard.PageRequest) (*midgard.Page, error)
}
