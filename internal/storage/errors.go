package storage

import "errors"

// Storage errors for append-only stores.
var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput is returned when input validation fails.
	ErrInvalidInput = errors.New("invalid input")

	// ErrInvalidSortField is returned when a query sorts by a column the
	// family does not have.
	ErrInvalidSortField = errors.New("invalid sort field")

	// ErrInvalidInterval is returned when an aggregate is requested at a
	// granularity that does not need bucketing or is unknown.
	ErrInvalidInterval = errors.New("invalid bucket interval")
)
