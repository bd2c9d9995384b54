package domain

import "errors"

var (
	// ErrInvalidParams marks caller input that cannot be computed on.
	ErrInvalidParams = errors.New("invalid parameters")

	// ErrOutsideAreas is returned when a coordinate falls outside every price area.
	ErrOutsideAreas = errors.New("location is outside the known price areas")

	// ErrNotFound is returned for unknown cities, areas, or empty datasets.
	ErrNotFound = errors.New("not found")

	// ErrUnavailable is returned when an optional data source is not configured.
	ErrUnavailable = errors.New("data source not configured")

	// ErrUpstream wraps failures of the weather archive or the record store.
	ErrUpstream = errors.New("upstream unavailable")
)
