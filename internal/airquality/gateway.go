package airquality

import (
	"context"
	"time"
)

const (
	// DefaultHistoryWindow is the trailing window fetched for the timeline.
	DefaultHistoryWindow = 48 * time.Hour

	// UnknownPlace is the display name used when reverse geocoding fails.
	UnknownPlace = "unknown"
)

// Gateway defines the calls made to the external data provider.
// All calls are independent and stateless; none of them retry.
type Gateway interface {
	// ResolveCity returns the coordinate of the best match for name.
	// Returns ErrNotFound when there is no match.
	ResolveCity(ctx context.Context, name string) (Coordinate, error)

	// ReverseGeocode returns "City, State, Country" for c, or
	// UnknownPlace on any failure. It never returns an error.
	ReverseGeocode(ctx context.Context, c Coordinate) string

	// FetchCurrent returns the current reading at c.
	FetchCurrent(ctx context.Context, c Coordinate) (Reading, error)

	// FetchHistory returns readings for [now-window, now], ascending.
	FetchHistory(ctx context.Context, c Coordinate, window time.Duration) ([]Reading, error)

	// Name returns the provider name for logging.
	Name() string
}
