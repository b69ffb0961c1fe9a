package dashboard

import "github.com/breatheroute/airview/internal/airquality"

// DisplayResolving is the placeholder name shown while reverse geocoding
// for a new location is in flight.
const DisplayResolving = "resolving"

// LocationState is the single live location and its pollution data.
// It is replaced wholesale on every location change and only ever touched
// from the event loop.
type LocationState struct {
	Coordinate  airquality.Coordinate
	DisplayName string
	Series      airquality.Series
}

// Snapshot is a read-only copy of the dashboard state.
type Snapshot struct {
	Location LocationState
	Mode     Mode
	Position int

	// Selected is the reading the timeline currently points at, if any.
	Selected *airquality.Reading
}
