package models

import "github.com/breatheroute/airview/internal/view"

// LocationRequest moves the dashboard to a coordinate.
// Pointers distinguish a missing field from the equator or prime meridian.
type LocationRequest struct {
	Lat *float64 `json:"lat" validate:"required,gte=-90,lte=90"`
	Lon *float64 `json:"lon" validate:"required,gte=-180,lte=180"`
}

// SearchRequest looks up a city by name. An empty query is accepted and
// reported to subscribers as an error event.
type SearchRequest struct {
	Query string `json:"query" validate:"max=200"`
}

// TimelineRequest moves the timeline slider.
type TimelineRequest struct {
	Position *int `json:"position" validate:"required,gte=0,lte=100"`
}

// DashboardResponse is the full dashboard state.
type DashboardResponse struct {
	Location LocationResponse `json:"location"`
	Timeline TimelineResponse `json:"timeline"`
	View     view.View        `json:"view"`
}

// LocationResponse describes the current location and what has loaded for it.
type LocationResponse struct {
	Lat           float64 `json:"lat"`
	Lon           float64 `json:"lon"`
	DisplayName   string  `json:"displayName"`
	HasCurrent    bool    `json:"hasCurrent"`
	HistoryLength int     `json:"historyLength"`
}

// TimelineResponse describes the timeline slider.
type TimelineResponse struct {
	Mode     string           `json:"mode"`
	Position int              `json:"position"`
	Selected *ReadingResponse `json:"selected,omitempty"`
}

// ReadingResponse is a single air quality reading.
type ReadingResponse struct {
	Time  Timestamp `json:"time"`
	AQI   int       `json:"aqi"`
	Label string    `json:"label"`
}

// AcceptedResponse acknowledges a request whose result arrives as stream events.
type AcceptedResponse struct {
	Status string `json:"status"`
}

// AcceptedStatusPending is the status of an accepted dashboard request.
const AcceptedStatusPending = "PENDING"
