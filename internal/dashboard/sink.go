package dashboard

import (
	"github.com/rs/zerolog"

	"github.com/breatheroute/airview/internal/airquality"
)

// Sink receives render instructions from the dashboard. All calls are made
// from the event loop goroutine, one at a time.
type Sink interface {
	// Render re-centers on coord and shows the location name or placeholder.
	Render(coord airquality.Coordinate, displayName string)

	// Recolor sets the map overlay color for an AQI value.
	Recolor(aqi int)

	// ShowReading shows the pollutant readout and AQI badge with a time label.
	ShowReading(reading airquality.Reading, label string)

	// SetTimelineBounds sets the labels at both ends of the timeline.
	SetTimelineBounds(oldest, newest string)

	// NotifyError shows a user-visible error message.
	NotifyError(message string)
}

// MultiSink forwards every call to each sink in order.
type MultiSink []Sink

func (m MultiSink) Render(coord airquality.Coordinate, displayName string) {
	for _, s := range m {
		s.Render(coord, displayName)
	}
}

func (m MultiSink) Recolor(aqi int) {
	for _, s := range m {
		s.Recolor(aqi)
	}
}

func (m MultiSink) ShowReading(reading airquality.Reading, label string) {
	for _, s := range m {
		s.ShowReading(reading, label)
	}
}

func (m MultiSink) SetTimelineBounds(oldest, newest string) {
	for _, s := range m {
		s.SetTimelineBounds(oldest, newest)
	}
}

func (m MultiSink) NotifyError(message string) {
	for _, s := range m {
		s.NotifyError(message)
	}
}

// LogSink writes each render call as a structured log line.
type LogSink struct {
	logger zerolog.Logger
}

// NewLogSink creates a sink that logs to logger.
func NewLogSink(logger zerolog.Logger) *LogSink {
	return &LogSink{logger: logger.With().Str("component", "sink").Logger()}
}

func (s *LogSink) Render(coord airquality.Coordinate, displayName string) {
	s.logger.Debug().
		Float64("lat", coord.Lat).
		Float64("lon", coord.Lon).
		Str("name", displayName).
		Msg("render location")
}

func (s *LogSink) Recolor(aqi int) {
	s.logger.Debug().
		Int("aqi", aqi).
		Str("color", airquality.Color(aqi)).
		Msg("recolor overlay")
}

func (s *LogSink) ShowReading(reading airquality.Reading, label string) {
	s.logger.Debug().
		Int("aqi", reading.AQI).
		Time("timestamp", reading.Timestamp).
		Str("label", label).
		Msg("show reading")
}

func (s *LogSink) SetTimelineBounds(oldest, newest string) {
	s.logger.Debug().
		Str("oldest", oldest).
		Str("newest", newest).
		Msg("timeline bounds")
}

func (s *LogSink) NotifyError(message string) {
	s.logger.Warn().
		Str("message", message).
		Msg("user notification")
}
