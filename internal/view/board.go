// Package view projects dashboard render calls into a serializable view
// model and fans every change out to subscribers.
package view

import (
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/breatheroute/airview/internal/airquality"
	"github.com/breatheroute/airview/internal/dashboard"
)

// EventType identifies what changed.
type EventType string

// Event types.
const (
	EventSnapshot EventType = "snapshot"
	EventLocation EventType = "location"
	EventRecolor  EventType = "recolor"
	EventReading  EventType = "reading"
	EventBounds   EventType = "bounds"
	EventError    EventType = "error"
)

const defaultSubscriberBuffer = 32

// Pollutant is one formatted line of the readout panel.
type Pollutant struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// View is everything a page needs to draw the dashboard.
type View struct {
	Lat          float64     `json:"lat"`
	Lon          float64     `json:"lon"`
	Coordinates  string      `json:"coordinates"`
	LocationName string      `json:"locationName"`
	OverlayColor string      `json:"overlayColor"`
	AQI          int         `json:"aqi,omitempty"`
	AQIClass     string      `json:"aqiClass,omitempty"`
	AQILabel     string      `json:"aqiLabel,omitempty"`
	Pollutants   []Pollutant `json:"pollutants,omitempty"`
	TimeLabel    string      `json:"timeLabel,omitempty"`
	OldestLabel  string      `json:"oldestLabel,omitempty"`
	NewestLabel  string      `json:"newestLabel,omitempty"`
}

// Event is a single change pushed to subscribers.
type Event struct {
	Type    EventType `json:"type"`
	View    View      `json:"view"`
	Message string    `json:"message,omitempty"`
}

// Board is a dashboard.Sink that keeps the latest View. Subscribers that
// fall behind are dropped and their channel closed.
type Board struct {
	mu     sync.RWMutex
	view   View
	subs   map[chan Event]struct{}
	buffer int
	logger zerolog.Logger
}

var _ dashboard.Sink = (*Board)(nil)

// NewBoard creates an empty board.
func NewBoard(logger zerolog.Logger) *Board {
	return &Board{
		view:   View{OverlayColor: airquality.FallbackColor},
		subs:   make(map[chan Event]struct{}),
		buffer: defaultSubscriberBuffer,
		logger: logger.With().Str("component", "board").Logger(),
	}
}

// View returns a copy of the current view.
func (b *Board) View() View {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.view.clone()
}

// Subscribe registers a subscriber. The first event on the channel is a
// snapshot of the current view. The returned func unsubscribes.
func (b *Board) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, b.buffer)

	b.mu.Lock()
	ch <- Event{Type: EventSnapshot, View: b.view.clone()}
	b.subs[ch] = struct{}{}
	b.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if _, ok := b.subs[ch]; ok {
				delete(b.subs, ch)
				close(ch)
			}
		})
	}
}

// SubscriberCount returns the number of live subscribers.
func (b *Board) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

func (b *Board) Render(coord airquality.Coordinate, displayName string) {
	b.update(EventLocation, "", func(v *View) {
		v.Lat, v.Lon = coord.Lat, coord.Lon
		v.Coordinates = coord.String()
		v.LocationName = displayName
	})
}

func (b *Board) Recolor(aqi int) {
	b.update(EventRecolor, "", func(v *View) {
		v.OverlayColor = airquality.Color(aqi)
	})
}

func (b *Board) ShowReading(reading airquality.Reading, label string) {
	b.update(EventReading, "", func(v *View) {
		v.AQI = reading.AQI
		v.AQIClass = airquality.Class(reading.AQI)
		v.AQILabel = airquality.Label(reading.AQI)
		v.Pollutants = formatPollutants(reading.Components)
		v.TimeLabel = label
	})
}

func (b *Board) SetTimelineBounds(oldest, newest string) {
	b.update(EventBounds, "", func(v *View) {
		v.OldestLabel, v.NewestLabel = oldest, newest
	})
}

// NotifyError publishes the message; acknowledging it is the client's job.
func (b *Board) NotifyError(message string) {
	b.update(EventError, message, func(*View) {})
}

func (b *Board) update(typ EventType, message string, apply func(*View)) {
	b.mu.Lock()
	defer b.mu.Unlock()

	apply(&b.view)
	event := Event{Type: typ, View: b.view.clone(), Message: message}

	for ch := range b.subs {
		select {
		case ch <- event:
		default:
			b.logger.Warn().Str("event", string(typ)).Msg("dropping slow subscriber")
			delete(b.subs, ch)
			close(ch)
		}
	}
}

func (v View) clone() View {
	if v.Pollutants != nil {
		v.Pollutants = append([]Pollutant(nil), v.Pollutants...)
	}
	return v
}

func formatPollutants(c airquality.Components) []Pollutant {
	ordered := c.Ordered()
	out := make([]Pollutant, len(ordered))
	for i, p := range ordered {
		out[i] = Pollutant{Name: p.Pollutant, Value: fmt.Sprintf("%.2f µg/m³", p.Value)}
	}
	return out
}
