// Package dashboard coordinates the single live location, its pollution
// data and the timeline selector, and drives a Sink with the results.
package dashboard

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/breatheroute/airview/internal/airquality"
)

// User-facing notification messages.
const (
	MsgCurrentFailed = "Failed to fetch current pollution data. Please try again."
	MsgHistoryFailed = "Failed to fetch historical pollution data. Please try again."
	MsgEmptyCityName = "Please enter a city name"
	MsgCityNotFound  = "City not found or error occurred. Please try another city name."
)

// Config holds configuration for a Dashboard.
type Config struct {
	// Gateway fetches readings and geocoding results (required).
	Gateway airquality.Gateway

	// Sink receives render instructions (required).
	Sink Sink

	// Logger for dashboard operations.
	Logger zerolog.Logger

	// HistoryWindow is the trailing window requested for the timeline.
	// Default: 48 hours
	HistoryWindow time.Duration

	// DiscardStale drops fetch completions that belong to a location the
	// user has already moved away from. When false, whichever completion
	// lands last is applied.
	DiscardStale bool

	// Location is the time zone used for time labels. Default: time.Local
	Location *time.Location

	// Now returns the current time. Default: time.Now
	Now func() time.Time

	// QueueSize is the event loop queue size. Default: 64
	QueueSize int
}

// Dashboard owns the location state and the timeline. Its exported methods
// are safe for concurrent use; the state itself is only touched on the loop.
type Dashboard struct {
	loop         *Loop
	gateway      airquality.Gateway
	sink         Sink
	logger       zerolog.Logger
	window       time.Duration
	discardStale bool
	now          func() time.Time

	// loop-owned
	fetchCtx   context.Context
	state      LocationState
	timeline   *Timeline
	generation uint64
}

// New creates a Dashboard. Call Run to start processing.
func New(cfg Config) *Dashboard {
	window := cfg.HistoryWindow
	if window <= 0 {
		window = airquality.DefaultHistoryWindow
	}

	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	logger := cfg.Logger.With().Str("component", "dashboard").Logger()

	return &Dashboard{
		loop:         NewLoop(cfg.QueueSize, logger),
		gateway:      cfg.Gateway,
		sink:         cfg.Sink,
		logger:       logger,
		window:       window,
		discardStale: cfg.DiscardStale,
		now:          now,
		fetchCtx:     context.Background(),
		timeline:     NewTimeline(cfg.Location),
	}
}

// Run processes dashboard events until ctx is done. Fetches started by the
// dashboard are bound to ctx.
func (d *Dashboard) Run(ctx context.Context) error {
	d.fetchCtx = ctx
	err := d.loop.Run(ctx)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// SetLocation commits coord as the live location and starts the current,
// history and reverse-geocoding fetches. It returns once the coordinate is
// committed; the fetches complete later.
func (d *Dashboard) SetLocation(ctx context.Context, coord airquality.Coordinate) error {
	if err := coord.Validate(); err != nil {
		return err
	}
	return d.loop.Do(ctx, func() { d.setLocation(coord) })
}

// SearchCity resolves name and moves to the first match. Failures are
// reported through the sink, not returned.
func (d *Dashboard) SearchCity(ctx context.Context, name string) error {
	return d.loop.Post(ctx, func() { d.searchCity(name) })
}

// Refresh re-fetches everything for the live location.
func (d *Dashboard) Refresh(ctx context.Context) error {
	return d.loop.Post(ctx, func() { d.setLocation(d.state.Coordinate) })
}

// SetPosition moves the timeline selector.
func (d *Dashboard) SetPosition(ctx context.Context, value int) error {
	return d.loop.Do(ctx, func() {
		d.timeline.SetPosition(value, d.state.Series, d.sink)
	})
}

// Snapshot returns a copy of the current state.
func (d *Dashboard) Snapshot(ctx context.Context) (Snapshot, error) {
	var snap Snapshot
	err := d.loop.Do(ctx, func() {
		snap = Snapshot{
			Location: d.state,
			Mode:     d.timeline.Mode(),
			Position: d.timeline.Position(),
		}
		if r, ok := d.timeline.Selected(d.state.Series); ok {
			snap.Selected = &r
		}
	})
	return snap, err
}

func (d *Dashboard) setLocation(coord airquality.Coordinate) {
	d.generation++
	gen := d.generation

	d.state.Coordinate = coord
	d.state.DisplayName = DisplayResolving
	d.sink.Render(coord, DisplayResolving)

	d.logger.Info().
		Float64("lat", coord.Lat).
		Float64("lon", coord.Lon).
		Uint64("generation", gen).
		Msg("location changed")

	ctx := d.fetchCtx

	go func() {
		reading, err := d.gateway.FetchCurrent(ctx, coord)
		d.complete(ctx, gen, func() { d.applyCurrent(reading, err) })
	}()

	go func() {
		history, err := d.gateway.FetchHistory(ctx, coord, d.window)
		d.complete(ctx, gen, func() { d.applyHistory(history, err) })
	}()

	go func() {
		name := d.gateway.ReverseGeocode(ctx, coord)
		d.complete(ctx, gen, func() { d.applyName(name) })
	}()
}

// complete posts a fetch completion back to the loop.
func (d *Dashboard) complete(ctx context.Context, gen uint64, apply func()) {
	err := d.loop.Post(ctx, func() {
		if d.discardStale && gen != d.generation {
			d.logger.Debug().
				Uint64("generation", gen).
				Uint64("current", d.generation).
				Msg("discarding stale completion")
			return
		}
		apply()
	})
	if err != nil {
		d.logger.Debug().Err(err).Msg("completion dropped")
	}
}

func (d *Dashboard) applyCurrent(reading airquality.Reading, err error) {
	if err != nil {
		d.logger.Error().Err(err).Msg("fetching current pollution")
		d.sink.NotifyError(MsgCurrentFailed)
		return
	}

	// A fresh reading is always rendered, even over a historical
	// selection. The selector itself stays where it is.
	d.state.Series.Current = &reading
	d.sink.ShowReading(reading, LabelCurrent)
	d.sink.Recolor(reading.AQI)
}

func (d *Dashboard) applyHistory(history []airquality.Reading, err error) {
	if err != nil {
		d.logger.Error().Err(err).Msg("fetching pollution history")
		d.sink.NotifyError(MsgHistoryFailed)
		return
	}

	d.state.Series.History = history
	d.timeline.Reset(d.state.Series, d.sink)

	if len(history) > 0 {
		d.sink.SetTimelineBounds(
			d.timeline.BoundLabel(history[0].Timestamp),
			d.timeline.BoundLabel(d.now()),
		)
	}
}

func (d *Dashboard) applyName(name string) {
	d.state.DisplayName = name
	d.sink.Render(d.state.Coordinate, name)
}

func (d *Dashboard) searchCity(name string) {
	name = strings.TrimSpace(name)
	if name == "" {
		d.sink.NotifyError(MsgEmptyCityName)
		return
	}

	ctx := d.fetchCtx
	go func() {
		coord, err := d.gateway.ResolveCity(ctx, name)
		if err == nil {
			err = coord.Validate()
		}
		postErr := d.loop.Post(ctx, func() {
			if err != nil {
				d.logger.Warn().Err(err).Str("query", name).Msg("city search failed")
				d.sink.NotifyError(MsgCityNotFound)
				return
			}
			d.setLocation(coord)
		})
		if postErr != nil {
			d.logger.Debug().Err(postErr).Msg("search result dropped")
		}
	}()
}
