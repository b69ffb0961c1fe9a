package dashboard_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/breatheroute/airview/internal/airquality"
	"github.com/breatheroute/airview/internal/dashboard"
)

var (
	london = airquality.Coordinate{Lat: 51.505, Lon: -0.09}
	paris  = airquality.Coordinate{Lat: 48.8566, Lon: 2.3522}

	baseTime = time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
)

func reading(aqi int, ts time.Time) airquality.Reading {
	return airquality.Reading{
		Timestamp:  ts,
		AQI:        aqi,
		Components: airquality.Components{CO: 200, NO2: 15, O3: 60, PM25: float64(aqi) * 5, PM10: 12, SO2: 4},
	}
}

// historyOf returns n hourly readings ending one hour before baseTime.
func historyOf(n int) []airquality.Reading {
	h := make([]airquality.Reading, n)
	for i := range h {
		h[i] = reading(i%5+1, baseTime.Add(time.Duration(i-n)*time.Hour))
	}
	return h
}

// fakeGateway dispatches to per-operation funcs. Nil funcs return an
// empty success.
type fakeGateway struct {
	resolve func(ctx context.Context, name string) (airquality.Coordinate, error)
	reverse func(ctx context.Context, c airquality.Coordinate) string
	current func(ctx context.Context, c airquality.Coordinate) (airquality.Reading, error)
	history func(ctx context.Context, c airquality.Coordinate, window time.Duration) ([]airquality.Reading, error)
}

func (g *fakeGateway) Name() string { return "fake" }

func (g *fakeGateway) ResolveCity(ctx context.Context, name string) (airquality.Coordinate, error) {
	if g.resolve == nil {
		return airquality.Coordinate{}, airquality.ErrNotFound
	}
	return g.resolve(ctx, name)
}

func (g *fakeGateway) ReverseGeocode(ctx context.Context, c airquality.Coordinate) string {
	if g.reverse == nil {
		return airquality.UnknownPlace
	}
	return g.reverse(ctx, c)
}

func (g *fakeGateway) FetchCurrent(ctx context.Context, c airquality.Coordinate) (airquality.Reading, error) {
	if g.current == nil {
		return reading(1, baseTime), nil
	}
	return g.current(ctx, c)
}

func (g *fakeGateway) FetchHistory(ctx context.Context, c airquality.Coordinate, window time.Duration) ([]airquality.Reading, error) {
	if g.history == nil {
		return []airquality.Reading{}, nil
	}
	return g.history(ctx, c, window)
}

type sinkCall struct {
	Method string
	Coord  airquality.Coordinate
	Name   string
	AQI    int
	Label  string
	Oldest string
	Newest string
}

// recordingSink records every call it receives.
type recordingSink struct {
	mu    sync.Mutex
	calls []sinkCall
}

func (s *recordingSink) add(c sinkCall) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, c)
}

func (s *recordingSink) Render(coord airquality.Coordinate, name string) {
	s.add(sinkCall{Method: "render", Coord: coord, Name: name})
}

func (s *recordingSink) Recolor(aqi int) {
	s.add(sinkCall{Method: "recolor", AQI: aqi})
}

func (s *recordingSink) ShowReading(r airquality.Reading, label string) {
	s.add(sinkCall{Method: "show", AQI: r.AQI, Label: label})
}

func (s *recordingSink) SetTimelineBounds(oldest, newest string) {
	s.add(sinkCall{Method: "bounds", Oldest: oldest, Newest: newest})
}

func (s *recordingSink) NotifyError(message string) {
	s.add(sinkCall{Method: "error", Label: message})
}

func (s *recordingSink) byMethod(method string) []sinkCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []sinkCall
	for _, c := range s.calls {
		if c.Method == method {
			out = append(out, c)
		}
	}
	return out
}

func (s *recordingSink) count(method string) int {
	return len(s.byMethod(method))
}

func (s *recordingSink) last(method string) (sinkCall, bool) {
	calls := s.byMethod(method)
	if len(calls) == 0 {
		return sinkCall{}, false
	}
	return calls[len(calls)-1], true
}

func (s *recordingSink) reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = nil
}

type harness struct {
	dash *dashboard.Dashboard
	sink *recordingSink
}

func startDashboard(t *testing.T, gw airquality.Gateway, opts ...func(*dashboard.Config)) *harness {
	t.Helper()

	sink := &recordingSink{}
	cfg := dashboard.Config{
		Gateway:  gw,
		Sink:     sink,
		Logger:   zerolog.Nop(),
		Location: time.UTC,
		Now:      func() time.Time { return baseTime },
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	dash := dashboard.New(cfg)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = dash.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	return &harness{dash: dash, sink: sink}
}

func (h *harness) snapshot(t *testing.T) dashboard.Snapshot {
	t.Helper()
	snap, err := h.dash.Snapshot(context.Background())
	require.NoError(t, err)
	return snap
}

// settle waits until cond holds on a fresh snapshot.
func (h *harness) settle(t *testing.T, cond func(dashboard.Snapshot) bool) dashboard.Snapshot {
	t.Helper()
	var snap dashboard.Snapshot
	require.Eventually(t, func() bool {
		s, err := h.dash.Snapshot(context.Background())
		if err != nil {
			return false
		}
		snap = s
		return cond(s)
	}, time.Second, 5*time.Millisecond)
	return snap
}
