package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/breatheroute/airview/internal/airquality"
	"github.com/breatheroute/airview/internal/api"
	"github.com/breatheroute/airview/internal/api/models"
	"github.com/breatheroute/airview/internal/dashboard"
	"github.com/breatheroute/airview/internal/provider/resilience"
	"github.com/breatheroute/airview/internal/refresh"
	"github.com/breatheroute/airview/internal/view"
)

var (
	london = airquality.Coordinate{Lat: 51.505, Lon: -0.09}
	paris  = airquality.Coordinate{Lat: 48.8566, Lon: 2.3522}

	now = time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
)

// stubGateway serves fixed data: Paris resolves, everything else is not found.
type stubGateway struct{}

func (stubGateway) Name() string { return "stub" }

func (stubGateway) ResolveCity(_ context.Context, name string) (airquality.Coordinate, error) {
	if strings.EqualFold(name, "paris") {
		return paris, nil
	}
	return airquality.Coordinate{}, airquality.ErrNotFound
}

func (stubGateway) ReverseGeocode(_ context.Context, c airquality.Coordinate) string {
	if c == paris {
		return "Paris, Ile-de-France, FR"
	}
	return "London, England, GB"
}

func (stubGateway) FetchCurrent(_ context.Context, _ airquality.Coordinate) (airquality.Reading, error) {
	return airquality.Reading{Timestamp: now, AQI: 2, Components: airquality.Components{PM25: 8.5}}, nil
}

func (stubGateway) FetchHistory(_ context.Context, _ airquality.Coordinate, window time.Duration) ([]airquality.Reading, error) {
	n := int(window / time.Hour)
	history := make([]airquality.Reading, n)
	for i := range history {
		history[i] = airquality.Reading{
			Timestamp:  now.Add(time.Duration(i-n) * time.Hour),
			AQI:        i%5 + 1,
			Components: airquality.Components{PM25: float64(i)},
		}
	}
	return history, nil
}

type stubProviders []*resilience.ProviderHealth

func (s stubProviders) GetAllHealth() []*resilience.ProviderHealth { return s }

type stubRefresh struct {
	enabled bool
	metrics refresh.Metrics
}

func (s stubRefresh) Enabled() bool            { return s.enabled }
func (s stubRefresh) Metrics() refresh.Metrics { return s.metrics }

type stack struct {
	router http.Handler
	dash   *dashboard.Dashboard
}

func newTestStack(t *testing.T, opts ...func(*api.RouterConfig)) *stack {
	t.Helper()

	board := view.NewBoard(zerolog.Nop())
	dash := dashboard.New(dashboard.Config{
		Gateway:       stubGateway{},
		Sink:          board,
		Logger:        zerolog.Nop(),
		HistoryWindow: 24 * time.Hour,
		Location:      time.UTC,
		Now:           func() time.Time { return now },
	})

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

	cfg := api.RouterConfig{
		Version:   "test",
		BuildTime: "2024-01-01T00:00:00Z",
		Logger:    zerolog.New(io.Discard),
		Dashboard: dash,
		Board:     board,
		Location:  time.UTC,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	return &stack{router: api.NewRouter(cfg), dash: dash}
}

func (s *stack) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader = http.NoBody
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *stack) dashboard(t *testing.T) models.DashboardResponse {
	t.Helper()
	w := s.do(t, http.MethodGet, "/v1/dashboard", "")
	require.Equal(t, http.StatusOK, w.Code)

	var resp models.DashboardResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

// loaded waits until the current reading and history for want have arrived.
func (s *stack) loaded(t *testing.T, want airquality.Coordinate) models.DashboardResponse {
	t.Helper()
	var resp models.DashboardResponse
	require.Eventually(t, func() bool {
		snap, err := s.dash.Snapshot(context.Background())
		if err != nil || snap.Location.Coordinate != want {
			return false
		}
		return snap.Location.Series.Current != nil &&
			len(snap.Location.Series.History) > 0 &&
			snap.Location.DisplayName != dashboard.DisplayResolving
	}, 2*time.Second, 10*time.Millisecond)
	resp = s.dashboard(t)
	return resp
}

func decodeProblem(t *testing.T, w *httptest.ResponseRecorder) models.Problem {
	t.Helper()
	assert.Equal(t, "application/problem+json", w.Header().Get("Content-Type"))
	var problem models.Problem
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &problem))
	return problem
}

func TestRouter_HealthCheck(t *testing.T) {
	s := newTestStack(t)

	w := s.do(t, http.MethodGet, "/v1/ops/health", "")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.NotEmpty(t, w.Header().Get("X-Request-Id"))

	var health models.Health
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &health))
	assert.Equal(t, models.HealthStatusOK, health.Status)
	assert.Equal(t, "test", health.Details["version"])
}

func TestRouter_ReadinessCheck(t *testing.T) {
	tests := []struct {
		name       string
		state      gobreaker.State
		wantCode   int
		wantStatus models.HealthStatus
	}{
		{"closed circuit", gobreaker.StateClosed, http.StatusOK, models.HealthStatusOK},
		{"half-open circuit", gobreaker.StateHalfOpen, http.StatusOK, models.HealthStatusOK},
		{"open circuit", gobreaker.StateOpen, http.StatusServiceUnavailable, models.HealthStatusDegraded},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestStack(t, func(cfg *api.RouterConfig) {
				cfg.Providers = stubProviders{{Name: "openweathermap", CircuitState: tt.state}}
			})

			w := s.do(t, http.MethodGet, "/v1/ops/ready", "")
			assert.Equal(t, tt.wantCode, w.Code)

			var health models.Health
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &health))
			assert.Equal(t, tt.wantStatus, health.Status)
			assert.Equal(t, map[string]interface{}{"openweathermap": tt.state.String()}, health.Details["providers"])
		})
	}
}

func TestRouter_SystemStatus(t *testing.T) {
	failedAt := now.Add(-time.Minute)
	s := newTestStack(t, func(cfg *api.RouterConfig) {
		cfg.Providers = stubProviders{{
			Name:          "openweathermap",
			CircuitState:  gobreaker.StateHalfOpen,
			LastFailureAt: &failedAt,
			LastError:     "server error: 503",
		}}
		cfg.Refresh = stubRefresh{enabled: true}
	})

	w := s.do(t, http.MethodGet, "/v1/ops/status", "")
	require.Equal(t, http.StatusOK, w.Code)

	var status models.SystemStatus
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &status))

	assert.Equal(t, models.HealthStatusDegraded, status.Status)
	require.Len(t, status.Subsystems, 1)
	assert.Equal(t, "refresh", status.Subsystems[0].Name)
	assert.Equal(t, models.HealthStatusOK, status.Subsystems[0].Status)

	require.Len(t, status.Providers, 1)
	p := status.Providers[0]
	assert.Equal(t, "openweathermap", p.Provider)
	assert.Equal(t, models.HealthStatusDegraded, p.Status)
	assert.Equal(t, "half-open", p.CircuitState)
	require.NotNil(t, p.Message)
	assert.Equal(t, "server error: 503", *p.Message)
	require.NotNil(t, p.LastFailureAt)
	assert.True(t, failedAt.Equal(p.LastFailureAt.Time()))
}

func TestRouter_SystemStatus_RefreshFailing(t *testing.T) {
	s := newTestStack(t, func(cfg *api.RouterConfig) {
		cfg.Refresh = stubRefresh{enabled: true, metrics: refresh.Metrics{LastRunError: "dashboard loop stopped"}}
	})

	w := s.do(t, http.MethodGet, "/v1/ops/status", "")

	var status models.SystemStatus
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &status))
	assert.Equal(t, models.HealthStatusDegraded, status.Status)
	require.NotNil(t, status.Subsystems[0].Detail)
	assert.Equal(t, "dashboard loop stopped", *status.Subsystems[0].Detail)
	assert.Empty(t, status.Providers)
}

func TestRouter_GetDashboard_Initial(t *testing.T) {
	s := newTestStack(t)

	resp := s.dashboard(t)

	assert.Equal(t, "live", resp.Timeline.Mode)
	assert.Equal(t, 100, resp.Timeline.Position)
	assert.Nil(t, resp.Timeline.Selected)
	assert.False(t, resp.Location.HasCurrent)
	assert.Zero(t, resp.Location.HistoryLength)
	assert.Equal(t, airquality.FallbackColor, resp.View.OverlayColor)
}

func TestRouter_SetLocation(t *testing.T) {
	s := newTestStack(t)

	w := s.do(t, http.MethodPut, "/v1/dashboard/location", `{"lat":51.505,"lon":-0.09}`)
	require.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, "/v1/dashboard", w.Header().Get("Location"))

	// The coordinate is committed before the response is written.
	snap, err := s.dash.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, london, snap.Location.Coordinate)

	resp := s.loaded(t, london)
	assert.Equal(t, "London, England, GB", resp.Location.DisplayName)
	assert.True(t, resp.Location.HasCurrent)
	assert.Equal(t, 24, resp.Location.HistoryLength)
	assert.Equal(t, "51.5050, -0.0900", resp.View.Coordinates)
	assert.Equal(t, 2, resp.View.AQI)
	assert.Equal(t, "Fair", resp.View.AQILabel)
	assert.Equal(t, airquality.Color(2), resp.View.OverlayColor)
	assert.Equal(t, "Current", resp.View.TimeLabel)
	assert.Equal(t, "2024-03-09 12:00", resp.View.OldestLabel)
	assert.Equal(t, "2024-03-10 12:00", resp.View.NewestLabel)
}

func TestRouter_SetLocation_ValidationErrors(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		wantField string
		wantCode  string
	}{
		{"latitude too high", `{"lat":91,"lon":0}`, "lat", "lte"},
		{"longitude too low", `{"lat":0,"lon":-181}`, "lon", "gte"},
		{"missing longitude", `{"lat":10}`, "lon", "required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestStack(t)

			w := s.do(t, http.MethodPut, "/v1/dashboard/location", tt.body)
			require.Equal(t, http.StatusBadRequest, w.Code)

			problem := decodeProblem(t, w)
			assert.Equal(t, models.ProblemTypeValidation, problem.Type)
			assert.Equal(t, "/v1/dashboard/location", problem.Instance)
			require.Len(t, problem.Errors, 1)
			assert.Equal(t, tt.wantField, problem.Errors[0].Field)
			assert.Equal(t, tt.wantCode, problem.Errors[0].Code)
		})
	}
}

func TestRouter_SetLocation_ZeroCoordinateIsValid(t *testing.T) {
	s := newTestStack(t)

	w := s.do(t, http.MethodPut, "/v1/dashboard/location", `{"lat":0,"lon":0}`)

	assert.Equal(t, http.StatusAccepted, w.Code)
}

func TestRouter_SetLocation_InvalidJSON(t *testing.T) {
	s := newTestStack(t)

	w := s.do(t, http.MethodPut, "/v1/dashboard/location", `{"lat":`)

	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "invalid JSON body", decodeProblem(t, w).Detail)
}

func TestRouter_SetLocation_RequiresJSON(t *testing.T) {
	s := newTestStack(t)

	req := httptest.NewRequest(http.MethodPut, "/v1/dashboard/location", strings.NewReader("lat=1&lon=2"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnsupportedMediaType, w.Code)
}

func TestRouter_SearchCity(t *testing.T) {
	s := newTestStack(t)

	w := s.do(t, http.MethodPost, "/v1/dashboard/search", `{"query":"Paris"}`)
	require.Equal(t, http.StatusAccepted, w.Code)

	var accepted models.AcceptedResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &accepted))
	assert.Equal(t, models.AcceptedStatusPending, accepted.Status)

	resp := s.loaded(t, paris)
	assert.Equal(t, "Paris, Ile-de-France, FR", resp.Location.DisplayName)
}

func TestRouter_SearchCity_QueryTooLong(t *testing.T) {
	s := newTestStack(t)

	body := `{"query":"` + strings.Repeat("a", 201) + `"}`
	w := s.do(t, http.MethodPost, "/v1/dashboard/search", body)

	require.Equal(t, http.StatusBadRequest, w.Code)
	problem := decodeProblem(t, w)
	require.Len(t, problem.Errors, 1)
	assert.Equal(t, "query", problem.Errors[0].Field)
	assert.Equal(t, "must be at most 200 characters", problem.Errors[0].Message)
}

func TestRouter_SetTimeline(t *testing.T) {
	s := newTestStack(t)
	require.Equal(t, http.StatusAccepted, s.do(t, http.MethodPut, "/v1/dashboard/location", `{"lat":51.505,"lon":-0.09}`).Code)
	s.loaded(t, london)

	w := s.do(t, http.MethodPut, "/v1/dashboard/timeline", `{"position":0}`)
	require.Equal(t, http.StatusOK, w.Code)

	var resp models.DashboardResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "historical", resp.Timeline.Mode)
	assert.Equal(t, 0, resp.Timeline.Position)
	require.NotNil(t, resp.Timeline.Selected)
	assert.True(t, now.Add(-24*time.Hour).Equal(resp.Timeline.Selected.Time.Time()))
	assert.Equal(t, "2024-03-09 12:00:00", resp.View.TimeLabel)

	w = s.do(t, http.MethodPut, "/v1/dashboard/timeline", `{"position":100}`)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "live", resp.Timeline.Mode)
	assert.Equal(t, "Current", resp.View.TimeLabel)
}

func TestRouter_SetTimeline_OutOfRange(t *testing.T) {
	s := newTestStack(t)

	for _, body := range []string{`{"position":101}`, `{"position":-1}`, `{}`} {
		w := s.do(t, http.MethodPut, "/v1/dashboard/timeline", body)
		assert.Equal(t, http.StatusBadRequest, w.Code, body)
	}
}

func TestRouter_HistoryChart(t *testing.T) {
	s := newTestStack(t)

	w := s.do(t, http.MethodGet, "/v1/dashboard/history/chart.png", "")
	require.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, models.ProblemTypeNotFound, decodeProblem(t, w).Type)

	require.Equal(t, http.StatusAccepted, s.do(t, http.MethodPut, "/v1/dashboard/location", `{"lat":51.505,"lon":-0.09}`).Code)
	s.loaded(t, london)

	w = s.do(t, http.MethodGet, "/v1/dashboard/history/chart.png", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "image/png", w.Header().Get("Content-Type"))
	assert.True(t, bytes.HasPrefix(w.Body.Bytes(), []byte("\x89PNG")))
}

func TestRouter_Stream(t *testing.T) {
	s := newTestStack(t)
	server := httptest.NewServer(s.router)
	defer server.Close()

	conn, resp, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(server.URL, "http")+"/v1/dashboard/ws", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	defer conn.Close()

	read := func() view.Event {
		t.Helper()
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
		var ev view.Event
		require.NoError(t, conn.ReadJSON(&ev))
		return ev
	}

	first := read()
	assert.Equal(t, view.EventSnapshot, first.Type)

	req, err := http.NewRequest(http.MethodPut, server.URL+"/v1/dashboard/location", strings.NewReader(`{"lat":48.8566,"lon":2.3522}`))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	put, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	put.Body.Close()
	require.Equal(t, http.StatusAccepted, put.StatusCode)

	ev := read()
	assert.Equal(t, view.EventLocation, ev.Type)
	assert.Equal(t, dashboard.DisplayResolving, ev.View.LocationName)
	assert.Equal(t, paris.Lat, ev.View.Lat)

	seen := map[view.EventType]bool{}
	for !(seen[view.EventReading] && seen[view.EventBounds]) {
		seen[read().Type] = true
	}
}

func TestRouter_Stream_RejectsForeignOrigin(t *testing.T) {
	s := newTestStack(t, func(cfg *api.RouterConfig) {
		cfg.CORSAllowedOrigins = []string{"https://airview.example"}
	})
	server := httptest.NewServer(s.router)
	defer server.Close()

	header := http.Header{"Origin": []string{"https://evil.example"}}
	_, resp, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(server.URL, "http")+"/v1/dashboard/ws", header)
	require.Error(t, err)
	require.NotNil(t, resp)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestRouter_CORSPreflight(t *testing.T) {
	s := newTestStack(t)

	req := httptest.NewRequest(http.MethodOptions, "/v1/dashboard/location", http.NoBody)
	req.Header.Set("Origin", "https://airview.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodPut)
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Methods"), http.MethodPut)
}

func TestRouter_RequestID(t *testing.T) {
	s := newTestStack(t)

	w := s.do(t, http.MethodGet, "/v1/ops/health", "")
	assert.True(t, strings.HasPrefix(w.Header().Get("X-Request-Id"), "req_"))

	req := httptest.NewRequest(http.MethodGet, "/v1/ops/health", http.NoBody)
	req.Header.Set("X-Request-Id", "custom-request-id")
	w = httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	assert.Equal(t, "custom-request-id", w.Header().Get("X-Request-Id"))
}

func TestRouter_NotFound(t *testing.T) {
	s := newTestStack(t)

	w := s.do(t, http.MethodGet, "/v1/nonexistent", "")

	assert.Equal(t, http.StatusNotFound, w.Code)
}
