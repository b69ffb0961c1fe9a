package handler

import (
	"bytes"
	"errors"
	"net/http"
	"time"

	"github.com/breatheroute/airview/internal/airquality"
	"github.com/breatheroute/airview/internal/api/models"
	"github.com/breatheroute/airview/internal/api/response"
	"github.com/breatheroute/airview/internal/dashboard"
	"github.com/breatheroute/airview/internal/view"
)

const dashboardPath = "/v1/dashboard"

// DashboardHandler handles dashboard endpoints.
type DashboardHandler struct {
	dashboard Dashboard
	board     Board
	location  *time.Location
}

// NewDashboardHandler creates a new DashboardHandler. Chart labels use loc.
func NewDashboardHandler(d Dashboard, board Board, loc *time.Location) *DashboardHandler {
	return &DashboardHandler{
		dashboard: d,
		board:     board,
		location:  loc,
	}
}

// GetDashboard handles GET /v1/dashboard - current location, timeline and view.
func (h *DashboardHandler) GetDashboard(w http.ResponseWriter, r *http.Request) {
	snap, err := h.dashboard.Snapshot(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, h.toResponse(snap))
}

// SetLocation handles PUT /v1/dashboard/location - move to a coordinate.
// The coordinate is committed before the response; readings arrive on the stream.
func (h *DashboardHandler) SetLocation(w http.ResponseWriter, r *http.Request) {
	var input models.LocationRequest
	if !decodeJSON(w, r, &input) {
		return
	}

	coord := airquality.Coordinate{Lat: *input.Lat, Lon: *input.Lon}
	if err := h.dashboard.SetLocation(r.Context(), coord); err != nil {
		h.writeError(w, r, err)
		return
	}
	response.Accepted(w, r, dashboardPath, models.AcceptedResponse{Status: models.AcceptedStatusPending})
}

// SearchCity handles POST /v1/dashboard/search - move to the first city match.
func (h *DashboardHandler) SearchCity(w http.ResponseWriter, r *http.Request) {
	var input models.SearchRequest
	if !decodeJSON(w, r, &input) {
		return
	}

	if err := h.dashboard.SearchCity(r.Context(), input.Query); err != nil {
		h.writeError(w, r, err)
		return
	}
	response.Accepted(w, r, dashboardPath, models.AcceptedResponse{Status: models.AcceptedStatusPending})
}

// SetTimeline handles PUT /v1/dashboard/timeline - move the timeline slider.
func (h *DashboardHandler) SetTimeline(w http.ResponseWriter, r *http.Request) {
	var input models.TimelineRequest
	if !decodeJSON(w, r, &input) {
		return
	}

	if err := h.dashboard.SetPosition(r.Context(), *input.Position); err != nil {
		h.writeError(w, r, err)
		return
	}

	snap, err := h.dashboard.Snapshot(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, h.toResponse(snap))
}

// HistoryChart handles GET /v1/dashboard/history/chart.png - PNG of the loaded history.
func (h *DashboardHandler) HistoryChart(w http.ResponseWriter, r *http.Request) {
	snap, err := h.dashboard.Snapshot(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	var buf bytes.Buffer
	err = view.RenderHistoryChart(&buf, snap.Location.Series.History, h.location)
	switch {
	case errors.Is(err, view.ErrNotEnoughHistory):
		response.NotFound(w, r, "no history loaded for the current location")
		return
	case err != nil:
		response.InternalError(w, r, "failed to render history chart")
		return
	}
	response.PNG(w, r, buf.Bytes())
}

func (h *DashboardHandler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, airquality.ErrInvalidCoordinates) {
		response.BadRequest(w, r, err.Error(), nil)
		return
	}
	response.ServiceUnavailable(w, r, "dashboard is not running")
}

func (h *DashboardHandler) toResponse(snap dashboard.Snapshot) models.DashboardResponse {
	series := snap.Location.Series
	resp := models.DashboardResponse{
		Location: models.LocationResponse{
			Lat:           snap.Location.Coordinate.Lat,
			Lon:           snap.Location.Coordinate.Lon,
			DisplayName:   snap.Location.DisplayName,
			HasCurrent:    series.Current != nil,
			HistoryLength: len(series.History),
		},
		Timeline: models.TimelineResponse{
			Mode:     snap.Mode.String(),
			Position: snap.Position,
		},
		View: h.board.View(),
	}
	if sel := snap.Selected; sel != nil {
		resp.Timeline.Selected = &models.ReadingResponse{
			Time:  models.Timestamp(sel.Timestamp),
			AQI:   sel.AQI,
			Label: airquality.Label(sel.AQI),
		}
	}
	return resp
}
