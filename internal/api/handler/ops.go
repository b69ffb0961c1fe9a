package handler

import (
	"net/http"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/breatheroute/airview/internal/api/models"
	"github.com/breatheroute/airview/internal/api/response"
	"github.com/breatheroute/airview/internal/provider/resilience"
	"github.com/breatheroute/airview/internal/refresh"
)

// ProviderHealthSource reports the health of upstream providers.
type ProviderHealthSource interface {
	GetAllHealth() []*resilience.ProviderHealth
}

// RefreshStatus reports the periodic refresh job.
type RefreshStatus interface {
	Enabled() bool
	Metrics() refresh.Metrics
}

// OpsHandler handles operational endpoints.
type OpsHandler struct {
	version   string
	buildTime string
	providers ProviderHealthSource
	refresh   RefreshStatus
}

// NewOpsHandler creates a new OpsHandler. providers and refresh may be nil.
func NewOpsHandler(version, buildTime string, providers ProviderHealthSource, refresh RefreshStatus) *OpsHandler {
	return &OpsHandler{
		version:   version,
		buildTime: buildTime,
		providers: providers,
		refresh:   refresh,
	}
}

// HealthCheck handles GET /v1/ops/health - liveness check.
func (h *OpsHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	health := models.Health{
		Status: models.HealthStatusOK,
		Time:   models.Timestamp(time.Now()),
		Details: map[string]interface{}{
			"version":   h.version,
			"buildTime": h.buildTime,
		},
	}
	response.JSON(w, r, http.StatusOK, health)
}

// ReadinessCheck handles GET /v1/ops/ready - readiness check.
// Any provider with an open circuit makes the service DEGRADED with a 503.
func (h *OpsHandler) ReadinessCheck(w http.ResponseWriter, r *http.Request) {
	health := models.Health{
		Status: models.HealthStatusOK,
		Time:   models.Timestamp(time.Now()),
	}

	if h.providers != nil {
		circuits := make(map[string]interface{})
		for _, p := range h.providers.GetAllHealth() {
			circuits[p.Name] = p.CircuitState.String()
			if p.IsUnhealthy() {
				health.Status = models.HealthStatusDegraded
			}
		}
		health.Details = map[string]interface{}{"providers": circuits}
	}

	status := http.StatusOK
	if health.Status != models.HealthStatusOK {
		status = http.StatusServiceUnavailable
	}
	response.JSON(w, r, status, health)
}

// SystemStatus handles GET /v1/ops/status - provider and subsystem status.
func (h *OpsHandler) SystemStatus(w http.ResponseWriter, r *http.Request) {
	status := models.SystemStatus{
		Status:     models.HealthStatusOK,
		Time:       models.Timestamp(time.Now()),
		Subsystems: []models.SubsystemStatus{h.refreshStatus()},
		Providers:  []models.ProviderStatus{},
	}

	if h.providers != nil {
		for _, p := range h.providers.GetAllHealth() {
			status.Providers = append(status.Providers, providerStatus(p))
		}
	}

	for _, s := range status.Subsystems {
		status.Status = worst(status.Status, s.Status)
	}
	for _, p := range status.Providers {
		status.Status = worst(status.Status, p.Status)
	}
	response.JSON(w, r, http.StatusOK, status)
}

func (h *OpsHandler) refreshStatus() models.SubsystemStatus {
	s := models.SubsystemStatus{Name: "refresh", Status: models.HealthStatusOK}
	if h.refresh == nil || !h.refresh.Enabled() {
		detail := "disabled"
		s.Detail = &detail
		return s
	}

	if m := h.refresh.Metrics(); m.LastRunError != "" {
		s.Status = models.HealthStatusDegraded
		s.Detail = &m.LastRunError
	}
	return s
}

func providerStatus(p *resilience.ProviderHealth) models.ProviderStatus {
	s := models.ProviderStatus{
		Provider:      p.Name,
		Status:        circuitHealth(p.CircuitState),
		CircuitState:  p.CircuitState.String(),
		LastSuccessAt: models.TimestampPtr(p.LastSuccessAt),
		LastFailureAt: models.TimestampPtr(p.LastFailureAt),
	}
	if p.LastError != "" {
		msg := p.LastError
		s.Message = &msg
	}
	return s
}

func circuitHealth(state gobreaker.State) models.HealthStatus {
	switch state {
	case gobreaker.StateOpen:
		return models.HealthStatusFail
	case gobreaker.StateHalfOpen:
		return models.HealthStatusDegraded
	default:
		return models.HealthStatusOK
	}
}

var healthRank = map[models.HealthStatus]int{
	models.HealthStatusOK:       0,
	models.HealthStatusDegraded: 1,
	models.HealthStatusFail:     2,
}

func worst(a, b models.HealthStatus) models.HealthStatus {
	if healthRank[b] > healthRank[a] {
		return b
	}
	return a
}
