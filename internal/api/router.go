// Package api provides the HTTP API for AirView.
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/breatheroute/airview/internal/api/handler"
	"github.com/breatheroute/airview/internal/api/middleware"
)

// RouterConfig holds configuration for the router.
type RouterConfig struct {
	Version     string
	BuildTime   string
	Logger      zerolog.Logger
	ServiceName string
	Metrics     *middleware.Metrics

	// RequireTLS rejects plain HTTP requests forwarded by a load balancer.
	RequireTLS bool

	// CORSAllowedOrigins also restricts WebSocket origins. "*" allows any.
	CORSAllowedOrigins []string

	Dashboard handler.Dashboard
	Board     handler.Board

	// Location is the zone used for chart labels.
	Location *time.Location

	// Providers and Refresh feed the ops endpoints; both may be nil.
	Providers handler.ProviderHealthSource
	Refresh   handler.RefreshStatus
}

// NewRouter creates a new chi router with all API routes configured.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = "airview-api"
	}
	origins := cfg.CORSAllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	// Global middleware - order matters
	r.Use(middleware.RequestID)            // Generate/propagate request ID first
	r.Use(middleware.Tracing(serviceName)) // Distributed tracing
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.Middleware()) // HTTP metrics
	}
	r.Use(middleware.Logger(cfg.Logger))   // Structured logging
	r.Use(middleware.Recovery(cfg.Logger)) // Panic recovery
	r.Use(chimiddleware.RealIP)            // Real IP extraction
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", middleware.RequestIDHeader},
		ExposedHeaders: []string{"Location", middleware.RequestIDHeader, "Retry-After"},
		MaxAge:         300,
	}))
	r.Use(middleware.SecurityHeaders)            // Security headers (HSTS, CSP, etc.)
	r.Use(middleware.RequireTLS(cfg.RequireTLS)) // TLS enforcement

	opsHandler := handler.NewOpsHandler(cfg.Version, cfg.BuildTime, cfg.Providers, cfg.Refresh)
	dashboardHandler := handler.NewDashboardHandler(cfg.Dashboard, cfg.Board, cfg.Location)
	streamHandler := handler.NewStreamHandler(cfg.Board, origins, handler.DefaultWebSocketConfig(), cfg.Logger)

	providerRateLimit := middleware.RateLimitByIP(middleware.ProviderRateLimit) // 30 req/min
	standardRateLimit := middleware.RateLimitByIP(middleware.StandardRateLimit) // 100 req/min

	r.Route("/v1", func(r chi.Router) {
		r.Route("/ops", func(r chi.Router) {
			r.Use(middleware.ContentTypeJSON)
			r.Get("/health", opsHandler.HealthCheck)
			r.Get("/ready", opsHandler.ReadinessCheck)
			r.With(standardRateLimit).Get("/status", opsHandler.SystemStatus)
		})

		r.Route("/dashboard", func(r chi.Router) {
			r.Use(standardRateLimit)

			// Non-JSON responses
			r.Get("/ws", streamHandler.Stream)
			r.Get("/history/chart.png", dashboardHandler.HistoryChart)

			r.Group(func(r chi.Router) {
				r.Use(middleware.ContentTypeJSON)
				r.Use(middleware.RequireJSON)

				r.Get("/", dashboardHandler.GetDashboard)
				r.Put("/timeline", dashboardHandler.SetTimeline)

				// Both fan out to the air quality provider
				r.With(providerRateLimit).Put("/location", dashboardHandler.SetLocation)
				r.With(providerRateLimit).Post("/search", dashboardHandler.SearchCity)
			})
		})
	})

	return r
}
