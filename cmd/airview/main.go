// Package main provides the entrypoint for the AirView dashboard server.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/breatheroute/airview/internal/airquality/openweathermap"
	"github.com/breatheroute/airview/internal/api"
	"github.com/breatheroute/airview/internal/api/middleware"
	"github.com/breatheroute/airview/internal/config"
	"github.com/breatheroute/airview/internal/dashboard"
	"github.com/breatheroute/airview/internal/provider/resilience"
	"github.com/breatheroute/airview/internal/refresh"
	"github.com/breatheroute/airview/internal/telemetry"
	"github.com/breatheroute/airview/internal/view"
)

// Version and BuildTime are set at compile time via ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

const serviceName = "airview"

func main() {
	// Setup structured logging
	log := zerolog.New(os.Stdout).
		With().
		Timestamp().
		Str("service", serviceName).
		Str("version", Version).
		Logger()

	if err := run(log); err != nil {
		log.Fatal().Err(err).Msg("airview exited with error")
	}
}

func run(log zerolog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(ctx)
	if err != nil {
		return err
	}
	log = log.Level(cfg.Level())

	log.Info().
		Str("build_time", BuildTime).
		Str("environment", cfg.Environment).
		Msg("starting AirView")

	displayTZ, err := cfg.Timezone()
	if err != nil {
		return err
	}

	// Initialize OpenTelemetry
	tp, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName:    serviceName,
		ServiceVersion: Version,
		Environment:    cfg.Environment,
		OTLPEndpoint:   cfg.OTLPEndpoint,
		Enabled:        cfg.OTelEnabled,
		SampleRatio:    cfg.SampleRatio,
	})
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if shutdownErr := tp.Shutdown(shutdownCtx); shutdownErr != nil {
			log.Error().Err(shutdownErr).Msg("failed to shutdown telemetry")
		}
	}()
	if cfg.OTelEnabled {
		log.Info().Str("otlp_endpoint", cfg.OTLPEndpoint).Msg("OpenTelemetry initialized")
	}

	httpMetrics, err := middleware.NewMetrics()
	if err != nil {
		return err
	}
	providerMetrics, err := telemetry.NewProviderMetrics()
	if err != nil {
		return err
	}

	// Provider client: one attempt per call behind a circuit breaker
	registry := resilience.NewRegistry()
	clientCfg := resilience.DefaultClientConfig(openweathermap.ProviderName)
	clientCfg.Timeout = cfg.ProviderTimeout
	clientCfg.Registry = registry
	clientCfg.Logger = log

	gateway := openweathermap.NewClient(openweathermap.ClientConfig{
		APIKey:     cfg.OWMAPIKey,
		BaseURL:    cfg.OWMBaseURL,
		GeoURL:     cfg.OWMGeoURL,
		HTTPClient: resilience.NewClient(clientCfg),
		Logger:     log,
		Metrics:    providerMetrics,
	})

	// Dashboard and its sinks
	board := view.NewBoard(log)
	dash := dashboard.New(dashboard.Config{
		Gateway:       gateway,
		Sink:          dashboard.MultiSink{board, dashboard.NewLogSink(log)},
		Logger:        log,
		HistoryWindow: cfg.HistoryWindow,
		DiscardStale:  cfg.DiscardStale,
		Location:      displayTZ,
	})

	dashDone := make(chan error, 1)
	go func() { dashDone <- dash.Run(ctx) }()

	if err := dash.SetLocation(ctx, cfg.DefaultLocation()); err != nil {
		return err
	}

	scheduler := refresh.New(refresh.Config{
		Interval: cfg.RefreshInterval,
		Target:   dash,
		Logger:   log,
	})
	if err := scheduler.Start(); err != nil {
		return err
	}
	defer scheduler.Stop()

	router := api.NewRouter(api.RouterConfig{
		Version:            Version,
		BuildTime:          BuildTime,
		Logger:             log,
		ServiceName:        serviceName,
		Metrics:            httpMetrics,
		RequireTLS:         cfg.RequireTLS,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		Dashboard:          dash,
		Board:              board,
		Location:           displayTZ,
		Providers:          registry,
		Refresh:            scheduler,
	})

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info().Str("addr", server.Addr).Msg("server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("shutting down server")
	case err := <-serverErr:
		return err
	case err := <-dashDone:
		log.Error().Err(err).Msg("dashboard stopped unexpectedly")
	}

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}

	log.Info().Msg("server stopped")
	return nil
}
