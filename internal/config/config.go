// Package config loads service configuration from the environment.
package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/sethvargo/go-envconfig"

	"github.com/breatheroute/airview/internal/airquality"
)

// Config holds all configuration for the AirView service.
type Config struct {
	// Provider
	OWMAPIKey       string        `env:"OWM_API_KEY,required"`
	OWMBaseURL      string        `env:"OWM_BASE_URL,default=https://api.openweathermap.org/data/2.5"`
	OWMGeoURL       string        `env:"OWM_GEO_URL,default=https://api.openweathermap.org/geo/1.0"`
	ProviderTimeout time.Duration `env:"PROVIDER_TIMEOUT,default=10s"`

	// Server
	Port               string   `env:"APP_PORT,default=8080"`
	Environment        string   `env:"APP_ENV,default=development"`
	LogLevel           string   `env:"LOG_LEVEL,default=info"`
	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS,default=*"`
	RequireTLS         bool     `env:"REQUIRE_TLS,default=false"`

	// Dashboard
	DefaultLat      float64       `env:"DEFAULT_LAT,default=51.505"`
	DefaultLon      float64       `env:"DEFAULT_LON,default=-0.09"`
	HistoryWindow   time.Duration `env:"HISTORY_WINDOW,default=48h"`
	DiscardStale    bool          `env:"DISCARD_STALE,default=false"`
	RefreshInterval time.Duration `env:"REFRESH_INTERVAL,default=0s"`
	DisplayTimezone string        `env:"DISPLAY_TIMEZONE,default=Local"`

	// Telemetry
	OTelEnabled  bool    `env:"OTEL_ENABLED,default=false"`
	OTLPEndpoint string  `env:"OTEL_EXPORTER_OTLP_ENDPOINT,default=localhost:4317"`
	SampleRatio  float64 `env:"OTEL_TRACE_SAMPLE_RATIO,default=1"`
}

// Load reads a .env file from the working directory when one exists, then
// processes the environment.
func Load(ctx context.Context) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}
	return LoadWith(ctx, envconfig.OsLookuper())
}

// LoadWith processes configuration from the given lookuper.
func LoadWith(ctx context.Context, lookuper envconfig.Lookuper) (*Config, error) {
	var cfg Config
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{
		Target:   &cfg,
		Lookuper: lookuper,
	}); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if err := c.DefaultLocation().Validate(); err != nil {
		return fmt.Errorf("DEFAULT_LAT/DEFAULT_LON: %w", err)
	}
	if c.HistoryWindow <= 0 {
		return fmt.Errorf("HISTORY_WINDOW must be positive, got %s", c.HistoryWindow)
	}
	if c.RefreshInterval < 0 {
		return fmt.Errorf("REFRESH_INTERVAL must not be negative, got %s", c.RefreshInterval)
	}
	if c.SampleRatio < 0 || c.SampleRatio > 1 {
		return fmt.Errorf("OTEL_TRACE_SAMPLE_RATIO must be within [0,1], got %g", c.SampleRatio)
	}
	if _, err := c.Timezone(); err != nil {
		return err
	}
	if _, err := zerolog.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("LOG_LEVEL: %w", err)
	}
	return nil
}

// DefaultLocation returns the location shown at startup.
func (c *Config) DefaultLocation() airquality.Coordinate {
	return airquality.Coordinate{Lat: c.DefaultLat, Lon: c.DefaultLon}
}

// Timezone returns the zone used for time labels.
func (c *Config) Timezone() (*time.Location, error) {
	loc, err := time.LoadLocation(c.DisplayTimezone)
	if err != nil {
		return nil, fmt.Errorf("DISPLAY_TIMEZONE: %w", err)
	}
	return loc, nil
}

// Level returns the parsed log level, defaulting to info.
func (c *Config) Level() zerolog.Level {
	level, err := zerolog.ParseLevel(c.LogLevel)
	if err != nil || level == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return level
}

// IsProduction reports whether the service runs in production.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}
