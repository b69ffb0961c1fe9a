// Package openweathermap implements airquality.Gateway on top of the
// OpenWeatherMap Air Pollution and Geocoding APIs.
package openweathermap

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/breatheroute/airview/internal/airquality"
	"github.com/breatheroute/airview/internal/provider/resilience"
	"github.com/breatheroute/airview/internal/telemetry"
)

const (
	// ProviderName identifies this provider.
	ProviderName = "openweathermap"

	// DefaultBaseURL is the Air Pollution API base URL.
	DefaultBaseURL = "https://api.openweathermap.org/data/2.5"

	// DefaultGeoURL is the Geocoding API base URL.
	DefaultGeoURL = "https://api.openweathermap.org/geo/1.0"
)

// ClientConfig holds configuration for the OpenWeatherMap client.
type ClientConfig struct {
	// APIKey is the OpenWeatherMap API key (required).
	APIKey string

	// BaseURL is the Air Pollution API base URL (defaults to DefaultBaseURL).
	BaseURL string

	// GeoURL is the Geocoding API base URL (defaults to DefaultGeoURL).
	GeoURL string

	// HTTPClient is the HTTP client to use.
	// If nil, uses a single-attempt resilient client.
	HTTPClient *resilience.Client

	// Logger for client operations.
	Logger zerolog.Logger

	// Metrics records per-call duration and outcome (optional).
	Metrics *telemetry.ProviderMetrics

	// Now returns the current time; used for the history window.
	Now func() time.Time
}

// Client is an OpenWeatherMap air quality gateway.
type Client struct {
	apiKey     string
	baseURL    string
	geoURL     string
	httpClient *resilience.Client
	logger     zerolog.Logger
	metrics    *telemetry.ProviderMetrics
	now        func() time.Time
}

var _ airquality.Gateway = (*Client)(nil)

// NewClient creates a new OpenWeatherMap client.
func NewClient(cfg ClientConfig) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	geoURL := cfg.GeoURL
	if geoURL == "" {
		geoURL = DefaultGeoURL
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = resilience.NewClient(resilience.DefaultClientConfig(ProviderName))
	}

	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	return &Client{
		apiKey:     cfg.APIKey,
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		geoURL:     strings.TrimSuffix(geoURL, "/"),
		httpClient: httpClient,
		logger:     cfg.Logger.With().Str("provider", ProviderName).Logger(),
		metrics:    cfg.Metrics,
		now:        now,
	}
}

// Name returns the provider name.
func (c *Client) Name() string {
	return ProviderName
}

// ResolveCity returns the coordinate of the first geocoding match for name.
func (c *Client) ResolveCity(ctx context.Context, name string) (airquality.Coordinate, error) {
	q := url.Values{}
	q.Set("q", name)
	q.Set("limit", "1")

	var results []geocodeResult
	if err := c.get(ctx, "resolve_city", c.geoURL+"/direct", q, &results); err != nil {
		return airquality.Coordinate{}, err
	}

	if len(results) == 0 {
		return airquality.Coordinate{}, fmt.Errorf("resolving %q: %w", name, airquality.ErrNotFound)
	}

	place := results[0].toPlace()
	c.logger.Debug().
		Str("query", name).
		Str("place", place.DisplayName()).
		Msg("city resolved")

	return place.Coordinate, nil
}

// ReverseGeocode returns "City, State, Country" for coord, or
// airquality.UnknownPlace when the lookup fails or finds nothing.
func (c *Client) ReverseGeocode(ctx context.Context, coord airquality.Coordinate) string {
	q := coordQuery(coord)
	q.Set("limit", "1")

	var results []geocodeResult
	if err := c.get(ctx, "reverse_geocode", c.geoURL+"/reverse", q, &results); err != nil {
		return airquality.UnknownPlace
	}
	if len(results) == 0 {
		return airquality.UnknownPlace
	}

	name := results[0].toPlace().DisplayName()
	if name == "" {
		return airquality.UnknownPlace
	}
	return name
}

// FetchCurrent returns the current reading at coord.
func (c *Client) FetchCurrent(ctx context.Context, coord airquality.Coordinate) (airquality.Reading, error) {
	var resp pollutionResponse
	if err := c.get(ctx, "fetch_current", c.baseURL+"/air_pollution", coordQuery(coord), &resp); err != nil {
		return airquality.Reading{}, err
	}

	if len(resp.List) == 0 {
		return airquality.Reading{}, fmt.Errorf("current pollution: empty list: %w", airquality.ErrMalformedResponse)
	}

	return resp.List[0].toReading()
}

// FetchHistory returns the readings for [now-window, now] at coord,
// sorted ascending by timestamp. A zero window uses the default.
func (c *Client) FetchHistory(ctx context.Context, coord airquality.Coordinate, window time.Duration) ([]airquality.Reading, error) {
	if window <= 0 {
		window = airquality.DefaultHistoryWindow
	}

	end := c.now().Unix()
	start := end - int64(window/time.Second)

	q := coordQuery(coord)
	q.Set("start", strconv.FormatInt(start, 10))
	q.Set("end", strconv.FormatInt(end, 10))

	var resp pollutionResponse
	if err := c.get(ctx, "fetch_history", c.baseURL+"/air_pollution/history", q, &resp); err != nil {
		return nil, err
	}

	if resp.List == nil {
		return nil, fmt.Errorf("pollution history: missing list: %w", airquality.ErrMalformedResponse)
	}

	readings := make([]airquality.Reading, 0, len(resp.List))
	for _, item := range resp.List {
		reading, err := item.toReading()
		if err != nil {
			return nil, err
		}
		readings = append(readings, reading)
	}

	sort.SliceStable(readings, func(i, j int) bool {
		return readings[i].Timestamp.Before(readings[j].Timestamp)
	})

	return readings, nil
}

// get performs one GET against endpoint and decodes the JSON body into out.
// Transport failures wrap airquality.ErrTransport; undecodable bodies wrap
// airquality.ErrMalformedResponse.
func (c *Client) get(ctx context.Context, operation, endpoint string, query url.Values, out any) (err error) {
	ctx, endSpan := telemetry.StartProviderSpan(ctx, ProviderName, operation)
	start := time.Now()

	defer func() {
		duration := time.Since(start)
		c.metrics.RecordRequest(ProviderName, operation, duration, err)
		endSpan(err)

		if err != nil {
			c.logger.Error().Err(err).
				Str("operation", operation).
				Dur("duration", duration).
				Msg("provider request failed")
			return
		}
		c.logger.Debug().
			Str("operation", operation).
			Dur("duration", duration).
			Msg("provider request completed")
	}()

	query.Set("appid", c.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+query.Encode(), http.NoBody)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: executing request: %w", airquality.ErrTransport, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("%w: unexpected status code: %d", airquality.ErrTransport, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decoding response: %w", airquality.ErrMalformedResponse, err)
	}

	return nil
}

func coordQuery(coord airquality.Coordinate) url.Values {
	q := url.Values{}
	q.Set("lat", strconv.FormatFloat(coord.Lat, 'f', -1, 64))
	q.Set("lon", strconv.FormatFloat(coord.Lon, 'f', -1, 64))
	return q
}
