// Package airquality provides the pollution data model and the gateway
// contract for fetching readings and geocoding results.
package airquality

import (
	"fmt"
	"strings"
	"time"
)

// Coordinate is a WGS84 point.
type Coordinate struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Validate checks that the coordinate lies within [-90,90] x [-180,180].
func (c Coordinate) Validate() error {
	if c.Lat < -90 || c.Lat > 90 || c.Lon < -180 || c.Lon > 180 {
		return ErrInvalidCoordinates
	}
	return nil
}

// String formats the coordinate the way the location panel shows it.
func (c Coordinate) String() string {
	return fmt.Sprintf("%.4f, %.4f", c.Lat, c.Lon)
}

// Components holds pollutant concentrations in µg/m³.
type Components struct {
	CO   float64 `json:"co"`
	NO2  float64 `json:"no2"`
	O3   float64 `json:"o3"`
	PM25 float64 `json:"pm2_5"`
	PM10 float64 `json:"pm10"`
	SO2  float64 `json:"so2"`
}

// Concentration is one labelled pollutant value.
type Concentration struct {
	Pollutant string
	Value     float64
}

// Ordered returns the concentrations in display order:
// CO, NO₂, O₃, PM2.5, PM10, SO₂.
func (c Components) Ordered() []Concentration {
	return []Concentration{
		{Pollutant: "CO", Value: c.CO},
		{Pollutant: "NO₂", Value: c.NO2},
		{Pollutant: "O₃", Value: c.O3},
		{Pollutant: "PM2.5", Value: c.PM25},
		{Pollutant: "PM10", Value: c.PM10},
		{Pollutant: "SO₂", Value: c.SO2},
	}
}

// Reading is a single pollution sample. Readings are values; once a
// gateway returns one it is never modified.
type Reading struct {
	Timestamp  time.Time  `json:"timestamp"`
	AQI        int        `json:"aqi"`
	Components Components `json:"components"`
}

// Series is the pollution dataset for one location. Current and History
// come from separate fetches, so Current may be newer than the last
// History entry.
type Series struct {
	// Current is nil until a current reading has been fetched.
	Current *Reading

	// History is ordered ascending by timestamp and covers the trailing
	// window ending at fetch time. It may be empty.
	History []Reading
}

// Place is a single geocoding match.
type Place struct {
	Name    string
	State   string
	Country string
	Coordinate
}

// DisplayName joins name, state and country, skipping the empty parts.
func (p Place) DisplayName() string {
	parts := make([]string, 0, 3)
	for _, s := range []string{p.Name, p.State, p.Country} {
		if s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, ", ")
}
