package openweathermap

import (
	"fmt"
	"time"

	"github.com/breatheroute/airview/internal/airquality"
)

// OpenWeatherMap API response structures.

type pollutionResponse struct {
	Coord struct {
		Lat float64 `json:"lat"`
		Lon float64 `json:"lon"`
	} `json:"coord"`
	List []pollutionItem `json:"list"`
}

type pollutionItem struct {
	Dt   int64 `json:"dt"`
	Main struct {
		AQI int `json:"aqi"`
	} `json:"main"`
	Components struct {
		CO   float64 `json:"co"`
		NO   float64 `json:"no"`
		NO2  float64 `json:"no2"`
		O3   float64 `json:"o3"`
		SO2  float64 `json:"so2"`
		PM25 float64 `json:"pm2_5"`
		PM10 float64 `json:"pm10"`
		NH3  float64 `json:"nh3"`
	} `json:"components"`
}

func (p pollutionItem) toReading() (airquality.Reading, error) {
	if !airquality.ValidAQI(p.Main.AQI) {
		return airquality.Reading{}, fmt.Errorf("aqi %d out of range: %w", p.Main.AQI, airquality.ErrMalformedResponse)
	}

	return airquality.Reading{
		Timestamp: time.Unix(p.Dt, 0).UTC(),
		AQI:       p.Main.AQI,
		Components: airquality.Components{
			CO:   p.Components.CO,
			NO2:  p.Components.NO2,
			O3:   p.Components.O3,
			PM25: p.Components.PM25,
			PM10: p.Components.PM10,
			SO2:  p.Components.SO2,
		},
	}, nil
}

type geocodeResult struct {
	Name       string            `json:"name"`
	LocalNames map[string]string `json:"local_names"`
	Lat        float64           `json:"lat"`
	Lon        float64           `json:"lon"`
	Country    string            `json:"country"`
	State      string            `json:"state"`
}

func (g geocodeResult) toPlace() airquality.Place {
	return airquality.Place{
		Name:       g.Name,
		State:      g.State,
		Country:    g.Country,
		Coordinate: airquality.Coordinate{Lat: g.Lat, Lon: g.Lon},
	}
}
