package view

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"github.com/breatheroute/airview/internal/airquality"
)

// ErrNotEnoughHistory is returned when the history spans fewer than two
// distinct timestamps.
var ErrNotEnoughHistory = errors.New("not enough history to plot")

const chartTimeLayout = "01-02 15:04"

var (
	pm25Color = hexColor(airquality.FallbackColor)
	aqiColor  = hexColor(airquality.Color(airquality.AQIPoor))
)

// RenderHistoryChart draws PM2.5 and AQI over the history as a PNG.
// Time labels use loc; a nil loc means time.Local.
func RenderHistoryChart(w io.Writer, history []airquality.Reading, loc *time.Location) error {
	if !spansTime(history) {
		return ErrNotEnoughHistory
	}
	if loc == nil {
		loc = time.Local
	}

	times := make([]time.Time, len(history))
	pm25 := make([]float64, len(history))
	aqi := make([]float64, len(history))
	maxPM25 := 0.0
	for i, r := range history {
		times[i] = r.Timestamp
		pm25[i] = r.Components.PM25
		aqi[i] = float64(r.AQI)
		maxPM25 = max(maxPM25, r.Components.PM25)
	}

	graph := chart.Chart{
		Title:  "Air quality history",
		Width:  800,
		Height: 360,
		Background: chart.Style{
			Padding: chart.Box{Top: 50, Left: 20, Right: 20, Bottom: 20},
		},
		XAxis: chart.XAxis{
			ValueFormatter: func(v interface{}) string {
				return formatChartTime(v, loc)
			},
		},
		YAxis: chart.YAxis{
			Name:  "PM2.5 (µg/m³)",
			Range: &chart.ContinuousRange{Min: 0, Max: niceCeiling(maxPM25)},
		},
		YAxisSecondary: chart.YAxis{
			Name:  "AQI",
			Range: &chart.ContinuousRange{Min: 0, Max: airquality.AQIVeryPoor},
		},
		Series: []chart.Series{
			chart.TimeSeries{
				Name:    "PM2.5",
				Style:   chart.Style{StrokeColor: pm25Color, StrokeWidth: 2},
				XValues: times,
				YValues: pm25,
			},
			chart.TimeSeries{
				Name:    "AQI",
				YAxis:   chart.YAxisSecondary,
				Style:   chart.Style{StrokeColor: aqiColor, StrokeWidth: 2, StrokeDashArray: []float64{5, 3}},
				XValues: times,
				YValues: aqi,
			},
		},
	}
	graph.Elements = []chart.Renderable{chart.Legend(&graph)}

	if err := graph.Render(chart.PNG, w); err != nil {
		return fmt.Errorf("rendering history chart: %w", err)
	}
	return nil
}

func formatChartTime(v interface{}, loc *time.Location) string {
	switch t := v.(type) {
	case time.Time:
		return t.In(loc).Format(chartTimeLayout)
	case float64:
		return chart.TimeFromFloat64(t).In(loc).Format(chartTimeLayout)
	}
	return ""
}

// niceCeiling rounds up to the next multiple of ten, with a floor of ten.
func niceCeiling(v float64) float64 {
	if v <= 10 {
		return 10
	}
	return float64(int(v/10)+1) * 10
}

func hexColor(hex string) drawing.Color {
	return drawing.ColorFromHex(strings.TrimPrefix(hex, "#"))
}

func spansTime(history []airquality.Reading) bool {
	for _, r := range history[min(1, len(history)):] {
		if !r.Timestamp.Equal(history[0].Timestamp) {
			return true
		}
	}
	return false
}
