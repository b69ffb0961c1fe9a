package dashboard_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/breatheroute/airview/internal/airquality"
	"github.com/breatheroute/airview/internal/dashboard"
)

func TestIndex(t *testing.T) {
	tests := []struct {
		name     string
		value    int
		n        int
		expected int
		ok       bool
	}{
		{"empty history", 50, 0, 0, false},
		{"live position", 100, 5, 0, false},
		{"single reading start", 0, 1, 0, true},
		{"single reading middle", 99, 1, 0, true},
		{"start of five", 0, 5, 0, true},
		{"middle of five", 50, 5, 2, true},
		{"just below live", 99, 5, 3, true},
		{"48 hourly samples", 99, 48, 46, true},
		{"negative clamps", -10, 5, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			idx, ok := dashboard.Index(tt.value, tt.n)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.expected, idx)
		})
	}
}

func TestIndex_MonotonicAndInRange(t *testing.T) {
	for n := 1; n <= 60; n++ {
		prev := -1
		for v := 0; v < dashboard.LivePosition; v++ {
			idx, ok := dashboard.Index(v, n)
			require.True(t, ok)
			require.GreaterOrEqual(t, idx, prev, "n=%d v=%d", n, v)
			require.GreaterOrEqual(t, idx, 0)
			require.Less(t, idx, n)
			prev = idx
		}
	}
}

func TestTimeline_FiveReadings(t *testing.T) {
	history := historyOf(5)
	current := reading(4, baseTime)
	series := airquality.Series{Current: &current, History: history}

	tl := dashboard.NewTimeline(time.UTC)
	sink := &recordingSink{}

	tl.SetPosition(0, series, sink)
	selected, ok := tl.Selected(series)
	require.True(t, ok)
	assert.Equal(t, history[0].Timestamp, selected.Timestamp)
	assert.Equal(t, dashboard.Historical, tl.Mode())

	tl.SetPosition(50, series, sink)
	selected, _ = tl.Selected(series)
	assert.Equal(t, history[2].Timestamp, selected.Timestamp)
	show, _ := sink.last("show")
	assert.Equal(t, history[2].Timestamp.Format("2006-01-02 15:04:05"), show.Label)
	recolor, _ := sink.last("recolor")
	assert.Equal(t, history[2].AQI, recolor.AQI)

	tl.SetPosition(100, series, sink)
	selected, _ = tl.Selected(series)
	assert.Equal(t, current, selected)
	assert.Equal(t, dashboard.Live, tl.Mode())
	show, _ = sink.last("show")
	assert.Equal(t, dashboard.LabelCurrent, show.Label)
	assert.Equal(t, 4, show.AQI)
}

func TestTimeline_EmptyHistoryIsNoop(t *testing.T) {
	current := reading(2, baseTime)
	series := airquality.Series{Current: &current}

	tl := dashboard.NewTimeline(time.UTC)
	sink := &recordingSink{}

	assert.NotPanics(t, func() {
		tl.SetPosition(30, series, sink)
	})
	assert.Equal(t, dashboard.Live, tl.Mode())
	assert.Equal(t, dashboard.LivePosition, tl.Position())
	assert.Zero(t, sink.count("show"))
	assert.Zero(t, sink.count("recolor"))
}

func TestTimeline_LiveWithoutCurrent(t *testing.T) {
	tl := dashboard.NewTimeline(time.UTC)
	sink := &recordingSink{}

	tl.SetPosition(100, airquality.Series{History: historyOf(3)}, sink)

	assert.Equal(t, dashboard.Live, tl.Mode())
	assert.Zero(t, sink.count("show"))
	_, ok := tl.Selected(airquality.Series{})
	assert.False(t, ok)
}

func TestTimeline_ClampsOutOfRange(t *testing.T) {
	series := airquality.Series{History: historyOf(4)}
	tl := dashboard.NewTimeline(time.UTC)
	sink := &recordingSink{}

	tl.SetPosition(-5, series, sink)
	assert.Equal(t, 0, tl.Position())
	selected, _ := tl.Selected(series)
	assert.Equal(t, series.History[0].Timestamp, selected.Timestamp)

	tl.SetPosition(250, series, sink)
	assert.Equal(t, dashboard.LivePosition, tl.Position())
	assert.Equal(t, dashboard.Live, tl.Mode())
}

func TestTimeline_ResetReturnsToLive(t *testing.T) {
	series := airquality.Series{History: historyOf(10)}
	tl := dashboard.NewTimeline(time.UTC)
	sink := &recordingSink{}

	tl.SetPosition(20, series, sink)
	require.Equal(t, dashboard.Historical, tl.Mode())

	tl.Reset(series, sink)
	assert.Equal(t, dashboard.Live, tl.Mode())
	assert.Equal(t, dashboard.LivePosition, tl.Position())
}

func TestTimeline_LabelsUseLocation(t *testing.T) {
	amsterdam := time.FixedZone("CET", 3600)
	tl := dashboard.NewTimeline(amsterdam)

	ts := time.Date(2024, 3, 10, 11, 30, 15, 0, time.UTC)
	assert.Equal(t, "2024-03-10 12:30:15", tl.ReadingLabel(ts))
	assert.Equal(t, "2024-03-10 12:30", tl.BoundLabel(ts))
}

func TestMode_String(t *testing.T) {
	assert.Equal(t, "live", dashboard.Live.String())
	assert.Equal(t, "historical", dashboard.Historical.String())
}
