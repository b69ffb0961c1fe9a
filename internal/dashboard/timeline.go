package dashboard

import (
	"time"

	"github.com/breatheroute/airview/internal/airquality"
)

const (
	// LivePosition is the timeline position that tracks the current reading.
	LivePosition = 100

	// LabelCurrent is the time label shown for the live reading.
	LabelCurrent = "Current"

	readingLabelLayout = "2006-01-02 15:04:05"
	boundLabelLayout   = "2006-01-02 15:04"
)

// Mode is the timeline selector state.
type Mode int

// Timeline modes.
const (
	Live Mode = iota
	Historical
)

func (m Mode) String() string {
	if m == Historical {
		return "historical"
	}
	return "live"
}

// Index maps a timeline position to an index into a history of length n:
// floor(value/100 * (n-1)). It reports false when there is nothing to
// select, which is the case for an empty history and for the live position.
func Index(value, n int) (int, bool) {
	if n <= 0 || value >= LivePosition {
		return 0, false
	}
	if value < 0 {
		value = 0
	}
	return value * (n - 1) / LivePosition, true
}

// Timeline derives the selected reading from a position over the history.
// It reads the series it is given and never modifies it.
type Timeline struct {
	position int
	mode     Mode
	index    int
	loc      *time.Location
}

// NewTimeline returns a timeline in Live mode. Time labels are formatted
// in loc, or in the local zone when loc is nil.
func NewTimeline(loc *time.Location) *Timeline {
	if loc == nil {
		loc = time.Local
	}
	return &Timeline{position: LivePosition, mode: Live, loc: loc}
}

// SetPosition moves the selector and renders the selected reading.
// Values outside [0,100] are clamped. A historical position over an empty
// history is ignored and the previous render stays.
func (t *Timeline) SetPosition(value int, series airquality.Series, sink Sink) {
	value = min(max(value, 0), LivePosition)

	if value == LivePosition {
		t.position, t.mode, t.index = LivePosition, Live, 0
		if series.Current != nil {
			t.show(sink, *series.Current, LabelCurrent)
		}
		return
	}

	idx, ok := Index(value, len(series.History))
	if !ok {
		return
	}

	t.position, t.mode, t.index = value, Historical, idx
	reading := series.History[idx]
	t.show(sink, reading, t.ReadingLabel(reading.Timestamp))
}

// Reset returns the selector to Live.
func (t *Timeline) Reset(series airquality.Series, sink Sink) {
	t.SetPosition(LivePosition, series, sink)
}

// Mode returns the current selector state.
func (t *Timeline) Mode() Mode {
	return t.mode
}

// Position returns the current position in [0,100].
func (t *Timeline) Position() int {
	return t.position
}

// Selected returns the reading the selector points at in series.
func (t *Timeline) Selected(series airquality.Series) (airquality.Reading, bool) {
	if t.mode == Live {
		if series.Current == nil {
			return airquality.Reading{}, false
		}
		return *series.Current, true
	}
	if t.index >= len(series.History) {
		return airquality.Reading{}, false
	}
	return series.History[t.index], true
}

// ReadingLabel formats a reading timestamp for display.
func (t *Timeline) ReadingLabel(ts time.Time) string {
	return ts.In(t.loc).Format(readingLabelLayout)
}

// BoundLabel formats a timeline bound for display.
func (t *Timeline) BoundLabel(ts time.Time) string {
	return ts.In(t.loc).Format(boundLabelLayout)
}

func (t *Timeline) show(sink Sink, reading airquality.Reading, label string) {
	sink.ShowReading(reading, label)
	sink.Recolor(reading.AQI)
}
