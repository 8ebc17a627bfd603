package timeseries

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/danielpatrickdp/process-compliance/internal/faults"
	"github.com/danielpatrickdp/process-compliance/internal/severity"
)

// DayLayout is the calendar-day format used in views.
const DayLayout = "2006-01-02"

// #region day
// Day is a calendar day, held as midnight UTC.
type Day struct {
	time.Time
}

// DayOf returns the calendar day t was recorded on, in t's own offset.
func DayOf(t time.Time) Day {
	return Day{time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)}
}

// ParseDay parses a YYYY-MM-DD string.
func ParseDay(s string) (Day, error) {
	t, err := time.Parse(DayLayout, s)
	if err != nil {
		return Day{}, faults.DataFormat("day", s, "expected YYYY-MM-DD")
	}
	return Day{t}, nil
}

func (d Day) Next() Day         { return Day{d.AddDate(0, 0, 1)} }
func (d Day) Prev() Day         { return Day{d.AddDate(0, 0, -1)} }
func (d Day) String() string    { return d.Format(DayLayout) }
func (d Day) Before(o Day) bool { return d.Time.Before(o.Time) }
func (d Day) After(o Day) bool  { return d.Time.After(o.Time) }

func (d Day) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.String() + `"`), nil
}

func (d *Day) UnmarshalJSON(b []byte) error {
	parsed, err := ParseDay(strings.Trim(string(b), `"`))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// #endregion day

// #region types
// Event carries one incident's open and close timestamps.
type Event struct {
	ID       string
	OpenedAt time.Time
	ClosedAt *time.Time
}

// Sample is a selected incident's metric value used for severity attribution.
type Sample struct {
	ID    string
	Value float64
}

// Window bounds the reported days. A zero Window reports the whole range.
type Window struct {
	Min Day `json:"min"`
	Max Day `json:"max"`
}

// IsZero reports whether no window was set.
func (w Window) IsZero() bool { return w.Min.IsZero() && w.Max.IsZero() }

// Contains reports whether d lies in [Min, Max].
func (w Window) Contains(d Day) bool {
	return !d.Before(w.Min) && !d.After(w.Max)
}

// Point is a daily count.
type Point struct {
	Day   Day `json:"time"`
	Count int `json:"count"`
}

// ClosedPoint is a daily closed count with its severity breakdown.
// Unattributed counts closed incidents with no sample or no matching band.
type ClosedPoint struct {
	Day          Day `json:"time"`
	Count        int `json:"count"`
	Low          int `json:"low"`
	Moderate     int `json:"moderate"`
	High         int `json:"high"`
	Critical     int `json:"critical"`
	Unattributed int `json:"unattributed"`
}

// Violation flags a day whose active count went negative.
type Violation struct {
	Day    Day    `json:"time"`
	Active int    `json:"active"`
	Reason string `json:"reason"`
}

// Series is the windowed output of Aggregate.
type Series struct {
	Opened         []Point       `json:"opened_incidents"`
	Active         []Point       `json:"active_incidents"`
	Closed         []ClosedPoint `json:"closed_incidents"`
	OpenedInWindow []Point       `json:"opened_selected_incidents"`
	ClosedInWindow []ClosedPoint `json:"closed_selected_incidents"`
	Violations     []Violation   `json:"violations,omitempty"`
}

func emptySeries() Series {
	return Series{
		Opened:         []Point{},
		Active:         []Point{},
		Closed:         []ClosedPoint{},
		OpenedInWindow: []Point{},
		ClosedInWindow: []ClosedPoint{},
	}
}

// #endregion types

// #region aggregate
// Aggregate builds daily cumulative opened, active and closed series from the
// earliest open to the latest event, attributes each closed incident to a
// severity band once on its closing day, then slices everything to window.
// The windowed variants subtract the cumulative value of the day before
// window.Min.
func Aggregate(events []Event, samples []Sample, classifier *severity.Classifier, window Window) (Series, error) {
	if classifier == nil {
		return Series{}, faults.Configuration("classifier", "", "severity classifier is required")
	}
	if !window.IsZero() && window.Min.After(window.Max) {
		return Series{}, faults.Configuration("window", fmt.Sprintf("%s..%s", window.Min, window.Max), "window start is after its end")
	}
	if len(events) == 0 {
		return emptySeries(), nil
	}

	// keyed by Unix seconds of the day
	opens := make(map[int64]int)
	closes := make(map[int64][]string)
	seen := make(map[string]struct{}, len(events))
	first, last := DayOf(events[0].OpenedAt), DayOf(events[0].OpenedAt)
	for _, ev := range events {
		if _, dup := seen[ev.ID]; dup {
			return Series{}, faults.DataFormat("events", ev.ID, "duplicate incident id")
		}
		seen[ev.ID] = struct{}{}

		od := DayOf(ev.OpenedAt)
		opens[od.Unix()]++
		if od.Before(first) {
			first = od
		}
		if od.After(last) {
			last = od
		}
		if ev.ClosedAt != nil {
			cd := DayOf(*ev.ClosedAt)
			closes[cd.Unix()] = append(closes[cd.Unix()], ev.ID)
			if cd.After(last) {
				last = cd
			}
			if cd.Before(first) {
				first = cd
			}
		}
	}

	bands := make(map[string]severity.Band, len(samples))
	for _, s := range samples {
		bands[s.ID] = classifier.Classify(s.Value)
	}

	var (
		opened []Point
		active []Point
		closed []ClosedPoint
		viol   []Violation
		run    ClosedPoint
		total  int
	)
	for d := first; !d.After(last); d = d.Next() {
		total += opens[d.Unix()]
		for _, id := range closes[d.Unix()] {
			run.Count++
			band, ok := bands[id]
			if !ok {
				run.Unattributed++
				continue
			}
			switch band {
			case severity.BandLow:
				run.Low++
			case severity.BandModerate:
				run.Moderate++
			case severity.BandHigh:
				run.High++
			case severity.BandCritical:
				run.Critical++
			default:
				run.Unattributed++
			}
		}
		run.Day = d
		act := total - run.Count
		opened = append(opened, Point{Day: d, Count: total})
		active = append(active, Point{Day: d, Count: act})
		closed = append(closed, run)
		if act < 0 {
			viol = append(viol, Violation{Day: d, Active: act, Reason: "more incidents closed than opened"})
		}
	}

	if window.IsZero() {
		window = Window{Min: first, Max: last}
	}
	baseOpened, baseClosed := baseline(opened, closed, window.Min.Prev())

	out := emptySeries()
	out.Violations = viol
	for i := range opened {
		d := opened[i].Day
		if !window.Contains(d) {
			continue
		}
		out.Opened = append(out.Opened, opened[i])
		out.Active = append(out.Active, active[i])
		out.Closed = append(out.Closed, closed[i])
		out.OpenedInWindow = append(out.OpenedInWindow, Point{Day: d, Count: opened[i].Count - baseOpened})
		out.ClosedInWindow = append(out.ClosedInWindow, subtract(closed[i], baseClosed))
	}
	return out, nil
}

// baseline returns the cumulative values observed on day d, which may fall
// outside the computed range.
func baseline(opened []Point, closed []ClosedPoint, d Day) (int, ClosedPoint) {
	if len(opened) == 0 || d.Before(opened[0].Day) {
		return 0, ClosedPoint{}
	}
	i := sort.Search(len(opened), func(i int) bool { return opened[i].Day.After(d) })
	return opened[i-1].Count, closed[i-1]
}

func subtract(p, base ClosedPoint) ClosedPoint {
	return ClosedPoint{
		Day:          p.Day,
		Count:        p.Count - base.Count,
		Low:          p.Low - base.Low,
		Moderate:     p.Moderate - base.Moderate,
		High:         p.High - base.High,
		Critical:     p.Critical - base.Critical,
		Unattributed: p.Unattributed - base.Unattributed,
	}
}

// #endregion aggregate

// #region window
// SelectionWindow spans the closing days of the sampled incidents. ok is
// false when none of them is closed.
func SelectionWindow(samples []Sample, events []Event) (w Window, ok bool) {
	closedAt := make(map[string]Day, len(events))
	for _, ev := range events {
		if ev.ClosedAt != nil {
			closedAt[ev.ID] = DayOf(*ev.ClosedAt)
		}
	}
	for _, s := range samples {
		d, closed := closedAt[s.ID]
		if !closed {
			continue
		}
		if !ok {
			w = Window{Min: d, Max: d}
			ok = true
			continue
		}
		if d.Before(w.Min) {
			w.Min = d
		}
		if d.After(w.Max) {
			w.Max = d
		}
	}
	return w, ok
}

// #endregion window
