package timeseries

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/danielpatrickdp/process-compliance/internal/faults"
	"github.com/danielpatrickdp/process-compliance/internal/severity"
)

func day(s string) time.Time {
	t, err := time.Parse(DayLayout, s)
	if err != nil {
		panic(err)
	}
	return t.Add(9 * time.Hour)
}

func closedOn(s string) *time.Time {
	t := day(s).Add(6 * time.Hour)
	return &t
}

func fitnessClassifier(t *testing.T) *severity.Classifier {
	t.Helper()
	c, err := severity.NewClassifier(severity.DefaultFitnessThresholds(), severity.DefaultOrder(), severity.LowerIsWorse)
	if err != nil {
		t.Fatalf("NewClassifier: %v", err)
	}
	return c
}

func fixtureEvents() ([]Event, []Sample) {
	events := []Event{
		{ID: "A", OpenedAt: day("2024-01-01"), ClosedAt: closedOn("2024-01-03")},
		{ID: "B", OpenedAt: day("2024-01-02"), ClosedAt: closedOn("2024-01-05")},
		{ID: "C", OpenedAt: day("2024-01-02")},
		{ID: "D", OpenedAt: day("2024-01-04"), ClosedAt: closedOn("2024-01-04")},
	}
	samples := []Sample{
		{ID: "A", Value: 0.9},
		{ID: "B", Value: 0.1},
		{ID: "D", Value: 0.6},
	}
	return events, samples
}

func counts(points []Point) []int {
	out := make([]int, len(points))
	for i, p := range points {
		out[i] = p.Count
	}
	return out
}

func closedCounts(points []ClosedPoint) []int {
	out := make([]int, len(points))
	for i, p := range points {
		out[i] = p.Count
	}
	return out
}

func TestDayOfKeepsRecordedOffset(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"2024-01-01T23:30:00-05:00", "2024-01-01"},
		{"2024-01-02T00:30:00+02:00", "2024-01-02"},
		{"2024-01-01T23:59:59Z", "2024-01-01"},
	}
	for _, tt := range tests {
		ts, err := time.Parse(time.RFC3339, tt.in)
		if err != nil {
			t.Fatalf("parse %s: %v", tt.in, err)
		}
		if got := DayOf(ts).String(); got != tt.want {
			t.Errorf("DayOf(%s): got %s, want %s", tt.in, got, tt.want)
		}
	}
}

func TestAggregateFullRange(t *testing.T) {
	events, samples := fixtureEvents()
	s, err := Aggregate(events, samples, fitnessClassifier(t), Window{})
	if err != nil {
		t.Fatalf("Aggregate: %v", err)
	}
	if diff := cmp.Diff([]int{1, 3, 3, 4, 4}, counts(s.Opened)); diff != "" {
		t.Errorf("opened (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]int{1, 3, 2, 2, 1}, counts(s.Active)); diff != "" {
		t.Errorf("active (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]int{0, 0, 1, 2, 3}, closedCounts(s.Closed)); diff != "" {
		t.Errorf("closed (-want +got):\n%s", diff)
	}
	last := s.Closed[len(s.Closed)-1]
	if last.Low != 1 || last.Moderate != 1 || last.High != 0 || last.Critical != 1 || last.Unattributed != 0 {
		t.Errorf("last day breakdown: %+v", last)
	}
	if s.Closed[0].Day.String() != "2024-01-01" || last.Day.String() != "2024-01-05" {
		t.Errorf("range: %s .. %s", s.Closed[0].Day, last.Day)
	}
	if len(s.Violations) != 0 {
		t.Errorf("unexpected violations: %+v", s.Violations)
	}
}

func TestAggregateWindowAndNonCumulative(t *testing.T) {
	events, samples := fixtureEvents()
	lo, _ := ParseDay("2024-01-03")
	hi, _ := ParseDay("2024-01-05")
	s, err := Aggregate(events, samples, fitnessClassifier(t), Window{Min: lo, Max: hi})
	if err != nil {
		t.Fatalf("Aggregate: %v", err)
	}
	if diff := cmp.Diff([]int{1, 2, 3}, closedCounts(s.Closed)); diff != "" {
		t.Errorf("closed (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]int{1, 2, 3}, closedCounts(s.ClosedInWindow)); diff != "" {
		t.Errorf("closed in window (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]int{0, 1, 1}, counts(s.OpenedInWindow)); diff != "" {
		t.Errorf("opened in window (-want +got):\n%s", diff)
	}

	lo, _ = ParseDay("2024-01-04")
	s, err = Aggregate(events, samples, fitnessClassifier(t), Window{Min: lo, Max: hi})
	if err != nil {
		t.Fatalf("Aggregate: %v", err)
	}
	first := s.ClosedInWindow[0]
	if first.Count != 1 || first.Low != 0 || first.Moderate != 1 {
		t.Errorf("non-cumulative first day: %+v", first)
	}
}

func TestAggregateUnsampledIsUnattributed(t *testing.T) {
	events, samples := fixtureEvents()
	samples = samples[:1] // only A is sampled
	s, err := Aggregate(events, samples, fitnessClassifier(t), Window{})
	if err != nil {
		t.Fatalf("Aggregate: %v", err)
	}
	last := s.Closed[len(s.Closed)-1]
	if last.Low != 1 || last.Unattributed != 2 {
		t.Errorf("got %+v", last)
	}
	if last.Low+last.Moderate+last.High+last.Critical+last.Unattributed != last.Count {
		t.Errorf("breakdown does not sum to count: %+v", last)
	}
}

func TestAggregateFlagsNegativeActive(t *testing.T) {
	events := []Event{
		{ID: "X", OpenedAt: day("2024-02-05"), ClosedAt: closedOn("2024-02-03")},
	}
	s, err := Aggregate(events, nil, fitnessClassifier(t), Window{})
	if err != nil {
		t.Fatalf("Aggregate: %v", err)
	}
	if len(s.Violations) != 2 {
		t.Fatalf("expected 2 violation days, got %+v", s.Violations)
	}
	if s.Active[0].Count != -1 {
		t.Errorf("negative active must not be clipped, got %d", s.Active[0].Count)
	}
}

func TestAggregateEmptyAndErrors(t *testing.T) {
	s, err := Aggregate(nil, nil, fitnessClassifier(t), Window{})
	if err != nil {
		t.Fatalf("Aggregate: %v", err)
	}
	if len(s.Opened) != 0 || s.Opened == nil {
		t.Errorf("expected empty non-nil series, got %#v", s.Opened)
	}

	if _, err := Aggregate(nil, nil, nil, Window{}); !faults.IsConfiguration(err) {
		t.Errorf("nil classifier: expected ConfigurationError, got %v", err)
	}

	dup := []Event{{ID: "A", OpenedAt: day("2024-01-01")}, {ID: "A", OpenedAt: day("2024-01-02")}}
	if _, err := Aggregate(dup, nil, fitnessClassifier(t), Window{}); !faults.IsDataFormat(err) {
		t.Errorf("duplicate id: expected DataFormatError, got %v", err)
	}

	lo, _ := ParseDay("2024-01-05")
	hi, _ := ParseDay("2024-01-01")
	if _, err := Aggregate(dup[:1], nil, fitnessClassifier(t), Window{Min: lo, Max: hi}); !faults.IsConfiguration(err) {
		t.Errorf("inverted window: expected ConfigurationError, got %v", err)
	}
}

func TestAggregateProperties(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	base := day("2023-06-01")
	c := fitnessClassifier(t)
	for round := 0; round < 50; round++ {
		n := 1 + rng.Intn(40)
		events := make([]Event, n)
		samples := make([]Sample, n)
		for i := range events {
			opened := base.AddDate(0, 0, rng.Intn(30))
			ev := Event{ID: fmt.Sprintf("INC%03d", i), OpenedAt: opened}
			if rng.Intn(4) > 0 {
				closed := opened.AddDate(0, 0, rng.Intn(10))
				ev.ClosedAt = &closed
			}
			events[i] = ev
			samples[i] = Sample{ID: ev.ID, Value: rng.Float64()}
		}

		s, err := Aggregate(events, samples, c, Window{})
		if err != nil {
			t.Fatalf("round %d: %v", round, err)
		}
		if len(s.Violations) != 0 {
			t.Fatalf("round %d: unexpected violations %+v", round, s.Violations)
		}
		prev := 0
		for i, p := range s.Closed {
			if p.Count < prev {
				t.Fatalf("round %d: closed decreased at %s", round, p.Day)
			}
			prev = p.Count
			if s.Active[i].Count != s.Opened[i].Count-p.Count {
				t.Fatalf("round %d: active != opened - closed at %s", round, p.Day)
			}
			if s.Active[i].Count < 0 {
				t.Fatalf("round %d: negative active at %s", round, p.Day)
			}
			if p.Low+p.Moderate+p.High+p.Critical != p.Count || p.Unattributed != 0 {
				t.Fatalf("round %d: severity sub-counts %+v do not sum to closed", round, p)
			}
		}
	}
}

func TestSelectionWindow(t *testing.T) {
	events, samples := fixtureEvents()
	w, ok := SelectionWindow(samples, events)
	if !ok {
		t.Fatal("expected a window")
	}
	if w.Min.String() != "2024-01-03" || w.Max.String() != "2024-01-05" {
		t.Errorf("got %s..%s", w.Min, w.Max)
	}
	if _, ok := SelectionWindow([]Sample{{ID: "C"}}, events); ok {
		t.Error("open-only selection should have no window")
	}
}

func TestPointJSON(t *testing.T) {
	d, _ := ParseDay("2024-01-03")
	b, err := json.Marshal(Point{Day: d, Count: 2})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if string(b) != `{"time":"2024-01-03","count":2}` {
		t.Errorf("got %s", b)
	}
	var back Point
	if err := json.Unmarshal(b, &back); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if back.Day.String() != "2024-01-03" {
		t.Errorf("round trip: %s", back.Day)
	}
}
