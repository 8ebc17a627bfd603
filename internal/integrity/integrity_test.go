package integrity

import (
	"testing"
	"time"

	"github.com/danielpatrickdp/process-compliance/internal/severity"
	"github.com/danielpatrickdp/process-compliance/internal/timeseries"
)

func at(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		panic(err)
	}
	return t
}

func ptr(t time.Time) *time.Time { return &t }

func aggregate(t *testing.T, events []timeseries.Event, samples []timeseries.Sample) timeseries.Series {
	t.Helper()
	c, err := severity.NewClassifier(severity.DefaultFitnessThresholds(), nil, severity.LowerIsWorse)
	if err != nil {
		t.Fatalf("NewClassifier: %v", err)
	}
	s, err := timeseries.Aggregate(events, samples, c, timeseries.Window{})
	if err != nil {
		t.Fatalf("Aggregate: %v", err)
	}
	return s
}

func checkByName(r Result, name string) (Check, bool) {
	for _, c := range r.Checks {
		if c.Name == name {
			return c, true
		}
	}
	return Check{}, false
}

func TestIntegrityPassesOnConsistentSeries(t *testing.T) {
	s := aggregate(t, []timeseries.Event{
		{ID: "A", OpenedAt: at("2024-01-01T09:00:00Z"), ClosedAt: ptr(at("2024-01-03T15:00:00Z"))},
		{ID: "B", OpenedAt: at("2024-01-02T09:00:00Z"), ClosedAt: ptr(at("2024-01-04T15:00:00Z"))},
		{ID: "C", OpenedAt: at("2024-01-02T09:00:00Z")},
	}, []timeseries.Sample{{ID: "A", Value: 0.9}, {ID: "B", Value: 0.1}})

	r := NewHarness(DefaultConfig()).Run(s)
	if !r.Passed {
		t.Fatalf("expected pass, got: %s", r.Reason)
	}
	if len(r.Checks) != 6 {
		t.Errorf("expected 6 checks, got %d", len(r.Checks))
	}
}

func TestIntegrityNegativeActive(t *testing.T) {
	// closed before it opened
	s := aggregate(t, []timeseries.Event{
		{ID: "X", OpenedAt: at("2024-01-03T09:00:00Z"), ClosedAt: ptr(at("2024-01-01T09:00:00Z"))},
	}, []timeseries.Sample{{ID: "X", Value: 0.5}})

	r := NewHarness(DefaultConfig()).Run(s)
	if r.Passed {
		t.Fatal("expected fail on negative active count")
	}
	c, ok := checkByName(r, "active_non_negative")
	if !ok || c.Pass || c.Value != 2 {
		t.Errorf("active_non_negative: got %+v", c)
	}

	cfg := DefaultConfig()
	cfg.MaxNegativeActiveDays = 2
	if r := NewHarness(cfg).Run(s); !r.Passed {
		t.Errorf("expected pass with tolerance, got: %s", r.Reason)
	}
}

func TestIntegrityAttributionInformationalOnly(t *testing.T) {
	s := aggregate(t, []timeseries.Event{
		{ID: "A", OpenedAt: at("2024-01-01T09:00:00Z"), ClosedAt: ptr(at("2024-01-02T09:00:00Z"))},
	}, nil)

	r := NewHarness(DefaultConfig()).Run(s)
	if !r.Passed {
		t.Fatalf("attribution should be informational, got: %s", r.Reason)
	}
	c, _ := checkByName(r, "attribution")
	if c.Pass || c.Value != 1 {
		t.Errorf("attribution: got %+v", c)
	}

	cfg := DefaultConfig()
	cfg.RequireAttribution = true
	if r := NewHarness(cfg).Run(s); r.Passed {
		t.Error("expected fail when attribution is required")
	}
}

func TestIntegrityDetectsBrokenSeries(t *testing.T) {
	d1, _ := timeseries.ParseDay("2024-01-01")
	d2 := d1.Next()

	tests := []struct {
		name   string
		series timeseries.Series
		check  string
	}{
		{
			name: "opened-decreases",
			series: timeseries.Series{
				Opened: []timeseries.Point{{Day: d1, Count: 2}, {Day: d2, Count: 1}},
				Active: []timeseries.Point{{Day: d1, Count: 2}, {Day: d2, Count: 1}},
				Closed: []timeseries.ClosedPoint{{Day: d1}, {Day: d2}},
			},
			check: "opened_monotonic",
		},
		{
			name: "closed-decreases",
			series: timeseries.Series{
				Opened: []timeseries.Point{{Day: d1, Count: 2}, {Day: d2, Count: 2}},
				Active: []timeseries.Point{{Day: d1, Count: 1}, {Day: d2, Count: 2}},
				Closed: []timeseries.ClosedPoint{{Day: d1, Count: 1, Low: 1}, {Day: d2}},
			},
			check: "closed_monotonic",
		},
		{
			name: "identity",
			series: timeseries.Series{
				Opened: []timeseries.Point{{Day: d1, Count: 2}},
				Active: []timeseries.Point{{Day: d1, Count: 2}},
				Closed: []timeseries.ClosedPoint{{Day: d1, Count: 1, High: 1}},
			},
			check: "active_identity",
		},
		{
			name: "partition",
			series: timeseries.Series{
				Opened: []timeseries.Point{{Day: d1, Count: 2}},
				Active: []timeseries.Point{{Day: d1, Count: 0}},
				Closed: []timeseries.ClosedPoint{{Day: d1, Count: 2, Low: 1}},
			},
			check: "severity_partition",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewHarness(DefaultConfig()).Run(tt.series)
			if r.Passed {
				t.Fatal("expected fail")
			}
			c, ok := checkByName(r, tt.check)
			if !ok || c.Pass {
				t.Errorf("%s: got %+v", tt.check, c)
			}
		})
	}
}

func TestIntegrityEmptySeries(t *testing.T) {
	r := NewHarness(DefaultConfig()).Run(timeseries.Series{})
	if !r.Passed {
		t.Fatalf("empty series should pass, got: %s", r.Reason)
	}
}
