package incident

import (
	"testing"
	"time"

	"github.com/danielpatrickdp/process-compliance/internal/compliance"
	"github.com/danielpatrickdp/process-compliance/internal/deviation"
)

func TestValueAndTrace(t *testing.T) {
	inc := Incident{ID: "INC1", Fitness: 0.7, Cost: 1.3, Trace: []string{"N", "A", "R", "C"}}
	if got := inc.Value(compliance.MetricFitness); got != 0.7 {
		t.Errorf("fitness: got %v", got)
	}
	if got := inc.Value(compliance.MetricCost); got != 1.3 {
		t.Errorf("cost: got %v", got)
	}
	if got := inc.Value("costTotal"); got != 1.3 {
		t.Errorf("costTotal alias: got %v", got)
	}
	if inc.TraceEvents() != 4 {
		t.Errorf("trace events: got %d, want 4", inc.TraceEvents())
	}
	if inc.Closed() {
		t.Error("expected open incident")
	}
}

func TestView(t *testing.T) {
	rec, err := deviation.FromMaps(map[string]int{"N": 1}, nil, map[string]int{"C": 2})
	if err != nil {
		t.Fatalf("FromMaps: %v", err)
	}
	opened := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	closed := opened.Add(48 * time.Hour)
	v := Incident{ID: "INC2", OpenedAt: opened, ClosedAt: &closed, Deviations: rec}.View()

	if v.OpenedAt != "2024-03-01T09:00:00Z" || v.ClosedAt != "2024-03-03T09:00:00Z" {
		t.Errorf("timestamps: %s .. %s", v.OpenedAt, v.ClosedAt)
	}
	if v.Deviations["missing"]["N"] != 1 || v.Deviations["mismatch"]["C"] != 2 {
		t.Errorf("deviations: %v", v.Deviations)
	}
}

func TestIndex(t *testing.T) {
	idx := Index([]Incident{{ID: "a", Cost: 1}, {ID: "b"}, {ID: "a", Cost: 2}})
	if len(idx) != 2 || idx["a"].Cost != 2 {
		t.Fatalf("got %+v", idx)
	}
}
