package integrity

import (
	"fmt"

	"github.com/danielpatrickdp/process-compliance/internal/timeseries"
)

// #region harness
// Harness validates an aggregated time series after the fact.
type Harness struct {
	config Config
}

// NewHarness creates a harness with the given configuration.
func NewHarness(config Config) *Harness {
	return &Harness{config: config}
}

// Run checks the cumulative series for monotonicity, the active identity,
// the severity partition and negative active days. The windowed
// (non-cumulative) series is checked for the partition only.
func (h *Harness) Run(s timeseries.Series) Result {
	var checks []Check
	var failReasons []string

	add := func(name string, bad int, pass bool, reason string) {
		checks = append(checks, Check{Name: name, Value: bad, Pass: pass})
		if !pass {
			failReasons = append(failReasons, reason)
		}
	}

	// 1. Cumulative counts never decrease
	n := decreasingDays(s.Opened)
	add("opened_monotonic", n, n == 0, fmt.Sprintf("opened count decreases on %d days", n))

	n = decreasingClosedDays(s.Closed)
	add("closed_monotonic", n, n == 0, fmt.Sprintf("closed count decreases on %d days", n))

	// 2. active = opened - closed on every day
	n = identityBreaks(s)
	add("active_identity", n, n == 0, fmt.Sprintf("active != opened - closed on %d days", n))

	// 3. Negative active days
	n = negativeDays(s.Active)
	add("active_non_negative", n, n <= h.config.MaxNegativeActiveDays,
		fmt.Sprintf("active count negative on %d days", n))

	// 4. Band sub-counts partition the closed count
	n = partitionBreaks(s.Closed) + partitionBreaks(s.ClosedInWindow)
	add("severity_partition", n, n == 0, fmt.Sprintf("band counts do not sum to closed on %d days", n))

	// 5. Attribution: informational unless required
	n = unattributed(s.Closed)
	pass := n == 0
	checks = append(checks, Check{Name: "attribution", Value: n, Pass: pass})
	if !pass && h.config.RequireAttribution {
		failReasons = append(failReasons, fmt.Sprintf("%d closed incidents unattributed", n))
	}

	reason := "all checks passed"
	if len(failReasons) == 1 {
		reason = fmt.Sprintf("integrity failed: %s", failReasons[0])
	} else if len(failReasons) > 1 {
		reason = fmt.Sprintf("integrity failed: %d checks: %s", len(failReasons), failReasons[0])
	}

	return Result{
		Passed: len(failReasons) == 0,
		Checks: checks,
		Reason: reason,
	}
}
// #endregion harness

// #region helpers
func decreasingDays(ps []timeseries.Point) int {
	n := 0
	for i := 1; i < len(ps); i++ {
		if ps[i].Count < ps[i-1].Count {
			n++
		}
	}
	return n
}

func decreasingClosedDays(ps []timeseries.ClosedPoint) int {
	n := 0
	for i := 1; i < len(ps); i++ {
		if ps[i].Count < ps[i-1].Count {
			n++
		}
	}
	return n
}

// identityBreaks compares days present in all three series.
func identityBreaks(s timeseries.Series) int {
	opened := make(map[string]int, len(s.Opened))
	for _, p := range s.Opened {
		opened[p.Day.String()] = p.Count
	}
	closed := make(map[string]int, len(s.Closed))
	for _, p := range s.Closed {
		closed[p.Day.String()] = p.Count
	}
	n := 0
	for _, p := range s.Active {
		o, ok1 := opened[p.Day.String()]
		c, ok2 := closed[p.Day.String()]
		if !ok1 || !ok2 || p.Count != o-c {
			n++
		}
	}
	return n
}

func negativeDays(ps []timeseries.Point) int {
	n := 0
	for _, p := range ps {
		if p.Count < 0 {
			n++
		}
	}
	return n
}

func partitionBreaks(ps []timeseries.ClosedPoint) int {
	n := 0
	for _, p := range ps {
		if p.Low+p.Moderate+p.High+p.Critical+p.Unattributed != p.Count {
			n++
		}
	}
	return n
}

// unattributed reads the last cumulative day.
func unattributed(ps []timeseries.ClosedPoint) int {
	if len(ps) == 0 {
		return 0
	}
	return ps[len(ps)-1].Unattributed
}
// #endregion helpers
