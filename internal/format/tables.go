package format

import (
	"fmt"
	"sort"
	"strings"

	"github.com/danielpatrickdp/process-compliance/internal/integrity"
	"github.com/danielpatrickdp/process-compliance/internal/logging"
	"github.com/danielpatrickdp/process-compliance/internal/process"
	"github.com/danielpatrickdp/process-compliance/internal/report"
	"github.com/danielpatrickdp/process-compliance/internal/selection"
	"github.com/danielpatrickdp/process-compliance/internal/severity"
	"github.com/danielpatrickdp/process-compliance/internal/store"
	"github.com/danielpatrickdp/process-compliance/internal/timeseries"
	"github.com/danielpatrickdp/process-compliance/internal/variant"
)

// #region tables
// Scores renders one row per incident with a column per process state.
func Scores(m Mode, scores []report.IncidentScore) string {
	tb := NewTable(m)
	header := []string{"Incident"}
	for _, s := range process.States() {
		header = append(header, s.Code())
	}
	tb.Header(append(header, "Total")...)
	for _, sc := range scores {
		row := []any{sc.ID}
		for _, s := range process.States() {
			row = append(row, Score(sc.PerState[s.Code()]))
		}
		tb.Row(append(row, Score(sc.Aggregate))...)
	}
	tb.Numeric(2, process.NumStates+2)
	return tb.String()
}

// Critical renders the critical incident list, worst first.
func Critical(m Mode, sel []selection.Selected) string {
	tb := NewTable(m)
	tb.Header("#", "Incident", "Value", "Severity")
	for i, s := range sel {
		tb.Row(i+1, s.ID, Score(s.Value), string(s.Band))
	}
	tb.Footer("", "TOTAL", len(sel), "")
	tb.Numeric(3, 3)
	return tb.String()
}

// Series renders the daily cumulative counts with the closed breakdown.
func Series(m Mode, s timeseries.Series) string {
	tb := NewTable(m)
	tb.Header("Day", "Opened", "Active", "Closed", "Low", "Moderate", "High", "Critical", "Unattributed")
	for i := range s.Opened {
		c := s.Closed[i]
		tb.Row(s.Opened[i].Day.String(), s.Opened[i].Count, s.Active[i].Count,
			c.Count, c.Low, c.Moderate, c.High, c.Critical, c.Unattributed)
	}
	tb.Numeric(2, 9)
	out := tb.String()
	for _, v := range s.Violations {
		out += fmt.Sprintf("\n! %s active=%d: %s", v.Day, v.Active, v.Reason)
	}
	return out
}

// Variants renders the common variant list.
func Variants(m Mode, counts []variant.Count) string {
	tb := NewTable(m)
	tb.Header("Variant", "Frequency")
	for _, c := range counts {
		tb.Row(Truncate(c.Variant, 60), c.Frequency)
	}
	tb.Numeric(2, 2)
	return tb.String()
}

// Frequencies renders deviation counts per kind and state.
func Frequencies(m Mode, freq map[string]map[string]int) string {
	tb := NewTable(m)
	header := []string{"Kind"}
	for _, s := range process.States() {
		header = append(header, s.Code())
	}
	tb.Header(header...)
	for _, k := range process.Kinds() {
		row := []any{k.String()}
		for _, s := range process.States() {
			row = append(row, freq[k.String()][s.Code()])
		}
		tb.Row(row...)
	}
	tb.Numeric(2, process.NumStates+1)
	return tb.String()
}

// Integrity renders each integrity check with a pass mark.
func Integrity(m Mode, r integrity.Result) string {
	tb := NewTable(m)
	tb.Header("Check", "Value", "Pass")
	for _, c := range r.Checks {
		tb.Row(c.Name, c.Value, BoolMark(c.Pass))
	}
	tb.Footer("", "", BoolMark(r.Passed))
	return tb.String()
}

// Assessments renders stored assessments.
func Assessments(m Mode, list []store.Assessment) string {
	tb := NewTable(m)
	tb.Header("ID", "Name", "Type", "Incidents")
	for _, a := range list {
		tb.Row(a.ID, a.Name, string(a.Kind), Truncate(strings.Join(a.IncidentIDs, ", "), 50))
	}
	return tb.String()
}

// Runs renders recorded report runs.
func Runs(m Mode, runs []logging.RunEntry) string {
	tb := NewTable(m)
	tb.Header("Run", "Mode", "Metric", "Selected", "Excluded", "Integrity", "Created")
	for _, r := range runs {
		tb.Row(r.RunID, r.Mode, r.Metric, r.Selected, r.Excluded, r.Integrity, r.CreatedAt.Format("2006-01-02 15:04"))
	}
	return tb.String()
}

// Report renders every section of a report, separated by titles.
func Report(m Mode, r report.Report) string {
	var b strings.Builder
	section := func(title, body string) {
		if m == Markdown {
			fmt.Fprintf(&b, "## %s\n\n%s\n\n", title, body)
			return
		}
		fmt.Fprintf(&b, "%s\n%s\n\n", title, body)
	}

	tb := NewTable(m)
	tb.Header("Field", "Value")
	tb.Row("mode", r.Mode)
	tb.Row("metric", string(r.Metric))
	tb.Row("selected", len(r.Selected))
	tb.Row("excluded", len(r.Excluded))
	tb.Row("mean", Score(r.Mean))
	if !r.Window.IsZero() {
		tb.Row("window", fmt.Sprintf("%s .. %s", r.Window.Min, r.Window.Max))
	}
	for _, band := range bandsOf(r.BandCounts) {
		tb.Row("severity "+string(band), r.BandCounts[band])
	}
	section("Summary", tb.String())

	avg := NewTable(m)
	avg.Header("State", "Average")
	for _, s := range process.States() {
		avg.Row(s.String(), Score(r.Average[s.Code()]))
	}
	section("Average compliance per state", avg.String())
	section("Deviation frequencies", Frequencies(m, r.Frequencies))
	section("Critical incidents", Critical(m, r.Critical))
	section("Common variants", Variants(m, r.Variants))
	section("Incidents over time", Series(m, r.Series))
	section("Integrity", Integrity(m, r.Integrity))
	return strings.TrimRight(b.String(), "\n") + "\n"
}
// #endregion tables

// bandsOf lists the bands present in counts, known bands first in default order.
func bandsOf(counts map[severity.Band]int) []severity.Band {
	var out []severity.Band
	seen := make(map[severity.Band]bool)
	for _, b := range severity.Bands() {
		if _, ok := counts[b]; ok {
			out = append(out, b)
			seen[b] = true
		}
	}
	var rest []severity.Band
	for b := range counts {
		if !seen[b] {
			rest = append(rest, b)
		}
	}
	sort.Slice(rest, func(i, j int) bool { return rest[i] < rest[j] })
	return append(out, rest...)
}
