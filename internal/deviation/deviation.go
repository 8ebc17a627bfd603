package deviation

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/danielpatrickdp/process-compliance/internal/faults"
	"github.com/danielpatrickdp/process-compliance/internal/process"
)

// #region record
// Record holds the deviation counts of one incident, one fixed-size vector per kind.
type Record [process.NumKinds]process.Counts

// Kind returns the counts recorded for one deviation kind.
func (r Record) Kind(k process.Kind) process.Counts {
	return r[k]
}

// PerState sums missing, repetition and mismatch counts per state.
func (r Record) PerState() process.Counts {
	var out process.Counts
	for _, c := range r {
		out = out.Add(c)
	}
	return out
}

// Total is the grand total D of all deviations.
func (r Record) Total() int {
	return r.PerState().Total()
}

// Maps returns the record as kind → state code → count.
func (r Record) Maps() map[string]map[string]int {
	out := make(map[string]map[string]int, process.NumKinds)
	for _, k := range process.Kinds() {
		out[k.String()] = r[k].Map()
	}
	return out
}

// #endregion record

// #region aggregate
// AggregatePerState sums the three per-kind maps into a per-state total.
// Missing keys count as zero; unknown states or negative counts are rejected.
func AggregatePerState(missing, repetition, mismatch map[string]int) (process.Counts, error) {
	r, err := FromMaps(missing, repetition, mismatch)
	if err != nil {
		return process.Counts{}, err
	}
	return r.PerState(), nil
}

// TotalDeviations sums a per-state total across all states.
func TotalDeviations(perState process.Counts) int {
	return perState.Total()
}

// FromMaps normalizes sparse per-kind maps into a Record.
func FromMaps(missing, repetition, mismatch map[string]int) (Record, error) {
	var r Record
	for i, m := range []map[string]int{missing, repetition, mismatch} {
		c, err := countsFromMap(process.Kind(i).String(), m)
		if err != nil {
			return Record{}, err
		}
		r[i] = c
	}
	return r, nil
}

func countsFromMap(kind string, m map[string]int) (process.Counts, error) {
	var c process.Counts
	// sorted so the reported key is stable
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, code := range keys {
		n := m[code]
		st, ok := process.ParseCode(code)
		if !ok {
			return process.Counts{}, faults.DataFormat("deviation", code, fmt.Sprintf("unknown %s state", kind))
		}
		if n < 0 {
			return process.Counts{}, faults.DataFormat("deviation", code, fmt.Sprintf("negative %s count %d", kind, n))
		}
		c[st] += n
	}
	return c, nil
}

// Frequencies sums records per kind and state across a selection.
func Frequencies(records []Record) Record {
	var out Record
	for _, r := range records {
		for k := range r {
			out[k] = out[k].Add(r[k])
		}
	}
	return out
}

// #endregion aggregate

// #region parse
// ParseCounts decodes a stored deviation blob. Both JSON objects and the
// single-quoted dict form ({'N': 2, 'A': 0}) are accepted; an empty blob is all zero.
func ParseCounts(blob string) (process.Counts, error) {
	s := strings.TrimSpace(blob)
	if s == "" || s == "{}" {
		return process.Counts{}, nil
	}
	s = strings.ReplaceAll(s, "'", `"`)

	dec := json.NewDecoder(bytes.NewReader([]byte(s)))
	dec.UseNumber()
	var raw map[string]json.Number
	if err := dec.Decode(&raw); err != nil {
		return process.Counts{}, &faults.DataFormatError{Source: "deviation", Input: blob, Reason: "not a state→count object", Err: err}
	}
	if _, err := dec.Token(); err != io.EOF {
		return process.Counts{}, &faults.DataFormatError{Source: "deviation", Input: blob, Reason: "trailing content after object", Err: err}
	}

	m := make(map[string]int, len(raw))
	for code, num := range raw {
		n, err := num.Int64()
		if err != nil {
			return process.Counts{}, &faults.DataFormatError{Source: "deviation", Input: blob, Reason: fmt.Sprintf("count for %q is not an integer", code), Err: err}
		}
		m[code] = int(n)
	}
	c, err := countsFromMap("deviation", m)
	if err != nil {
		return process.Counts{}, fmt.Errorf("parse %q: %w", blob, err)
	}
	return c, nil
}

// ParseRecord decodes the three stored blobs of one incident.
func ParseRecord(missing, repetition, mismatch string) (Record, error) {
	var r Record
	for i, blob := range []string{missing, repetition, mismatch} {
		c, err := ParseCounts(blob)
		if err != nil {
			return Record{}, fmt.Errorf("%s deviations: %w", process.Kind(i), err)
		}
		r[i] = c
	}
	return r, nil
}

// FormatCounts encodes counts as the JSON blob stored alongside an incident.
func FormatCounts(c process.Counts) string {
	b, _ := json.Marshal(c.Map())
	return string(b)
}

// #endregion parse
