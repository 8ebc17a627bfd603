package variant

import (
	"sort"
	"strings"

	"github.com/danielpatrickdp/process-compliance/internal/faults"
	"github.com/danielpatrickdp/process-compliance/internal/process"
)

// #region extract
// Move prefixes in an alignment string. Synchronous and log moves appear in
// the recorded trace; model moves do not.
const (
	moveSync  = "[S]"
	moveLog   = "[L]"
	moveModel = "[M]"
)

// Extract derives the variant trace from an alignment such as
// "[S]N;[M]A;[S]R;[L]R;[S]C;". Only synchronous and log moves are kept.
func Extract(alignment string) ([]string, error) {
	trace := []string{}
	for _, move := range strings.Split(alignment, ";") {
		move = strings.TrimSpace(move)
		if move == "" {
			continue
		}
		if !strings.HasPrefix(move, moveSync) && !strings.HasPrefix(move, moveLog) {
			if strings.HasPrefix(move, moveModel) {
				continue
			}
			return nil, faults.DataFormat("alignment", move, "unknown move type")
		}
		code := strings.TrimSpace(move[len(moveSync):])
		s, ok := process.ParseCode(code)
		if !ok {
			return nil, faults.DataFormat("alignment", move, "unknown state code")
		}
		trace = append(trace, s.Code())
	}
	return trace, nil
}

// Key joins a trace into its canonical space-separated form.
func Key(trace []string) string { return strings.Join(trace, " ") }

// Split is the inverse of Key.
func Split(key string) []string {
	if strings.TrimSpace(key) == "" {
		return []string{}
	}
	return strings.Fields(key)
}

// #endregion extract

// #region common
// Count is a variant and how many traces follow it.
type Count struct {
	Variant   string `json:"variant"`
	Frequency int    `json:"frequency"`
}

// Common counts identical traces, most frequent first. Ties sort by variant.
func Common(traces [][]string) []Count {
	freq := make(map[string]int)
	for _, t := range traces {
		freq[Key(t)]++
	}
	out := make([]Count, 0, len(freq))
	for v, n := range freq {
		out = append(out, Count{Variant: v, Frequency: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Frequency != out[j].Frequency {
			return out[i].Frequency > out[j].Frequency
		}
		return out[i].Variant < out[j].Variant
	})
	return out
}

// #endregion common
