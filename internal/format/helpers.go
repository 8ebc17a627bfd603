package format

import "fmt"

// Score formats a metric value with two decimals.
func Score(v float64) string {
	return fmt.Sprintf("%.2f", v)
}

// Truncate caps s at max runes, marking the cut with "...".
func Truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	if max <= 3 {
		return string(r[:max])
	}
	return string(r[:max-3]) + "..."
}

// BoolMark renders a check outcome.
func BoolMark(v bool) string {
	if v {
		return "✓"
	}
	return "✗"
}
