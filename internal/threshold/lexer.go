package threshold

import (
	"math"
	"strconv"
	"strings"

	"github.com/danielpatrickdp/process-compliance/internal/faults"
)

type tokenKind int

const (
	tokOp tokenKind = iota
	tokNumber
	tokJoin
)

type token struct {
	kind tokenKind
	text string
	op   Op
	num  float64
	join Join
}

// tokenize splits an expression into operators, numbers and AND/OR joins.
// Operators may be written with or without a space before the operand.
func tokenize(expr string) ([]token, error) {
	var tokens []token
	s := expr
	for {
		s = strings.TrimLeft(s, " \t\r\n")
		if s == "" {
			return tokens, nil
		}

		if op, n, ok := readOp(s); ok {
			tokens = append(tokens, token{kind: tokOp, text: s[:n], op: op})
			s = s[n:]
			continue
		}

		word, rest := readWord(s)
		switch strings.ToUpper(word) {
		case "AND":
			tokens = append(tokens, token{kind: tokJoin, text: word, join: JoinAnd})
		case "OR":
			tokens = append(tokens, token{kind: tokJoin, text: word, join: JoinOr})
		default:
			f, err := strconv.ParseFloat(word, 64)
			if err != nil {
				return nil, &faults.DataFormatError{Source: "threshold", Input: expr, Reason: "non-numeric operand " + strconv.Quote(word), Err: err}
			}
			if math.IsNaN(f) || math.IsInf(f, 0) {
				return nil, faults.DataFormat("threshold", expr, "operand must be finite")
			}
			tokens = append(tokens, token{kind: tokNumber, text: word, num: f})
		}
		s = rest
	}
}

func readOp(s string) (Op, int, bool) {
	switch {
	case strings.HasPrefix(s, ">="):
		return OpGE, 2, true
	case strings.HasPrefix(s, "<="):
		return OpLE, 2, true
	case strings.HasPrefix(s, "=="):
		return OpEQ, 2, true
	case strings.HasPrefix(s, "!="):
		return OpNE, 2, true
	case strings.HasPrefix(s, ">"):
		return OpGT, 1, true
	case strings.HasPrefix(s, "<"):
		return OpLT, 1, true
	case strings.HasPrefix(s, "="):
		return OpEQ, 1, true
	}
	return 0, 0, false
}

// readWord consumes up to the next space or operator character.
func readWord(s string) (string, string) {
	end := strings.IndexAny(s, " \t\r\n<>=!")
	if end == 0 {
		// lone "!" or similar: consume one byte so the caller reports it
		return s[:1], s[1:]
	}
	if end < 0 {
		return s, ""
	}
	return s[:end], s[end:]
}
