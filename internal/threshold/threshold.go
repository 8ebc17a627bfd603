package threshold

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/danielpatrickdp/process-compliance/internal/faults"
)

// #region types
// Op is a comparison operator.
type Op int

const (
	OpGE Op = iota
	OpGT
	OpLE
	OpLT
	OpEQ
	OpNE
)

var opSymbols = map[Op]string{
	OpGE: ">=",
	OpGT: ">",
	OpLE: "<=",
	OpLT: "<",
	OpEQ: "==",
	OpNE: "!=",
}

func (o Op) String() string { return opSymbols[o] }

// Join combines the running result with the next clause.
type Join int

const (
	JoinAnd Join = iota
	JoinOr
)

func (j Join) String() string {
	if j == JoinOr {
		return "OR"
	}
	return "AND"
}

// Clause compares the value against a constant operand.
type Clause struct {
	Op      Op
	Operand float64
}

// Expr is a parsed threshold expression: Clauses[0] Joins[0] Clauses[1] ...
type Expr struct {
	Source  string
	Clauses []Clause
	Joins   []Join
}

// #endregion types

// #region parse
// Parse tokenizes and parses an expression such as ">= 0 AND <= 0.5".
func Parse(expr string) (Expr, error) {
	tokens, err := tokenize(expr)
	if err != nil {
		return Expr{}, err
	}
	if len(tokens) == 0 {
		return Expr{}, faults.DataFormat("threshold", expr, "empty expression")
	}

	out := Expr{Source: expr}
	i := 0
	for {
		if i >= len(tokens) {
			return Expr{}, faults.DataFormat("threshold", expr, "expression ends with a join")
		}
		tok := tokens[i]
		if tok.kind != tokOp {
			return Expr{}, faults.DataFormat("threshold", expr, fmt.Sprintf("expected operator, got %q", tok.text))
		}
		if i+1 >= len(tokens) || tokens[i+1].kind != tokNumber {
			return Expr{}, faults.DataFormat("threshold", expr, fmt.Sprintf("operator %q has no numeric operand", tok.text))
		}
		out.Clauses = append(out.Clauses, Clause{Op: tok.op, Operand: tokens[i+1].num})
		i += 2

		if i == len(tokens) {
			break
		}
		if tokens[i].kind != tokJoin {
			return Expr{}, faults.DataFormat("threshold", expr, fmt.Sprintf("expected AND/OR, got %q", tokens[i].text))
		}
		out.Joins = append(out.Joins, tokens[i].join)
		i++
	}
	return out, nil
}

// MustParse is Parse for package-level defaults; it panics on error.
func MustParse(expr string) Expr {
	e, err := Parse(expr)
	if err != nil {
		panic(err)
	}
	return e
}

// #endregion parse

// #region evaluate
// Eval applies the clauses left to right. AND and OR short-circuit and bind
// with equal precedence: a AND b OR c is (a AND b) OR c.
func (e Expr) Eval(value float64) bool {
	if len(e.Clauses) == 0 || math.IsNaN(value) {
		return false
	}
	acc := e.Clauses[0].holds(value)
	for i, j := range e.Joins {
		switch j {
		case JoinAnd:
			if !acc {
				continue
			}
			acc = e.Clauses[i+1].holds(value)
		case JoinOr:
			if acc {
				continue
			}
			acc = e.Clauses[i+1].holds(value)
		}
	}
	return acc
}

func (c Clause) holds(v float64) bool {
	switch c.Op {
	case OpGE:
		return v >= c.Operand
	case OpGT:
		return v > c.Operand
	case OpLE:
		return v <= c.Operand
	case OpLT:
		return v < c.Operand
	case OpEQ:
		return v == c.Operand
	case OpNE:
		return v != c.Operand
	}
	return false
}

// Evaluate parses expr and applies it to value.
func Evaluate(value float64, expr string) (bool, error) {
	e, err := Parse(expr)
	if err != nil {
		return false, err
	}
	return e.Eval(value), nil
}

// #endregion evaluate

// #region predicate
var identifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Predicate renders the expression as a query-language condition on metric,
// e.g. "fitness >= 0 AND fitness <= 0.5". The metric must be a plain identifier.
func (e Expr) Predicate(metric string) (string, error) {
	if !identifier.MatchString(metric) {
		return "", faults.Configuration("metric", metric, "not a valid column identifier")
	}
	var out string
	for i, c := range e.Clauses {
		op := c.Op.String()
		if c.Op == OpEQ {
			op = "="
		}
		clause := fmt.Sprintf("%s %s %s", metric, op, formatOperand(c.Operand))
		switch {
		case i == 0:
			out = clause
		case i == 1:
			out = out + " " + e.Joins[0].String() + " " + clause
		default:
			// SQL binds AND tighter than OR; keep left-to-right grouping explicit
			out = "(" + out + ") " + e.Joins[i-1].String() + " " + clause
		}
	}
	return out, nil
}

// ToPredicate parses expr and renders it against metric.
func ToPredicate(metric, expr string) (string, error) {
	e, err := Parse(expr)
	if err != nil {
		return "", err
	}
	return e.Predicate(metric)
}

func (e Expr) String() string {
	var b strings.Builder
	for i, c := range e.Clauses {
		if i > 0 {
			b.WriteString(" " + e.Joins[i-1].String() + " ")
		}
		b.WriteString(c.Op.String() + " " + formatOperand(c.Operand))
	}
	return b.String()
}

func formatOperand(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// #endregion predicate
