package threshold

import (
	"math"
	"testing"

	"github.com/danielpatrickdp/process-compliance/internal/faults"
)

// #region parse-tests
func TestParse(t *testing.T) {
	e, err := Parse(">= 0.85 AND <= 1")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(e.Clauses) != 2 || len(e.Joins) != 1 {
		t.Fatalf("expected 2 clauses / 1 join, got %d / %d", len(e.Clauses), len(e.Joins))
	}
	if e.Clauses[0] != (Clause{OpGE, 0.85}) {
		t.Errorf("clause 0: got %+v", e.Clauses[0])
	}
	if e.Clauses[1] != (Clause{OpLE, 1}) {
		t.Errorf("clause 1: got %+v", e.Clauses[1])
	}
	if e.Joins[0] != JoinAnd {
		t.Errorf("join: got %v", e.Joins[0])
	}
}

func TestParseCompactAndLowercase(t *testing.T) {
	e, err := Parse(">=0.25 and <0.5")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if e.String() != ">= 0.25 AND < 0.5" {
		t.Errorf("String: got %q", e.String())
	}
}

func TestParseMalformed(t *testing.T) {
	tests := []struct {
		name string
		expr string
	}{
		{"empty", ""},
		{"blank", "   "},
		{"dangling-and", ">= 0 AND"},
		{"leading-and", "AND >= 0"},
		{"operator-without-operand", ">= AND <= 1"},
		{"bare-operand", "0.5"},
		{"double-operator", ">= <= 1"},
		{"non-numeric", ">= abc"},
		{"missing-join", ">= 0 <= 1"},
		{"trailing-operand", ">= 0 1"},
		{"bang", "! 1"},
		{"nan", ">= NaN"},
		{"inf", "<= Inf"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.expr)
			if err == nil {
				t.Fatalf("expected error for %q", tt.expr)
			}
			if !faults.IsDataFormat(err) {
				t.Fatalf("expected DataFormatError, got %T: %v", err, err)
			}
		})
	}
}

// #endregion parse-tests

// #region evaluate-tests
func TestEvaluateClosedInterval(t *testing.T) {
	tests := []struct {
		value float64
		want  bool
	}{
		{-0.01, false},
		{0, true},
		{0.25, true},
		{0.5, true},
		{0.5000001, false},
		{1, false},
	}

	for _, tt := range tests {
		got, err := Evaluate(tt.value, ">= 0 AND <= 0.5")
		if err != nil {
			t.Fatalf("Evaluate: %v", err)
		}
		if got != tt.want {
			t.Errorf("Evaluate(%v): got %v, want %v", tt.value, got, tt.want)
		}
	}
}

func TestEvaluateAndWithOneFalseClause(t *testing.T) {
	got, _ := Evaluate(0.9, ">= 0 AND <= 0.5")
	if got {
		t.Fatal("expected false when second clause fails")
	}
	got, _ = Evaluate(-1, ">= 0 AND <= 0.5")
	if got {
		t.Fatal("expected false when first clause fails")
	}
}

func TestEvaluateOr(t *testing.T) {
	e := MustParse("< 0.1 OR > 0.9")
	if !e.Eval(0.05) || !e.Eval(0.95) {
		t.Fatal("expected true at both tails")
	}
	if e.Eval(0.5) {
		t.Fatal("expected false in the middle")
	}
}

func TestEvaluateLeftToRight(t *testing.T) {
	// (>= 0 OR >= 10) AND <= 5, evaluated strictly left to right
	e := MustParse(">= 0 OR >= 10 AND <= 5")
	if e.Eval(7) {
		t.Fatal("expected false: (true OR x) AND false")
	}
	if !e.Eval(3) {
		t.Fatal("expected true: (true) AND true")
	}
}

func TestEvaluateEquality(t *testing.T) {
	if !MustParse("== 1").Eval(1) || !MustParse("= 1").Eval(1) {
		t.Fatal("expected equality to hold")
	}
	if MustParse("!= 1").Eval(1) {
		t.Fatal("expected inequality to fail")
	}
}

func TestEvalNaNIsFalse(t *testing.T) {
	if MustParse("!= 1").Eval(math.NaN()) {
		t.Fatal("NaN should never satisfy a clause")
	}
}

// #endregion evaluate-tests

// #region predicate-tests
func TestToPredicate(t *testing.T) {
	got, err := ToPredicate("fitness", ">= 0 AND <= 0.25")
	if err != nil {
		t.Fatalf("ToPredicate: %v", err)
	}
	want := "fitness >= 0 AND fitness <= 0.25"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}

	got, _ = ToPredicate("cost", "== 1 OR > 2")
	if got != "cost = 1 OR cost > 2" {
		t.Errorf("got %q", got)
	}

	got, _ = ToPredicate("cost", "< 1 OR > 5 AND < 6")
	if got != "(cost < 1 OR cost > 5) AND cost < 6" {
		t.Errorf("left-to-right grouping lost: got %q", got)
	}
}

func TestToPredicateRejectsBadIdentifier(t *testing.T) {
	_, err := ToPredicate("fitness; DROP TABLE incidents", ">= 0")
	if !faults.IsConfiguration(err) {
		t.Fatalf("expected ConfigurationError, got %v", err)
	}
}

// #endregion predicate-tests
