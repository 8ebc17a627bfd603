package process

import (
	"math"
	"strings"
)

// #region state
// State is one stage of the reference incident lifecycle.
type State int

const (
	StateDetection State = iota
	StateActivation
	StateAwaiting
	StateResolution
	StateClosure
)

// NumStates is k, the number of stages in the reference model.
const NumStates = 5

var stateCodes = [NumStates]string{"N", "A", "W", "R", "C"}

var stateNames = [NumStates]string{"detection", "activation", "awaiting", "resolution", "closure"}

// States returns every state in reference-model order.
func States() []State {
	return []State{StateDetection, StateActivation, StateAwaiting, StateResolution, StateClosure}
}

// Code returns the single-letter code used in traces and deviation maps.
func (s State) Code() string {
	if s < 0 || int(s) >= NumStates {
		return "?"
	}
	return stateCodes[s]
}

func (s State) String() string {
	if s < 0 || int(s) >= NumStates {
		return "unknown"
	}
	return stateNames[s]
}

// ParseCode maps a state code ("N") or name ("detection") to a State.
func ParseCode(code string) (State, bool) {
	c := strings.TrimSpace(code)
	for i := range stateCodes {
		if c == stateCodes[i] || strings.EqualFold(c, stateNames[i]) {
			return State(i), true
		}
	}
	return 0, false
}

// #endregion state

// #region kind
// Kind is a deviation category.
type Kind int

const (
	KindMissing Kind = iota
	KindRepetition
	KindMismatch
)

// NumKinds is the number of deviation kinds.
const NumKinds = 3

var kindNames = [NumKinds]string{"missing", "repetition", "mismatch"}

// Kinds returns every deviation kind.
func Kinds() []Kind {
	return []Kind{KindMissing, KindRepetition, KindMismatch}
}

func (k Kind) String() string {
	if k < 0 || int(k) >= NumKinds {
		return "unknown"
	}
	return kindNames[k]
}

// ParseKind maps "missing" / "repetition" / "mismatch" to a Kind.
func ParseKind(name string) (Kind, bool) {
	n := strings.ToLower(strings.TrimSpace(name))
	for i := range kindNames {
		if n == kindNames[i] {
			return Kind(i), true
		}
	}
	return 0, false
}

// #endregion kind

// #region counts
// Counts holds one non-negative integer per state, indexed by State.
type Counts [NumStates]int

// Total sums the counts across all states.
func (c Counts) Total() int {
	var sum int
	for _, n := range c {
		sum += n
	}
	return sum
}

// Add returns the element-wise sum of c and o.
func (c Counts) Add(o Counts) Counts {
	var out Counts
	for i := range c {
		out[i] = c[i] + o[i]
	}
	return out
}

// Map returns the counts keyed by state code.
func (c Counts) Map() map[string]int {
	m := make(map[string]int, NumStates)
	for i, n := range c {
		m[stateCodes[i]] = n
	}
	return m
}

// #endregion counts

// #region vector
// Vector holds one float per state, indexed by State.
type Vector [NumStates]float64

// Sum adds the components of v.
func (v Vector) Sum() float64 {
	var sum float64
	for _, x := range v {
		sum += x
	}
	return sum
}

// Scale multiplies every component by f.
func (v Vector) Scale(f float64) Vector {
	var out Vector
	for i, x := range v {
		out[i] = x * f
	}
	return out
}

// Map returns the vector keyed by state code, rounded to the given number of decimals.
// A negative decimals value disables rounding.
func (v Vector) Map(decimals int) map[string]float64 {
	m := make(map[string]float64, NumStates)
	for i, x := range v {
		if decimals >= 0 {
			x = Round(x, decimals)
		}
		m[stateCodes[i]] = x
	}
	return m
}

// Round rounds x half away from zero to the given number of decimals.
func Round(x float64, decimals int) float64 {
	p := math.Pow(10, float64(decimals))
	return math.Round(x*p) / p
}

// #endregion vector
