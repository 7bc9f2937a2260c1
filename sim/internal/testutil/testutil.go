// Package testutil provides shared test infrastructure for the tandem simulator:
// float assertions and scripted variate sources that make event sequences
// fully predictable.
package testutil

import (
	"math"
	"testing"
)

// AssertFloat64Equal compares two float64 values with relative tolerance.
func AssertFloat64Equal(t *testing.T, name string, want, got, relTol float64) {
	t.Helper()
	if want == 0 && got == 0 {
		return
	}
	diff := math.Abs(want - got)
	maxVal := math.Max(math.Abs(want), math.Abs(got))
	if diff/maxVal > relTol {
		t.Errorf("%s: got %v, want %v (diff=%v, relDiff=%v)", name, got, want, diff, diff/maxVal)
	}
}

// ScriptedSource replays a fixed list of variates, ignoring the rate.
// Once the script is exhausted it returns Tail.
type ScriptedSource struct {
	Values []float64
	Tail   float64
	next   int
}

// NewScriptedSource returns a source yielding values then tail forever.
func NewScriptedSource(tail float64, values ...float64) *ScriptedSource {
	return &ScriptedSource{Values: values, Tail: tail}
}

func (s *ScriptedSource) Exponential(rate float64) float64 {
	if s.next < len(s.Values) {
		v := s.Values[s.next]
		s.next++
		return v
	}
	return s.Tail
}

// Draws returns how many values have been consumed.
func (s *ScriptedSource) Draws() int {
	return s.next
}
