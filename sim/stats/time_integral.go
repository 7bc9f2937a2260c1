package stats

import (
	"fmt"
	"math"
)

// TimeIntegral accumulates (time, value) step samples of a piecewise-constant
// process. Each value holds from its sample time until the next sample.
// Only the running area is kept, so memory does not grow with the round.
// The zero value is empty.
type TimeIntegral struct {
	n         int
	first     float64
	last      float64
	lastValue float64
	area      float64
}

// Add records that the process took value v from time t onwards.
// Times must be non-decreasing.
func (ti *TimeIntegral) Add(t, v float64) {
	if ti.n > 0 {
		if t < ti.last {
			panic(fmt.Sprintf("TimeIntegral.Add: time %v before previous sample %v", t, ti.last))
		}
		ti.area += ti.lastValue * (t - ti.last)
	} else {
		ti.first = t
	}
	ti.n++
	ti.last = t
	ti.lastValue = v
}

// Len returns the number of samples.
func (ti *TimeIntegral) Len() int {
	return ti.n
}

// Span returns the observed time span, last sample minus first.
func (ti *TimeIntegral) Span() float64 {
	if ti.n == 0 {
		return 0
	}
	return ti.last - ti.first
}

// Area returns ∫ value dt over the observed span.
func (ti *TimeIntegral) Area() float64 {
	return ti.area
}

// Reset discards every sample.
func (ti *TimeIntegral) Reset() {
	*ti = TimeIntegral{}
}

// Mean returns the time-weighted average over the observed span.
// Needs at least two samples spanning a non-zero time.
func (ti *TimeIntegral) Mean() (float64, error) {
	if ti.n < 2 {
		return math.NaN(), fmt.Errorf("time average of %d samples: %w", ti.n, ErrInsufficientData)
	}
	span := ti.Span()
	if span <= 0 {
		return math.NaN(), fmt.Errorf("time average over zero span: %w", ErrInsufficientData)
	}
	return ti.area / span, nil
}
