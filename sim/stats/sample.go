// Package stats provides the two estimator primitives of the simulator:
// Sample for independent discrete observations and TimeIntegral for
// piecewise-constant processes observed over logical time.
package stats

import (
	"errors"
	"fmt"
	"math"
)

// ErrInsufficientData is returned when an estimate needs more observations
// than have been recorded. Callers may query mid-round, so this is not fatal.
var ErrInsufficientData = errors.New("insufficient data")

// Interval is a two-sided confidence interval.
type Interval struct {
	Low  float64
	High float64
}

// HalfWidth returns (High-Low)/2.
func (iv Interval) HalfWidth() float64 {
	return (iv.High - iv.Low) / 2
}

// Contains reports whether x lies inside the closed interval.
func (iv Interval) Contains(x float64) bool {
	return iv.Low <= x && x <= iv.High
}

// RelativeHalfWidth returns the half width divided by |center|.
// A zero center yields +Inf unless the interval is degenerate.
func RelativeHalfWidth(iv Interval, center float64) float64 {
	hw := iv.HalfWidth()
	if center == 0 {
		if hw == 0 {
			return 0
		}
		return math.Inf(1)
	}
	return hw / math.Abs(center)
}

// Sample accumulates independent real observations using Welford's running
// update. The variance does not depend on a constant shift of the data.
// The zero value is an empty sample.
type Sample struct {
	n    int
	mean float64
	m2   float64
}

// Add records one observation.
func (s *Sample) Add(x float64) {
	s.n++
	delta := x - s.mean
	s.mean += delta / float64(s.n)
	s.m2 += delta * (x - s.mean)
}

// Len returns the number of observations.
func (s *Sample) Len() int {
	return s.n
}

// Reset discards every observation.
func (s *Sample) Reset() {
	*s = Sample{}
}

// Mean returns the arithmetic mean. Needs at least one observation.
func (s *Sample) Mean() (float64, error) {
	if s.n < 1 {
		return math.NaN(), fmt.Errorf("mean of %d observations: %w", s.n, ErrInsufficientData)
	}
	return s.mean, nil
}

// Variance returns the unbiased sample variance Σ(x−mean)²/(n−1).
// Needs at least two observations.
func (s *Sample) Variance() (float64, error) {
	if s.n < 2 {
		return math.NaN(), fmt.Errorf("variance of %d observations: %w", s.n, ErrInsufficientData)
	}
	return s.m2 / float64(s.n-1), nil
}

// MeanInterval returns the Student-t interval for the true mean at the given
// confidence level (e.g. 0.95), using n−1 degrees of freedom.
func (s *Sample) MeanInterval(confidence float64) (Interval, error) {
	if err := checkConfidence(confidence); err != nil {
		return Interval{}, err
	}
	v, err := s.Variance()
	if err != nil {
		return Interval{}, err
	}
	alpha := 1 - confidence
	df := float64(s.n - 1)
	se := math.Sqrt(v / float64(s.n))
	return Interval{
		Low:  s.mean + Quantiles.StudentT(df, alpha/2)*se,
		High: s.mean + Quantiles.StudentT(df, 1-alpha/2)*se,
	}, nil
}

// VarianceInterval returns the chi-squared interval for the true variance at
// the given confidence level, using n−1 degrees of freedom.
func (s *Sample) VarianceInterval(confidence float64) (Interval, error) {
	if err := checkConfidence(confidence); err != nil {
		return Interval{}, err
	}
	v, err := s.Variance()
	if err != nil {
		return Interval{}, err
	}
	alpha := 1 - confidence
	df := float64(s.n - 1)
	return Interval{
		Low:  df * v / Quantiles.ChiSquared(df, 1-alpha/2),
		High: df * v / Quantiles.ChiSquared(df, alpha/2),
	}, nil
}

// RelativeHalfWidth returns (high−low)/(2·|mean|) of the mean interval.
func (s *Sample) RelativeHalfWidth(confidence float64) (float64, error) {
	iv, err := s.MeanInterval(confidence)
	if err != nil {
		return math.NaN(), err
	}
	return RelativeHalfWidth(iv, s.mean), nil
}

func checkConfidence(c float64) error {
	if !(c > 0 && c < 1) {
		return fmt.Errorf("confidence %v must be in (0, 1)", c)
	}
	return nil
}
