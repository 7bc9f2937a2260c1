package stats

import (
	"gonum.org/v1/gonum/stat/distuv"
)

// Quantiler evaluates the inverse CDFs needed for interval estimation.
type Quantiler interface {
	// StudentT returns the p-quantile of Student's t with df degrees of freedom.
	StudentT(df, p float64) float64
	// ChiSquared returns the p-quantile of the chi-squared distribution with df degrees of freedom.
	ChiSquared(df, p float64) float64
}

// GonumQuantiler evaluates quantiles with gonum's distuv distributions.
type GonumQuantiler struct{}

func (GonumQuantiler) StudentT(df, p float64) float64 {
	return distuv.StudentsT{Mu: 0, Sigma: 1, Nu: df}.Quantile(p)
}

func (GonumQuantiler) ChiSquared(df, p float64) float64 {
	return distuv.ChiSquared{K: df}.Quantile(p)
}

// Quantiles is the Quantiler used by interval constructors.
// Tests may replace it; production code leaves the gonum default.
var Quantiles Quantiler = GonumQuantiler{}
