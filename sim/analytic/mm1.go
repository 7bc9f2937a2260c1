// Package analytic holds closed-form queueing results used as references
// for simulated estimates.
//
// Under preemptive priority, stage 1 of the tandem system never sees stage-2
// work, so it behaves exactly as an M/M/1 queue with arrival rate λ and
// service rate μ1. Stage 2 has no such simple closed form.
package analytic

import (
	"fmt"
)

// MM1 models a single FIFO server with Poisson arrivals and exponential service.
type MM1 struct {
	ArrivalRate float64 // λ
	ServiceRate float64 // μ
}

// NewMM1 validates the rates and returns the model.
func NewMM1(lambda, mu float64) (MM1, error) {
	if lambda < 0 || !(mu > 0) {
		return MM1{}, fmt.Errorf("M/M/1 needs λ ≥ 0 and μ > 0, got λ=%v μ=%v", lambda, mu)
	}
	q := MM1{ArrivalRate: lambda, ServiceRate: mu}
	if !q.IsStable() {
		return MM1{}, fmt.Errorf("M/M/1 is unstable at ρ=%.4f", q.Utilization())
	}
	return q, nil
}

// Utilization returns ρ = λ/μ.
func (q MM1) Utilization() float64 {
	return q.ArrivalRate / q.ServiceRate
}

// IsStable reports whether ρ < 1.
func (q MM1) IsStable() bool {
	return q.Utilization() < 1
}

// MeanWait is E[W] = ρ / (μ(1−ρ)), the expected time in queue before service.
func (q MM1) MeanWait() float64 {
	rho := q.Utilization()
	return rho / (q.ServiceRate * (1 - rho))
}

// VarianceWait is V(W) = ρ(2−ρ) / (μ²(1−ρ)²).
func (q MM1) VarianceWait() float64 {
	rho := q.Utilization()
	d := q.ServiceRate * (1 - rho)
	return rho * (2 - rho) / (d * d)
}

// MeanSojourn is E[T] = 1 / (μ − λ).
func (q MM1) MeanSojourn() float64 {
	return 1 / (q.ServiceRate - q.ArrivalRate)
}

// VarianceSojourn is V(T) = 1 / (μ − λ)²; the sojourn time is exponential.
func (q MM1) VarianceSojourn() float64 {
	t := q.MeanSojourn()
	return t * t
}

// MeanQueueLength is E[Nq] = ρ² / (1−ρ).
func (q MM1) MeanQueueLength() float64 {
	rho := q.Utilization()
	return rho * rho / (1 - rho)
}

// MeanInSystem is E[N] = ρ / (1−ρ).
func (q MM1) MeanInSystem() float64 {
	rho := q.Utilization()
	return rho / (1 - rho)
}

// Stage1 returns the closed-form values of the stage-1 estimates keyed by
// report label ("E[W1]", "V(W1)", "E[T1]", "V(T1)", "E[Nq1]", "E[N1]").
func (q MM1) Stage1() map[string]float64 {
	return map[string]float64{
		"E[W1]":  q.MeanWait(),
		"V(W1)":  q.VarianceWait(),
		"E[T1]":  q.MeanSojourn(),
		"V(T1)":  q.VarianceSojourn(),
		"E[Nq1]": q.MeanQueueLength(),
		"E[N1]":  q.MeanInSystem(),
	}
}

// ServerUtilization is the busy fraction of the shared server,
// λ/μ1 + λ/μ2, keyed as "E[U]".
func ServerUtilization(lambda, mu1, mu2 float64) float64 {
	return lambda/mu1 + lambda/mu2
}
