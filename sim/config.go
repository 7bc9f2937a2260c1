package sim

import (
	"fmt"
	"math"

	"github.com/tandem-sim/tandem-sim/sim/trace"
)

// ArrivalConfig groups the load parameters.
// Lambda, when positive, is the arrival rate; otherwise it is derived from
// the utilisation Rho as λ = ρ / (1/μ1 + 1/μ2), i.e. ρ/2 for unit service rates.
type ArrivalConfig struct {
	Lambda float64 // arrival rate λ (0 = derive from Rho)
	Rho    float64 // server utilisation ρ, used when Lambda is 0
}

// ServiceConfig groups the exponential service rates of both stages.
type ServiceConfig struct {
	Rate1 float64 // μ1, stage-1 service rate (default 1)
	Rate2 float64 // μ2, stage-2 service rate (default 1)
}

// RoundConfig groups the batch-means parameters.
type RoundConfig struct {
	Transient    int // M: departures simulated and discarded before measuring
	InitialBatch int // N: same-epoch departures per round on the first attempt
	Rounds       int // K: rounds per attempt (one meta-observation each)
	MaxDoublings int // attempts beyond the first before giving up on precision
}

// PrecisionConfig groups the stopping criterion of the controller.
type PrecisionConfig struct {
	Confidence float64 // two-sided confidence level, e.g. 0.95
	Target     float64 // maximum relative half width, e.g. 0.05
}

// ControllerConfig aggregates everything the RoundController needs.
type ControllerConfig struct {
	Arrival   ArrivalConfig
	Service   ServiceConfig
	Rounds    RoundConfig
	Precision PrecisionConfig
	Scheduler SchedulerKind
	Seed      int64
	Trace     trace.TraceLevel
}

// DefaultControllerConfig returns the configuration used when no flags or
// config file override it.
func DefaultControllerConfig() ControllerConfig {
	return ControllerConfig{
		Arrival:   ArrivalConfig{Rho: 0.4},
		Service:   ServiceConfig{Rate1: 1, Rate2: 1},
		Rounds:    RoundConfig{Transient: 10000, InitialBatch: 1000, Rounds: 30, MaxDoublings: 10},
		Precision: PrecisionConfig{Confidence: 0.95, Target: 0.05},
		Scheduler: SchedulerLinear,
		Seed:      42,
		Trace:     trace.TraceLevelNone,
	}
}

// Rate returns the arrival rate λ implied by the configuration.
func (c ArrivalConfig) Rate(svc ServiceConfig) float64 {
	if c.Lambda > 0 {
		return c.Lambda
	}
	return c.Rho / (1/svc.Rate1 + 1/svc.Rate2)
}

// Utilization returns ρ = λ/μ1 + λ/μ2 for the single shared server.
func (c ControllerConfig) Utilization() float64 {
	lambda := c.Arrival.Rate(c.Service)
	return lambda/c.Service.Rate1 + lambda/c.Service.Rate2
}

// Validate reports the first invalid field.
func (c ControllerConfig) Validate() error {
	if !(c.Service.Rate1 > 0) || !(c.Service.Rate2 > 0) || math.IsInf(c.Service.Rate1, 0) || math.IsInf(c.Service.Rate2, 0) {
		return fmt.Errorf("service rates must be positive and finite, got μ1=%v μ2=%v", c.Service.Rate1, c.Service.Rate2)
	}
	if c.Arrival.Lambda < 0 || c.Arrival.Rho < 0 {
		return fmt.Errorf("arrival rate and utilisation must be non-negative, got λ=%v ρ=%v", c.Arrival.Lambda, c.Arrival.Rho)
	}
	if c.Arrival.Rate(c.Service) <= 0 {
		return fmt.Errorf("one of λ or ρ must be positive")
	}
	if rho := c.Utilization(); rho >= 1 {
		return fmt.Errorf("utilisation ρ=%.4f must be below 1 for a steady state to exist", rho)
	}
	if c.Rounds.Transient < 0 {
		return fmt.Errorf("transient length must be non-negative, got %d", c.Rounds.Transient)
	}
	if c.Rounds.InitialBatch < 2 {
		return fmt.Errorf("initial batch size must be at least 2, got %d", c.Rounds.InitialBatch)
	}
	if c.Rounds.Rounds < 2 {
		return fmt.Errorf("number of rounds must be at least 2, got %d", c.Rounds.Rounds)
	}
	if c.Rounds.MaxDoublings < 0 || c.Rounds.MaxDoublings > 30 {
		return fmt.Errorf("max doublings must be in [0, 30], got %d", c.Rounds.MaxDoublings)
	}
	if !(c.Precision.Confidence > 0 && c.Precision.Confidence < 1) {
		return fmt.Errorf("confidence must be in (0, 1), got %v", c.Precision.Confidence)
	}
	if !(c.Precision.Target > 0) {
		return fmt.Errorf("precision target must be positive, got %v", c.Precision.Target)
	}
	if !IsValidSchedulerKind(string(c.Scheduler)) {
		return fmt.Errorf("unknown scheduler %q (valid: linear, heap)", c.Scheduler)
	}
	if !trace.IsValidTraceLevel(string(c.Trace)) {
		return fmt.Errorf("unknown trace level %q (valid: none, rounds, preemptions)", c.Trace)
	}
	return nil
}
