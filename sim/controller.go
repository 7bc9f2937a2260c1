package sim

import (
	"fmt"
	"math"
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/tandem-sim/tandem-sim/sim/stats"
	"github.com/tandem-sim/tandem-sim/sim/trace"
)

// Estimate is one reported quantity: its batch-means point estimate and
// confidence interval.
type Estimate struct {
	Name              string // e.g. "E[W1]", "V(T2)", "E[Nq1]"
	Mean              float64
	Interval          stats.Interval
	RelativeHalfWidth float64
}

// Report is the outcome of a precision-seeking run.
type Report struct {
	Lambda      float64
	Utilization float64
	Confidence  float64
	Target      float64

	// BatchSize is N of the reported attempt; Rounds is K.
	BatchSize int
	Rounds    int
	// Attempts counts every attempt made, including the reported one.
	Attempts  int
	Converged bool
	// MaxRelativeHalfWidth is the widest relative interval among Estimates.
	MaxRelativeHalfWidth float64
	WorstEstimate        string

	Estimates []Estimate // sorted by name
}

// Estimate looks up an estimate by report label.
func (r *Report) Estimate(name string) (Estimate, bool) {
	i := sort.Search(len(r.Estimates), func(i int) bool { return r.Estimates[i].Name >= name })
	if i < len(r.Estimates) && r.Estimates[i].Name == name {
		return r.Estimates[i], true
	}
	return Estimate{}, false
}

// Controller runs K rounds of batch size N on a fresh engine, builds
// batch-means intervals, and doubles N until every relative half width is
// within the target or the doubling budget is spent.
type Controller struct {
	cfg   ControllerConfig
	rng   *PartitionedRNG
	trace *trace.SimulationTrace
}

// NewController validates cfg and prepares a controller seeded from cfg.Seed.
func NewController(cfg ControllerConfig) (*Controller, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid controller config: %w", err)
	}
	c := &Controller{
		cfg: cfg,
		rng: NewPartitionedRNG(NewSimulationKey(cfg.Seed)),
	}
	if cfg.Trace != "" && cfg.Trace != trace.TraceLevelNone {
		c.trace = trace.NewSimulationTrace(trace.TraceConfig{Level: cfg.Trace})
	}
	return c, nil
}

// Trace returns the collected trace, or nil when tracing is disabled.
func (c *Controller) Trace() *trace.SimulationTrace {
	return c.trace
}

// Run executes the precision-seeking loop. When the target is not reached
// within the doubling budget the attempt with the best precision is
// returned with Converged=false; that is not an error.
func (c *Controller) Run() (*Report, error) {
	n := c.cfg.Rounds.InitialBatch
	maxAttempts := c.cfg.Rounds.MaxDoublings + 1

	var best *Report
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		logrus.Infof("attempt %d/%d: %d rounds of %d departures", attempt, maxAttempts, c.cfg.Rounds.Rounds, n)
		rep, err := c.RunAttempt(attempt, n)
		if err != nil {
			return nil, err
		}
		rep.Converged = rep.MaxRelativeHalfWidth <= c.cfg.Precision.Target
		c.trace.RecordAttempt(trace.AttemptRecord{
			Attempt:              attempt,
			BatchSize:            n,
			Rounds:               c.cfg.Rounds.Rounds,
			MaxRelativeHalfWidth: rep.MaxRelativeHalfWidth,
			WorstEstimate:        rep.WorstEstimate,
			Converged:            rep.Converged,
		})
		if best == nil || rep.MaxRelativeHalfWidth < best.MaxRelativeHalfWidth {
			best = rep
		}
		if rep.Converged {
			rep.Attempts = attempt
			return rep, nil
		}
		logrus.Infof("attempt %d: %s has relative half width %.4f > %.4f, doubling batch size",
			attempt, rep.WorstEstimate, rep.MaxRelativeHalfWidth, c.cfg.Precision.Target)
		n *= 2
	}

	best.Attempts = maxAttempts
	logrus.Warnf("precision %.4f not reached after %d attempts; best was %.4f at batch size %d",
		c.cfg.Precision.Target, maxAttempts, best.MaxRelativeHalfWidth, best.BatchSize)
	return best, nil
}

// RunAttempt simulates a transient phase and K rounds of batch size n on a
// fresh engine, and returns the resulting batch-means estimates.
func (c *Controller) RunAttempt(attempt, n int) (*Report, error) {
	lambda := c.cfg.Arrival.Rate(c.cfg.Service)
	arrivals, service := NewVariateSources(c.rng)
	eng, err := NewEngine(EngineConfig{
		ArrivalRate:  lambda,
		ServiceRate1: c.cfg.Service.Rate1,
		ServiceRate2: c.cfg.Service.Rate2,
		Scheduler:    c.cfg.Scheduler,
		Arrivals:     arrivals,
		Service:      service,
		Trace:        c.trace,
		Attempt:      attempt,
	})
	if err != nil {
		return nil, err
	}

	if m := c.cfg.Rounds.Transient; m > 0 {
		if _, err := eng.SimulateRound(m); err != nil {
			return nil, fmt.Errorf("attempt %d transient phase: %w", attempt, err)
		}
	}

	meta := make(map[string]*stats.Sample)
	for k := 0; k < c.cfg.Rounds.Rounds; k++ {
		r, err := eng.SimulateRound(n)
		if err != nil {
			return nil, fmt.Errorf("attempt %d: %w", attempt, err)
		}
		points, err := r.PointEstimates()
		if err != nil {
			return nil, fmt.Errorf("attempt %d: %w", attempt, err)
		}
		for name, v := range points {
			s, ok := meta[name]
			if !ok {
				s = &stats.Sample{}
				meta[name] = s
			}
			s.Add(v)
		}
	}

	rep := &Report{
		Lambda:      lambda,
		Utilization: c.cfg.Utilization(),
		Confidence:  c.cfg.Precision.Confidence,
		Target:      c.cfg.Precision.Target,
		BatchSize:   n,
		Rounds:      c.cfg.Rounds.Rounds,
		Attempts:    attempt,
		Estimates:   make([]Estimate, 0, len(meta)),
	}
	for name, s := range meta {
		est, err := estimateFrom(name, s, c.cfg.Precision.Confidence)
		if err != nil {
			return nil, fmt.Errorf("attempt %d: %w", attempt, err)
		}
		rep.Estimates = append(rep.Estimates, est)
	}
	sort.Slice(rep.Estimates, func(i, j int) bool { return rep.Estimates[i].Name < rep.Estimates[j].Name })

	for _, est := range rep.Estimates {
		w := est.RelativeHalfWidth
		if math.IsNaN(w) {
			w = math.Inf(1)
		}
		if rep.WorstEstimate == "" || w > rep.MaxRelativeHalfWidth {
			rep.MaxRelativeHalfWidth = w
			rep.WorstEstimate = est.Name
		}
	}
	return rep, nil
}

func estimateFrom(name string, s *stats.Sample, confidence float64) (Estimate, error) {
	mean, err := s.Mean()
	if err != nil {
		return Estimate{}, fmt.Errorf("%s: %w", name, err)
	}
	iv, err := s.MeanInterval(confidence)
	if err != nil {
		return Estimate{}, fmt.Errorf("%s: %w", name, err)
	}
	return Estimate{
		Name:              name,
		Mean:              mean,
		Interval:          iv,
		RelativeHalfWidth: stats.RelativeHalfWidth(iv, mean),
	}, nil
}
