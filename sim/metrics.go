// Metric identifiers and the per-round result handed from Engine to Controller.

package sim

import (
	"fmt"

	"github.com/tandem-sim/tandem-sim/sim/stats"
)

// Metric is a closed set of tracked quantities.
type Metric int

const (
	// Per-customer (discrete) metrics, sampled on stage-2 departure.
	MetricW1 Metric = iota // wait in queue1
	MetricW2               // total wait in queue2, including time after preemptions
	MetricT1               // time at stage 1 (W1 + X1)
	MetricT2               // time at stage 2 (W2 + X2)
	MetricT                // round trip, departure − arrival

	// Occupancy (time-integrated) metrics, sampled after every event.
	MetricNq1 // customers in queue1
	MetricNq2 // customers in queue2
	MetricN1  // customers at stage 1, queue plus server
	MetricN2  // customers at stage 2, queue plus server
	MetricU   // server busy indicator

	numMetrics
)

var metricNames = [numMetrics]string{
	MetricW1:  "W1",
	MetricW2:  "W2",
	MetricT1:  "T1",
	MetricT2:  "T2",
	MetricT:   "T",
	MetricNq1: "Nq1",
	MetricNq2: "Nq2",
	MetricN1:  "N1",
	MetricN2:  "N2",
	MetricU:   "U",
}

// DiscreteMetrics are the per-customer metrics in reporting order.
var DiscreteMetrics = []Metric{MetricW1, MetricW2, MetricT1, MetricT2, MetricT}

// OccupancyMetrics are the time-integrated metrics in reporting order.
var OccupancyMetrics = []Metric{MetricNq1, MetricNq2, MetricN1, MetricN2, MetricU}

func (m Metric) String() string {
	if m < 0 || m >= numMetrics {
		return fmt.Sprintf("Metric(%d)", int(m))
	}
	return metricNames[m]
}

// IsDiscrete reports whether m is sampled once per departing customer.
func (m Metric) IsDiscrete() bool {
	return m >= MetricW1 && m <= MetricT
}

// MeanName is the report label of the expectation of m, e.g. "E[W1]".
func (m Metric) MeanName() string {
	return "E[" + m.String() + "]"
}

// VarianceName is the report label of the variance of m, e.g. "V(W1)".
func (m Metric) VarianceName() string {
	return "V(" + m.String() + ")"
}

// RoundResult is the raw per-batch summary of one simulated round.
type RoundResult struct {
	Epoch     int
	BatchSize int

	// StartClock and EndClock bound the round on the logical clock.
	StartClock float64
	EndClock   float64

	// Samples holds one estimator per discrete metric.
	Samples map[Metric]*stats.Sample
	// Occupancy holds one estimator per occupancy metric.
	Occupancy map[Metric]*stats.TimeIntegral

	// Departures counts same-epoch stage-2 departures; always BatchSize on success.
	Departures int
	// StaleDepartures counts departures of customers from earlier epochs.
	StaleDepartures int
	Arrivals        int
	Preemptions     int
}

func newRoundResult(epoch, batchSize int, start float64) *RoundResult {
	r := &RoundResult{
		Epoch:      epoch,
		BatchSize:  batchSize,
		StartClock: start,
		Samples:    make(map[Metric]*stats.Sample, len(DiscreteMetrics)),
		Occupancy:  make(map[Metric]*stats.TimeIntegral, len(OccupancyMetrics)),
	}
	for _, m := range DiscreteMetrics {
		r.Samples[m] = &stats.Sample{}
	}
	for _, m := range OccupancyMetrics {
		r.Occupancy[m] = &stats.TimeIntegral{}
	}
	return r
}

// PointEstimates flattens the round into one value per report label:
// E[x] for every metric and V(x) for every discrete metric.
func (r *RoundResult) PointEstimates() (map[string]float64, error) {
	out := make(map[string]float64, len(DiscreteMetrics)*2+len(OccupancyMetrics))
	for _, m := range DiscreteMetrics {
		s := r.Samples[m]
		mean, err := s.Mean()
		if err != nil {
			return nil, fmt.Errorf("round %d %s: %w", r.Epoch, m.MeanName(), err)
		}
		out[m.MeanName()] = mean
		v, err := s.Variance()
		if err != nil {
			return nil, fmt.Errorf("round %d %s: %w", r.Epoch, m.VarianceName(), err)
		}
		out[m.VarianceName()] = v
	}
	for _, m := range OccupancyMetrics {
		mean, err := r.Occupancy[m].Mean()
		if err != nil {
			return nil, fmt.Errorf("round %d %s: %w", r.Epoch, m.MeanName(), err)
		}
		out[m.MeanName()] = mean
	}
	return out, nil
}
