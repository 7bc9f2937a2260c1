// Customer lifecycle: arrival -> W1 -> X1 -> W2 -> X2 -> departure,
// with X2 -> W2 loops whenever a stage-2 service is preempted.

package sim

import (
	"errors"
	"fmt"
)

// ErrMismatchedPhase is returned when a phase has unequal start and end stamps.
var ErrMismatchedPhase = errors.New("mismatched phase timestamps")

// Phase is one wait or service period of a customer at a stage.
type Phase int

const (
	PhaseW1 Phase = iota // waiting in queue1
	PhaseX1              // in service at stage 1
	PhaseW2              // waiting in queue2
	PhaseX2              // in service at stage 2

	numPhases
)

var phaseNames = [numPhases]string{"W1", "X1", "W2", "X2"}

func (p Phase) String() string {
	if p < 0 || p >= numPhases {
		return fmt.Sprintf("Phase(%d)", int(p))
	}
	return phaseNames[p]
}

// Customer records the timing of one entity through both stages.
// Epoch binds it to the round in which it arrived.
type Customer struct {
	ID          int64
	Epoch       int
	ArrivalTime float64

	starts    [numPhases][]float64
	ends      [numPhases][]float64
	departure float64
	departed  bool
}

// NewCustomer creates a customer arriving at t during epoch.
func NewCustomer(id int64, epoch int, t float64) *Customer {
	return &Customer{ID: id, Epoch: epoch, ArrivalTime: t}
}

// Start stamps the beginning of a phase.
func (c *Customer) Start(p Phase, t float64) {
	c.starts[p] = append(c.starts[p], t)
}

// End stamps the end of the currently open period of a phase.
func (c *Customer) End(p Phase, t float64) error {
	if len(c.ends[p]) >= len(c.starts[p]) {
		return fmt.Errorf("customer %d: end %s at %v with no open period: %w", c.ID, p, t, ErrMismatchedPhase)
	}
	c.ends[p] = append(c.ends[p], t)
	return nil
}

// Periods returns how many times the phase was entered.
// A customer preempted k times at stage 2 has k+1 X2 periods.
func (c *Customer) Periods(p Phase) int {
	return len(c.starts[p])
}

// TotalTime returns the summed duration of every period of the phase.
// Fails if a period is still open.
func (c *Customer) TotalTime(p Phase) (float64, error) {
	if len(c.starts[p]) != len(c.ends[p]) {
		return 0, fmt.Errorf("customer %d: %s has %d starts and %d ends: %w",
			c.ID, p, len(c.starts[p]), len(c.ends[p]), ErrMismatchedPhase)
	}
	total := 0.0
	for i, start := range c.starts[p] {
		total += c.ends[p][i] - start
	}
	return total, nil
}

// Depart marks the customer as having left the system at t.
func (c *Customer) Depart(t float64) {
	c.departure = t
	c.departed = true
}

// DepartureTime returns when the customer left stage 2, or false while it
// is still in the system.
func (c *Customer) DepartureTime() (float64, bool) {
	return c.departure, c.departed
}

func (c *Customer) String() string {
	return fmt.Sprintf("customer(%d, epoch=%d)", c.ID, c.Epoch)
}
