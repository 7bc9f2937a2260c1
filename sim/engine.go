// sim/engine.go
package sim

import (
	"errors"
	"fmt"
	"math"

	"github.com/sirupsen/logrus"

	"github.com/tandem-sim/tandem-sim/sim/trace"
)

var (
	// ErrInvalidTransition is returned when an event is dispatched that the
	// current service slot cannot accept, e.g. EndOfService1 while a stage-2
	// customer is in service.
	ErrInvalidTransition = errors.New("invalid state transition")
	// ErrDoubleOccupancy is returned when a customer would occupy two places,
	// or two customers the single service slot.
	ErrDoubleOccupancy = errors.New("double occupancy")
	// ErrStarved is returned when a round still owes departures but no event
	// will ever happen again.
	ErrStarved = errors.New("no future events")
)

// ServiceSlot is the single server: the customer in service and the stage
// whose queue it was taken from.
type ServiceSlot struct {
	Customer *Customer
	Origin   int // 1 or 2
}

// EngineConfig configures a tandem engine.
type EngineConfig struct {
	ArrivalRate  float64
	ServiceRate1 float64
	ServiceRate2 float64
	Scheduler    SchedulerKind

	// Arrivals and Service supply inter-arrival and service variates.
	Arrivals VariateSource
	Service  VariateSource

	// Trace receives round and preemption records; nil disables tracing.
	Trace *trace.SimulationTrace
	// Attempt tags trace records with the controller attempt.
	Attempt int
}

// NewVariateSources derives independent arrival and service sources from rng.
func NewVariateSources(rng *PartitionedRNG) (arrivals, service VariateSource) {
	return NewExponentialSource(rng.ForSubsystem(SubsystemArrival)),
		NewExponentialSource(rng.ForSubsystem(SubsystemService))
}

// Engine is the tandem queue state machine: two FIFO queues sharing one
// server, with stage 1 holding preemptive priority over stage 2.
//
// The logical clock is never reset; it accumulates across rounds, and each
// round's time averages cover only that round's span.
type Engine struct {
	Clock float64

	cfg       EngineConfig
	scheduler EventScheduler
	epoch     int
	nextID    int64

	queue1 CustomerQueue
	queue2 CustomerQueue
	slot   *ServiceSlot

	// round is non-nil only while SimulateRound is running.
	round     *RoundResult
	remaining int
}

// NewEngine creates an engine with empty queues and the first arrival scheduled.
func NewEngine(cfg EngineConfig) (*Engine, error) {
	if cfg.Arrivals == nil || cfg.Service == nil {
		return nil, fmt.Errorf("engine needs both arrival and service variate sources")
	}
	if cfg.ArrivalRate < 0 || math.IsNaN(cfg.ArrivalRate) {
		return nil, fmt.Errorf("arrival rate must be non-negative, got %v", cfg.ArrivalRate)
	}
	if !(cfg.ServiceRate1 > 0) || !(cfg.ServiceRate2 > 0) {
		return nil, fmt.Errorf("service rates must be positive, got μ1=%v μ2=%v", cfg.ServiceRate1, cfg.ServiceRate2)
	}
	if !IsValidSchedulerKind(string(cfg.Scheduler)) {
		return nil, fmt.Errorf("unknown scheduler %q", cfg.Scheduler)
	}
	e := &Engine{
		cfg:       cfg,
		scheduler: NewEventScheduler(cfg.Scheduler),
	}
	if err := e.scheduleIn(Arrival, cfg.Arrivals.Exponential(cfg.ArrivalRate)); err != nil {
		return nil, err
	}
	return e, nil
}

// Epoch returns the tag of the current (or last) round.
func (e *Engine) Epoch() int {
	return e.epoch
}

// Queue1Len returns the number of customers waiting for stage 1.
func (e *Engine) Queue1Len() int {
	return e.queue1.Len()
}

// Queue2Len returns the number of customers waiting for stage 2.
func (e *Engine) Queue2Len() int {
	return e.queue2.Len()
}

// InService returns the customer being served and its origin stage,
// or (nil, 0) when the server is idle.
func (e *Engine) InService() (*Customer, int) {
	if e.slot == nil {
		return nil, 0
	}
	return e.slot.Customer, e.slot.Origin
}

// Population returns the number of customers in the system.
func (e *Engine) Population() int {
	n := e.queue1.Len() + e.queue2.Len()
	if e.slot != nil {
		n++
	}
	return n
}

// SimulateRound runs the event loop until batchSize customers that arrived
// during this round have left stage 2. Customers left over from earlier
// rounds keep flowing through the system but are neither counted nor sampled.
func (e *Engine) SimulateRound(batchSize int) (*RoundResult, error) {
	if batchSize < 1 {
		return nil, fmt.Errorf("batch size must be positive, got %d", batchSize)
	}
	e.epoch++
	e.round = newRoundResult(e.epoch, batchSize, e.Clock)
	e.remaining = batchSize
	defer func() { e.round = nil }()

	e.sampleOccupancy()
	for e.remaining > 0 {
		if _, err := e.Step(); err != nil {
			return nil, fmt.Errorf("round %d: %w", e.epoch, err)
		}
	}
	e.sampleOccupancy()

	r := e.round
	r.EndClock = e.Clock
	logrus.Infof("[t=%.3f] round %d done: %d departures (%d stale), %d arrivals, %d preemptions",
		e.Clock, r.Epoch, r.Departures, r.StaleDepartures, r.Arrivals, r.Preemptions)
	e.cfg.Trace.RecordRound(trace.RoundRecord{
		Attempt:         e.cfg.Attempt,
		Epoch:           r.Epoch,
		BatchSize:       r.BatchSize,
		StartClock:      r.StartClock,
		EndClock:        r.EndClock,
		Arrivals:        r.Arrivals,
		Departures:      r.Departures,
		StaleDepartures: r.StaleDepartures,
		Preemptions:     r.Preemptions,
	})
	return r, nil
}

// Step dispatches the earliest pending event and returns its kind.
func (e *Engine) Step() (EventKind, error) {
	ev, ok := e.scheduler.Next()
	if !ok {
		return 0, ErrStarved
	}
	if math.IsInf(ev.Time, 1) {
		// Put it back so the engine state stays consistent for inspection.
		if err := e.scheduler.Schedule(ev.Kind, ev.Time); err != nil {
			return 0, err
		}
		return 0, fmt.Errorf("next event %s at +Inf: %w", ev.Kind, ErrStarved)
	}
	e.Clock = ev.Time
	logrus.Tracef("[t=%.6f] dispatch %s", e.Clock, ev.Kind)

	var err error
	switch ev.Kind {
	case Arrival:
		err = e.arrival()
	case EndOfService1:
		err = e.endOfService1()
	case EndOfService2:
		err = e.endOfService2()
	default:
		err = fmt.Errorf("dispatch %s: %w", ev.Kind, ErrInvalidTransition)
	}
	return ev.Kind, err
}

func (e *Engine) arrival() error {
	// Keep the arrival process alive.
	if err := e.scheduleIn(Arrival, e.cfg.Arrivals.Exponential(e.cfg.ArrivalRate)); err != nil {
		return err
	}
	c := NewCustomer(e.nextID, e.epoch, e.Clock)
	e.nextID++
	c.Start(PhaseW1, e.Clock)
	e.queue1.Enqueue(c)
	if e.round != nil {
		e.round.Arrivals++
	}
	if err := e.assignService(); err != nil {
		return err
	}
	e.sampleOccupancy()
	return nil
}

func (e *Engine) endOfService1() error {
	if e.slot == nil || e.slot.Origin != 1 {
		return fmt.Errorf("%s with slot %s: %w", EndOfService1, e.slotString(), ErrInvalidTransition)
	}
	c := e.slot.Customer
	if err := c.End(PhaseX1, e.Clock); err != nil {
		return err
	}
	c.Start(PhaseW2, e.Clock)
	e.slot = nil
	e.queue2.Enqueue(c)
	if err := e.assignService(); err != nil {
		return err
	}
	e.sampleOccupancy()
	return nil
}

func (e *Engine) endOfService2() error {
	if e.slot == nil || e.slot.Origin != 2 {
		return fmt.Errorf("%s with slot %s: %w", EndOfService2, e.slotString(), ErrInvalidTransition)
	}
	c := e.slot.Customer
	if err := c.End(PhaseX2, e.Clock); err != nil {
		return err
	}
	c.Depart(e.Clock)
	e.slot = nil
	if err := e.assignService(); err != nil {
		return err
	}
	e.sampleOccupancy()

	if e.round == nil {
		return nil
	}
	if c.Epoch != e.epoch {
		e.round.StaleDepartures++
		return nil
	}
	if err := e.sampleCustomer(c); err != nil {
		return err
	}
	e.round.Departures++
	e.remaining--
	return nil
}

// assignService decides who holds the server after any change of state.
// Stage 1 always wins: an idle server takes the head of queue1 first, and a
// stage-2 service is interrupted as soon as queue1 is non-empty.
func (e *Engine) assignService() error {
	switch {
	case e.slot == nil:
		if c := e.queue1.Dequeue(); c != nil {
			return e.startService(c, 1)
		}
		if c := e.queue2.Dequeue(); c != nil {
			return e.startService(c, 2)
		}
		return nil
	case e.slot.Origin == 2 && e.queue1.Len() > 0:
		return e.preempt()
	default:
		return nil
	}
}

func (e *Engine) startService(c *Customer, origin int) error {
	if e.slot != nil {
		return fmt.Errorf("start %v at stage %d while %s: %w", c, origin, e.slotString(), ErrDoubleOccupancy)
	}
	wait, serve, kind, rate := PhaseW1, PhaseX1, EndOfService1, e.cfg.ServiceRate1
	if origin == 2 {
		wait, serve, kind, rate = PhaseW2, PhaseX2, EndOfService2, e.cfg.ServiceRate2
	}
	if err := c.End(wait, e.Clock); err != nil {
		return err
	}
	c.Start(serve, e.Clock)
	e.slot = &ServiceSlot{Customer: c, Origin: origin}
	return e.scheduleIn(kind, e.cfg.Service.Exponential(rate))
}

// preempt sends the stage-2 customer in service back to the head of queue2
// and gives the server to the head of queue1. Service is exponential, so the
// interrupted customer needs no record of the service it already received.
func (e *Engine) preempt() error {
	c := e.slot.Customer
	if err := e.scheduler.Cancel(EndOfService2); err != nil {
		return fmt.Errorf("preempt %v: %w", c, err)
	}
	if err := c.End(PhaseX2, e.Clock); err != nil {
		return err
	}
	c.Start(PhaseW2, e.Clock)
	e.slot = nil
	e.queue2.PrependFront(c)

	if err := e.startService(e.queue1.Dequeue(), 1); err != nil {
		return err
	}

	logrus.Debugf("[t=%.6f] preempted %v, queue1=%d queue2=%d", e.Clock, c, e.queue1.Len(), e.queue2.Len())
	if e.round != nil {
		e.round.Preemptions++
	}
	e.cfg.Trace.RecordPreemption(trace.PreemptionRecord{
		Epoch:      e.epoch,
		Clock:      e.Clock,
		CustomerID: c.ID,
		Queue1Len:  e.queue1.Len(),
		Queue2Len:  e.queue2.Len(),
	})
	return nil
}

func (e *Engine) scheduleIn(kind EventKind, delay float64) error {
	if delay < 0 || math.IsNaN(delay) {
		return fmt.Errorf("schedule %s: invalid delay %v", kind, delay)
	}
	return e.scheduler.Schedule(kind, e.Clock+delay)
}

// sampleOccupancy records the current occupancy into the round's time averages.
func (e *Engine) sampleOccupancy() {
	if e.round == nil {
		return
	}
	var ns1, ns2 float64
	if e.slot != nil {
		if e.slot.Origin == 1 {
			ns1 = 1
		} else {
			ns2 = 1
		}
	}
	nq1 := float64(e.queue1.Len())
	nq2 := float64(e.queue2.Len())

	occ := e.round.Occupancy
	occ[MetricNq1].Add(e.Clock, nq1)
	occ[MetricNq2].Add(e.Clock, nq2)
	occ[MetricN1].Add(e.Clock, nq1+ns1)
	occ[MetricN2].Add(e.Clock, nq2+ns2)
	occ[MetricU].Add(e.Clock, ns1+ns2)
}

// sampleCustomer feeds a departed same-epoch customer into the round's samples.
func (e *Engine) sampleCustomer(c *Customer) error {
	var totals [numPhases]float64
	for p := Phase(0); p < numPhases; p++ {
		t, err := c.TotalTime(p)
		if err != nil {
			return err
		}
		totals[p] = t
	}
	departure, ok := c.DepartureTime()
	if !ok {
		return fmt.Errorf("sample %v before departure: %w", c, ErrInvalidTransition)
	}
	s := e.round.Samples
	s[MetricW1].Add(totals[PhaseW1])
	s[MetricW2].Add(totals[PhaseW2])
	s[MetricT1].Add(totals[PhaseW1] + totals[PhaseX1])
	s[MetricT2].Add(totals[PhaseW2] + totals[PhaseX2])
	s[MetricT].Add(departure - c.ArrivalTime)
	return nil
}

// Validate checks the structural invariants of the queue state:
// no customer in two places, a work-conserving server, stage-1 priority,
// and pending service events that match the slot.
func (e *Engine) Validate() error {
	seen := make(map[*Customer]string, e.Population())
	var dup error
	mark := func(where string) func(*Customer) {
		return func(c *Customer) {
			if prev, ok := seen[c]; ok && dup == nil {
				dup = fmt.Errorf("%v in both %s and %s: %w", c, prev, where, ErrDoubleOccupancy)
			}
			seen[c] = where
		}
	}
	e.queue1.Each(mark("queue1"))
	e.queue2.Each(mark("queue2"))
	if e.slot != nil {
		mark("slot")(e.slot.Customer)
	}
	if dup != nil {
		return dup
	}

	if !e.scheduler.Pending(Arrival) {
		return fmt.Errorf("arrival process stopped: %w", ErrInvalidTransition)
	}
	p1, p2 := e.scheduler.Pending(EndOfService1), e.scheduler.Pending(EndOfService2)
	switch {
	case e.slot == nil:
		if e.queue1.Len()+e.queue2.Len() > 0 {
			return fmt.Errorf("server idle with %d+%d waiting: %w", e.queue1.Len(), e.queue2.Len(), ErrInvalidTransition)
		}
		if p1 || p2 {
			return fmt.Errorf("service completion pending with idle server: %w", ErrInvalidTransition)
		}
	case e.slot.Origin == 1:
		if !p1 || p2 {
			return fmt.Errorf("stage-1 service with pending end1=%v end2=%v: %w", p1, p2, ErrInvalidTransition)
		}
	case e.slot.Origin == 2:
		if e.queue1.Len() > 0 {
			return fmt.Errorf("stage-2 service while %d wait at stage 1: %w", e.queue1.Len(), ErrInvalidTransition)
		}
		if p1 || !p2 {
			return fmt.Errorf("stage-2 service with pending end1=%v end2=%v: %w", p1, p2, ErrInvalidTransition)
		}
	default:
		return fmt.Errorf("slot origin %d: %w", e.slot.Origin, ErrInvalidTransition)
	}
	return nil
}

func (e *Engine) slotString() string {
	if e.slot == nil {
		return "idle"
	}
	return fmt.Sprintf("%v from queue%d", e.slot.Customer, e.slot.Origin)
}
