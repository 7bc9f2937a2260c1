package sim

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/tandem-sim/tandem-sim/sim/internal/testutil"
	"github.com/tandem-sim/tandem-sim/sim/trace"
)

func newScriptedEngine(t *testing.T, kind SchedulerKind, arrivals, service VariateSource) *Engine {
	t.Helper()
	e, err := NewEngine(EngineConfig{
		ArrivalRate:  1,
		ServiceRate1: 1,
		ServiceRate2: 1,
		Scheduler:    kind,
		Arrivals:     arrivals,
		Service:      service,
	})
	require.NoError(t, err)
	return e
}

type fataler interface {
	Fatalf(format string, args ...any)
}

func newSeededEngine(t fataler, lambda float64, kind SchedulerKind, seed int64) *Engine {
	arrivals, service := NewVariateSources(NewPartitionedRNG(NewSimulationKey(seed)))
	e, err := NewEngine(EngineConfig{
		ArrivalRate:  lambda,
		ServiceRate1: 1,
		ServiceRate2: 1,
		Scheduler:    kind,
		Arrivals:     arrivals,
		Service:      service,
	})
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	return e
}

func sampleMean(t *testing.T, r *RoundResult, m Metric) float64 {
	t.Helper()
	v, err := r.Samples[m].Mean()
	require.NoError(t, err)
	return v
}

func occupancyMean(t *testing.T, r *RoundResult, m Metric) float64 {
	t.Helper()
	v, err := r.Occupancy[m].Mean()
	require.NoError(t, err)
	return v
}

func TestEngine_SingleCustomer_NoWaitAndNoHang(t *testing.T) {
	for _, kind := range allSchedulerKinds {
		t.Run(string(kind), func(t *testing.T) {
			// GIVEN one arrival at t=1 and no arrivals after it
			arrivals := testutil.NewScriptedSource(math.Inf(1), 1.0)
			service := testutil.NewScriptedSource(1, 0.5, 0.75)
			e := newScriptedEngine(t, kind, arrivals, service)

			// WHEN a round of one departure is simulated
			r, err := e.SimulateRound(1)
			require.NoError(t, err)

			// THEN the customer went straight through both stages
			assert.Equal(t, 1, r.Departures)
			assert.Equal(t, 0.0, sampleMean(t, r, MetricW1))
			assert.Equal(t, 0.0, sampleMean(t, r, MetricW2))
			assert.InDelta(t, 0.5, sampleMean(t, r, MetricT1), 1e-12)
			assert.InDelta(t, 0.75, sampleMean(t, r, MetricT2), 1e-12)
			assert.InDelta(t, 1.25, sampleMean(t, r, MetricT), 1e-12)
			assert.InDelta(t, 2.25, r.EndClock, 1e-12)
			assert.Equal(t, 0, e.Population())

			// AND the server was busy from t=1 to t=2.25 out of [0, 2.25]
			assert.InDelta(t, 1.25/2.25, occupancyMean(t, r, MetricU), 1e-12)
			assert.InDelta(t, 0.5/2.25, occupancyMean(t, r, MetricN1), 1e-12)
			assert.InDelta(t, 0.75/2.25, occupancyMean(t, r, MetricN2), 1e-12)
			assert.Equal(t, 0.0, occupancyMean(t, r, MetricNq1))

			// AND asking for another departure fails instead of looping forever
			_, err = e.SimulateRound(1)
			assert.ErrorIs(t, err, ErrStarved)
		})
	}
}

func TestEngine_StageOneArrival_PreemptsStageTwo(t *testing.T) {
	for _, kind := range allSchedulerKinds {
		t.Run(string(kind), func(t *testing.T) {
			// GIVEN arrivals at t=1 and t=2.5, and service draws
			// c0 X1=1, c0 X2=2 (interrupted at 2.5), c1 X1=0.5, c0 X2=1, c1 X2=0.25
			arrivals := testutil.NewScriptedSource(math.Inf(1), 1.0, 1.5)
			service := testutil.NewScriptedSource(1, 1.0, 2.0, 0.5, 1.0, 0.25)
			e := newScriptedEngine(t, kind, arrivals, service)

			// WHEN a round of two departures is simulated
			r, err := e.SimulateRound(2)
			require.NoError(t, err)

			// THEN c0 lost the server once and waited again in queue2
			assert.Equal(t, 1, r.Preemptions)
			assert.Equal(t, 2, r.Arrivals)
			// c0: W2 = 0 + 0.5, c1: W2 = 1.0
			assert.InDelta(t, 0.75, sampleMean(t, r, MetricW2), 1e-12)
			// c0: T2 = 0.5 + 1.5, c1: T2 = 1.0 + 0.25
			assert.InDelta(t, (2.0+1.25)/2, sampleMean(t, r, MetricT2), 1e-12)
			// c0: T = 4 − 1, c1: T = 4.25 − 2.5
			assert.InDelta(t, (3.0+1.75)/2, sampleMean(t, r, MetricT), 1e-12)
			assert.InDelta(t, 4.25, r.EndClock, 1e-12)
			assert.Equal(t, 5, service.Draws(), "the preempted customer draws a fresh service time")
		})
	}
}

func TestEngine_PreemptedCustomer_ReturnsToHeadOfQueue2(t *testing.T) {
	// GIVEN the preemption scenario stepped event by event
	arrivals := testutil.NewScriptedSource(math.Inf(1), 1.0, 1.5)
	service := testutil.NewScriptedSource(1, 1.0, 2.0, 0.5, 1.0, 0.25)
	e := newScriptedEngine(t, SchedulerLinear, arrivals, service)

	for i := 0; i < 3; i++ { // arrival, end1, arrival (preempts)
		_, err := e.Step()
		require.NoError(t, err)
	}

	// THEN c1 is in stage-1 service and c0 waits at the head of queue2
	c, origin := e.InService()
	require.NotNil(t, c)
	assert.Equal(t, int64(1), c.ID)
	assert.Equal(t, 1, origin)
	assert.Equal(t, 1, e.Queue2Len())
	assert.Equal(t, int64(0), e.queue2.Peek().ID)
	assert.Equal(t, 2, e.queue2.Peek().Periods(PhaseW2))
	assert.NoError(t, e.Validate())

	// WHEN c1 finishes stage 1
	kind, err := e.Step()
	require.NoError(t, err)
	require.Equal(t, EndOfService1, kind)

	// THEN c0 is served before c1 at stage 2
	c, origin = e.InService()
	assert.Equal(t, int64(0), c.ID)
	assert.Equal(t, 2, origin)
	assert.Equal(t, int64(1), e.queue2.Peek().ID)
}

func TestEngine_StaleCustomers_ExcludedFromNextRound(t *testing.T) {
	// GIVEN arrivals at t=1, 1.5 and 6.5 and unit service times
	arrivals := testutil.NewScriptedSource(math.Inf(1), 1.0, 0.5, 5.0)
	service := testutil.NewScriptedSource(1.0)
	e := newScriptedEngine(t, SchedulerHeap, arrivals, service)

	// WHEN round 1 ends after c0 departs at t=4 with c1 still in service
	r1, err := e.SimulateRound(1)
	require.NoError(t, err)
	assert.InDelta(t, 4.0, r1.EndClock, 1e-12)
	assert.Equal(t, 1, e.Population())

	// AND round 2 is simulated
	r2, err := e.SimulateRound(1)
	require.NoError(t, err)

	// THEN c1's departure at t=5 is stale and only c2 is sampled
	assert.Equal(t, 2, r2.Epoch)
	assert.Equal(t, 1, r2.StaleDepartures)
	assert.Equal(t, 1, r2.Departures)
	assert.Equal(t, 1, r2.Samples[MetricT].Len())
	assert.InDelta(t, 2.0, sampleMean(t, r2, MetricT), 1e-12)
	assert.Equal(t, 0.0, sampleMean(t, r2, MetricW1))
	assert.InDelta(t, 4.0, r2.StartClock, 1e-12)
	assert.InDelta(t, 8.5, r2.EndClock, 1e-12)
}

func TestEngine_SimulateRound_InvalidBatchSize(t *testing.T) {
	e := newSeededEngine(t, 0.3, SchedulerLinear, 1)
	_, err := e.SimulateRound(0)
	assert.Error(t, err)
	assert.Equal(t, 0, e.Epoch(), "a rejected round does not open an epoch")
}

func TestNewEngine_InvalidConfig(t *testing.T) {
	src := testutil.NewScriptedSource(1)
	tests := []struct {
		name string
		cfg  EngineConfig
	}{
		{"missing sources", EngineConfig{ArrivalRate: 1, ServiceRate1: 1, ServiceRate2: 1}},
		{"negative arrival rate", EngineConfig{ArrivalRate: -1, ServiceRate1: 1, ServiceRate2: 1, Arrivals: src, Service: src}},
		{"zero service rate", EngineConfig{ArrivalRate: 1, ServiceRate1: 0, ServiceRate2: 1, Arrivals: src, Service: src}},
		{"unknown scheduler", EngineConfig{ArrivalRate: 1, ServiceRate1: 1, ServiceRate2: 1, Arrivals: src, Service: src, Scheduler: "calendar"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewEngine(tt.cfg)
			assert.Error(t, err)
		})
	}
}

// === Invariant violations surface as errors ===

func TestEngine_EndOfService1_WithStageTwoInService_InvalidTransition(t *testing.T) {
	e := newScriptedEngine(t, SchedulerLinear, testutil.NewScriptedSource(math.Inf(1)), testutil.NewScriptedSource(1))
	c := NewCustomer(0, 0, 0)
	c.Start(PhaseX2, 0)
	e.slot = &ServiceSlot{Customer: c, Origin: 2}
	require.NoError(t, e.scheduler.Schedule(EndOfService1, 1))

	_, err := e.Step()

	assert.True(t, errors.Is(err, ErrInvalidTransition), "got %v", err)
}

func TestEngine_EndOfService2_WithIdleServer_InvalidTransition(t *testing.T) {
	e := newScriptedEngine(t, SchedulerHeap, testutil.NewScriptedSource(math.Inf(1)), testutil.NewScriptedSource(1))
	require.NoError(t, e.scheduler.Schedule(EndOfService2, 1))

	_, err := e.Step()

	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestEngine_Preempt_WithoutPendingCompletion_EventNotFound(t *testing.T) {
	// GIVEN a stage-2 customer in the slot whose completion was never scheduled
	e := newScriptedEngine(t, SchedulerLinear, testutil.NewScriptedSource(math.Inf(1)), testutil.NewScriptedSource(1))
	c2 := NewCustomer(0, 0, 0)
	c2.Start(PhaseX2, 0)
	e.slot = &ServiceSlot{Customer: c2, Origin: 2}
	c1 := NewCustomer(1, 0, 0)
	c1.Start(PhaseW1, 0)
	e.queue1.Enqueue(c1)

	// WHEN the assignment rule runs
	err := e.assignService()

	// THEN the failed cancellation is reported, not swallowed
	assert.ErrorIs(t, err, ErrEventNotFound)
}

func TestEngine_StartService_WhileOccupied_DoubleOccupancy(t *testing.T) {
	e := newScriptedEngine(t, SchedulerLinear, testutil.NewScriptedSource(math.Inf(1)), testutil.NewScriptedSource(1))
	e.slot = &ServiceSlot{Customer: NewCustomer(0, 0, 0), Origin: 1}
	c := NewCustomer(1, 0, 0)
	c.Start(PhaseW1, 0)

	assert.ErrorIs(t, e.startService(c, 1), ErrDoubleOccupancy)
}

func TestEngine_Validate_SameCustomerTwice_DoubleOccupancy(t *testing.T) {
	e := newScriptedEngine(t, SchedulerLinear, testutil.NewScriptedSource(math.Inf(1)), testutil.NewScriptedSource(1))
	c := NewCustomer(0, 0, 0)
	e.queue1.Enqueue(c)
	e.queue2.Enqueue(c)

	assert.ErrorIs(t, e.Validate(), ErrDoubleOccupancy)
}

func TestEngine_Validate_IdleServerWithQueue_Invalid(t *testing.T) {
	e := newScriptedEngine(t, SchedulerLinear, testutil.NewScriptedSource(math.Inf(1)), testutil.NewScriptedSource(1))
	e.queue2.Enqueue(NewCustomer(0, 0, 0))

	assert.ErrorIs(t, e.Validate(), ErrInvalidTransition)
}

// === Properties over random trajectories ===

// TestEngine_Step_PreservesInvariants checks after every event that no
// customer is in two places, stage 1 has priority, the population changes
// by +1 on arrival, −1 on stage-2 departure and 0 otherwise, and customers
// leave in arrival order.
func TestEngine_Step_PreservesInvariants(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		seed := rapid.Int64().Draw(t, "seed")
		lambda := rapid.Float64Range(0.05, 0.48).Draw(t, "lambda")
		kind := rapid.SampledFrom(allSchedulerKinds).Draw(t, "scheduler")
		steps := rapid.IntRange(1, 2000).Draw(t, "steps")

		e := newSeededEngine(t, lambda, kind, seed)
		lastDeparted := int64(-1)
		for i := 0; i < steps; i++ {
			before := e.Population()
			leaving, _ := e.InService()

			ev, err := e.Step()
			require.NoError(t, err)
			require.NoError(t, e.Validate(), "after %s at t=%v", ev, e.Clock)

			switch ev {
			case Arrival:
				require.Equal(t, before+1, e.Population())
			case EndOfService1:
				require.Equal(t, before, e.Population())
			case EndOfService2:
				require.Equal(t, before-1, e.Population())
				require.NotNil(t, leaving)
				require.Greater(t, leaving.ID, lastDeparted, "departures out of arrival order")
				lastDeparted = leaving.ID
			}
		}
	})
}

func TestEngine_SimulateRound_ReportsExactlyBatchSize(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		seed := rapid.Int64().Draw(t, "seed")
		lambda := rapid.Float64Range(0.05, 0.45).Draw(t, "lambda")
		rounds := rapid.IntRange(1, 6).Draw(t, "rounds")

		e := newSeededEngine(t, lambda, SchedulerHeap, seed)
		prevEnd := 0.0
		for k := 1; k <= rounds; k++ {
			n := rapid.IntRange(1, 60).Draw(t, "batch")
			r, err := e.SimulateRound(n)
			require.NoError(t, err)

			require.Equal(t, k, r.Epoch)
			require.Equal(t, n, r.Departures)
			for _, m := range DiscreteMetrics {
				require.Equal(t, n, r.Samples[m].Len(), "metric %s", m)
			}
			require.GreaterOrEqual(t, r.StartClock, prevEnd)
			require.Greater(t, r.EndClock, r.StartClock)
			prevEnd = r.EndClock
		}
	})
}

func TestEngine_SameSeed_IdenticalRounds(t *testing.T) {
	// GIVEN two engines with the same seed, one per scheduler implementation
	a := newSeededEngine(t, 0.35, SchedulerLinear, 2024)
	b := newSeededEngine(t, 0.35, SchedulerHeap, 2024)

	for k := 0; k < 3; k++ {
		// WHEN the same rounds are simulated
		ra, err := a.SimulateRound(500)
		require.NoError(t, err)
		rb, err := b.SimulateRound(500)
		require.NoError(t, err)

		// THEN every point estimate is bit-for-bit identical
		pa, err := ra.PointEstimates()
		require.NoError(t, err)
		pb, err := rb.PointEstimates()
		require.NoError(t, err)
		assert.Equal(t, pa, pb)
		assert.Equal(t, ra.EndClock, rb.EndClock)
	}
}

func TestEngine_Trace_RecordsRoundsAndPreemptions(t *testing.T) {
	// GIVEN the preemption scenario with a preemption-level trace
	st := trace.NewSimulationTrace(trace.TraceConfig{Level: trace.TraceLevelPreemptions})
	e, err := NewEngine(EngineConfig{
		ArrivalRate:  1,
		ServiceRate1: 1,
		ServiceRate2: 1,
		Arrivals:     testutil.NewScriptedSource(math.Inf(1), 1.0, 1.5),
		Service:      testutil.NewScriptedSource(1, 1.0, 2.0, 0.5, 1.0, 0.25),
		Trace:        st,
		Attempt:      3,
	})
	require.NoError(t, err)

	// WHEN the round runs
	_, err = e.SimulateRound(2)
	require.NoError(t, err)

	// THEN one round and one preemption are recorded
	require.Len(t, st.Rounds, 1)
	assert.Equal(t, 3, st.Rounds[0].Attempt)
	assert.Equal(t, 2, st.Rounds[0].Departures)
	assert.Equal(t, 1, st.Rounds[0].Preemptions)
	require.Len(t, st.Preemptions, 1)
	assert.Equal(t, int64(0), st.Preemptions[0].CustomerID)
	assert.InDelta(t, 2.5, st.Preemptions[0].Clock, 1e-12)
	assert.Equal(t, 1, st.Preemptions[0].Queue2Len)
}

func TestEngine_LongRun_ServerUtilization(t *testing.T) {
	if testing.Short() {
		t.Skip("long-running statistical check")
	}
	// GIVEN λ=0.3 with unit service at both stages, ρ = 0.6
	e := newSeededEngine(t, 0.3, SchedulerHeap, 99)
	_, err := e.SimulateRound(5000) // warm-up
	require.NoError(t, err)

	// WHEN a long round is simulated
	r, err := e.SimulateRound(100_000)
	require.NoError(t, err)

	// THEN the busy fraction and stage-1 metrics are near their exact values
	assert.InDelta(t, 0.6, occupancyMean(t, r, MetricU), 0.02)
	assert.InDelta(t, 0.3/0.7, sampleMean(t, r, MetricW1), 0.03)       // M/M/1 E[W]
	assert.InDelta(t, 0.3/0.7, occupancyMean(t, r, MetricN1), 0.03)    // M/M/1 E[N]
	assert.InDelta(t, 0.09/0.7, occupancyMean(t, r, MetricNq1), 0.02) // M/M/1 E[Nq]
	testutil.AssertFloat64Equal(t, "E[T1]", 1/0.7, sampleMean(t, r, MetricT1), 0.05)
}

func BenchmarkEngine_SimulateRound(b *testing.B) {
	for _, kind := range allSchedulerKinds {
		b.Run(string(kind), func(b *testing.B) {
			e := newSeededEngine(b, 0.4, kind, 1)
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				if _, err := e.SimulateRound(1000); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}
