// Package trace provides round-level recording of a tandem simulation.
// This package has no dependencies on sim/ and stores pure data types.
package trace

// RoundRecord captures the outcome of one simulated round.
type RoundRecord struct {
	Attempt         int // precision attempt the round belongs to
	Epoch           int
	BatchSize       int
	StartClock      float64
	EndClock        float64
	Arrivals        int
	Departures      int // same-epoch stage-2 departures
	StaleDepartures int // departures of customers from earlier epochs
	Preemptions     int
}

// Span returns the logical time covered by the round.
func (r RoundRecord) Span() float64 {
	return r.EndClock - r.StartClock
}

// PreemptionRecord captures a stage-2 service interrupted by a stage-1 arrival.
type PreemptionRecord struct {
	Epoch      int
	Clock      float64
	CustomerID int64 // the stage-2 customer sent back to the head of queue2
	Queue1Len  int   // queue1 length after the stage-1 customer took the server
	Queue2Len  int   // queue2 length after the preempted customer re-entered
}

// AttemptRecord captures one pass of the precision-seeking loop.
type AttemptRecord struct {
	Attempt              int
	BatchSize            int
	Rounds               int
	MaxRelativeHalfWidth float64
	WorstEstimate        string // estimate with the widest relative interval
	Converged            bool
}
