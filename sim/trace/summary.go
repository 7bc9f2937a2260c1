package trace

// TraceSummary aggregates statistics from a SimulationTrace.
type TraceSummary struct {
	TotalRounds          int
	TotalArrivals        int
	TotalDepartures      int
	TotalStaleDepartures int
	TotalPreemptions     int
	MeanRoundSpan        float64
	MaxRoundSpan         float64
	Attempts             int
	FinalBatchSize       int
	RoundsPerBatchSize   map[int]int // batch size → number of rounds simulated at it
}

// Summarize computes aggregate statistics from a SimulationTrace.
// Safe for nil or empty traces (returns zero-value fields).
func Summarize(st *SimulationTrace) *TraceSummary {
	summary := &TraceSummary{
		RoundsPerBatchSize: make(map[int]int),
	}
	if st == nil {
		return summary
	}

	summary.TotalRounds = len(st.Rounds)
	totalSpan := 0.0
	for _, r := range st.Rounds {
		summary.TotalArrivals += r.Arrivals
		summary.TotalDepartures += r.Departures
		summary.TotalStaleDepartures += r.StaleDepartures
		summary.TotalPreemptions += r.Preemptions
		summary.RoundsPerBatchSize[r.BatchSize]++
		span := r.Span()
		totalSpan += span
		if span > summary.MaxRoundSpan {
			summary.MaxRoundSpan = span
		}
	}
	if len(st.Rounds) > 0 {
		summary.MeanRoundSpan = totalSpan / float64(len(st.Rounds))
	}

	summary.Attempts = len(st.Attempts)
	if len(st.Attempts) > 0 {
		summary.FinalBatchSize = st.Attempts[len(st.Attempts)-1].BatchSize
	}

	return summary
}
