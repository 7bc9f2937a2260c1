package cmd

import (
	"fmt"
	"io"
	"sort"

	"github.com/fatih/color"

	sim "github.com/tandem-sim/tandem-sim/sim"
	"github.com/tandem-sim/tandem-sim/sim/analytic"
	"github.com/tandem-sim/tandem-sim/sim/trace"
)

var (
	headerStyle = color.New(color.Bold)
	okStyle     = color.New(color.FgGreen)
	missStyle   = color.New(color.FgRed)
	warnStyle   = color.New(color.FgYellow, color.Bold)
)

// printReport writes the estimates table. Relative half widths within the
// target are green, the others red. reference, when non-nil, adds an exact
// value column for the labels it contains.
func printReport(w io.Writer, rep *sim.Report, reference map[string]float64) {
	_, _ = headerStyle.Fprintln(w, "=== Simulation Results ===")
	_, _ = fmt.Fprintf(w, "Arrival Rate (λ)     : %.4f\n", rep.Lambda)
	_, _ = fmt.Fprintf(w, "Utilisation (ρ)      : %.4f\n", rep.Utilization)
	_, _ = fmt.Fprintf(w, "Batch Size (N)       : %d\n", rep.BatchSize)
	_, _ = fmt.Fprintf(w, "Rounds (K)           : %d\n", rep.Rounds)
	_, _ = fmt.Fprintf(w, "Attempts             : %d\n", rep.Attempts)
	_, _ = fmt.Fprintf(w, "Confidence           : %.1f%%\n", rep.Confidence*100)
	if rep.Converged {
		_, _ = fmt.Fprintf(w, "Precision            : %s\n",
			okStyle.Sprintf("%.4f ≤ %.4f", rep.MaxRelativeHalfWidth, rep.Target))
	} else {
		_, _ = fmt.Fprintf(w, "Precision            : %s\n",
			warnStyle.Sprintf("NOT REACHED (%s at %.4f > %.4f)", rep.WorstEstimate, rep.MaxRelativeHalfWidth, rep.Target))
	}
	_, _ = fmt.Fprintln(w)

	_, _ = headerStyle.Fprintf(w, "%-8s %12s %12s %12s %9s", "estimate", "mean", "low", "high", "rel.hw")
	if reference != nil {
		_, _ = headerStyle.Fprintf(w, " %12s", "exact")
	}
	_, _ = fmt.Fprintln(w)

	for _, est := range rep.Estimates {
		style := okStyle
		if !(est.RelativeHalfWidth <= rep.Target) {
			style = missStyle
		}
		_, _ = fmt.Fprintf(w, "%-8s %12.6f %12.6f %12.6f %s",
			est.Name, est.Mean, est.Interval.Low, est.Interval.High, style.Sprintf("%9.4f", est.RelativeHalfWidth))
		if reference != nil {
			if v, ok := reference[est.Name]; ok {
				mark := " "
				if !est.Interval.Contains(v) {
					mark = missStyle.Sprint("*")
				}
				_, _ = fmt.Fprintf(w, " %12.6f%s", v, mark)
			}
		}
		_, _ = fmt.Fprintln(w)
	}
}

// printTheory writes the closed-form stage-1 values.
func printTheory(w io.Writer, q analytic.MM1, utilization float64) {
	_, _ = headerStyle.Fprintln(w, "=== Stage 1 (M/M/1) ===")
	_, _ = fmt.Fprintf(w, "Arrival Rate (λ)     : %.4f\n", q.ArrivalRate)
	_, _ = fmt.Fprintf(w, "Service Rate (μ1)    : %.4f\n", q.ServiceRate)
	_, _ = fmt.Fprintf(w, "Stage-1 Load (ρ1)    : %.4f\n", q.Utilization())
	_, _ = fmt.Fprintf(w, "Server Busy (E[U])   : %.4f\n", utilization)

	values := q.Stage1()
	names := make([]string, 0, len(values))
	for name := range values {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		_, _ = fmt.Fprintf(w, "%-8s %12.6f\n", name, values[name])
	}
}

// printTraceSummary writes the aggregated round trace. Prints nothing for
// an empty trace.
func printTraceSummary(w io.Writer, s *trace.TraceSummary) {
	if s == nil || s.TotalRounds == 0 {
		return
	}
	_, _ = headerStyle.Fprintln(w, "=== Round Trace ===")
	_, _ = fmt.Fprintf(w, "Rounds               : %d\n", s.TotalRounds)
	_, _ = fmt.Fprintf(w, "Arrivals             : %d\n", s.TotalArrivals)
	_, _ = fmt.Fprintf(w, "Departures           : %d (%d stale)\n", s.TotalDepartures, s.TotalStaleDepartures)
	_, _ = fmt.Fprintf(w, "Preemptions          : %d\n", s.TotalPreemptions)
	_, _ = fmt.Fprintf(w, "Round Span           : mean %.2f, max %.2f\n", s.MeanRoundSpan, s.MaxRoundSpan)
	_, _ = fmt.Fprintf(w, "Attempts             : %d (final batch size %d)\n", s.Attempts, s.FinalBatchSize)

	sizes := make([]int, 0, len(s.RoundsPerBatchSize))
	for n := range s.RoundsPerBatchSize {
		sizes = append(sizes, n)
	}
	sort.Ints(sizes)
	for _, n := range sizes {
		_, _ = fmt.Fprintf(w, "  batch %-8d : %d rounds\n", n, s.RoundsPerBatchSize[n])
	}
}
