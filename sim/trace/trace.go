package trace

// TraceLevel controls the verbosity of simulation tracing.
type TraceLevel string

const (
	// TraceLevelNone disables tracing (zero overhead).
	TraceLevelNone TraceLevel = "none"
	// TraceLevelRounds captures round and attempt records.
	TraceLevelRounds TraceLevel = "rounds"
	// TraceLevelPreemptions additionally captures every preemption.
	TraceLevelPreemptions TraceLevel = "preemptions"
)

// validTraceLevels maps accepted trace level strings.
var validTraceLevels = map[TraceLevel]bool{
	TraceLevelNone:        true,
	TraceLevelRounds:      true,
	TraceLevelPreemptions: true,
	"":                    true, // empty defaults to none
}

// IsValidTraceLevel returns true if the given level string is a recognized trace level.
func IsValidTraceLevel(level string) bool {
	return validTraceLevels[TraceLevel(level)]
}

// TraceConfig controls trace collection behavior.
type TraceConfig struct {
	Level TraceLevel
}

// SimulationTrace collects records during a simulation.
// A nil *SimulationTrace is valid and records nothing.
type SimulationTrace struct {
	Config      TraceConfig
	Rounds      []RoundRecord
	Preemptions []PreemptionRecord
	Attempts    []AttemptRecord
}

// NewSimulationTrace creates a SimulationTrace ready for recording.
func NewSimulationTrace(config TraceConfig) *SimulationTrace {
	return &SimulationTrace{
		Config:      config,
		Rounds:      make([]RoundRecord, 0),
		Preemptions: make([]PreemptionRecord, 0),
		Attempts:    make([]AttemptRecord, 0),
	}
}

// Enabled reports whether records at the given level are kept.
func (st *SimulationTrace) Enabled(level TraceLevel) bool {
	if st == nil {
		return false
	}
	switch st.Config.Level {
	case TraceLevelPreemptions:
		return level == TraceLevelRounds || level == TraceLevelPreemptions
	case TraceLevelRounds:
		return level == TraceLevelRounds
	default:
		return false
	}
}

// RecordRound appends a round record.
func (st *SimulationTrace) RecordRound(record RoundRecord) {
	if st.Enabled(TraceLevelRounds) {
		st.Rounds = append(st.Rounds, record)
	}
}

// RecordPreemption appends a preemption record.
func (st *SimulationTrace) RecordPreemption(record PreemptionRecord) {
	if st.Enabled(TraceLevelPreemptions) {
		st.Preemptions = append(st.Preemptions, record)
	}
}

// RecordAttempt appends an attempt record.
func (st *SimulationTrace) RecordAttempt(record AttemptRecord) {
	if st.Enabled(TraceLevelRounds) {
		st.Attempts = append(st.Attempts, record)
	}
}
