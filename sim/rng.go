package sim

import (
	"hash/fnv"
	"math"
	"math/rand"
)

// === SimulationKey ===

// SimulationKey uniquely identifies a reproducible simulation run.
// Two runs with the same SimulationKey and identical configuration
// MUST produce bit-for-bit identical reports.
type SimulationKey int64

// NewSimulationKey creates a SimulationKey from a seed value.
func NewSimulationKey(seed int64) SimulationKey {
	return SimulationKey(seed)
}

// === Subsystem Constants ===

const (
	// SubsystemArrival drives inter-arrival times.
	// Uses the master seed directly.
	SubsystemArrival = "arrival"

	// SubsystemService drives service times at both stages.
	SubsystemService = "service"
)

// === PartitionedRNG ===

// PartitionedRNG provides deterministic, isolated RNG instances per subsystem.
//
// Derivation formula:
//   - For SubsystemArrival: uses masterSeed directly
//   - For all other subsystems: masterSeed XOR fnv1a64(subsystemName)
//
// Thread-safety: NOT thread-safe. Must be called from single goroutine.
type PartitionedRNG struct {
	key        SimulationKey
	subsystems map[string]*rand.Rand
}

// NewPartitionedRNG creates a PartitionedRNG from a SimulationKey.
func NewPartitionedRNG(key SimulationKey) *PartitionedRNG {
	return &PartitionedRNG{
		key:        key,
		subsystems: make(map[string]*rand.Rand),
	}
}

// ForSubsystem returns a deterministically-seeded RNG for the named subsystem.
// The same subsystem name always returns the same *rand.Rand instance (cached).
// Never returns nil.
func (p *PartitionedRNG) ForSubsystem(name string) *rand.Rand {
	if rng, ok := p.subsystems[name]; ok {
		return rng
	}

	var derivedSeed int64
	if name == SubsystemArrival {
		derivedSeed = int64(p.key)
	} else {
		derivedSeed = int64(p.key) ^ fnv1a64(name)
	}

	rng := rand.New(rand.NewSource(derivedSeed))
	p.subsystems[name] = rng
	return rng
}

// Key returns the SimulationKey used to create this PartitionedRNG.
func (p *PartitionedRNG) Key() SimulationKey {
	return p.key
}

// fnv1a64 computes a 64-bit FNV-1a hash of the input string.
func fnv1a64(s string) int64 {
	h := fnv.New64a()
	h.Write([]byte(s))
	return int64(h.Sum64())
}

// === VariateSource ===

// VariateSource supplies independent exponential random variates.
type VariateSource interface {
	// Exponential returns a draw with the given rate (mean 1/rate).
	// A zero rate yields +Inf: the event never happens.
	Exponential(rate float64) float64
}

// ExponentialSource adapts a *rand.Rand to VariateSource.
type ExponentialSource struct {
	rng *rand.Rand
}

// NewExponentialSource wraps rng. Panics if rng is nil.
func NewExponentialSource(rng *rand.Rand) *ExponentialSource {
	if rng == nil {
		panic("NewExponentialSource: rng must not be nil")
	}
	return &ExponentialSource{rng: rng}
}

func (s *ExponentialSource) Exponential(rate float64) float64 {
	if rate <= 0 {
		return math.Inf(1)
	}
	return s.rng.ExpFloat64() / rate
}
