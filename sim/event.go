package sim

import (
	"cmp"
	"fmt"
)

// EventKind identifies what happens when an event is dispatched.
// No two stages share a kind, so at most one event of each kind is pending.
type EventKind int

const (
	// Arrival is a new customer entering queue1.
	Arrival EventKind = iota
	// EndOfService1 completes the stage-1 service of the customer in the slot.
	EndOfService1
	// EndOfService2 completes the stage-2 service of the customer in the slot.
	// It is the only event that makes a customer leave the system.
	EndOfService2

	numEventKinds
)

var eventKindNames = [numEventKinds]string{
	Arrival:       "arrival",
	EndOfService1: "end-of-service-1",
	EndOfService2: "end-of-service-2",
}

func (k EventKind) String() string {
	if k < 0 || k >= numEventKinds {
		return fmt.Sprintf("EventKind(%d)", int(k))
	}
	return eventKindNames[k]
}

// Event is a pending state transition at an absolute logical time.
type Event struct {
	Time float64
	Kind EventKind
}

// Cmp orders events chronologically. Ties fall back to kind so that the
// order is deterministic, although continuous variates make ties unlikely.
func (e *Event) Cmp(other *Event) int {
	if c := cmp.Compare(e.Time, other.Time); c != 0 {
		return c
	}
	return cmp.Compare(e.Kind, other.Kind)
}

func (e Event) String() string {
	return fmt.Sprintf("%s@%.6f", e.Kind, e.Time)
}
