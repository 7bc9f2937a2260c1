package sim

import (
	"errors"
	"fmt"

	"github.com/addrummond/heap"
)

var (
	// ErrEventNotFound is returned when cancelling a kind that has no pending event.
	ErrEventNotFound = errors.New("event not found")
	// ErrEventPending is returned when scheduling a kind that is already pending.
	ErrEventPending = errors.New("event already pending")
)

// SchedulerKind selects the EventScheduler implementation.
type SchedulerKind string

const (
	// SchedulerLinear scans a slice for the earliest event.
	SchedulerLinear SchedulerKind = "linear"
	// SchedulerHeap keeps events in a binary min-heap.
	SchedulerHeap SchedulerKind = "heap"
)

// validSchedulerKinds maps accepted scheduler names.
var validSchedulerKinds = map[SchedulerKind]bool{
	SchedulerLinear: true,
	SchedulerHeap:   true,
	"":              true, // empty defaults to linear
}

// IsValidSchedulerKind returns true if the given name is a recognized scheduler.
func IsValidSchedulerKind(name string) bool {
	return validSchedulerKinds[SchedulerKind(name)]
}

// EventScheduler holds the pending future events and hands them out in
// chronological order. It never advances time itself: the caller moves its
// clock to the time of the event returned by Next.
type EventScheduler interface {
	// Schedule inserts an event of the given kind at absolute time at.
	Schedule(kind EventKind, at float64) error
	// Cancel removes the pending event of the given kind.
	Cancel(kind EventKind) error
	// Next removes and returns the earliest pending event.
	// ok is false when nothing is pending.
	Next() (ev Event, ok bool)
	// Pending reports whether an event of the given kind is scheduled.
	Pending(kind EventKind) bool
	// Len returns the number of pending events.
	Len() int
}

// NewEventScheduler returns the scheduler implementation named by kind.
func NewEventScheduler(kind SchedulerKind) EventScheduler {
	switch kind {
	case SchedulerHeap:
		return NewHeapScheduler()
	case SchedulerLinear, "":
		return NewLinearScheduler()
	default:
		panic(fmt.Sprintf("NewEventScheduler: unknown scheduler kind %q", kind))
	}
}

// === LinearScheduler ===

// LinearScheduler keeps pending events in an unordered slice and finds the
// earliest with a linear scan. With at most one event per kind pending the
// scan is over three elements.
type LinearScheduler struct {
	events []Event
}

// NewLinearScheduler creates an empty LinearScheduler.
func NewLinearScheduler() *LinearScheduler {
	return &LinearScheduler{events: make([]Event, 0, int(numEventKinds))}
}

func (s *LinearScheduler) Schedule(kind EventKind, at float64) error {
	if s.Pending(kind) {
		return fmt.Errorf("schedule %s at %v: %w", kind, at, ErrEventPending)
	}
	s.events = append(s.events, Event{Time: at, Kind: kind})
	return nil
}

func (s *LinearScheduler) Cancel(kind EventKind) error {
	for i := range s.events {
		if s.events[i].Kind == kind {
			s.remove(i)
			return nil
		}
	}
	return fmt.Errorf("cancel %s: %w", kind, ErrEventNotFound)
}

func (s *LinearScheduler) Next() (Event, bool) {
	if len(s.events) == 0 {
		return Event{}, false
	}
	best := 0
	for i := 1; i < len(s.events); i++ {
		if s.events[i].Cmp(&s.events[best]) < 0 {
			best = i
		}
	}
	ev := s.events[best]
	s.remove(best)
	return ev, true
}

func (s *LinearScheduler) Pending(kind EventKind) bool {
	for _, ev := range s.events {
		if ev.Kind == kind {
			return true
		}
	}
	return false
}

func (s *LinearScheduler) Len() int {
	return len(s.events)
}

// remove deletes index i by swapping in the last element; order is irrelevant.
func (s *LinearScheduler) remove(i int) {
	last := len(s.events) - 1
	s.events[i] = s.events[last]
	s.events = s.events[:last]
}

// === HeapScheduler ===

// heapEntry is an event tagged with the generation it was scheduled under.
// Cancelled entries stay in the heap and are discarded when they surface.
type heapEntry struct {
	Event
	gen uint64
}

func (a *heapEntry) Cmp(b *heapEntry) int {
	return a.Event.Cmp(&b.Event)
}

// HeapScheduler keeps events in a min-heap ordered by time. Cancellation is
// lazy: the live generation of each kind is tracked and stale entries are
// dropped by Next.
type HeapScheduler struct {
	events  heap.Heap[heapEntry, heap.Min]
	live    map[EventKind]uint64
	nextGen uint64
}

// NewHeapScheduler creates an empty HeapScheduler.
func NewHeapScheduler() *HeapScheduler {
	return &HeapScheduler{live: make(map[EventKind]uint64, int(numEventKinds))}
}

func (s *HeapScheduler) Schedule(kind EventKind, at float64) error {
	if s.Pending(kind) {
		return fmt.Errorf("schedule %s at %v: %w", kind, at, ErrEventPending)
	}
	s.nextGen++
	s.live[kind] = s.nextGen
	heap.PushOrderable(&s.events, heapEntry{Event: Event{Time: at, Kind: kind}, gen: s.nextGen})
	return nil
}

func (s *HeapScheduler) Cancel(kind EventKind) error {
	if !s.Pending(kind) {
		return fmt.Errorf("cancel %s: %w", kind, ErrEventNotFound)
	}
	delete(s.live, kind)
	return nil
}

func (s *HeapScheduler) Next() (Event, bool) {
	for {
		entry, ok := heap.PopOrderable(&s.events)
		if !ok {
			return Event{}, false
		}
		if gen, live := s.live[entry.Kind]; live && gen == entry.gen {
			delete(s.live, entry.Kind)
			return entry.Event, true
		}
	}
}

func (s *HeapScheduler) Pending(kind EventKind) bool {
	_, ok := s.live[kind]
	return ok
}

// Len counts live events only; cancelled entries awaiting disposal are excluded.
func (s *HeapScheduler) Len() int {
	return len(s.live)
}
