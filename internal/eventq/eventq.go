// Package eventq implements the discrete-event dispatch contract of spec
// §4.1: a global dispatcher that, per core, executes ORDERED events in
// nondecreasing time and FIFO order among ties, while UNORDERED events may
// run interleaved with any core's ORDERED stream.
//
// It does not schedule anything with an akita sim.Engine: it holds one
// min-heap of pending ORDERED events per core (ordered by time, FIFO on
// ties) plus one shared heap of UNORDERED events, and the caller (each
// core's Tick) pulls due events out with Drain.
package eventq

import (
	"container/heap"
	"sync"

	"github.com/sarchlab/meshsim/internal/common"
	"github.com/sarchlab/meshsim/internal/simerr"
)

// Kind distinguishes the two processInOrder disciplines of spec §4.1.
type Kind int

const (
	Ordered Kind = iota
	Unordered
)

// Handler processes one event. It may enqueue further events at times >=
// its own, exactly as spec §4.1 allows.
type Handler func(e *Event)

// Event is a scheduled, typed, argument-carrying unit of work. Args is a
// schema-less tagged buffer in spec terms; here it is simply `any` because
// Go's type system makes the schema-less serialization unnecessary within
// one process — cross-core messages are the things that actually cross a
// serialization boundary (see internal/network).
type Event struct {
	Kind EventKind
	Core common.CoreId
	Time common.Time
	Args any

	seq uint64 // insertion order, for FIFO-on-ties
}

// EventKind is a small registry key, exactly as the teacher's Tick
// switches on an opcode token and panics on an unrecognized one.
type EventKind int

// coreHeap is a per-core min-heap ordered by (Time, seq).
type coreHeap []*Event

func (h coreHeap) Len() int { return len(h) }
func (h coreHeap) Less(i, j int) bool {
	if h[i].Time != h[j].Time {
		return h[i].Time < h[j].Time
	}
	return h[i].seq < h[j].seq
}
func (h coreHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *coreHeap) Push(x any)         { *h = append(*h, x.(*Event)) }
func (h *coreHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// Dispatcher drives the ORDERED/UNORDERED contract for one simulation run.
// It does not itself advance simulated time — the caller (normally each
// core's TickingComponent.Tick) calls Drain at its own current time to pop
// and execute everything that is now due.
type Dispatcher struct {
	mu       sync.Mutex
	handlers map[EventKind]Handler
	ordered  map[common.CoreId]*coreHeap
	nextSeq  uint64
}

// NewDispatcher builds an empty Dispatcher.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{
		handlers: make(map[EventKind]Handler),
		ordered:  make(map[common.CoreId]*coreHeap),
	}
}

// RegisterHandler binds a handler to an EventKind. Re-registering a kind
// replaces the previous handler, mirroring the teacher's straightforward
// map-based dispatch (no layered middleware).
func (d *Dispatcher) RegisterHandler(k EventKind, h Handler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers[k] = h
}

// ProcessInOrder schedules ev against core under the given discipline.
func (d *Dispatcher) ProcessInOrder(ev *Event, core common.CoreId, kind Kind) {
	d.mu.Lock()
	ev.Core = core
	ev.seq = d.nextSeq
	d.nextSeq++

	switch kind {
	case Ordered:
		h, ok := d.ordered[core]
		if !ok {
			h = &coreHeap{}
			heap.Init(h)
			d.ordered[core] = h
		}
		heap.Push(h, ev)
	case Unordered:
		// Unordered events bypass per-core FIFO entirely: stash them in
		// their own always-ready heap-of-one-core keyed on Broadcast so
		// Drain(core, now) still finds them when it is their turn, but
		// two UNORDERED events never block each other's ordering.
		h, ok := d.ordered[common.Broadcast]
		if !ok {
			h = &coreHeap{}
			heap.Init(h)
			d.ordered[common.Broadcast] = h
		}
		heap.Push(h, ev)
	default:
		d.mu.Unlock()
		simerr.Fatal(simerr.Protocol, "unknown event-queue discipline %d", kind)
		return
	}
	d.mu.Unlock()
}

// Drain executes every event pending for core (plus all UNORDERED events)
// whose Time is <= now, in the order spec §4.1 requires, and reports how
// many ran.
func (d *Dispatcher) Drain(core common.CoreId, now common.Time) int {
	ran := 0
	for {
		ev := d.popDue(core, now)
		if ev == nil {
			break
		}
		d.dispatch(ev)
		ran++
	}
	return ran
}

// HasPending reports whether core has any event scheduled at all, used by
// the liveness guarantee in spec §4.1 ("if any core has pending events,
// progress occurs").
func (d *Dispatcher) HasPending(core common.CoreId) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if h, ok := d.ordered[core]; ok && h.Len() > 0 {
		return true
	}
	if h, ok := d.ordered[common.Broadcast]; ok && h.Len() > 0 {
		return true
	}
	return false
}

func (d *Dispatcher) popDue(core common.CoreId, now common.Time) *Event {
	d.mu.Lock()
	defer d.mu.Unlock()

	var best *Event
	var bestHeap *coreHeap
	if h, ok := d.ordered[core]; ok && h.Len() > 0 && (*h)[0].Time <= now {
		best = (*h)[0]
		bestHeap = h
	}
	if h, ok := d.ordered[common.Broadcast]; ok && h.Len() > 0 && (*h)[0].Time <= now {
		if best == nil || (*h)[0].Time < best.Time || ((*h)[0].Time == best.Time && (*h)[0].seq < best.seq) {
			best = (*h)[0]
			bestHeap = h
		}
	}
	if best == nil {
		return nil
	}
	heap.Pop(bestHeap)
	return best
}

func (d *Dispatcher) dispatch(ev *Event) {
	d.mu.Lock()
	h, ok := d.handlers[ev.Kind]
	d.mu.Unlock()
	if !ok {
		simerr.Fatal(simerr.Protocol, "no handler registered for event kind %d", ev.Kind)
		return
	}
	h(ev)
}
