// Package directory implements the directory entry abstraction (spec
// §3.3) and the directory controller state machine (spec §4.4.4).
//
// Per DESIGN NOTES §9, the source's five virtual directory-entry classes
// are modeled as one Go interface with multiple concrete implementations
// rather than a class hierarchy, matching how the teacher's cgra.Tile /
// cgra.Device interfaces describe hardware shape without inheritance.
package directory

import (
	"github.com/sarchlab/meshsim/internal/common"
	"github.com/sarchlab/meshsim/internal/simerr"
)

// Kind selects the concrete sharer-tracking representation, one per spec
// §3.3 config value `directory_type`.
type Kind int

const (
	FullMap Kind = iota
	LimitedNoBroadcast
	LimitedBroadcast
	Ackwise
	Limitless
)

// Entry is the common interface every directory-entry representation
// satisfies (spec §9's "common interface").
type Entry interface {
	State() common.DirectoryState
	SetState(common.DirectoryState)

	HasSharer(c common.CoreId) bool
	AddSharer(c common.CoreId) bool // false: no room, caller must evict first
	RemoveSharer(c common.CoreId)
	NumSharers() int

	// Sharers reports whether a broadcast is required to reach every
	// sharer (true for variants that silently drop overflow sharers into
	// an "untracked" bucket) and the explicit sharer list known to the
	// directory.
	Sharers() (broadcastNeeded bool, explicit []common.CoreId)

	// GetOneSharer returns an arbitrary tracked sharer, used by the
	// eviction path when a bounded variant is full (spec §8 scenario 3).
	GetOneSharer() (common.CoreId, bool)

	Owner() (common.CoreId, bool)
	SetOwner(common.CoreId)
	ClearOwner()
}

// baseEntry carries the fields every variant shares: spec §3.3's "Every
// entry carries: address, directory state, owner, global_enabled /
// num_untracked_sharers".
type baseEntry struct {
	address common.Address
	state   common.DirectoryState
	owner   common.CoreId
	hasOwner bool

	globalEnabled       bool
	numUntrackedSharers int
}

func (e *baseEntry) State() common.DirectoryState     { return e.state }
func (e *baseEntry) SetState(s common.DirectoryState) { e.state = s }

func (e *baseEntry) Owner() (common.CoreId, bool) { return e.owner, e.hasOwner }
func (e *baseEntry) SetOwner(c common.CoreId) {
	e.owner = c
	e.hasOwner = true
}
func (e *baseEntry) ClearOwner() {
	e.owner = 0
	e.hasOwner = false
}

// --- Full-map ---------------------------------------------------------

// fullMapEntry is a bitset of sharers sized to the core count: it can never
// overflow.
type fullMapEntry struct {
	baseEntry
	sharers map[common.CoreId]bool
}

// NewFullMap builds a full-map directory entry for the given address.
func NewFullMap(addr common.Address) Entry {
	return &fullMapEntry{
		baseEntry: baseEntry{address: addr},
		sharers:   make(map[common.CoreId]bool),
	}
}

func (e *fullMapEntry) HasSharer(c common.CoreId) bool { return e.sharers[c] }
func (e *fullMapEntry) AddSharer(c common.CoreId) bool {
	e.sharers[c] = true
	return true
}
func (e *fullMapEntry) RemoveSharer(c common.CoreId) { delete(e.sharers, c) }
func (e *fullMapEntry) NumSharers() int               { return len(e.sharers) }
func (e *fullMapEntry) Sharers() (bool, []common.CoreId) {
	list := make([]common.CoreId, 0, len(e.sharers))
	for c := range e.sharers {
		list = append(list, c)
	}
	return false, list
}
func (e *fullMapEntry) GetOneSharer() (common.CoreId, bool) {
	for c := range e.sharers {
		return c, true
	}
	return 0, false
}

// --- Bounded pointer-list variants --------------------------------------

// boundedEntry is the shared implementation behind Limited-NoBroadcast,
// Limited-Broadcast, Ackwise and Limitless: a pointer list of size
// maxHwSharers, differing only in overflow policy (spec §3.3).
type boundedEntry struct {
	baseEntry
	kind         Kind
	maxHwSharers int
	sharers      []common.CoreId
}

func newBounded(kind Kind, addr common.Address, maxHwSharers int) *boundedEntry {
	return &boundedEntry{
		baseEntry:    baseEntry{address: addr},
		kind:         kind,
		maxHwSharers: maxHwSharers,
	}
}

// NewLimitedNoBroadcast builds a bounded entry that refuses sharers past
// maxHwSharers: AddSharer returns false and the caller must evict one via
// INV_REQ first. It never broadcasts.
func NewLimitedNoBroadcast(addr common.Address, maxHwSharers int) Entry {
	return newBounded(LimitedNoBroadcast, addr, maxHwSharers)
}

// NewLimitedBroadcast builds a bounded entry that, once an untracked
// sharer exists, reports broadcastNeeded=true so INV_REQ fans out to every
// core rather than only the tracked subset.
func NewLimitedBroadcast(addr common.Address, maxHwSharers int) Entry {
	return newBounded(LimitedBroadcast, addr, maxHwSharers)
}

// NewAckwise builds an Ackwise entry: functionally identical bookkeeping to
// Limited-Broadcast (bounded list + broadcast-on-overflow). The directory
// controller also treats the two alike: on invalidation it waits for acks
// from the tracked sharers only, never from the untracked bucket.
func NewAckwise(addr common.Address, maxHwSharers int) Entry {
	return newBounded(Ackwise, addr, maxHwSharers)
}

// NewLimitless builds a Limitless entry: bounded hardware list with a
// software fallback once it overflows (every further sharer is tracked
// exactly, just "in software" rather than in the bounded array — modeled
// here as simply growing the slice past maxHwSharers, since Go has no
// fixed hardware array to exhaust; global_enabled is never set).
func NewLimitless(addr common.Address, maxHwSharers int) Entry {
	return newBounded(Limitless, addr, maxHwSharers)
}

func (e *boundedEntry) HasSharer(c common.CoreId) bool {
	for _, s := range e.sharers {
		if s == c {
			return true
		}
	}
	return false
}

func (e *boundedEntry) AddSharer(c common.CoreId) bool {
	if e.HasSharer(c) {
		return true
	}
	if len(e.sharers) < e.maxHwSharers {
		e.sharers = append(e.sharers, c)
		return true
	}

	switch e.kind {
	case LimitedBroadcast, Ackwise:
		e.globalEnabled = true
		e.numUntrackedSharers++
		return true
	case Limitless:
		// Software fallback: track it anyway.
		e.sharers = append(e.sharers, c)
		return true
	default: // LimitedNoBroadcast
		return false
	}
}

func (e *boundedEntry) RemoveSharer(c common.CoreId) {
	for i, s := range e.sharers {
		if s == c {
			e.sharers = append(e.sharers[:i], e.sharers[i+1:]...)
			return
		}
	}
	if e.globalEnabled && e.numUntrackedSharers > 0 {
		e.numUntrackedSharers--
		if e.numUntrackedSharers == 0 {
			e.globalEnabled = false
		}
	}
}

func (e *boundedEntry) NumSharers() int {
	return len(e.sharers) + e.numUntrackedSharers
}

func (e *boundedEntry) Sharers() (bool, []common.CoreId) {
	broadcastNeeded := e.globalEnabled && e.kind != Limitless
	list := make([]common.CoreId, len(e.sharers))
	copy(list, e.sharers)
	return broadcastNeeded, list
}

func (e *boundedEntry) GetOneSharer() (common.CoreId, bool) {
	if len(e.sharers) == 0 {
		return 0, false
	}
	return e.sharers[0], true
}

// New builds an Entry of the requested kind for addr, where maxHwSharers is
// ignored by FullMap.
func New(kind Kind, addr common.Address, maxHwSharers int) Entry {
	switch kind {
	case FullMap:
		return NewFullMap(addr)
	case LimitedNoBroadcast:
		return NewLimitedNoBroadcast(addr, maxHwSharers)
	case LimitedBroadcast:
		return NewLimitedBroadcast(addr, maxHwSharers)
	case Ackwise:
		return NewAckwise(addr, maxHwSharers)
	case Limitless:
		return NewLimitless(addr, maxHwSharers)
	default:
		simerr.ConfigErrorf("unknown directory entry kind %d", kind)
		return nil
	}
}
