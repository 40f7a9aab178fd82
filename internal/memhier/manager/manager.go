// Package manager implements MemoryManager's accessMemory fragmentation
// (spec §4.4.1): split a byte-range access into block-aligned chunks, drive
// each through the L1 controller, and resume any that miss once the
// directory/DRAM round trip completes.
package manager

import (
	"github.com/sarchlab/meshsim/internal/common"
	"github.com/sarchlab/meshsim/internal/memhier/directory"
	"github.com/sarchlab/meshsim/internal/memhier/dramcntlr"
	"github.com/sarchlab/meshsim/internal/memhier/l1cache"
	"github.com/sarchlab/meshsim/internal/memhier/l2cache"
	"github.com/sarchlab/meshsim/internal/memhier/msg"
	"github.com/sarchlab/meshsim/internal/perfclock"
	"github.com/sarchlab/meshsim/internal/simerr"
)

// Action is an outbound ShmemMsg the caller must deliver over the memory
// network to Dest.
type Action struct {
	Dest common.CoreId
	Msg  *msg.ShmemMsg
}

// Status is a MemoryAccessStatus (spec §4.4.1): the in-flight bookkeeping
// for one accessMemory call.
type Status struct {
	ID             uint64
	Op             common.OpType
	Addr           common.Address
	Size           uint32
	StartTime      common.Time
	CurrTime       common.Time
	BytesRemaining uint32
	cursor         common.Address
	Lock           common.LockSignal
	Modeled        bool
	Done           bool
}

// Result is returned by AccessMemory and Resume: either the access
// completed (Done, with the final CurrTime to stamp EventCompleteMemoryAccess
// on), or it is parked awaiting a directory/DRAM round trip (Actions holds
// what must be sent out).
type Result struct {
	Status  *Status
	Actions []Action
	Done    bool
}

// Manager is one core's memory-hierarchy façade, owning its L1/L2/
// directory/DRAM controllers and the per-block queue of parked accesses.
type Manager struct {
	core common.CoreId

	l1   *l1cache.Controller
	l2   *l2cache.Controller
	dir  *directory.Controller
	dram *dramcntlr.Controller
	perf *perfclock.Model

	blockSize uint32
	nextID    uint64
	locked    bool

	waiting map[common.Address][]*Status
}

// New builds a Manager.
func New(core common.CoreId, l1 *l1cache.Controller, l2 *l2cache.Controller, dir *directory.Controller, dram *dramcntlr.Controller, perf *perfclock.Model, blockSize uint32) *Manager {
	return &Manager{
		core:      core,
		l1:        l1,
		l2:        l2,
		dir:       dir,
		dram:      dram,
		perf:      perf,
		blockSize: blockSize,
		waiting:   make(map[common.Address][]*Status),
	}
}

// AccessMemory begins a new access (spec §4.4.1). lock is forwarded for
// bookkeeping; LOCK holds the core's global lock until a matching UNLOCK.
func (m *Manager) AccessMemory(op common.OpType, addr common.Address, size uint32, lock common.LockSignal, modeled bool, now common.Time) Result {
	if lock == common.Lock {
		m.locked = true
	}

	m.nextID++
	st := &Status{
		ID:             m.nextID,
		Op:             op,
		Addr:           addr,
		Size:           size,
		StartTime:      now,
		CurrTime:       now,
		BytesRemaining: size,
		cursor:         addr,
		Lock:           lock,
		Modeled:        modeled,
	}

	res := m.drive(st)

	if lock == common.Unlock {
		m.locked = false
	}
	return res
}

// drive advances st's chunk loop until it either completes or parks on a
// miss.
func (m *Manager) drive(st *Status) Result {
	for st.BytesRemaining > 0 {
		offset := common.Offset(st.cursor, m.blockSize)
		chunk := st.BytesRemaining
		if remain := m.blockSize - offset; chunk > remain {
			chunk = remain
		}
		blockAddr := common.BlockAddress(st.cursor, m.blockSize)

		out := m.l1.InitiateAccess(common.L1D, blockAddr, st.Op, m.core, st.CurrTime)
		st.CurrTime += out.Delay

		if out.Hit {
			st.cursor += common.Address(chunk)
			st.BytesRemaining -= chunk
			continue
		}

		m.waiting[blockAddr] = append(m.waiting[blockAddr], st)
		var acts []Action
		if out.ToL2 != nil {
			acts = append(acts, Action{Dest: out.ToL2.Dest, Msg: out.ToL2.Msg})
		}
		return Result{Status: st, Actions: acts}
	}

	m.finish(st)
	return Result{Status: st, Done: true}
}

func (m *Manager) finish(st *Status) {
	st.Done = true
	if st.Modeled {
		m.perf.IncrTotalMemoryAccessLatency(st.CurrTime - st.StartTime)
	}
}

// DataReady is called once the local L2/directory round trip for blockAddr
// completes (spec §4.4.2's signalDataReady). It resumes every parked
// Status on that block, the primary first, each subsequent one skewed by
// one cycle, and returns the per-status continuation result.
func (m *Manager) DataReady(comp common.MemComponent, blockAddr common.Address, state common.CacheBlockState, data []byte) []Result {
	replays := m.l1.SignalDataReady(comp, blockAddr, state, data)
	waiters := m.waiting[blockAddr]
	delete(m.waiting, blockAddr)

	if len(replays) != len(waiters) {
		simerr.ProtocolErrorf("signalDataReady replay count %d does not match %d parked accesses at block %v", len(replays), len(waiters), blockAddr)
	}

	results := make([]Result, 0, len(waiters))
	for i, w := range waiters {
		w.CurrTime += replays[i].Delay
		results = append(results, m.drive(w))
	}
	return results
}

// HandleL2DirectoryMsg forwards an arriving directory-originated message to
// the local L2 controller and, if it completes an MSHR, drains the
// corresponding parked accesses.
func (m *Manager) HandleL2DirectoryMsg(sender common.CoreId, wire *msg.ShmemMsg, now common.Time) ([]Action, []Result) {
	acts, comp := m.l2.HandleDirectoryMsg(sender, wire, now)
	out := make([]Action, 0, len(acts))
	for _, a := range acts {
		out = append(out, Action{Dest: a.Dest, Msg: a.Msg})
	}
	if comp == nil {
		return out, nil
	}
	return out, m.DataReady(comp.L1, comp.Addr, comp.State, comp.Data)
}

// IsLocked reports whether this core's global memory lock (spec §5) is
// held.
func (m *Manager) IsLocked() bool { return m.locked }

// L1Stats reports hit/miss counters for one L1 unit (spec §6.3).
func (m *Manager) L1Stats(comp common.MemComponent) (hits, misses uint64) {
	return m.l1.Stats(comp)
}

// L2Stats reports hit/miss counters for this core's L2 slice (spec §6.3).
func (m *Manager) L2Stats() (hits, misses uint64) {
	return m.l2.Stats()
}
