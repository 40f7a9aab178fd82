// Package router implements the finite-buffer router pipeline of spec
// §4.5.2: input buffering (via akita's sim.Buffer, the same credit-sized
// queue the teacher's core.Port uses), flow control, and switch
// allocation.
package router

import (
	"github.com/sarchlab/akita/v4/sim"

	"github.com/sarchlab/meshsim/internal/network/netmsg"
)

// FlowControl selects how eagerly a HEAD flit may claim its route, per
// spec §4.5.2.
type FlowControl int

const (
	StoreAndForward FlowControl = iota
	VirtualCutThrough
	Wormhole
)

// BufferManagement selects the input-buffer back-pressure discipline, per
// spec §4.5.2.
type BufferManagement int

const (
	Infinite BufferManagement = iota
	Credit
	OnOff
)

// infiniteCapacity stands in for "never back-pressures": large enough that
// no plausible run exhausts it.
const infiniteCapacity = 1 << 24

// Buffer is one router input's flit queue. Capacity accounting is done by
// an akita sim.Buffer, exactly as the teacher's core.Port backs its
// incoming/outgoing queues; order and peekability (sim.Buffer's Pop
// destroys the front item, which a router's route-but-don't-grant-yet
// switch allocation needs to avoid) are kept in a parallel FIFO.
type Buffer struct {
	buf        sim.Buffer
	queue      []*netmsg.Flit
	management BufferManagement
	size       int
	onHigh     int
	onLow      int
	on         bool
}

// NewBuffer builds a router input buffer of size flits (ignored when
// management is Infinite).
func NewBuffer(name string, management BufferManagement, size int) *Buffer {
	cap := size
	if management == Infinite {
		cap = infiniteCapacity
	}
	return &Buffer{
		buf:        sim.NewBuffer(name, cap),
		management: management,
		size:       size,
		onHigh:     size,
		onLow:      size / 2,
		on:         true,
	}
}

// CanPush reports whether one more flit fits.
func (b *Buffer) CanPush() bool { return b.buf.CanPush() }

// HasRoom reports whether n more flits fit, used by store-and-forward/
// virtual-cut-through admission, which require the whole packet to fit
// before the HEAD may route.
func (b *Buffer) HasRoom(n int) bool {
	if b.management == Infinite {
		return true
	}
	return b.buf.Capacity()-b.buf.Size() >= n
}

// Push enqueues f.
func (b *Buffer) Push(f *netmsg.Flit) {
	b.buf.Push(f)
	b.queue = append(b.queue, f)
	b.updateOnOff()
}

// Pop dequeues the oldest flit, or nil if empty.
func (b *Buffer) Pop() *netmsg.Flit {
	item := b.buf.Pop()
	if item == nil {
		return nil
	}
	f := b.queue[0]
	b.queue = b.queue[1:]
	b.updateOnOff()
	return f
}

// Peek returns the oldest flit without dequeuing it, or nil if empty.
func (b *Buffer) Peek() *netmsg.Flit {
	if len(b.queue) == 0 {
		return nil
	}
	return b.queue[0]
}

func (b *Buffer) updateOnOff() {
	if b.management != OnOff {
		return
	}
	sz := b.buf.Size()
	if sz >= b.onHigh {
		b.on = false
	} else if sz <= b.onLow {
		b.on = true
	}
}

// IsOn reports the ON_OFF upstream signal state (always true for the other
// two management schemes).
func (b *Buffer) IsOn() bool {
	if b.management != OnOff {
		return true
	}
	return b.on
}

// Size and Capacity expose the underlying buffer's occupancy.
func (b *Buffer) Size() int     { return b.buf.Size() }
func (b *Buffer) Capacity() int { return b.buf.Capacity() }
