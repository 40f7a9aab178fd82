// Package model selects and drives a NetworkModel for one of the five
// logical networks of spec §4.6, per the network/{user_model_1,...} config
// keys of spec §6.1.
package model

import (
	"github.com/sarchlab/meshsim/internal/common"
	"github.com/sarchlab/meshsim/internal/memhier/queuemodel"
	"github.com/sarchlab/meshsim/internal/network/netmsg"
	"github.com/sarchlab/meshsim/internal/network/router"
	"github.com/sarchlab/meshsim/internal/network/topology"
	"github.com/sarchlab/meshsim/internal/simerr"
)

// Kind selects the NetworkModel implementation, one per spec §6.1's
// network/<logical-network> value.
type Kind int

const (
	Magic Kind = iota
	EMeshHopCounter
	FiniteBufferEMesh
	FiniteBufferAtac
	FiniteBufferClos
	FiniteBufferFlipAtac
)

// Outcome is the result of sending one packet through a NetworkModel.
type Outcome struct {
	DeliverAt  common.Time
	Contention common.Time
	Hops       int
}

// Model is the common interface every NetworkModel variant satisfies.
type Model interface {
	Send(p *netmsg.Packet, now common.Time) Outcome
}

// Magic delivers every packet instantly: no contention, no topology (spec
// §6.1's network/*_model = magic, used for functional-only runs).
type Magic struct{}

func (Magic) Send(p *netmsg.Packet, now common.Time) Outcome {
	return Outcome{DeliverAt: now, Hops: 0}
}

// EMeshHopCounter charges hopCount*perHopDelay plus serialization latency
// but never models buffering or contention — a cheap stand-in for the
// finite-buffer e-mesh, matching the original's "hop counter" accuracy
// tier.
type EMeshHopCounter struct {
	Mesh          topology.EMesh
	PerHopDelay   common.Time
	FlitWidthBits uint32
}

func (m EMeshHopCounter) Send(p *netmsg.Packet, now common.Time) Outcome {
	hops := hopDistance(m.Mesh, p.Sender, p.Receiver)
	ser := netmsg.SerializationLatency(p.Length, m.FlitWidthBits)
	return Outcome{DeliverAt: now + common.Time(hops)*m.PerHopDelay + ser, Hops: hops}
}

func hopDistance(mesh topology.EMesh, src, dst common.CoreId) int {
	sx, sy := int(src)%mesh.Width, int(src)/mesh.Width
	dx, dy := int(dst)%mesh.Width, int(dst)/mesh.Width
	d := sx - dx
	if d < 0 {
		d = -d
	}
	d2 := sy - dy
	if d2 < 0 {
		d2 = -d2
	}
	return d + d2
}

// FiniteBuffer estimates delivery time for the finite-buffer family
// (spec §4.5): sender contention through a QueueModelSimple sized by
// serialization latency (spec §4.5.1 step 3), plus hopCount*
// dataPipelineDelay for the router pipeline each flit crosses. This is a
// closed-form analytical estimate, not a per-cycle simulation: it never
// calls into router.Router/topology's buffer/flow-control machinery, so
// it reports neither real credit/on-off occupancy nor switch-allocation
// contention beyond what QueueModelSimple approximates. Core does not
// wire router.Router in; that package is exercised only by its own unit
// tests today. This Send path is the model-level entry point spec §4.6's
// netSend calls into.
type FiniteBuffer struct {
	HopCount      func(src, dst common.CoreId) int
	FlitWidthBits uint32
	DataPipelineDelay common.Time
	Flow          router.FlowControl

	contention *queuemodel.Simple
}

// NewFiniteBuffer builds a FiniteBuffer model.
func NewFiniteBuffer(hopCount func(src, dst common.CoreId) int, flitWidthBits uint32, dataPipelineDelay common.Time, flow router.FlowControl) *FiniteBuffer {
	return &FiniteBuffer{HopCount: hopCount, FlitWidthBits: flitWidthBits, DataPipelineDelay: dataPipelineDelay, Flow: flow, contention: queuemodel.NewSimple()}
}

func (m *FiniteBuffer) Send(p *netmsg.Packet, now common.Time) Outcome {
	ser := netmsg.SerializationLatency(p.Length, m.FlitWidthBits)
	contention := m.contention.ComputeQueueDelay(now, ser)
	hops := m.HopCount(p.Sender, p.Receiver)

	pipelineCycles := common.Time(hops) * m.DataPipelineDelay
	if m.Flow == router.StoreAndForward && ser > 0 {
		pipelineCycles += ser - 1
	}

	return Outcome{DeliverAt: now + contention + ser + pipelineCycles, Contention: contention, Hops: hops}
}

// New builds the Model named by kind, given the already-constructed
// topology-specific hop function (topology packages compute this).
func New(kind Kind, hopCount func(src, dst common.CoreId) int, mesh topology.EMesh, flitWidthBits uint32, perHopOrPipelineDelay common.Time, flow router.FlowControl) Model {
	switch kind {
	case Magic:
		return Magic{}
	case EMeshHopCounter:
		return EMeshHopCounter{Mesh: mesh, PerHopDelay: perHopOrPipelineDelay, FlitWidthBits: flitWidthBits}
	case FiniteBufferEMesh, FiniteBufferAtac, FiniteBufferClos, FiniteBufferFlipAtac:
		return NewFiniteBuffer(hopCount, flitWidthBits, perHopOrPipelineDelay, flow)
	default:
		simerr.ConfigErrorf("unknown network model kind %d", kind)
		return nil
	}
}
