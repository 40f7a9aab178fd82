package core

import (
	"fmt"

	"github.com/sarchlab/akita/v4/sim"
	"github.com/sarchlab/akita/v4/sim/directconnection"

	"github.com/sarchlab/meshsim/internal/common"
)

// System is a complete meshsim instance: every core, each holding the
// event dispatcher its Builder was given.
type System struct {
	Cores []*Core
}

// Core looks up a core by id.
func (s *System) Core(id common.CoreId) *Core {
	for _, c := range s.Cores {
		if c.ID == id {
			return c
		}
	}
	return nil
}

// SystemBuilder wires numCores Cores built from coreBuilder together over
// one shared-bus directconnection per network, mirroring how
// config.DeviceBuilder.createSharedMemory plugs every tile into a single
// directconnection.Comp rather than a point-to-point link per pair.
type SystemBuilder struct {
	engine sim.Engine
	freq   sim.Freq

	coreBuilder Builder
}

// WithEngine sets the engine used for both the cores and their
// directconnections.
func (b SystemBuilder) WithEngine(engine sim.Engine) SystemBuilder {
	b.engine = engine
	return b
}

// WithFreq sets the frequency used for both the cores and their
// directconnections.
func (b SystemBuilder) WithFreq(freq sim.Freq) SystemBuilder {
	b.freq = freq
	return b
}

// WithCoreBuilder sets the per-core Builder template (engine/freq are
// overwritten by the SystemBuilder's own).
func (b SystemBuilder) WithCoreBuilder(cb Builder) SystemBuilder {
	b.coreBuilder = cb
	return b
}

// Build constructs numCores cores named "<name>.Core[i]" and plugs every
// MemPort and NetPort into one shared directconnection each.
func (b SystemBuilder) Build(name string, numCores int) *System {
	cb := b.coreBuilder.WithEngine(b.engine).WithFreq(b.freq)

	sys := &System{Cores: make([]*Core, numCores)}
	for i := 0; i < numCores; i++ {
		coreName := fmt.Sprintf("%s.Core[%d]", name, i)
		sys.Cores[i] = cb.Build(coreName, common.CoreId(i))
	}

	memConn := directconnection.MakeBuilder().
		WithEngine(b.engine).
		WithFreq(b.freq).
		Build(name + ".MemNet")
	netConn := directconnection.MakeBuilder().
		WithEngine(b.engine).
		WithFreq(b.freq).
		Build(name + ".PacketNet")

	for _, c := range sys.Cores {
		memConn.PlugIn(c.MemPort)
		netConn.PlugIn(c.NetPort)
	}

	for _, c := range sys.Cores {
		for _, peer := range sys.Cores {
			if peer.ID == c.ID {
				continue
			}
			c.SetMemRemote(peer.ID, peer.MemPort.AsRemote())
			c.SetNetRemote(peer.ID, peer.NetPort.AsRemote())
		}
	}

	return sys
}
