package core

import (
	"github.com/sarchlab/akita/v4/sim"

	"github.com/sarchlab/meshsim/internal/clockskew"
	"github.com/sarchlab/meshsim/internal/common"
	"github.com/sarchlab/meshsim/internal/eventq"
	"github.com/sarchlab/meshsim/internal/memhier/cache"
	"github.com/sarchlab/meshsim/internal/memhier/directory"
	"github.com/sarchlab/meshsim/internal/memhier/dramcntlr"
	"github.com/sarchlab/meshsim/internal/memhier/l1cache"
	"github.com/sarchlab/meshsim/internal/memhier/l2cache"
	"github.com/sarchlab/meshsim/internal/memhier/manager"
	"github.com/sarchlab/meshsim/internal/network"
	"github.com/sarchlab/meshsim/internal/network/model"
	"github.com/sarchlab/meshsim/internal/perfclock"
)

// Builder constructs one Core, mirroring config.DeviceBuilder's fluent
// WithX style.
type Builder struct {
	engine sim.Engine
	freq   sim.Freq

	blockSize uint32
	l1ICfg    cache.Config
	l1DCfg    cache.Config
	l2Cfg     cache.Config
	dirCfg    directory.Config
	dramPerf  *dramcntlr.PerfModel

	home      directory.AddressHomeLookup
	events    *eventq.Dispatcher
	skew      clockskew.Client
	nets      map[network.Logical]model.Model
	flitWidth uint32
}

// WithEngine sets the akita engine driving every core's TickingComponent.
func (b Builder) WithEngine(engine sim.Engine) Builder { b.engine = engine; return b }

// WithFreq sets the frequency cores tick at.
func (b Builder) WithFreq(freq sim.Freq) Builder { b.freq = freq; return b }

// WithBlockSize sets the cache block size shared by L1/L2/DRAM.
func (b Builder) WithBlockSize(size uint32) Builder { b.blockSize = size; return b }

// WithL1Config sets the L1-I and L1-D cache configs.
func (b Builder) WithL1Config(i, d cache.Config) Builder { b.l1ICfg, b.l1DCfg = i, d; return b }

// WithL2Config sets the L2 cache config.
func (b Builder) WithL2Config(cfg cache.Config) Builder { b.l2Cfg = cfg; return b }

// WithDirectoryConfig sets the directory controller config.
func (b Builder) WithDirectoryConfig(cfg directory.Config) Builder { b.dirCfg = cfg; return b }

// WithDRAMPerfModel sets the (shared, cross-core) DRAM perf model.
func (b Builder) WithDRAMPerfModel(p *dramcntlr.PerfModel) Builder { b.dramPerf = p; return b }

// WithHomeLookup sets the directory home-lookup function shared by every
// core in the system.
func (b Builder) WithHomeLookup(h directory.AddressHomeLookup) Builder { b.home = h; return b }

// WithEventDispatcher sets the (system-wide) event dispatcher.
func (b Builder) WithEventDispatcher(d *eventq.Dispatcher) Builder { b.events = d; return b }

// WithClockSkewClient sets the clock-skew minimization scheme.
func (b Builder) WithClockSkewClient(c clockskew.Client) Builder { b.skew = c; return b }

// WithNetworks sets the five logical-network models this core sends on.
func (b Builder) WithNetworks(nets map[network.Logical]model.Model, flitWidth uint32) Builder {
	b.nets = nets
	b.flitWidth = flitWidth
	return b
}

// Build constructs a Core named name, owned by id, with its MemPort and
// NetPort plugged into nothing yet — SystemBuilder wires those afterward.
func (b Builder) Build(name string, id common.CoreId) *Core {
	c := &Core{}
	c.TickingComponent = sim.NewTickingComponent(name, b.engine, b.freq, c)
	c.ID = id
	c.MemPort = sim.NewLimitNumMsgPort(c, 16, name+".MemPort")
	c.NetPort = sim.NewLimitNumMsgPort(c, 16, name+".NetPort")
	c.AddPort("Mem", c.MemPort)
	c.AddPort("Net", c.NetPort)

	l2cacheCtrl := l2cache.New(id, b.l2Cfg, b.home)
	l1 := l1cache.New(id, l2cacheCtrl, b.l1ICfg, b.l1DCfg)
	dir := directory.New(id, b.dirCfg)
	dram := dramcntlr.New(id, b.blockSize, b.dramPerf)
	perf := perfclock.New()
	mgr := manager.New(id, l1, l2cacheCtrl, dir, dram, perf, b.blockSize)
	net := network.New(id, b.nets, b.flitWidth)

	c.Manager = mgr
	c.Dir = dir
	c.Dram = dram
	c.Perf = perf
	c.Events = b.events
	c.Skew = b.skew
	c.Net = net
	c.Home = b.home
	c.memRemotes = make(map[common.CoreId]sim.RemotePort)
	c.netRemotes = make(map[common.CoreId]sim.RemotePort)

	return c
}
