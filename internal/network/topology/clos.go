package topology

import (
	"math/rand"

	"github.com/sarchlab/meshsim/internal/common"
	"github.com/sarchlab/meshsim/internal/simerr"
)

// Clos stages output ports uniformly as index-into-middle/egress; callers
// map these indices onto their own per-stage router id numbering.
const (
	PortIngress = iota // middle-stage router selected for this packet
	PortEgress         // (ingress stage) local port back toward the source
)

// Clos3Stage implements the 3-stage Clos(m×n×r) topology of spec §4.5.3:
// m ports per router, n ingress/egress routers, r middle routers.
// total_cores = num_router_ports(m) × num_in_routers(n) must hold (spec
// §6.1), checked at construction.
type Clos3Stage struct {
	Ports int // m: ports per ingress/egress router
	In    int // n: number of ingress (== egress) routers
	Mid   int // r: number of middle routers

	rng *rand.Rand
}

// NewClos3Stage validates totalCores == ports*inRouters and builds the
// topology.
func NewClos3Stage(totalCores, ports, inRouters, midRouters int, seed int64) *Clos3Stage {
	if totalCores != ports*inRouters {
		simerr.ConfigErrorf("clos: total_cores(%d) != num_router_ports(%d) * num_in_routers(%d)", totalCores, ports, inRouters)
	}
	return &Clos3Stage{Ports: ports, In: inRouters, Mid: midRouters, rng: rand.New(rand.NewSource(seed))}
}

// Cluster returns the ingress/egress router index owning core.
func (c *Clos3Stage) Cluster(core common.CoreId) int { return int(core) / c.Ports }

// RouteFromIngress picks where an ingress router (cluster) forwards a
// packet destined for dest: a uniformly-random middle router of the local
// cluster (spec §4.5.3).
func (c *Clos3Stage) RouteFromIngress(cluster int, dest common.CoreId) int {
	return c.rng.Intn(c.Mid)
}

// RouteFromMiddle returns the fixed egress router for dest: middle
// forwards deterministically to the cluster owning the destination.
func (c *Clos3Stage) RouteFromMiddle(dest common.CoreId) int {
	return c.Cluster(dest)
}

// ControllerHomes chooses which routers host memory controllers: middle
// routers preferentially, falling back to ingress routers once there are
// more controllers than middles (spec §4.5.3).
func (c *Clos3Stage) ControllerHomes(numControllers int) (middles, ingress []int) {
	for i := 0; i < numControllers && i < c.Mid; i++ {
		middles = append(middles, i)
	}
	overflow := numControllers - c.Mid
	for i := 0; i < overflow; i++ {
		ingress = append(ingress, i%c.In)
	}
	return middles, ingress
}
