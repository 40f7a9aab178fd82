package topology

import "github.com/sarchlab/meshsim/internal/common"

// GlobalRoute selects which global fabric a packet takes between ATAC
// clusters (spec §4.5.3).
type GlobalRoute int

const (
	GlobalENet GlobalRoute = iota // local e-mesh only: same cluster or close enough
	GlobalONet                   // send-hub -> optical link -> receive-hub
)

// GlobalRoutingStrategy selects how ATAC decides ENET vs ONET for unicast.
type GlobalRoutingStrategy int

const (
	AlwaysONet GlobalRoutingStrategy = iota
	DistanceBased
)

// ReceiveNetType selects how a receive-hub fans a packet out to its
// cluster's cores.
type ReceiveNetType int

const (
	HTree ReceiveNetType = iota
	StarNet
)

// ATAC implements the electrical+optical hybrid topology of spec §4.5.3:
// clusters of cores, each with one access point (e-mesh sub-cluster
// center), a send-hub and a receive-hub.
type ATAC struct {
	ClusterSize             int
	NumAccessPointsPerCluster int
	ReceiveNet               ReceiveNetType
	NumReceiveNetsPerCluster int
	Strategy                 GlobalRoutingStrategy
	UnicastDistanceThreshold int

	// EMeshWidth lets Cluster/AccessPoint compute Manhattan distance using
	// the same (x,y) numbering as the local e-mesh within each cluster.
	EMeshWidth int
}

// Cluster returns the cluster index owning core.
func (a ATAC) Cluster(core common.CoreId) int { return int(core) / a.ClusterSize }

func (a ATAC) coord(core common.CoreId) (x, y int) {
	local := int(core) % a.ClusterSize
	return local % a.EMeshWidth, local / a.EMeshWidth
}

// manhattan returns the Manhattan distance between src and dest's local
// e-mesh coordinates, meaningful only when comparing cores within related
// clusters laid out on the same local grid shape.
func (a ATAC) manhattan(src, dest common.CoreId) int {
	sx, sy := a.coord(src)
	dx, dy := a.coord(dest)
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

// RouteUnicast decides ENET vs ONET for a unicast packet (spec §4.5.3):
// same cluster always stays ENET; otherwise ONET unless the strategy is
// distance_based and the Manhattan distance is within threshold.
func (a ATAC) RouteUnicast(src, dest common.CoreId) GlobalRoute {
	if a.Cluster(src) == a.Cluster(dest) {
		return GlobalENet
	}
	if a.Strategy == DistanceBased && a.manhattan(src, dest) <= a.UnicastDistanceThreshold {
		return GlobalENet
	}
	return GlobalONet
}

// RouteBroadcast always selects ONET (spec §4.5.3: "Broadcasts always go
// GLOBAL_ONET").
func (a ATAC) RouteBroadcast() GlobalRoute { return GlobalONet }

// ReceiveDistribution picks the receive-side fan-out for a packet arriving
// at destCluster from senderCluster: an H-tree delivers to every endpoint
// via one logical link, a star net picks one of NumReceiveNetsPerCluster
// routers by senderCluster for load spreading.
func (a ATAC) ReceiveDistribution(senderCluster int) (net ReceiveNetType, starIndex int) {
	if a.ReceiveNet == HTree {
		return HTree, 0
	}
	return StarNet, senderCluster % a.NumReceiveNetsPerCluster
}
