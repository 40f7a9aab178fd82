// Package topology computes per-topology routing tables for the
// finite-buffer network (spec §4.5.3): e-mesh, 3-stage Clos, and ATAC.
package topology

import "github.com/sarchlab/meshsim/internal/common"

// Router output ports, shared across e-mesh's unicast XY routing and its
// broadcast tree.
const (
	PortLocal = iota
	PortNorth
	PortSouth
	PortEast
	PortWest
)

// EMesh is a sqrt(total_cores)-by-sqrt(total_cores) grid (spec §4.5.3),
// with router id = y*Width + x.
type EMesh struct {
	Width, Height int
	Broadcast     bool
}

func (m EMesh) coord(id int) (x, y int) { return id % m.Width, id / m.Width }
func (m EMesh) id(x, y int) int         { return y*m.Width + x }

// HopCount reports the Manhattan distance between two routers, the hop
// function model.New hands to its FiniteBuffer variants (EMeshHopCounter
// computes the same distance from its own Mesh field).
func (m EMesh) HopCount(src, dst common.CoreId) int {
	sx, sy := m.coord(int(src))
	dx, dy := m.coord(int(dst))
	return abs(sx-dx) + abs(sy-dy)
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// Route implements router.RouteFunc for an e-mesh router.
func (m EMesh) Route(selfID int, dest common.CoreId, broadcast bool) ([]int, bool) {
	if broadcast {
		if !m.Broadcast {
			panic("e-mesh broadcast requested but broadcast tree is disabled")
		}
		return m.routeBroadcast(selfID, dest)
	}
	return m.routeUnicast(selfID, dest), false
}

func (m EMesh) routeUnicast(selfID int, dest common.CoreId) []int {
	cx, cy := m.coord(selfID)
	dx, dy := m.coord(int(dest))
	if cx == dx && cy == dy {
		return []int{PortLocal}
	}
	if cx != dx {
		if dx > cx {
			return []int{PortEast}
		}
		return []int{PortWest}
	}
	if dy > cy {
		return []int{PortSouth}
	}
	return []int{PortNorth}
}

// routeBroadcast implements the sender-rooted tree of spec §4.5.3: every
// router delivers locally and additionally forwards south if cy>=sy,
// north if cy<=sy, and (only on the sender's own row) east and west too.
func (m EMesh) routeBroadcast(selfID int, sender common.CoreId) ([]int, bool) {
	cx, cy := m.coord(selfID)
	_, sy := m.coord(int(sender))

	ports := []int{PortLocal}
	if cy >= sy {
		ports = append(ports, PortSouth)
	}
	if cy <= sy {
		ports = append(ports, PortNorth)
	}
	if cy == sy {
		ports = append(ports, PortEast, PortWest)
	}
	_ = cx
	return ports, true
}
