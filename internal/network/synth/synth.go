// Package synth implements the synthetic network traffic generator
// supplemented from
// original_source/tests/unit/synthetic_network_traffic_generator (dropped
// by the distilled spec, but useful for network-only benchmark runs
// against the finite-buffer topologies).
package synth

import (
	"math/rand"

	"github.com/sarchlab/meshsim/internal/common"
	"github.com/sarchlab/meshsim/internal/simerr"
)

// Pattern selects a destination-computation rule, one per
// NetworkTrafficType in the original generator.
type Pattern int

const (
	UniformRandom Pattern = iota
	BitComplement
	Shuffle
	Transpose
	Tornado
	NearestNeighbor
)

// ParsePattern maps a config string onto a Pattern, mirroring
// parseTrafficPattern.
func ParsePattern(s string) Pattern {
	switch s {
	case "uniform_random":
		return UniformRandom
	case "bit_complement":
		return BitComplement
	case "shuffle":
		return Shuffle
	case "transpose":
		return Transpose
	case "tornado":
		return Tornado
	case "nearest_neighbor":
		return NearestNeighbor
	default:
		simerr.ConfigErrorf("unknown synthetic traffic pattern %q", s)
		return UniformRandom
	}
}

// Destination computes the destination core for core src under pattern,
// over a totalCores-core, meshWidth-wide system (meshWidth only matters
// for nearest_neighbor; other patterns are topology-agnostic bit/index
// operations matching the original generator).
func Destination(p Pattern, src common.CoreId, totalCores int, meshWidth int, rng *rand.Rand) common.CoreId {
	n := totalCores
	s := int(src)
	switch p {
	case UniformRandom:
		d := s
		for d == s {
			d = rng.Intn(n)
		}
		return common.CoreId(d)
	case BitComplement:
		return common.CoreId((n - 1) - s)
	case Shuffle:
		bits := bitLen(n)
		return common.CoreId(((s << 1) | (s >> uint(bits-1))) & (n - 1))
	case Transpose:
		half := bitLen(n) / 2
		lower := s & ((1 << half) - 1)
		upper := s >> half
		return common.CoreId((lower << half) | upper)
	case Tornado:
		return common.CoreId((s + n/2 + 1) % n)
	case NearestNeighbor:
		x, y := s%meshWidth, s/meshWidth
		return common.CoreId(y*meshWidth + (x+1)%meshWidth)
	default:
		simerr.ProtocolErrorf("unknown traffic pattern %d", p)
		return src
	}
}

func bitLen(n int) int {
	b := 0
	for (1 << b) < n {
		b++
	}
	return b
}

// Generator drives one core's synthetic send decisions: each cycle,
// CanSend reports (with probability offeredLoad) whether this core should
// inject a new packet, matching canSendPacket's Bernoulli trial.
type Generator struct {
	OfferedLoad float64
	rng         *rand.Rand
}

// NewGenerator builds a Generator seeded deterministically from core, so
// repeated runs of the same config reproduce the same traffic.
func NewGenerator(core common.CoreId, offeredLoad float64) *Generator {
	return &Generator{OfferedLoad: offeredLoad, rng: rand.New(rand.NewSource(int64(core) + 1))}
}

// CanSend implements canSendPacket.
func (g *Generator) CanSend() bool {
	return g.rng.Float64() < g.OfferedLoad
}

// NextDestination picks this generator's next destination under pattern.
func (g *Generator) NextDestination(p Pattern, src common.CoreId, totalCores, meshWidth int) common.CoreId {
	return Destination(p, src, totalCores, meshWidth, g.rng)
}
