package synth_test

import (
	"math/rand"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/meshsim/internal/common"
	"github.com/sarchlab/meshsim/internal/network/synth"
)

func TestSynth(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Synth Suite")
}

var _ = Describe("ParsePattern", func() {
	It("maps every known config string", func() {
		cases := map[string]synth.Pattern{
			"uniform_random":   synth.UniformRandom,
			"bit_complement":   synth.BitComplement,
			"shuffle":          synth.Shuffle,
			"transpose":        synth.Transpose,
			"tornado":          synth.Tornado,
			"nearest_neighbor": synth.NearestNeighbor,
		}
		for s, want := range cases {
			Expect(synth.ParsePattern(s)).To(Equal(want))
		}
	})

	It("panics on an unknown pattern string", func() {
		Expect(func() { synth.ParsePattern("bogus") }).To(Panic())
	})
})

var _ = Describe("Destination", func() {
	rng := rand.New(rand.NewSource(1))

	It("BitComplement mirrors around the core count", func() {
		Expect(synth.Destination(synth.BitComplement, 0, 8, 0, rng)).To(Equal(common.CoreId(7)))
		Expect(synth.Destination(synth.BitComplement, 3, 8, 0, rng)).To(Equal(common.CoreId(4)))
	})

	It("Tornado offsets by half the core count plus one", func() {
		Expect(synth.Destination(synth.Tornado, 0, 8, 0, rng)).To(Equal(common.CoreId(5)))
	})

	It("NearestNeighbor wraps to the next core in the same mesh row", func() {
		// meshWidth 4: core 3 is the last in its row, wraps to core 0
		Expect(synth.Destination(synth.NearestNeighbor, 3, 16, 4, rng)).To(Equal(common.CoreId(0)))
	})

	It("UniformRandom never returns the source core itself", func() {
		for i := 0; i < 50; i++ {
			d := synth.Destination(synth.UniformRandom, 2, 8, 0, rng)
			Expect(d).NotTo(Equal(common.CoreId(2)))
		}
	})
})

var _ = Describe("Generator", func() {
	It("CanSend's long-run frequency roughly tracks OfferedLoad", func() {
		g := synth.NewGenerator(0, 0.5)
		sends := 0
		for i := 0; i < 2000; i++ {
			if g.CanSend() {
				sends++
			}
		}
		Expect(float64(sends) / 2000).To(BeNumerically("~", 0.5, 0.05))
	})

	It("is deterministic across Generators built from the same core", func() {
		g1 := synth.NewGenerator(3, 0.5)
		g2 := synth.NewGenerator(3, 0.5)
		for i := 0; i < 20; i++ {
			Expect(g1.CanSend()).To(Equal(g2.CanSend()))
		}
	})
})
