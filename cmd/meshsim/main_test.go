package main

import (
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/spf13/viper"

	"github.com/sarchlab/meshsim/internal/common"
	"github.com/sarchlab/meshsim/internal/config"
)

func TestMain_(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Meshsim Command Suite")
}

var _ = Describe("capacityBlocks", func() {
	It("falls back to the system block size and reports 0 with no configured size", func() {
		Expect(capacityBlocks(config.CacheTuning{}, 64)).To(Equal(0))
	})

	It("divides the configured byte size by the effective block size", func() {
		t := config.CacheTuning{SizeBytes: 2048, BlockSize: 64}
		Expect(capacityBlocks(t, 32)).To(Equal(32))
	})
})

var _ = Describe("build", func() {
	It("wires a runnable System out of a default config", func() {
		v := viper.New()
		v.Set("general.total_cores", 4)
		cfg, err := config.Load(v)
		Expect(err).NotTo(HaveOccurred())

		_, sys := build(cfg)
		Expect(sys.Cores).To(HaveLen(4))
		for _, c := range sys.Cores {
			Expect(c.Manager).NotTo(BeNil())
			Expect(c.Dir).NotTo(BeNil())
			Expect(c.Net).NotTo(BeNil())
		}
	})
})

var _ = Describe("collectStats", func() {
	It("reports a zero-activity summary for every core of a freshly built, unrun System", func() {
		v := viper.New()
		v.Set("general.total_cores", 2)
		cfg, err := config.Load(v)
		Expect(err).NotTo(HaveOccurred())

		_, sys := build(cfg)
		report := collectStats(sys)
		Expect(report).NotTo(BeNil())

		ids := make([]common.CoreId, 0, len(sys.Cores))
		for _, c := range sys.Cores {
			ids = append(ids, c.ID)
		}
		Expect(ids).To(ConsistOf(common.CoreId(0), common.CoreId(1)))
	})
})
