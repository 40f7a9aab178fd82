package config_test

import (
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/spf13/viper"

	"github.com/sarchlab/meshsim/internal/common"
	"github.com/sarchlab/meshsim/internal/config"
)

func TestConfig(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Config Suite")
}

var _ = Describe("Load", func() {
	It("applies defaults when nothing is set", func() {
		cfg, err := config.Load(viper.New())
		Expect(err).NotTo(HaveOccurred())
		Expect(cfg.General.TotalCores).To(Equal(16))
		Expect(cfg.General.ExecutionMode).To(Equal("full"))
		Expect(cfg.Directory.DirectoryType).NotTo(BeEmpty())
		Expect(cfg.User1.ModelName).To(Equal("magic"))
	})

	It("honors explicit overrides", func() {
		v := viper.New()
		v.Set("general.total_cores", 4)
		v.Set("perf_model.protocol", "mosi")
		cfg, err := config.Load(v)
		Expect(err).NotTo(HaveOccurred())
		Expect(cfg.General.TotalCores).To(Equal(4))
		Expect(cfg.Protocol).To(Equal(common.MOSI))
	})

	It("panics when num_sim_threads exceeds total_cores", func() {
		v := viper.New()
		v.Set("general.total_cores", 2)
		v.Set("general.num_sim_threads", 4)
		Expect(func() { config.Load(v) }).To(Panic())
	})

	It("panics when an unrecognized accuracy_mode is set", func() {
		v := viper.New()
		v.Set("general.accuracy_mode", "bogus")
		Expect(func() { config.Load(v) }).To(Panic())
	})

	It("panics when a Clos network's num_router_ports * num_in_routers does not equal total_cores", func() {
		v := viper.New()
		v.Set("general.total_cores", 16)
		v.Set("network.user_model_1", "finite_buffer_clos")
		v.Set("network.clos.num_router_ports", 3)
		v.Set("network.clos.num_in_routers", 3)
		Expect(func() { config.Load(v) }).To(Panic())
	})

	It("accepts a Clos configuration whose num_router_ports * num_in_routers equals total_cores", func() {
		v := viper.New()
		v.Set("general.total_cores", 16)
		v.Set("network.user_model_1", "finite_buffer_clos")
		v.Set("network.clos.num_router_ports", 4)
		v.Set("network.clos.num_in_routers", 4)
		_, err := config.Load(v)
		Expect(err).NotTo(HaveOccurred())
	})
})

var _ = Describe("CacheTuning.ToCacheConfig", func() {
	It("falls back to the system block size when unset", func() {
		t := config.CacheTuning{SizeBytes: 1024}
		c := t.ToCacheConfig(16, 64)
		Expect(c.BlockSize).To(Equal(uint32(64)))
	})

	It("prefers its own block size when set", func() {
		t := config.CacheTuning{BlockSize: 32}
		c := t.ToCacheConfig(16, 64)
		Expect(c.BlockSize).To(Equal(uint32(32)))
	})
})

var _ = Describe("Config.BuildEMesh", func() {
	It("rounds total_cores up to the nearest square side length", func() {
		cfg, _ := config.Load(viperWith("general.total_cores", 10))
		mesh := cfg.BuildEMesh(false)
		Expect(mesh.Width).To(Equal(4))
		Expect(mesh.Height).To(Equal(4))
	})

	It("uses an exact square side length when total_cores is already a square", func() {
		cfg, _ := config.Load(viperWith("general.total_cores", 16))
		mesh := cfg.BuildEMesh(false)
		Expect(mesh.Width).To(Equal(4))
	})
})

func viperWith(key string, val interface{}) *viper.Viper {
	v := viper.New()
	v.Set(key, val)
	return v
}
