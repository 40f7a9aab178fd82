// Package config provides the typed configuration record for meshsim
// (spec §6.1), read through spf13/viper the way cmd/meshsim's CLI flags
// and config file merge together, mirroring the teacher's
// config.DeviceBuilder fluent-options shape but as a flat, validated
// record rather than a builder (spec §6.1 is a flat key table, not a
// sequence of builder calls).
package config

import (
	"strings"

	"github.com/spf13/viper"

	"github.com/sarchlab/meshsim/internal/clockskew"
	"github.com/sarchlab/meshsim/internal/common"
	"github.com/sarchlab/meshsim/internal/memhier/cache"
	"github.com/sarchlab/meshsim/internal/memhier/directory"
	"github.com/sarchlab/meshsim/internal/memhier/dramcntlr"
	"github.com/sarchlab/meshsim/internal/network/model"
	"github.com/sarchlab/meshsim/internal/network/router"
	"github.com/sarchlab/meshsim/internal/network/topology"
	"github.com/sarchlab/meshsim/internal/simerr"
)

// General holds spec §6.1's general/* keys.
type General struct {
	TotalCores                 int
	NumSimThreads               int
	EnableSharedMem             bool
	EnablePerformanceModeling   bool
	AccuracyMode                string
	ExecutionMode               string
	OutputDir                   string
	OutputFile                  string
	LogLevel                    string
}

// CacheTuning holds the perf_model/l1_icache|l1_dcache|l2_cache/<type>/*
// keys for one cache level.
type CacheTuning struct {
	SizeBytes        int
	Associativity    int
	BlockSize        uint32
	ReplacementPolicy string
	DataAccessTime   common.Time
	TagsAccessTime   common.Time
}

// ToCacheConfig converts a CacheTuning into the Config cache.New expects.
// blockSize overrides t.BlockSize when the tuning left it unset (0), so
// every cache level can share one system-wide block size.
func (t CacheTuning) ToCacheConfig(capacityBlocks int, blockSize uint32) cache.Config {
	bs := t.BlockSize
	if bs == 0 {
		bs = blockSize
	}
	return cache.Config{
		BlockSize:      bs,
		Capacity:       capacityBlocks,
		DataAccessTime: t.DataAccessTime,
		TagsAccessTime: t.TagsAccessTime,
	}
}

// DirectoryTuning holds perf_model/dram_directory/*.
type DirectoryTuning struct {
	TotalEntries          int
	Associativity          int
	MaxHwSharers           int
	DirectoryType          string
	HomeLookupParam        uint
	DirectoryCacheAccessTime common.Time
}

func (t DirectoryTuning) kind() directory.Kind {
	switch t.DirectoryType {
	case "full_map":
		return directory.FullMap
	case "limited_no_broadcast":
		return directory.LimitedNoBroadcast
	case "limited_broadcast":
		return directory.LimitedBroadcast
	case "ackwise":
		return directory.Ackwise
	case "limitless":
		return directory.Limitless
	default:
		simerr.ConfigErrorf("unrecognized directory_type %q", t.DirectoryType)
		return directory.FullMap
	}
}

// ToDirectoryConfig converts a DirectoryTuning into directory.Config.
func (t DirectoryTuning) ToDirectoryConfig(proto common.Protocol) directory.Config {
	return directory.Config{
		Kind:            t.kind(),
		MaxHwSharers:    t.MaxHwSharers,
		TotalEntries:    t.TotalEntries,
		CacheAccessTime: t.DirectoryCacheAccessTime,
		Protocol:        proto,
	}
}

// DramTuning holds perf_model/dram/*.
type DramTuning struct {
	Latency                common.Time
	PerControllerBandwidth float64
	QueueModelEnabled      bool
}

// ToDramConfig converts a DramTuning into dramcntlr.Config.
func (t DramTuning) ToDramConfig() dramcntlr.Config {
	return dramcntlr.Config{
		AccessCost:             t.Latency,
		BandwidthBytesPerCycle: t.PerControllerBandwidth,
		QueueModelEnabled:      t.QueueModelEnabled,
	}
}

// NetworkTuning holds one network/<logical>/* block (spec §6.1).
type NetworkTuning struct {
	ModelName        string // magic | emesh_hop_counter | finite_buffer_*
	Frequency        common.Freq
	FlitWidth        uint32
	FlowControl      string // store_and_forward | virtual_cut_through | wormhole
	BufferManagement string // infinite | credit | on_off
	PerHopDelay      common.Time
}

// Kind resolves this network's model.Kind selection.
func (t NetworkTuning) Kind() model.Kind {
	switch t.ModelName {
	case "magic":
		return model.Magic
	case "emesh_hop_counter":
		return model.EMeshHopCounter
	case "finite_buffer_emesh":
		return model.FiniteBufferEMesh
	case "finite_buffer_atac":
		return model.FiniteBufferAtac
	case "finite_buffer_clos":
		return model.FiniteBufferClos
	case "finite_buffer_flip_atac":
		return model.FiniteBufferFlipAtac
	default:
		simerr.ConfigErrorf("unrecognized network model %q", t.ModelName)
		return model.Magic
	}
}

// Flow resolves this network's flow-control scheme; an unset scheme means
// store_and_forward.
func (t NetworkTuning) Flow() router.FlowControl {
	switch t.FlowControl {
	case "", "store_and_forward":
		return router.StoreAndForward
	case "virtual_cut_through":
		return router.VirtualCutThrough
	case "wormhole":
		return router.Wormhole
	default:
		simerr.ConfigErrorf("unrecognized flow_control_scheme %q", t.FlowControl)
		return router.StoreAndForward
	}
}

// AtacTuning holds network/atac/* keys.
type AtacTuning struct {
	ClusterSize                   int
	NumOpticalAccessPointsPerCluster int
	ReceiveNetType                string
	NumReceiveNetsPerCluster      int
	GlobalRoutingStrategy         string
	UnicastDistanceThreshold      int
}

// ClosTuning holds network/clos/* keys.
type ClosTuning struct {
	NumRouterPorts int
	NumInRouters   int
	NumMidRouters  int
}

// ClockSkewTuning holds clock_skew_minimization/*.
type ClockSkewTuning struct {
	Scheme            string // none | barrier | random_pairs
	BarrierQuantum     common.Time
	RandomPairsSlack    common.Time
	RandomPairsQuantum  common.Time
	RandomPairsSleepFraction float64
}

// BuildClient constructs the selected clockskew.Client.
func (t ClockSkewTuning) BuildClient() clockskew.Client {
	switch t.Scheme {
	case "", "none":
		return clockskew.NewNone()
	case "barrier":
		return clockskew.NewBarrier(t.BarrierQuantum)
	case "random_pairs":
		return clockskew.NewRandomPairs(t.RandomPairsSlack, t.RandomPairsQuantum, t.RandomPairsSleepFraction)
	default:
		simerr.ConfigErrorf("unrecognized clock_skew_minimization/scheme %q", t.Scheme)
		return clockskew.NewNone()
	}
}

// Config is the fully parsed, validated configuration record.
type Config struct {
	General    General
	Protocol   common.Protocol
	L1ICache   CacheTuning
	L1DCache   CacheTuning
	L2Cache    CacheTuning
	Directory  DirectoryTuning
	Dram       DramTuning
	User1      NetworkTuning
	User2      NetworkTuning
	Memory1    NetworkTuning
	Memory2    NetworkTuning
	System     NetworkTuning
	Atac       AtacTuning
	Clos       ClosTuning
	ClockSkew  ClockSkewTuning
}

// Load reads a Config out of v, applying defaults and validating the
// cross-key invariants spec §6.1/§7 name (e.g. Clos's total_cores
// factorization).
func Load(v *viper.Viper) (*Config, error) {
	v.SetEnvKeyReplacer(strings.NewReplacer("/", "_"))
	setDefaults(v)

	cfg := &Config{
		General: General{
			TotalCores:               v.GetInt("general.total_cores"),
			NumSimThreads:            v.GetInt("general.num_sim_threads"),
			EnableSharedMem:          v.GetBool("general.enable_shared_mem"),
			EnablePerformanceModeling: v.GetBool("general.enable_performance_modeling"),
			AccuracyMode:             v.GetString("general.accuracy_mode"),
			ExecutionMode:            v.GetString("general.execution_mode"),
			OutputDir:                v.GetString("general.output_dir"),
			OutputFile:               v.GetString("general.output_file"),
			LogLevel:                 v.GetString("general.log_level"),
		},
		Protocol: parseProtocol(v.GetString("perf_model.protocol")),
		L1ICache: readCacheTuning(v, "perf_model.l1_icache"),
		L1DCache: readCacheTuning(v, "perf_model.l1_dcache"),
		L2Cache:  readCacheTuning(v, "perf_model.l2_cache"),
		Directory: DirectoryTuning{
			TotalEntries:             v.GetInt("perf_model.dram_directory.total_entries"),
			Associativity:            v.GetInt("perf_model.dram_directory.associativity"),
			MaxHwSharers:             v.GetInt("perf_model.dram_directory.max_hw_sharers"),
			DirectoryType:            v.GetString("perf_model.dram_directory.directory_type"),
			HomeLookupParam:          uint(v.GetInt("perf_model.dram_directory.home_lookup_param")),
			DirectoryCacheAccessTime: common.Time(v.GetUint64("perf_model.dram_directory.directory_cache_access_time")),
		},
		Dram: DramTuning{
			Latency:                common.Time(v.GetUint64("perf_model.dram.latency")),
			PerControllerBandwidth: v.GetFloat64("perf_model.dram.per_controller_bandwidth"),
			QueueModelEnabled:      v.GetBool("perf_model.dram.queue_model.enabled"),
		},
		User1:   readNetworkTuning(v, "network.user_model_1"),
		User2:   readNetworkTuning(v, "network.user_model_2"),
		Memory1: readNetworkTuning(v, "network.memory_model_1"),
		Memory2: readNetworkTuning(v, "network.memory_model_2"),
		System:  readNetworkTuning(v, "network.system_model"),
		Atac: AtacTuning{
			ClusterSize:                      v.GetInt("network.atac.cluster_size"),
			NumOpticalAccessPointsPerCluster: v.GetInt("network.atac.num_optical_access_points_per_cluster"),
			ReceiveNetType:                   v.GetString("network.atac.receive_net_type"),
			NumReceiveNetsPerCluster:         v.GetInt("network.atac.num_receive_nets_per_cluster"),
			GlobalRoutingStrategy:            v.GetString("network.atac.global_routing_strategy"),
			UnicastDistanceThreshold:         v.GetInt("network.atac.unicast_distance_threshold"),
		},
		Clos: ClosTuning{
			NumRouterPorts: v.GetInt("network.clos.num_router_ports"),
			NumInRouters:   v.GetInt("network.clos.num_in_routers"),
			NumMidRouters:  v.GetInt("network.clos.num_mid_routers"),
		},
		ClockSkew: ClockSkewTuning{
			Scheme:                   v.GetString("clock_skew_minimization.scheme"),
			BarrierQuantum:           common.Time(v.GetUint64("clock_skew_minimization.barrier.quantum")),
			RandomPairsSlack:         common.Time(v.GetUint64("clock_skew_minimization.random_pairs.slack")),
			RandomPairsQuantum:       common.Time(v.GetUint64("clock_skew_minimization.random_pairs.quantum")),
			RandomPairsSleepFraction: v.GetFloat64("clock_skew_minimization.random_pairs.sleep_fraction"),
		},
	}

	// An unset general/num_sim_threads defaults to one sim thread per core.
	if cfg.General.NumSimThreads == 0 {
		cfg.General.NumSimThreads = cfg.General.TotalCores
	}

	validate(cfg)
	return cfg, nil
}

func readCacheTuning(v *viper.Viper, prefix string) CacheTuning {
	return CacheTuning{
		SizeBytes:         v.GetInt(prefix + ".cache_size"),
		Associativity:     v.GetInt(prefix + ".associativity"),
		BlockSize:         uint32(v.GetInt(prefix + ".cache_block_size")),
		ReplacementPolicy: v.GetString(prefix + ".replacement_policy"),
		DataAccessTime:    common.Time(v.GetUint64(prefix + ".data_access_time")),
		TagsAccessTime:    common.Time(v.GetUint64(prefix + ".tags_access_time")),
	}
}

func readNetworkTuning(v *viper.Viper, prefix string) NetworkTuning {
	model := v.GetString(prefix)
	return NetworkTuning{
		ModelName:        model,
		Frequency:        common.Freq(v.GetUint64(prefix + ".frequency")),
		FlitWidth:        uint32(v.GetInt(prefix + ".flit_width")),
		FlowControl:      v.GetString(prefix + ".flow_control_scheme"),
		BufferManagement: v.GetString(prefix + ".buffer_management_scheme"),
		PerHopDelay:      common.Time(v.GetUint64(prefix + ".router.delay")),
	}
}

func parseProtocol(s string) common.Protocol {
	if s == "mosi" {
		return common.MOSI
	}
	return common.MSI
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("general.total_cores", 16)
	v.SetDefault("general.enable_shared_mem", true)
	v.SetDefault("general.enable_performance_modeling", true)
	v.SetDefault("general.accuracy_mode", "cycle_level")
	v.SetDefault("general.execution_mode", "full")
	v.SetDefault("general.output_dir", ".")
	v.SetDefault("general.output_file", "meshsim.out")
	v.SetDefault("general.log_level", "info")

	v.SetDefault("perf_model.dram_directory.directory_type", "full_map")
	v.SetDefault("perf_model.dram_directory.home_lookup_param", 0)

	v.SetDefault("network.user_model_1", "magic")
	v.SetDefault("network.user_model_2", "magic")
	v.SetDefault("network.memory_model_1", "magic")
	v.SetDefault("network.memory_model_2", "magic")
	v.SetDefault("network.system_model", "magic")

	v.SetDefault("clock_skew_minimization.scheme", "none")
}

// validate checks the cross-key invariants spec §6.1/§7 name, panicking
// with a ConfigError (never locally recoverable, per spec §7).
func validate(cfg *Config) {
	if cfg.General.AccuracyMode != "cycle_level" {
		simerr.ConfigErrorf("general/accuracy_mode must be cycle_level, got %q", cfg.General.AccuracyMode)
	}
	switch cfg.General.ExecutionMode {
	case "full", "lite", "native":
	default:
		simerr.ConfigErrorf("unrecognized general/execution_mode %q", cfg.General.ExecutionMode)
	}
	if cfg.General.NumSimThreads > cfg.General.TotalCores {
		simerr.ConfigErrorf("general/num_sim_threads (%d) exceeds total_cores (%d)", cfg.General.NumSimThreads, cfg.General.TotalCores)
	}

	anyClos := cfg.User1.Kind() == model.FiniteBufferClos ||
		cfg.User2.Kind() == model.FiniteBufferClos ||
		cfg.Memory1.Kind() == model.FiniteBufferClos ||
		cfg.Memory2.Kind() == model.FiniteBufferClos ||
		cfg.System.Kind() == model.FiniteBufferClos
	if anyClos {
		if cfg.Clos.NumRouterPorts*cfg.Clos.NumInRouters != cfg.General.TotalCores {
			simerr.ConfigErrorf(
				"network/clos: total_cores (%d) must equal num_router_ports (%d) * num_in_routers (%d)",
				cfg.General.TotalCores, cfg.Clos.NumRouterPorts, cfg.Clos.NumInRouters,
			)
		}
	}
}

// BuildEMesh derives the e-mesh topology dimensions from TotalCores,
// rounding up to the nearest square the way spec §6.1's "rounded up to the
// topology's nearest acceptable value" note requires.
func (c *Config) BuildEMesh(broadcast bool) topology.EMesh {
	width := 1
	for width*width < c.General.TotalCores {
		width++
	}
	return topology.EMesh{Width: width, Height: width, Broadcast: broadcast}
}
