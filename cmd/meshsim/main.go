// Command meshsim runs a cycle-level chip-multiprocessor simulation:
// build a System from a viper-loaded config, drive it to completion with
// an akita serial engine, and print the spec §6.3 summary.
//
// Grounded on samples/fir/main.go's engine-then-builder-then-atexit shape
// (sim.NewSerialEngine, fluent device builders, atexit.Exit(0) at the very
// end), generalized from a single hand-built CGRA device to a
// config-driven System, and wrapped in a cobra command the way a
// production CLI exposes flags instead of hardcoded constants.
package main

import (
	"fmt"
	"os"

	"github.com/sarchlab/akita/v4/sim"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/tebeka/atexit"

	"github.com/sarchlab/meshsim/internal/common"
	"github.com/sarchlab/meshsim/internal/config"
	"github.com/sarchlab/meshsim/internal/core"
	"github.com/sarchlab/meshsim/internal/eventq"
	"github.com/sarchlab/meshsim/internal/memhier/directory"
	"github.com/sarchlab/meshsim/internal/memhier/dramcntlr"
	"github.com/sarchlab/meshsim/internal/network"
	"github.com/sarchlab/meshsim/internal/network/model"
	"github.com/sarchlab/meshsim/internal/network/topology"
	"github.com/sarchlab/meshsim/internal/stats"
)

func main() {
	defer atexit.Exit(0)

	root := newRootCmd()
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		atexit.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	v := viper.New()

	cmd := &cobra.Command{
		Use:   "meshsim",
		Short: "A cycle-level chip-multiprocessor cache-coherence and NoC simulator",
	}

	var cfgFile string
	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "path to a meshsim config file (yaml/toml/json)")
	cmd.PersistentFlags().Int("total-cores", 16, "overrides general/total_cores")
	v.BindPFlag("general.total_cores", cmd.PersistentFlags().Lookup("total-cores"))

	cmd.AddCommand(newRunCmd(v, &cfgFile))
	return cmd
}

func newRunCmd(v *viper.Viper, cfgFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the simulation to completion and print the output summary",
		RunE: func(cmd *cobra.Command, args []string) error {
			if *cfgFile != "" {
				v.SetConfigFile(*cfgFile)
				if err := v.ReadInConfig(); err != nil {
					return fmt.Errorf("reading config: %w", err)
				}
			}

			cfg, err := config.Load(v)
			if err != nil {
				return err
			}

			engine, sys := build(cfg)

			if err := engine.Run(); err != nil {
				return fmt.Errorf("running engine: %w", err)
			}

			report := collectStats(sys)
			report.WriteTables(os.Stdout)
			return nil
		},
	}
}

// build wires a full System out of cfg, mirroring
// config/config.go's DeviceBuilder.Build: one engine, one per-core Builder
// template, one SystemBuilder pulling them together.
func build(cfg *config.Config) (sim.Engine, *core.System) {
	engine := sim.NewSerialEngine()
	freq := 1 * sim.GHz

	ids := make([]common.CoreId, cfg.General.TotalCores)
	for i := range ids {
		ids[i] = common.CoreId(i)
	}
	home := directory.NewAddressHomeLookup(ids, cfg.Directory.HomeLookupParam)

	dramPerf := dramcntlr.NewPerfModel(cfg.Dram.ToDramConfig())
	events := eventq.NewDispatcher()
	skew := cfg.ClockSkew.BuildClient()

	mesh := cfg.BuildEMesh(false)

	blockSize := cfg.L1ICache.BlockSize
	if blockSize == 0 {
		blockSize = cfg.L2Cache.BlockSize
	}
	if blockSize == 0 {
		blockSize = 64
	}

	nets := map[network.Logical]model.Model{
		network.User1:   buildModel(cfg.User1, mesh),
		network.User2:   buildModel(cfg.User2, mesh),
		network.Memory1: buildModel(cfg.Memory1, mesh),
		network.Memory2: buildModel(cfg.Memory2, mesh),
		network.System:  buildModel(cfg.System, mesh),
	}

	coreBuilder := core.Builder{}.
		WithBlockSize(blockSize).
		WithL1Config(
			cfg.L1ICache.ToCacheConfig(capacityBlocks(cfg.L1ICache, blockSize), blockSize),
			cfg.L1DCache.ToCacheConfig(capacityBlocks(cfg.L1DCache, blockSize), blockSize),
		).
		WithL2Config(cfg.L2Cache.ToCacheConfig(capacityBlocks(cfg.L2Cache, blockSize), blockSize)).
		WithDirectoryConfig(cfg.Directory.ToDirectoryConfig(cfg.Protocol)).
		WithDRAMPerfModel(dramPerf).
		WithHomeLookup(home).
		WithEventDispatcher(events).
		WithClockSkewClient(skew).
		WithNetworks(nets, cfg.System.FlitWidth)

	sysBuilder := core.SystemBuilder{}.
		WithEngine(engine).
		WithFreq(freq).
		WithCoreBuilder(coreBuilder)

	return engine, sysBuilder.Build("MeshSim", cfg.General.TotalCores)
}

func capacityBlocks(t config.CacheTuning, fallbackBlockSize uint32) int {
	size := t.BlockSize
	if size == 0 {
		size = fallbackBlockSize
	}
	if size == 0 || t.SizeBytes == 0 {
		return 0
	}
	return t.SizeBytes / int(size)
}

func buildModel(t config.NetworkTuning, mesh topology.EMesh) model.Model {
	return model.New(t.Kind(), mesh.HopCount, mesh, t.FlitWidth, t.PerHopDelay, t.Flow())
}

func collectStats(sys *core.System) *stats.Report {
	report := stats.NewReport()
	for _, c := range sys.Cores {
		l1iHits, l1iMisses := c.Manager.L1Stats(common.L1I)
		l1dHits, l1dMisses := c.Manager.L1Stats(common.L1D)
		l2Hits, l2Misses := c.Manager.L2Stats()
		summary := stats.Collect(
			c.ID,
			c.Perf.Summarize(),
			c.Dram.PerfSummary(),
			l1iHits, l1iMisses,
			l1dHits, l1dMisses,
			l2Hits, l2Misses,
			c.Dir,
			c.Net,
		)
		report.Add(summary)
	}
	return report
}
