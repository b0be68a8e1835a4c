package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/launchdarkly/go-jsonstream/v3/jwriter"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	sim "github.com/inference-sim/os-sim/sim"
	"github.com/inference-sim/os-sim/sim/memory"
	"github.com/inference-sim/os-sim/sim/trace"
)

var (
	// Simulation
	seed     int64  // Seed for the blocking and workload random streams
	horizon  int64  // Number of cycles to simulate
	logLevel string // Log verbosity level

	// Memory
	memoryTotal uint32 // Arena capacity in units
	strategy    string // Placement strategy name

	// Scheduler knobs
	quantum          int     // Cycles a process may run before preemption
	blockProbability float64 // Per-cycle I/O blocking probability
	maxBlock         int     // Cycles a blocked process waits

	// Automatic workload
	autoWorkload    bool   // Generate processes periodically
	arrivalInterval int64  // Cycles between generated processes
	sizeMin         uint32 // Smallest generated process
	sizeMax         uint32 // Largest generated process
	durationMin     int    // Shortest generated burst
	durationMax     int    // Longest generated burst

	// Input and output
	scenarioPath  string        // YAML scenario file
	watchFile     bool          // Reload scheduler knobs when the scenario file changes
	speed         time.Duration // Wall-clock delay between cycles (0 runs flat out)
	traceLevel    string        // Decision trace level
	otelTracePath string        // File receiving one OpenTelemetry span per cycle
	snapshotPath  string        // File receiving the final JSON snapshot
)

// rootCmd is the base command for the CLI
var rootCmd = &cobra.Command{
	Use:   "ossim",
	Short: "Discrete-cycle memory placement and CPU scheduling simulator",
}

// runCmd drives a simulation from flags and an optional scenario file
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the simulation",
	Run: func(cmd *cobra.Command, args []string) {
		level, err := logrus.ParseLevel(logLevel)
		if err != nil {
			logrus.Fatalf("Invalid log level: %s", logLevel)
		}
		logrus.SetLevel(level)

		if !trace.IsValidTraceLevel(traceLevel) {
			logrus.Fatalf("Invalid --trace %q; valid: none, decisions", traceLevel)
		}
		if watchFile && scenarioPath == "" {
			logrus.Fatalf("--watch requires --scenario")
		}

		cfg, sc, err := buildConfig(cmd)
		if err != nil {
			logrus.Fatalf("%v", err)
		}

		var opts []sim.SimOption
		if sc != nil {
			opts = append(opts, sim.WithScript(sc.Processes))
		}
		var st *trace.SimulationTrace
		if trace.TraceLevel(traceLevel) == trace.TraceLevelDecisions {
			st = trace.NewSimulationTrace(trace.TraceConfig{Level: trace.TraceLevelDecisions})
			opts = append(opts, sim.WithTrace(st))
		}
		s := sim.NewSimulation(cfg, opts...)

		logrus.Infof("Starting simulation %s: memory=%d strategy=%s quantum=%d block=%.2f/%d horizon=%d seed=%d",
			s.RunID, cfg.Memory.Total, cfg.Memory.Strategy, cfg.Scheduling.Quantum,
			cfg.Scheduling.BlockProbability, cfg.Scheduling.MaxBlockDuration, cfg.Horizon, cfg.Seed)

		tracer, err := newTickTracer(otelTracePath)
		if err != nil {
			logrus.Fatalf("unable to start tick tracing: %v", err)
		}
		defer func() {
			if err := tracer.Shutdown(context.Background()); err != nil {
				logrus.Warnf("tick tracing shutdown: %v", err)
			}
		}()

		d := &driver{sim: s, tracer: tracer}
		if watchFile {
			w, err := watchScenario(scenarioPath)
			if err != nil {
				logrus.Fatalf("unable to watch %s: %v", scenarioPath, err)
			}
			defer w.Close()
			d.reloads = w.Updates()
		}
		if speed > 0 {
			ticker := time.NewTicker(speed)
			defer ticker.Stop()
			d.pace = ticker.C
		}

		startTime := time.Now()
		d.run(context.Background(), cfg.Horizon)
		logrus.Infof("Simulated %d cycles in %s", s.Clock, time.Since(startTime))

		if err := s.Report(os.Stdout); err != nil {
			logrus.Fatalf("writing report: %v", err)
		}
		if st != nil {
			printTraceSummary(trace.Summarize(st))
		}
		if snapshotPath != "" {
			if err := writeSnapshot(s, snapshotPath); err != nil {
				logrus.Fatalf("%v", err)
			}
		}
		logrus.Info("Simulation complete.")
	},
}

// validateCmd loads a scenario file and reports whether it is usable
var validateCmd = &cobra.Command{
	Use:   "validate SCENARIO",
	Short: "Check a scenario file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		sc, err := sim.LoadScenario(args[0])
		if err != nil {
			return err
		}
		if err := sc.Validate(); err != nil {
			return errors.Wrapf(err, "scenario %s", args[0])
		}
		version := sc.Version
		if version == "" {
			version = "unversioned"
		}
		_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s: ok (%s, %d scripted processes)\n", args[0], version, len(sc.Processes))
		return err
	},
}

// buildConfig layers defaults, the scenario file and explicitly set flags, in that order.
// The scenario is returned so its scripted processes can be attached.
func buildConfig(cmd *cobra.Command) (sim.SimConfig, *sim.Scenario, error) {
	cfg := sim.DefaultSimConfig()
	var sc *sim.Scenario
	if scenarioPath != "" {
		loaded, err := sim.LoadScenario(scenarioPath)
		if err != nil {
			return cfg, nil, err
		}
		if err := loaded.Validate(); err != nil {
			return cfg, nil, errors.Wrapf(err, "scenario %s", scenarioPath)
		}
		loaded.Apply(&cfg)
		sc = loaded
	}

	flags := cmd.Flags()
	if flags.Changed("seed") {
		cfg.Seed = seed
	}
	if flags.Changed("horizon") {
		cfg.Horizon = horizon
	}
	if flags.Changed("memory") {
		cfg.Memory.Total = memoryTotal
	}
	if flags.Changed("strategy") {
		s, ok := memory.ParseStrategy(strategy)
		if !ok {
			return cfg, nil, errors.Newf("unknown --strategy %q; valid: %v", strategy, memory.ValidStrategyNames())
		}
		cfg.Memory.Strategy = s
	}
	if flags.Changed("quantum") {
		cfg.Scheduling.Quantum = quantum
	}
	if flags.Changed("block-probability") {
		cfg.Scheduling.BlockProbability = blockProbability
	}
	if flags.Changed("max-block") {
		cfg.Scheduling.MaxBlockDuration = maxBlock
	}
	if flags.Changed("auto") {
		cfg.Workload.Auto = autoWorkload
	}
	if flags.Changed("interval") {
		cfg.Workload.Interval = arrivalInterval
	}
	if flags.Changed("size-min") {
		cfg.Workload.SizeMin = sizeMin
	}
	if flags.Changed("size-max") {
		cfg.Workload.SizeMax = sizeMax
	}
	if flags.Changed("duration-min") {
		cfg.Workload.DurationMin = durationMin
	}
	if flags.Changed("duration-max") {
		cfg.Workload.DurationMax = durationMax
	}

	if cfg.Memory.Total == 0 {
		return cfg, nil, errors.New("--memory must be positive")
	}
	if cfg.Horizon < 0 {
		return cfg, nil, errors.Newf("--horizon must be non-negative, got %d", cfg.Horizon)
	}
	cfg.Scheduling = cfg.Scheduling.Clamped()
	return cfg, sc, nil
}

func writeSnapshot(s *sim.Simulation, path string) error {
	w := jwriter.NewWriter()
	s.Snapshot(&w)
	if err := w.Error(); err != nil {
		return errors.Wrap(err, "encoding snapshot")
	}
	if err := os.WriteFile(path, w.Bytes(), 0o644); err != nil {
		return errors.Wrapf(err, "writing snapshot %s", path)
	}
	logrus.Infof("Snapshot written to %s", path)
	return nil
}

func printTraceSummary(ts *trace.TraceSummary) {
	fmt.Println("=== Decision Trace ===")
	fmt.Printf("Allocation attempts: %d (allocated %d, failed %d)\n", ts.TotalAllocations, ts.AllocatedCount, ts.FailedCount)
	if ts.AllocatedCount > 0 {
		fmt.Printf("Mean allocated size: %.1f\n", ts.MeanAllocatedSize)
	}
	if ts.FailedCount > 0 {
		fmt.Printf("Largest failed request: %d\n", ts.MaxFailedSize)
	}
	fmt.Printf("Scheduling decisions: %d\n", ts.TotalDecisions)
	for _, kind := range trace.SchedulingKinds() {
		if n := ts.KindCounts[kind]; n > 0 {
			fmt.Printf("  %-10s %d\n", kind, n)
		}
	}
	fmt.Printf("Processes traced: %d\n", ts.UniqueProcesses)
}

// Execute runs the CLI root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// init sets up CLI flags and subcommands
func init() {
	defaults := sim.DefaultSimConfig()

	runCmd.Flags().Int64Var(&seed, "seed", defaults.Seed, "Seed for the blocking and workload random streams")
	runCmd.Flags().Int64Var(&horizon, "horizon", defaults.Horizon, "Total simulation horizon (in cycles)")
	runCmd.Flags().StringVar(&logLevel, "log", "warn", "Log level (trace, debug, info, warn, error, fatal, panic)")

	// Memory configs
	runCmd.Flags().Uint32Var(&memoryTotal, "memory", defaults.Memory.Total, "Total memory units in the arena")
	runCmd.Flags().StringVar(&strategy, "strategy", string(defaults.Memory.Strategy), "Placement strategy (firstFit, bestFit, worstFit)")

	// Scheduler configs
	runCmd.Flags().IntVar(&quantum, "quantum", defaults.Scheduling.Quantum, "Time quantum in cycles")
	runCmd.Flags().Float64Var(&blockProbability, "block-probability", defaults.Scheduling.BlockProbability, "Per-cycle probability that a running process blocks for I/O")
	runCmd.Flags().IntVar(&maxBlock, "max-block", defaults.Scheduling.MaxBlockDuration, "Cycles a blocked process stays blocked")

	// Workload generator configs
	runCmd.Flags().BoolVar(&autoWorkload, "auto", defaults.Workload.Auto, "Generate processes automatically")
	runCmd.Flags().Int64Var(&arrivalInterval, "interval", defaults.Workload.Interval, "Cycles between generated processes")
	runCmd.Flags().Uint32Var(&sizeMin, "size-min", defaults.Workload.SizeMin, "Smallest generated process size")
	runCmd.Flags().Uint32Var(&sizeMax, "size-max", defaults.Workload.SizeMax, "Largest generated process size")
	runCmd.Flags().IntVar(&durationMin, "duration-min", defaults.Workload.DurationMin, "Shortest generated burst (cycles)")
	runCmd.Flags().IntVar(&durationMax, "duration-max", defaults.Workload.DurationMax, "Longest generated burst (cycles)")

	// Input and output
	runCmd.Flags().StringVar(&scenarioPath, "scenario", "", "Path to a YAML scenario file")
	runCmd.Flags().BoolVar(&watchFile, "watch", false, "Reload scheduler knobs and strategy when the scenario file changes")
	runCmd.Flags().DurationVar(&speed, "speed", 0, "Wall-clock delay between cycles, e.g. 200ms (0 runs flat out)")
	runCmd.Flags().StringVar(&traceLevel, "trace", "none", "Decision trace level (none, decisions)")
	runCmd.Flags().StringVar(&otelTracePath, "otel-trace", "", "Write one OpenTelemetry span per cycle to this file")
	runCmd.Flags().StringVar(&snapshotPath, "snapshot", "", "Write the final JSON snapshot to this file")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(validateCmd)
}
