package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/inference-sim/catwalk/jit"
	"github.com/inference-sim/catwalk/jit/metrics"
	"github.com/inference-sim/catwalk/jit/trace"
	"github.com/inference-sim/catwalk/jit/workload"
)

var (
	// CLI flags for the run command
	configPath   string // YAML run configuration
	seed         int64  // Seed for profiling and workload RNGs
	batches      int    // Number of batches (0 = all workload phases)
	iterations   int    // Dispatches per batch (0 = from config)
	logLevel     string // Log verbosity level
	traceLevel   string // Decision trace level
	traceDBPath  string // SQLite file receiving the decision trace
	runLabel     string // Label stored with the persisted run
	printMetrics bool   // Dump Prometheus metrics after the run
	skipBaseline bool   // Skip the generic-dispatch equivalence run
)

// rootCmd is the base command for the CLI
var rootCmd = &cobra.Command{
	Use:   "catwalk",
	Short: "Adaptive dispatch optimizer driven by sampled variant profiles",
}

// runCmd runs the reference hot loop with the optimizer and compares it
// against pure generic dispatch.
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the reference batch loop under the optimizer",
	Run: func(cmd *cobra.Command, args []string) {
		setLogLevel(logLevel)

		rc, err := LoadRunConfig(configPath)
		if err != nil {
			logrus.Fatalf("%v", err)
		}
		if cmd.Flags().Changed("seed") {
			rc.Seed = &seed
		}
		if cmd.Flags().Changed("trace-level") {
			rc.TraceLevel = traceLevel
		}
		if iterations > 0 {
			rc.Workload.IterationsPerBatch = iterations
		}
		if err := rc.Validate(); err != nil {
			logrus.Fatalf("invalid configuration: %v", err)
		}

		ctlCfg := rc.ControllerConfig()
		level := trace.TraceLevel(rc.TraceLevel)
		if level == "" {
			level = trace.TraceLevelNone
		}
		var dt *trace.DecisionTrace
		if level != trace.TraceLevelNone {
			dt = trace.NewDecisionTrace(level)
			ctlCfg.Observers = append(ctlCfg.Observers, dt)
		}
		registry := prometheus.NewRegistry()
		collectors, err := metrics.NewCollectors(registry)
		if err != nil {
			logrus.Fatalf("%v", err)
		}
		ctlCfg.Observers = append(ctlCfg.Observers, collectors)

		ctl, err := jit.NewController(ctlCfg, rc.CallSiteConfigs()...)
		if err != nil {
			logrus.Fatalf("creating controller: %v", err)
		}

		n := batches
		if n <= 0 {
			n = rc.Workload.TotalBatches()
		}
		site := rc.HotSite()
		logrus.Infof("Starting run: %d batches x %d dispatches, call site %q, seed %d",
			n, rc.Workload.IterationsPerBatch, site, ctlCfg.Seed)

		start := time.Now()
		optimized := runOptimized(ctl, newGenerator(*rc.Workload, ctlCfg.Seed), n, site)
		optimizedTime := time.Since(start)
		fmt.Printf("optimized: sum=%v dispatches=%d elapsed=%v\n", optimized.Sum, optimized.Dispatches, optimizedTime)

		if !skipBaseline {
			start = time.Now()
			baseline := runBaseline(newGenerator(*rc.Workload, ctlCfg.Seed), n)
			baselineTime := time.Since(start)
			fmt.Printf("baseline:  sum=%v dispatches=%d elapsed=%v\n", baseline.Sum, baseline.Dispatches, baselineTime)
			if baseline.Sum != optimized.Sum {
				logrus.Fatalf("optimized result %v differs from generic dispatch %v", optimized.Sum, baseline.Sum)
			}
			if optimizedTime > 0 {
				fmt.Printf("speedup:   %.2fx\n", float64(baselineTime)/float64(optimizedTime))
			}
		}

		for _, id := range ctl.CallSites() {
			cs, _ := ctl.CallSite(id)
			fmt.Printf("call site %q: %s after %d rounds, %d compilations\n", id, cs.Active(), cs.Round(), cs.History().Len())
		}

		if dt != nil {
			printSummary(trace.Summarize(dt.Decisions))
			if traceDBPath != "" {
				if err := saveTrace(traceDBPath, ctlCfg.Seed, runLabel, dt.Decisions); err != nil {
					logrus.Fatalf("%v", err)
				}
			}
		} else if traceDBPath != "" {
			logrus.Warnf("--trace-db ignored: trace level is none")
		}

		if printMetrics {
			if err := dumpMetrics(registry); err != nil {
				logrus.Fatalf("%v", err)
			}
		}
		if optimized.StepErrors > 0 {
			logrus.Warnf("%d steps reported invariant violations", optimized.StepErrors)
		}
		logrus.Info("Run complete.")
	},
}

func setLogLevel(name string) {
	level, err := logrus.ParseLevel(name)
	if err != nil {
		logrus.Fatalf("Invalid log level: %s", name)
	}
	logrus.SetLevel(level)
}

func newGenerator(spec workload.Spec, seed int64) *workload.Generator {
	rng := jit.NewPartitionedRNG(jit.NewRunKey(seed)).ForSubsystem(jit.SubsystemWorkload)
	return workload.NewGenerator(spec, rng)
}

func saveTrace(path string, seed int64, label string, records []trace.DecisionRecord) error {
	store, err := trace.OpenStore(path)
	if err != nil {
		return fmt.Errorf("opening trace db: %w", err)
	}
	defer store.Close()
	runID, err := store.SaveRun(seed, label, records)
	if err != nil {
		return fmt.Errorf("saving trace: %w", err)
	}
	fmt.Printf("trace saved: run %s (%d decisions) in %s\n", runID, len(records), path)
	return nil
}

func dumpMetrics(g prometheus.Gatherer) error {
	families, err := g.Gather()
	if err != nil {
		return fmt.Errorf("gathering metrics: %w", err)
	}
	enc := expfmt.NewEncoder(os.Stdout, expfmt.NewFormat(expfmt.TypeTextPlain))
	for _, mf := range families {
		if err := enc.Encode(mf); err != nil {
			return fmt.Errorf("encoding metrics: %w", err)
		}
	}
	return nil
}

// Execute runs the CLI root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// init sets up CLI flags and subcommands
func init() {
	runCmd.Flags().StringVar(&configPath, "config", "", "YAML run configuration (call sites, defaults, workload)")
	runCmd.Flags().Int64Var(&seed, "seed", 42, "Seed for profiling and workload generation (overrides config)")
	runCmd.Flags().IntVar(&batches, "batches", 0, "Number of batches (0 = length of all workload phases)")
	runCmd.Flags().IntVar(&iterations, "iterations", 0, "Dispatches per batch (0 = from config)")
	runCmd.Flags().StringVar(&logLevel, "log", "warn", "Log level (trace, debug, info, warn, error, fatal, panic)")
	runCmd.Flags().StringVar(&traceLevel, "trace-level", "none", "Decision trace level (none, changes, decisions)")
	runCmd.Flags().StringVar(&traceDBPath, "trace-db", "", "SQLite file to persist the decision trace")
	runCmd.Flags().StringVar(&runLabel, "label", "", "Label stored with the persisted run")
	runCmd.Flags().BoolVar(&printMetrics, "metrics", false, "Print Prometheus metrics after the run")
	runCmd.Flags().BoolVar(&skipBaseline, "skip-baseline", false, "Skip the generic-dispatch equivalence run")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(inspectCmd)
	rootCmd.AddCommand(validateCmd)
}
