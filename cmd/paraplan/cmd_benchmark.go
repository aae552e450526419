package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"paraplan/internal/bench"
	"paraplan/internal/classify"
	"paraplan/internal/config"
	"paraplan/internal/report"
)

var (
	benchCategories string
	benchWorkers    string
	benchSamples    int
)

// benchmarkCmd measures sequential vs parallel execution.
var benchmarkCmd = &cobra.Command{
	Use:   "benchmark",
	Short: "Benchmark the suite under candidate worker counts",
	Long: `Runs one sequential baseline trial, then one trial per candidate worker
count, strictly one after another. Reports the improvement percentage per
configuration relative to baseline, clamped to 0 when a parallel run is not
faster; raw durations are retained for diagnostics.

With --categories, each named category is benchmarked separately against
its own unit subset.`,
	RunE: runBenchmark,
}

func init() {
	benchmarkCmd.Flags().StringVar(&benchCategories, "categories", "", "comma-separated categories to benchmark separately (default: full suite)")
	benchmarkCmd.Flags().StringVar(&benchWorkers, "workers", "", "comma-separated candidate worker counts, e.g. 2,4,auto (overrides config)")
	benchmarkCmd.Flags().IntVar(&benchSamples, "samples", 0, "samples per configuration, median wins (overrides config)")
}

// applyBenchFlags folds the benchmark flags into the loaded config.
func applyBenchFlags(cfg *config.Config) error {
	if benchWorkers != "" {
		counts, err := config.ParseWorkerList(benchWorkers)
		if err != nil {
			return err
		}
		cfg.Bench.WorkerCandidates = counts
	}
	if benchSamples > 0 {
		cfg.Bench.Samples = benchSamples
	}
	return cfg.Validate()
}

func runBenchmark(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := applyBenchFlags(cfg); err != nil {
		return err
	}

	_, runner, err := buildRunner(cfg)
	if err != nil {
		return fmt.Errorf("benchmark phase: %w", err)
	}
	harness := bench.NewHarness(runner, cfg.Bench, logger)

	path := cfg.ReportPath(cfg.Reports.Benchmark)

	if benchCategories == "" {
		// Full suite, single report document.
		result, err := harness.Run(cmd.Context(), "", nil, cfg.Bench.WorkerCandidates)
		if err != nil {
			return fmt.Errorf("benchmark phase: %w", err)
		}
		if err := report.WriteJSON(path, result); err != nil {
			return fmt.Errorf("benchmark phase: %w", err)
		}
		logger.Info("Benchmark report written", zap.String("path", path))
		cmd.Print(report.RenderBenchmark(result, cfg.Bench.ImprovementGate))
		return nil
	}

	// Category-scoped benchmarking needs the classifier's unit subsets.
	classification, err := classifyTree(cmd, cfg)
	if err != nil {
		return err
	}
	groups := classification.ByCategory()

	reports := make(map[string]*bench.Report)
	for _, raw := range strings.Split(benchCategories, ",") {
		category := classify.Category(strings.TrimSpace(raw))
		units := groups[category]
		if len(units) == 0 {
			logger.Warn("No units in category, skipping", zap.String("category", string(category)))
			continue
		}
		result, err := harness.Run(cmd.Context(), string(category), units, cfg.Bench.WorkerCandidates)
		if err != nil {
			return fmt.Errorf("benchmark phase (%s): %w", category, err)
		}
		reports[string(category)] = result
		cmd.Print(report.RenderBenchmark(result, cfg.Bench.ImprovementGate))
	}
	if len(reports) == 0 {
		return fmt.Errorf("benchmark phase: no requested category has any units")
	}

	if err := report.WriteJSON(path, reports); err != nil {
		return fmt.Errorf("benchmark phase: %w", err)
	}
	logger.Info("Benchmark report written", zap.String("path", path))
	return nil
}
