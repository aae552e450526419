// Package main implements the paraplan CLI: a test-parallelization planner
// that classifies test units, benchmarks the suite under candidate worker
// counts, verifies parallel outcomes against the sequential baseline, and
// recommends a worker count per category.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"paraplan/internal/config"
	"paraplan/internal/trial"
)

var (
	// Global flags
	verbose        bool
	cfgPath        string
	treeOverride   string
	engineOverride string
	reportDir      string

	// Logger
	logger *zap.Logger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "paraplan",
	Short: "paraplan - test-parallelization planner",
	Long: `paraplan inspects a test suite, classifies each unit by isolation and
runtime risk, benchmarks the suite under candidate worker counts, verifies
that parallel execution produces outcomes identical to sequential execution,
and recommends a worker count per category with measured speedup.

The test-execution engine (pytest or go test) runs as a subprocess; paraplan
never mutates the source tree it scans.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Initialize logger
		zcfg := zap.NewProductionConfig()
		if verbose {
			zcfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = zcfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

// loadConfig loads the YAML config and applies CLI flag overrides.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, err
	}
	if treeOverride != "" {
		cfg.Engine.Tree = treeOverride
	}
	if engineOverride != "" {
		cfg.Engine.Name = engineOverride
	}
	if reportDir != "" {
		cfg.Reports.Dir = reportDir
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// buildRunner wires the configured engine into a trial runner.
func buildRunner(cfg *config.Config) (trial.Engine, *trial.Runner, error) {
	engine, err := trial.NewEngine(cfg.Engine)
	if err != nil {
		return nil, nil, err
	}
	return engine, trial.NewRunner(engine, cfg.Engine, cfg.Bench, logger), nil
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "paraplan.yaml", "config file path")
	rootCmd.PersistentFlags().StringVar(&treeOverride, "tree", "", "test source tree (overrides config)")
	rootCmd.PersistentFlags().StringVar(&engineOverride, "engine", "", "test engine: pytest or gotest (overrides config)")
	rootCmd.PersistentFlags().StringVar(&reportDir, "report-dir", "", "report output directory (overrides config)")

	rootCmd.AddCommand(classifyCmd)
	rootCmd.AddCommand(benchmarkCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(optimizeCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
