package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"paraplan/internal/bench"
	"paraplan/internal/consistency"
	"paraplan/internal/report"
)

// validateCmd checks that parallel execution agrees with sequential.
var validateCmd = &cobra.Command{
	Use:   "validate-consistency",
	Short: "Verify parallel outcomes match the sequential baseline",
	Long: `Runs the sequential baseline plus every candidate worker count, then
compares per-unit outcome sets. A mismatch is a suspected shared-mutable-
state or ordering-dependency defect in the tested system; the specific
mismatched unit names are listed. Mismatches are findings, not planner
errors: the command still exits 0.`,
	RunE: runValidate,
}

func init() {
	validateCmd.Flags().StringVar(&benchWorkers, "workers", "", "comma-separated candidate worker counts (overrides config)")
}

// consistencyArtifact is the validate-consistency report document.
type consistencyArtifact struct {
	*bench.Report
	Verdicts []consistency.Verdict `json:"verdicts"`
}

func runValidate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := applyBenchFlags(cfg); err != nil {
		return err
	}

	_, runner, err := buildRunner(cfg)
	if err != nil {
		return fmt.Errorf("validate phase: %w", err)
	}
	harness := bench.NewHarness(runner, cfg.Bench, logger)

	result, err := harness.Run(cmd.Context(), "", nil, cfg.Bench.WorkerCandidates)
	if err != nil {
		return fmt.Errorf("validate phase: %w", err)
	}

	labels := make([]string, 0, len(result.Trials))
	for label := range result.Trials {
		labels = append(labels, label)
	}
	sort.Strings(labels)

	verdicts := make([]consistency.Verdict, 0, len(labels))
	for _, label := range labels {
		verdicts = append(verdicts, consistency.Compare(result.Baseline, result.Trials[label]))
	}

	path := cfg.ReportPath(cfg.Reports.Benchmark)
	artifact := consistencyArtifact{Report: result, Verdicts: verdicts}
	if err := report.WriteJSON(path, artifact); err != nil {
		return fmt.Errorf("validate phase: %w", err)
	}
	logger.Info("Consistency report written", zap.String("path", path))

	cmd.Print(report.RenderBenchmark(result, cfg.Bench.ImprovementGate))
	cmd.Print(report.RenderVerdicts(verdicts))
	return nil
}
