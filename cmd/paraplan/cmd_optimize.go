package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"paraplan/internal/bench"
	"paraplan/internal/classify"
	"paraplan/internal/consistency"
	"paraplan/internal/optimize"
	"paraplan/internal/report"
)

// optimizeCmd runs the whole pipeline and emits the plan.
var optimizeCmd = &cobra.Command{
	Use:   "optimize",
	Short: "Derive the recommended worker count per category",
	Long: `Runs the full pipeline: classify the suite, benchmark the full suite and
each category under every candidate worker count, validate parallel
outcomes against the sequential baseline, and select the lowest-duration
consistent configuration per category.

Correctness dominates speed: a category with no consistent parallel
configuration is recommended one worker, never an inconsistent-but-fast
option. Timed-out trials are nonviable and never selected.`,
	RunE: runOptimize,
}

func init() {
	optimizeCmd.Flags().StringVar(&benchWorkers, "workers", "", "comma-separated candidate worker counts (overrides config)")
	optimizeCmd.Flags().IntVar(&benchSamples, "samples", 0, "samples per configuration, median wins (overrides config)")
}

// scopeRun is one benchmark scope with its verdicts, persisted together.
type scopeRun struct {
	*bench.Report
	Verdicts []consistency.Verdict `json:"verdicts"`
}

func runOptimize(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := applyBenchFlags(cfg); err != nil {
		return err
	}

	classification, err := classifyTree(cmd, cfg)
	if err != nil {
		return err
	}
	if err := report.WriteJSON(cfg.ReportPath(cfg.Reports.Classification), classification); err != nil {
		return fmt.Errorf("classify phase: %w", err)
	}
	cmd.Print(report.RenderClassification(classification))
	if len(classification.Units) == 0 {
		return fmt.Errorf("optimize phase: no test units discovered under %s", cfg.Engine.Tree)
	}

	engine, runner, err := buildRunner(cfg)
	if err != nil {
		return fmt.Errorf("optimize phase: %w", err)
	}
	harness := bench.NewHarness(runner, cfg.Bench, logger)

	// Scopes: the full suite plus every category that has units.
	type scope struct {
		key   string
		units []string
	}
	scopes := []scope{{key: optimize.FullSuite}}
	groups := classification.ByCategory()
	for _, category := range classify.Categories {
		if units := groups[category]; len(units) > 0 {
			scopes = append(scopes, scope{key: string(category), units: units})
		}
	}

	runs := make(map[string]*scopeRun)
	candidates := make(map[string][]optimize.Candidate)
	for _, sc := range scopes {
		marker := sc.key
		if sc.key == optimize.FullSuite {
			marker = ""
		}
		result, err := harness.Run(cmd.Context(), marker, sc.units, cfg.Bench.WorkerCandidates)
		if err != nil {
			return fmt.Errorf("benchmark phase (%s): %w", sc.key, err)
		}

		labels := make([]string, 0, len(result.Trials))
		for label := range result.Trials {
			labels = append(labels, label)
		}
		sort.Strings(labels)

		run := &scopeRun{Report: result}
		for _, label := range labels {
			trialResult := result.Trials[label]
			verdict := consistency.Compare(result.Baseline, trialResult)
			run.Verdicts = append(run.Verdicts, verdict)
			candidates[sc.key] = append(candidates[sc.key], optimize.Candidate{
				Result:  trialResult,
				Verdict: verdict,
			})
		}
		runs[sc.key] = run

		cmd.Print(report.RenderBenchmark(result, cfg.Bench.ImprovementGate))
		cmd.Print(report.RenderVerdicts(run.Verdicts))
	}

	benchPath := cfg.ReportPath(cfg.Reports.Benchmark)
	if err := report.WriteJSON(benchPath, runs); err != nil {
		return fmt.Errorf("benchmark phase: %w", err)
	}
	logger.Info("Benchmark report written", zap.String("path", benchPath))

	optimizer := optimize.New(engine, logger)
	plan := optimizer.BuildPlan(candidates)

	planPath := cfg.ReportPath(cfg.Reports.Plan)
	if err := report.WriteJSON(planPath, plan); err != nil {
		return fmt.Errorf("optimize phase: %w", err)
	}
	logger.Info("Optimization plan written", zap.String("path", planPath))

	cmd.Print(report.RenderPlan(plan))
	return nil
}
