package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"paraplan/internal/classify"
	"paraplan/internal/config"
	"paraplan/internal/report"
)

// classifyCmd scans the test tree and assigns categories.
var classifyCmd = &cobra.Command{
	Use:   "classify",
	Short: "Classify every test unit by parallel-safety category",
	Long: `Scans the test source tree, parses each test file into a syntax tree,
and assigns every discovered unit one of three categories:

  fast-isolated  safe to fan out aggressively
  workflow       multi-step or interaction-heavy
  heavy          performance-sensitive or long-running

A file that fails to parse excludes its units from classification (fails
closed) and is reported; sibling files are unaffected. Shared-state
findings (class-level mutable attributes, broadly scoped fixtures) are
reported as advisories.`,
	RunE: runClassify,
}

func runClassify(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	classification, err := classifyTree(cmd, cfg)
	if err != nil {
		return err
	}

	path := cfg.ReportPath(cfg.Reports.Classification)
	if err := report.WriteJSON(path, classification); err != nil {
		return fmt.Errorf("classify phase: %w", err)
	}
	logger.Info("Classification written", zap.String("path", path))

	cmd.Print(report.RenderClassification(classification))
	return nil
}

// classifyTree runs the classifier against the configured tree.
func classifyTree(cmd *cobra.Command, cfg *config.Config) (*classify.Report, error) {
	classifier, err := classify.New(cfg.Classify, logger)
	if err != nil {
		return nil, fmt.Errorf("classify phase: %w", err)
	}
	classification, err := classifier.ClassifyTree(cmd.Context(), cfg.Engine.Tree)
	if err != nil {
		return nil, fmt.Errorf("classify phase: %w", err)
	}
	return classification, nil
}
