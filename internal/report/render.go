// Package report renders planner artifacts for the terminal and persists
// them as JSON documents.
package report

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"paraplan/internal/bench"
	"paraplan/internal/classify"
	"paraplan/internal/consistency"
	"paraplan/internal/optimize"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#2196F3"))
	okStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#8BC34A"))
	warnStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFC107"))
	badStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#e53935"))
	mutedStyle = lipgloss.NewStyle().Faint(true)
)

// RenderClassification summarizes a classification report.
func RenderClassification(r *classify.Report) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Classification") + "\n")

	counts := r.Counts()
	for _, cat := range classify.Categories {
		b.WriteString(fmt.Sprintf("  %-14s %d units\n", string(cat)+":", counts[cat]))
	}
	b.WriteString(fmt.Sprintf("  %-14s %d units\n", "total:", len(r.Units)))

	for _, pe := range r.Errors {
		b.WriteString(badStyle.Render(fmt.Sprintf("  parse error: %s (%s)", pe.File, pe.Detail)) + "\n")
	}
	for _, f := range r.Findings {
		b.WriteString(warnStyle.Render(fmt.Sprintf("  shared state: %s:%d %s", f.File, f.Line, f.Detail)) + "\n")
	}
	if len(r.Errors) == 0 && len(r.Findings) == 0 {
		b.WriteString(okStyle.Render("  no parse errors, no shared-state findings") + "\n")
	}
	return b.String()
}

// RenderBenchmark summarizes a benchmark report, gate applied with
// truncation semantics.
func RenderBenchmark(r *bench.Report, gate int) string {
	var b strings.Builder
	scope := r.Marker
	if scope == "" {
		scope = "all"
	}
	b.WriteString(titleStyle.Render("Benchmark ("+scope+")") + "\n")
	b.WriteString(fmt.Sprintf("  baseline: %.2fs for %d units\n",
		r.Baseline.DurationSeconds, r.Baseline.TotalUnits))

	labels := make([]string, 0, len(r.Trials))
	for label := range r.Trials {
		labels = append(labels, label)
	}
	sort.Strings(labels)

	for _, label := range labels {
		result := r.Trials[label]
		if result.TimedOut {
			b.WriteString(badStyle.Render(fmt.Sprintf("  %-12s timed out (nonviable)", label)) + "\n")
			continue
		}
		improvement := r.Improvement[label]
		analysis := r.Analysis[label]
		line := fmt.Sprintf("  %-12s %6.2fs  %3d%% faster  %.1fx speedup",
			label, result.DurationSeconds, bench.TruncatePercent(improvement), analysis.SpeedupFactor)
		if bench.MeetsGate(improvement, gate) {
			b.WriteString(okStyle.Render(line) + "\n")
		} else {
			b.WriteString(line + "\n")
		}
	}
	return b.String()
}

// RenderVerdicts summarizes consistency verdicts.
func RenderVerdicts(verdicts []consistency.Verdict) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Consistency") + "\n")
	for _, v := range verdicts {
		if v.Consistent() {
			b.WriteString(okStyle.Render(fmt.Sprintf("  %s: consistent with %s", v.TrialLabel, v.BaselineLabel)) + "\n")
			continue
		}
		b.WriteString(badStyle.Render(fmt.Sprintf(
			"  %s: MISMATCH vs %s (exit match: %v, outcomes match: %v)",
			v.TrialLabel, v.BaselineLabel, v.ExitStatusMatch, v.OutcomeSetMatch)) + "\n")
		for _, name := range v.Mismatched {
			b.WriteString(badStyle.Render("    "+name) + "\n")
		}
	}
	return b.String()
}

// RenderPlan summarizes an optimization plan.
func RenderPlan(p *optimize.Plan) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Optimization Plan") + "\n")

	keys := make([]string, 0, len(p.PerCategory))
	for key := range p.PerCategory {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		entry := p.PerCategory[key]
		b.WriteString(fmt.Sprintf("  %-14s %d workers  %s\n", key+":", entry.Workers, entry.Command))
		b.WriteString(mutedStyle.Render("    "+entry.Justification) + "\n")
	}

	recKeys := make([]string, 0, len(p.Recommendations))
	for key := range p.Recommendations {
		recKeys = append(recKeys, key)
	}
	sort.Strings(recKeys)
	b.WriteString(titleStyle.Render("Recommended Commands") + "\n")
	for _, key := range recKeys {
		b.WriteString(fmt.Sprintf("  %-14s %s\n", key+":", p.Recommendations[key]))
	}
	return b.String()
}
