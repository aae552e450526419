// Package optimize selects a worker count per category from benchmarked
// candidates. The selection rule is a strict, unconditional tie-break:
// consistency first, duration second. A fast configuration that changed any
// outcome is never recommended.
package optimize

import (
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"paraplan/internal/consistency"
	"paraplan/internal/trial"
)

// FullSuite is the plan key covering all categories at once.
const FullSuite = "all"

// CommandRenderer renders a recommended engine invocation.
type CommandRenderer interface {
	RenderCommand(category string, workers int) string
}

// Candidate pairs one parallel trial with its consistency verdict.
type Candidate struct {
	Result  *trial.Result
	Verdict consistency.Verdict
}

// viable excludes timed-out trials from the candidate set: "not viable" is
// never "fastest".
func (c Candidate) viable() bool {
	return c.Result != nil && c.Result.Viable()
}

// PlanEntry is the chosen configuration for one category.
type PlanEntry struct {
	Workers         int     `json:"workers"`
	Command         string  `json:"command"`
	DurationSeconds float64 `json:"duration_seconds,omitempty"`
	Consistent      bool    `json:"consistent"`

	// Justification names the trial the choice rests on, or explains the
	// sequential fallback.
	Justification string `json:"justification"`
}

// Plan is the terminal artifact: write-once, read-only once produced.
type Plan struct {
	GeneratedAt time.Time `json:"generated_at"`

	PerCategory map[string]PlanEntry `json:"perCategory"`

	// Recommendations are rendered invocations for common workflows.
	Recommendations map[string]string `json:"recommendations"`
}

// Optimizer builds plans from benchmarked candidates.
type Optimizer struct {
	renderer CommandRenderer
	logger   *zap.Logger
}

// New returns an optimizer rendering commands through renderer.
func New(renderer CommandRenderer, logger *zap.Logger) *Optimizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Optimizer{renderer: renderer, logger: logger}
}

// BuildPlan selects, for each category key (FullSuite included when
// present), the lowest-duration candidate whose verdict is fully
// consistent. A category with no consistent parallel candidate falls back
// to one worker.
func (o *Optimizer) BuildPlan(candidates map[string][]Candidate) *Plan {
	plan := &Plan{
		GeneratedAt:     time.Now(),
		PerCategory:     make(map[string]PlanEntry),
		Recommendations: make(map[string]string),
	}

	keys := make([]string, 0, len(candidates))
	for key := range candidates {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		entry := o.selectFor(key, candidates[key])
		plan.PerCategory[key] = entry
		o.logger.Info("Category selection",
			zap.String("category", key),
			zap.Int("workers", entry.Workers),
			zap.Bool("consistent", entry.Consistent))
	}

	o.render(plan)
	return plan
}

// selectFor applies the selection rule to one category's candidates.
func (o *Optimizer) selectFor(key string, candidates []Candidate) PlanEntry {
	var best Candidate
	for _, c := range candidates {
		if !c.viable() || !c.Verdict.Consistent() {
			continue
		}
		switch {
		case best.Result == nil:
			best = c
		case c.Result.DurationSeconds < best.Result.DurationSeconds:
			best = c
		case c.Result.DurationSeconds == best.Result.DurationSeconds &&
			c.Result.Config.Workers < best.Result.Config.Workers:
			best = c
		}
	}

	category := key
	if key == FullSuite {
		category = ""
	}

	if best.Result == nil {
		// Correctness dominates speed: without a consistent parallel
		// configuration the recommendation is sequential, never the
		// inconsistent-but-fast option.
		return PlanEntry{
			Workers:       1,
			Command:       o.renderer.RenderCommand(category, 1),
			Consistent:    true,
			Justification: "no consistent parallel configuration; sequential fallback",
		}
	}

	return PlanEntry{
		Workers:         best.Result.Config.Workers,
		Command:         o.renderer.RenderCommand(category, best.Result.Config.Workers),
		DurationSeconds: best.Result.DurationSeconds,
		Consistent:      true,
		Justification: fmt.Sprintf("%s: %.2fs, outcomes identical to baseline",
			best.Result.Config.Label, best.Result.DurationSeconds),
	}
}

// render fills the recommendation groups: one command per category, the
// full-suite command, and a fast-feedback loop command.
func (o *Optimizer) render(plan *Plan) {
	for key, entry := range plan.PerCategory {
		plan.Recommendations[key] = entry.Command
	}
	if entry, ok := plan.PerCategory[FullSuite]; ok {
		plan.Recommendations["full_suite"] = entry.Command
	}
	// Fast feedback runs only the cheapest tier during development.
	if entry, ok := plan.PerCategory["fast-isolated"]; ok {
		plan.Recommendations["fast_feedback"] = entry.Command
	} else if entry, ok := plan.PerCategory[FullSuite]; ok {
		plan.Recommendations["fast_feedback"] = entry.Command
	}
}
