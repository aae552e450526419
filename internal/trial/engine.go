package trial

import (
	"fmt"

	"paraplan/internal/config"
)

// Engine is the typed boundary to an external test-execution engine: it
// knows how to shape an invocation for a trial config and how to read the
// per-unit outcome stream back. Swapping engines never touches the
// harness, validator, or optimizer.
type Engine interface {
	// Name identifies the engine adapter.
	Name() string

	// Binary is the executable to invoke.
	Binary() string

	// Args builds the argument list for one trial against tree.
	Args(tree string, cfg Config) []string

	// CollectArgs builds a collection-only warm-up invocation.
	CollectArgs(tree string) []string

	// Dir is the working directory for an invocation against tree.
	// Empty means inherit the planner's working directory.
	Dir(tree string) string

	// ParseOutcomes extracts the unit name -> outcome map from raw engine
	// output. Units the engine skipped are absent.
	ParseOutcomes(output string) map[string]Outcome

	// RenderCommand renders a human-runnable invocation recommendation for
	// a category ("" means full suite) at a worker count.
	RenderCommand(category string, workers int) string
}

// NewEngine builds the configured engine adapter.
func NewEngine(cfg config.EngineConfig) (Engine, error) {
	switch cfg.Name {
	case "pytest":
		return NewPytestEngine(cfg.Binary), nil
	case "gotest":
		return NewGoTestEngine(cfg.Binary), nil
	default:
		return nil, fmt.Errorf("unknown engine %q", cfg.Name)
	}
}
