// Package trial invokes the external test-execution engine once per trial
// and captures per-unit outcomes plus wall-clock timing measured by the
// caller, not trusted from the engine's self-reported numbers.
package trial

import (
	"fmt"
	"runtime"
)

// Outcome is the final result of one test unit within a trial.
type Outcome string

const (
	OutcomePassed Outcome = "passed"
	OutcomeFailed Outcome = "failed"
	OutcomeError  Outcome = "error"
)

// Config is an immutable trial configuration tuple.
// Workers == 1 denotes sequential execution; Workers == 0 is reserved for
// "engine auto" and must be resolved before comparison logic runs.
type Config struct {
	// Workers is the engine worker count.
	Workers int `json:"workers"`

	// Units restricts the trial to named units. Empty means the full subset
	// selected by Marker.
	Units []string `json:"units,omitempty"`

	// Marker scopes the trial to one category. Empty means all units.
	Marker string `json:"marker,omitempty"`

	// Label identifies this configuration in reports.
	Label string `json:"label"`
}

// Validate reports malformed configurations. A negative worker count is a
// fatal configuration error, never silently corrected.
func (c Config) Validate() error {
	if c.Workers < 0 {
		return fmt.Errorf("negative worker count %d in trial config %q", c.Workers, c.Label)
	}
	return nil
}

// Resolved returns a copy with Workers == 0 replaced by a concrete count.
func (c Config) Resolved() Config {
	if c.Workers == 0 {
		c.Workers = runtime.NumCPU()
	}
	return c
}

// Sequential reports whether this is the baseline shape.
func (c Config) Sequential() bool {
	return c.Workers == 1
}

// Result is one trial's outcome. Owned by the harness that requested it and
// never mutated after construction.
type Result struct {
	Config Config `json:"config"`

	// DurationSeconds is wall-clock time around the whole engine process,
	// startup and teardown included.
	DurationSeconds float64 `json:"duration_seconds"`

	// ExitStatus is the engine process exit code. Nonzero means the engine
	// reported unit failures; it is not a trial runner error.
	ExitStatus int `json:"exit_status"`

	// Outcomes maps unit name to final outcome. Execution order is
	// irrelevant; only the final outcome per named unit matters.
	Outcomes map[string]Outcome `json:"outcomes"`

	// TotalUnits is the number of units observed. Always len(Outcomes).
	TotalUnits int `json:"total_units"`

	// TimedOut marks a trial killed at the wall-clock ceiling. Such a trial
	// is nonviable for optimization, distinct from a unit failure.
	TimedOut bool `json:"timed_out,omitempty"`

	// Output is the raw engine output, kept for diagnostics only.
	Output string `json:"-"`
}

// Viable reports whether this trial may enter the optimizer's candidate set.
func (r *Result) Viable() bool {
	return !r.TimedOut
}

// Clean reports whether the engine completed with a zero exit status.
func (r *Result) Clean() bool {
	return !r.TimedOut && r.ExitStatus == 0
}
