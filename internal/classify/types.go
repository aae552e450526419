package classify

import "sort"

// Category is the parallel-safety tier assigned to a test unit.
type Category string

const (
	// CategoryFastIsolated marks units safe to fan out aggressively.
	CategoryFastIsolated Category = "fast-isolated"
	// CategoryWorkflow marks multi-step or interaction-heavy units.
	CategoryWorkflow Category = "workflow"
	// CategoryHeavy marks performance-sensitive or long-running units.
	CategoryHeavy Category = "heavy"
)

// Categories lists all tiers in conservative-first order.
var Categories = []Category{CategoryHeavy, CategoryWorkflow, CategoryFastIsolated}

// Signals are the static counts classification is decided on.
type Signals struct {
	// Interactions counts assertion-on-mock / cross-component call patterns.
	Interactions int `json:"interactions"`
	// Workflow is true when multi-step sequencing patterns are present.
	Workflow bool `json:"workflow"`
	// Slow is true when performance/timeout/monitoring patterns are present.
	Slow bool `json:"slow"`
}

// TestUnit is a single named, independently executable test case.
// Identity is the Name string; units are re-discovered fresh each run.
type TestUnit struct {
	// Name is the stable unique id, e.g. "tests/test_vm.py::TestStart::test_ok".
	Name string `json:"name"`
	// File is the source file relative to the scanned root.
	File string `json:"file"`
	// Line is the 1-based line of the unit definition.
	Line int `json:"line"`
	// Category is written exactly once by the classifier.
	Category Category `json:"category"`
	// Signals are the counts the category was decided on.
	Signals Signals `json:"signals"`
}

// ParseError reports a source file that failed structural parsing.
// All units in such a file are excluded from classification (fails closed).
type ParseError struct {
	File   string `json:"file"`
	Detail string `json:"detail"`
}

// Finding is an advisory shared-state observation: static state that can
// break outcome consistency once units run in parallel.
type Finding struct {
	File   string `json:"file"`
	Line   int    `json:"line"`
	Kind   string `json:"kind"` // "class_mutable_state" or "shared_fixture_scope"
	Detail string `json:"detail"`
}

// Report is the classifier's terminal artifact.
type Report struct {
	Root     string       `json:"root"`
	Units    []TestUnit   `json:"units"`
	Errors   []ParseError `json:"parse_errors,omitempty"`
	Findings []Finding    `json:"shared_state_findings,omitempty"`
}

// ByCategory groups unit names per category, each list sorted.
func (r *Report) ByCategory() map[Category][]string {
	groups := make(map[Category][]string)
	for _, u := range r.Units {
		groups[u.Category] = append(groups[u.Category], u.Name)
	}
	for _, names := range groups {
		sort.Strings(names)
	}
	return groups
}

// Counts returns the number of units per category.
func (r *Report) Counts() map[Category]int {
	counts := make(map[Category]int)
	for _, u := range r.Units {
		counts[u.Category]++
	}
	return counts
}
