// Package consistency compares a sequential baseline against a parallel
// trial over the same unit subset. A mismatch is a suspected shared-state
// or ordering-dependency defect in the tested system; it is reported with
// the exact unit names involved and never retried or remediated here.
package consistency

import (
	"sort"

	"paraplan/internal/trial"
)

// Verdict pairs a baseline with a parallel trial.
type Verdict struct {
	BaselineLabel string `json:"baseline_label"`
	TrialLabel    string `json:"trial_label"`

	// ExitStatusMatch is true when both trials agree on overall pass/fail.
	ExitStatusMatch bool `json:"exit_status_match"`

	// OutcomeSetMatch is true when the per-unit outcome maps are equal as
	// sets. Execution order is explicitly irrelevant.
	OutcomeSetMatch bool `json:"outcome_set_match"`

	// Mismatched holds the sorted symmetric difference of unit names whose
	// outcomes disagree or that one trial is missing. Empty when consistent.
	Mismatched []string `json:"mismatched_units,omitempty"`
}

// Consistent requires both checks to hold.
func (v Verdict) Consistent() bool {
	return v.ExitStatusMatch && v.OutcomeSetMatch
}

// Compare produces the verdict for a baseline/parallel pair.
func Compare(baseline, parallel *trial.Result) Verdict {
	v := Verdict{
		BaselineLabel:   baseline.Config.Label,
		TrialLabel:      parallel.Config.Label,
		ExitStatusMatch: baseline.Clean() == parallel.Clean(),
	}

	mismatched := make(map[string]bool)
	for name, outcome := range baseline.Outcomes {
		if other, ok := parallel.Outcomes[name]; !ok || other != outcome {
			mismatched[name] = true
		}
	}
	for name := range parallel.Outcomes {
		if _, ok := baseline.Outcomes[name]; !ok {
			mismatched[name] = true
		}
	}

	v.OutcomeSetMatch = len(mismatched) == 0
	if !v.OutcomeSetMatch {
		v.Mismatched = make([]string, 0, len(mismatched))
		for name := range mismatched {
			v.Mismatched = append(v.Mismatched, name)
		}
		sort.Strings(v.Mismatched)
	}
	return v
}
