package report

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"paraplan/internal/bench"
	"paraplan/internal/classify"
	"paraplan/internal/consistency"
	"paraplan/internal/optimize"
	"paraplan/internal/trial"
)

func TestWriteJSONAtomicReplace(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "reports", "plan.json")

	require.NoError(t, WriteJSON(path, map[string]int{"workers": 4}))

	var first map[string]int
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &first))
	assert.Equal(t, 4, first["workers"])

	// A second write replaces the document wholesale.
	require.NoError(t, WriteJSON(path, map[string]int{"workers": 2}))
	data, err = os.ReadFile(path)
	require.NoError(t, err)
	var second map[string]int
	require.NoError(t, json.Unmarshal(data, &second))
	assert.Equal(t, 2, second["workers"])

	// No temp files survive in the report directory.
	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "plan.json", entries[0].Name())
}

func TestWriteJSONRejectsUnmarshalable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.json")
	err := WriteJSON(path, func() {})
	assert.Error(t, err)
	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr))
}

func TestRenderClassification(t *testing.T) {
	r := &classify.Report{
		Root: "tests",
		Units: []classify.TestUnit{
			{Name: "tests/a.py::test_one", Category: classify.CategoryFastIsolated},
			{Name: "tests/a.py::test_perf", Category: classify.CategoryHeavy},
		},
		Errors: []classify.ParseError{
			{File: "tests/broken.py", Detail: "syntax error"},
		},
		Findings: []classify.Finding{
			{File: "tests/a.py", Line: 12, Kind: "class_mutable_state", Detail: "cache = {}"},
		},
	}

	out := RenderClassification(r)
	assert.Contains(t, out, "fast-isolated")
	assert.Contains(t, out, "heavy")
	assert.Contains(t, out, "2 units")
	assert.Contains(t, out, "tests/broken.py")
	assert.Contains(t, out, "tests/a.py:12")
}

func TestRenderBenchmark(t *testing.T) {
	r := &bench.Report{
		Baseline: &trial.Result{
			Config:          trial.Config{Workers: 1, Label: "baseline"},
			DurationSeconds: 10.0,
			TotalUnits:      12,
		},
		Trials: map[string]*trial.Result{
			"workers-4": {
				Config:          trial.Config{Workers: 4, Label: "workers-4"},
				DurationSeconds: 4.0,
			},
			"workers-8": {
				Config:   trial.Config{Workers: 8, Label: "workers-8"},
				TimedOut: true,
			},
		},
		Improvement: map[string]float64{"workers-4": 60.0},
		Analysis:    map[string]bench.Analysis{"workers-4": {SpeedupFactor: 2.5}},
	}

	out := RenderBenchmark(r, 50)
	assert.Contains(t, out, "baseline: 10.00s for 12 units")
	assert.Contains(t, out, "60% faster")
	assert.Contains(t, out, "2.5x speedup")
	assert.Contains(t, out, "timed out (nonviable)")
}

func TestRenderVerdicts(t *testing.T) {
	verdicts := []consistency.Verdict{
		{BaselineLabel: "baseline", TrialLabel: "workers-2", ExitStatusMatch: true, OutcomeSetMatch: true},
		{
			BaselineLabel: "baseline", TrialLabel: "workers-4",
			ExitStatusMatch: true, OutcomeSetMatch: false,
			Mismatched: []string{"tests/a.py::test_flaky"},
		},
	}

	out := RenderVerdicts(verdicts)
	assert.Contains(t, out, "workers-2: consistent")
	assert.Contains(t, out, "workers-4: MISMATCH")
	assert.Contains(t, out, "tests/a.py::test_flaky")
}

func TestRenderPlan(t *testing.T) {
	p := &optimize.Plan{
		PerCategory: map[string]optimize.PlanEntry{
			"all": {
				Workers:       4,
				Command:       "pytest -n 4",
				Consistent:    true,
				Justification: "workers-4: 4.00s, outcomes identical to baseline",
			},
			"heavy": {
				Workers:       1,
				Command:       "pytest -m 'heavy'",
				Consistent:    true,
				Justification: "no consistent parallel configuration; sequential fallback",
			},
		},
		Recommendations: map[string]string{
			"full_suite":    "pytest -n 4",
			"fast_feedback": "pytest -m 'fast_isolated' -n 4",
		},
	}

	out := RenderPlan(p)
	assert.Contains(t, out, "pytest -n 4")
	assert.Contains(t, out, "sequential fallback")
	assert.Contains(t, out, "fast_feedback")
	// Categories render in sorted order.
	assert.Less(t, strings.Index(out, "all:"), strings.Index(out, "heavy:"))
}
