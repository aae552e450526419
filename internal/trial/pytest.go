package trial

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// PytestEngine drives a pytest suite through pytest-xdist.
type PytestEngine struct {
	binary string
}

// NewPytestEngine returns a pytest adapter. An empty binary uses "pytest"
// from PATH.
func NewPytestEngine(binary string) *PytestEngine {
	if binary == "" {
		binary = "pytest"
	}
	return &PytestEngine{binary: binary}
}

func (e *PytestEngine) Name() string   { return "pytest" }
func (e *PytestEngine) Binary() string { return e.binary }

// Dir inherits the planner's working directory; the tree is an argument.
func (e *PytestEngine) Dir(tree string) string { return "" }

// Args builds the pytest invocation. Verbose mode is required so every unit
// reports its outcome on its own line; tracebacks are suppressed since only
// outcomes matter to the planner.
func (e *PytestEngine) Args(tree string, cfg Config) []string {
	var args []string
	if len(cfg.Units) > 0 {
		// Explicit node ids scope the trial without requiring the suite to
		// carry registered markers; the marker is informational here.
		args = append(args, cfg.Units...)
	} else {
		args = append(args, tree)
		if cfg.Marker != "" {
			args = append(args, "-m", markerExpr(cfg.Marker))
		}
	}
	args = append(args, "-v", "--tb=no")
	if cfg.Workers > 1 {
		args = append(args, "-n", strconv.Itoa(cfg.Workers))
	}
	return args
}

// CollectArgs builds a collection-only invocation used for warm-up.
func (e *PytestEngine) CollectArgs(tree string) []string {
	return []string{tree, "--collect-only", "-q"}
}

// outcomeLineRe matches pytest -v result lines:
//
//	tests/test_vm.py::TestStart::test_ok PASSED  [ 12%]
var outcomeLineRe = regexp.MustCompile(`^(\S+::\S+)\s+(PASSED|FAILED|ERROR|XPASS|XFAIL)\b`)

// ParseOutcomes reads pytest verbose output into the unit outcome map.
// Skipped units are absent: they produced no outcome to compare.
func (e *PytestEngine) ParseOutcomes(output string) map[string]Outcome {
	outcomes := make(map[string]Outcome)
	for _, line := range strings.Split(output, "\n") {
		m := outcomeLineRe.FindStringSubmatch(strings.TrimSpace(line))
		if m == nil {
			continue
		}
		switch m[2] {
		case "PASSED", "XFAIL":
			outcomes[m[1]] = OutcomePassed
		case "FAILED", "XPASS":
			outcomes[m[1]] = OutcomeFailed
		case "ERROR":
			outcomes[m[1]] = OutcomeError
		}
	}
	return outcomes
}

// RenderCommand renders the recommended invocation for humans and CI.
func (e *PytestEngine) RenderCommand(category string, workers int) string {
	cmd := e.binary
	if category != "" {
		cmd += fmt.Sprintf(" -m '%s'", markerExpr(category))
	}
	if workers > 1 {
		cmd += fmt.Sprintf(" -n %d", workers)
	}
	return cmd
}

// markerExpr maps a category name to a legal pytest marker identifier.
func markerExpr(category string) string {
	return strings.ReplaceAll(category, "-", "_")
}
