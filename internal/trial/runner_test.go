package trial

import (
	"bytes"
	"context"
	"fmt"
	"testing"
	"time"

	"go.uber.org/goleak"

	"paraplan/internal/config"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// scriptEngine drives a shell script instead of a real test engine so the
// runner's process handling can be exercised hermetically.
type scriptEngine struct {
	script string
}

func (e *scriptEngine) Name() string           { return "script" }
func (e *scriptEngine) Binary() string         { return "sh" }
func (e *scriptEngine) Dir(tree string) string { return "" }

func (e *scriptEngine) CollectArgs(tree string) []string {
	return []string{"-c", "true"}
}
func (e *scriptEngine) Args(tree string, cfg Config) []string {
	return []string{"-c", e.script}
}
func (e *scriptEngine) ParseOutcomes(output string) map[string]Outcome {
	return NewPytestEngine("").ParseOutcomes(output)
}
func (e *scriptEngine) RenderCommand(category string, workers int) string {
	return fmt.Sprintf("sh -c %q", e.script)
}

func newScriptRunner(script string, ceiling time.Duration) *Runner {
	return NewRunner(&scriptEngine{script: script},
		config.EngineConfig{Tree: "tests"},
		config.BenchConfig{TrialCeiling: ceiling},
		nil)
}

func TestRunnerRun_CapturesOutcomesAndTiming(t *testing.T) {
	r := newScriptRunner("printf 'tests/test_a.py::test_ok PASSED\\ntests/test_a.py::test_bad FAILED\\n'", time.Minute)

	result, err := r.Run(context.Background(), Config{Workers: 1, Label: "baseline"})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if result.ExitStatus != 0 {
		t.Errorf("expected exit 0, got %d", result.ExitStatus)
	}
	if result.DurationSeconds <= 0 {
		t.Errorf("expected positive wall-clock duration, got %f", result.DurationSeconds)
	}
	if result.TotalUnits != 2 || len(result.Outcomes) != 2 {
		t.Fatalf("expected 2 outcomes, got %+v", result.Outcomes)
	}
	if result.Outcomes["tests/test_a.py::test_bad"] != OutcomeFailed {
		t.Errorf("expected failed outcome, got %s", result.Outcomes["tests/test_a.py::test_bad"])
	}
}

func TestRunnerRun_NonzeroExitIsNotAnError(t *testing.T) {
	r := newScriptRunner("printf 'tests/test_a.py::test_bad FAILED\\n'; exit 1", time.Minute)

	result, err := r.Run(context.Background(), Config{Workers: 2, Label: "workers-2"})
	if err != nil {
		t.Fatalf("unit failures must not be runner errors: %v", err)
	}
	if result.ExitStatus != 1 {
		t.Errorf("expected exit 1, got %d", result.ExitStatus)
	}
	if len(result.Outcomes) != 1 {
		t.Errorf("outcome map must survive a nonzero exit, got %+v", result.Outcomes)
	}
}

func TestRunnerRun_UnlaunchableEngineIsFatal(t *testing.T) {
	r := NewRunner(&missingEngine{},
		config.EngineConfig{Tree: "tests"},
		config.BenchConfig{TrialCeiling: time.Minute},
		nil)

	if _, err := r.Run(context.Background(), Config{Workers: 1}); err == nil {
		t.Fatal("expected fatal error for unlaunchable engine")
	}
	if err := r.Warmup(context.Background()); err == nil {
		t.Fatal("expected fatal warm-up error for unlaunchable engine")
	}
}

type missingEngine struct{ scriptEngine }

func (e *missingEngine) Binary() string { return "/nonexistent/paraplan-engine" }

func TestRunnerRun_CeilingProducesTimeout(t *testing.T) {
	r := newScriptRunner("sleep 10", 100*time.Millisecond)

	result, err := r.Run(context.Background(), Config{Workers: 4, Label: "workers-4"})
	if err != nil {
		t.Fatalf("timeout must be a reported state, not an error: %v", err)
	}
	if !result.TimedOut {
		t.Error("expected TimedOut")
	}
	if result.Viable() {
		t.Error("timed-out trial must not be viable")
	}
}

func TestRunnerRun_RejectsNegativeWorkers(t *testing.T) {
	r := newScriptRunner("true", time.Minute)
	if _, err := r.Run(context.Background(), Config{Workers: -1}); err == nil {
		t.Fatal("expected validation error")
	}
}

func TestRunnerWarmup(t *testing.T) {
	r := newScriptRunner("true", time.Minute)
	if err := r.Warmup(context.Background()); err != nil {
		t.Fatalf("Warmup failed: %v", err)
	}
}

func TestLimitedWriter(t *testing.T) {
	var buf bytes.Buffer
	lw := &limitedWriter{w: &buf, max: 5}

	n, err := lw.Write([]byte("abcdefgh"))
	if err != nil || n != 8 {
		t.Fatalf("Write returned (%d, %v), want (8, nil)", n, err)
	}
	if buf.String() != "abcde" {
		t.Errorf("expected capped output, got %q", buf.String())
	}

	// Past the cap everything is swallowed without error.
	if n, err := lw.Write([]byte("more")); err != nil || n != 4 {
		t.Errorf("Write past cap returned (%d, %v)", n, err)
	}
}
