package bench

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"paraplan/internal/config"
	"paraplan/internal/trial"
)

// stubRunner serves canned durations per worker count and records the call
// order so the protocol's sequencing is observable.
type stubRunner struct {
	durations map[int]float64
	outcomes  map[string]trial.Outcome
	timedOut  map[int]bool
	launchErr error
	warmups   int
	calls     []trial.Config
}

func (s *stubRunner) Warmup(ctx context.Context) error {
	s.warmups++
	return nil
}

func (s *stubRunner) Run(ctx context.Context, cfg trial.Config) (*trial.Result, error) {
	if s.launchErr != nil {
		return nil, s.launchErr
	}
	cfg = cfg.Resolved()
	s.calls = append(s.calls, cfg)
	duration, ok := s.durations[cfg.Workers]
	if !ok {
		return nil, fmt.Errorf("no canned duration for %d workers", cfg.Workers)
	}
	outcomes := s.outcomes
	if outcomes == nil {
		outcomes = map[string]trial.Outcome{"tests/test_a.py::test_ok": trial.OutcomePassed}
	}
	return &trial.Result{
		Config:          cfg,
		DurationSeconds: duration,
		Outcomes:        outcomes,
		TotalUnits:      len(outcomes),
		TimedOut:        s.timedOut[cfg.Workers],
	}, nil
}

func benchCfg() config.BenchConfig {
	cfg := config.DefaultConfig().Bench
	cfg.Warmup = true
	cfg.Samples = 1
	return cfg
}

func TestHarnessRun_Protocol(t *testing.T) {
	runner := &stubRunner{durations: map[int]float64{1: 10.0, 2: 6.0, 4: 4.0}}
	h := NewHarness(runner, benchCfg(), nil)

	report, err := h.Run(context.Background(), "", nil, []int{2, 4})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if runner.warmups != 1 {
		t.Errorf("expected one warm-up, got %d", runner.warmups)
	}
	// Baseline first, then candidates strictly in order, never overlapping.
	if len(runner.calls) != 3 || runner.calls[0].Workers != 1 ||
		runner.calls[1].Workers != 2 || runner.calls[2].Workers != 4 {
		t.Fatalf("unexpected trial order: %+v", runner.calls)
	}

	if report.Baseline == nil || report.Baseline.DurationSeconds != 10.0 {
		t.Fatalf("bad baseline: %+v", report.Baseline)
	}
	if got := report.Improvement["workers-4"]; got != 60.0 {
		t.Errorf("expected 60%% improvement for workers-4, got %f", got)
	}
	if got := report.Improvement["workers-2"]; got != 40.0 {
		t.Errorf("expected 40%% improvement for workers-2, got %f", got)
	}
	if a := report.Analysis["workers-4"]; a.SpeedupFactor != 2.5 || a.TimeSavedSeconds != 6.0 {
		t.Errorf("bad analysis: %+v", a)
	}
}

func TestHarnessRun_BaselineLaunchFailureIsFatal(t *testing.T) {
	runner := &stubRunner{launchErr: errors.New("pytest: command not found")}
	h := NewHarness(runner, benchCfg(), nil)

	if _, err := h.Run(context.Background(), "", nil, []int{2}); err == nil {
		t.Fatal("expected fatal error when the baseline cannot run")
	}
}

func TestHarnessRun_BaselineTimeoutIsFatal(t *testing.T) {
	runner := &stubRunner{
		durations: map[int]float64{1: 600.0, 2: 6.0},
		timedOut:  map[int]bool{1: true},
	}
	h := NewHarness(runner, benchCfg(), nil)

	if _, err := h.Run(context.Background(), "", nil, []int{2}); err == nil {
		t.Fatal("expected fatal error for a timed-out baseline")
	}
}

func TestHarnessRun_NegativeWorkersFatal(t *testing.T) {
	runner := &stubRunner{durations: map[int]float64{1: 10.0}}
	h := NewHarness(runner, benchCfg(), nil)

	if _, err := h.Run(context.Background(), "", nil, []int{-3}); err == nil {
		t.Fatal("expected fatal error for a negative candidate count")
	}
}

func TestHarnessRun_MedianSampling(t *testing.T) {
	cfg := benchCfg()
	cfg.Samples = 3
	cfg.Warmup = false
	runner := &stubRunner{durations: map[int]float64{1: 10.0, 2: 7.0}}
	h := NewHarness(runner, cfg, nil)

	report, err := h.Run(context.Background(), "", nil, []int{2})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	// 3 baseline samples + 3 candidate samples.
	if len(runner.calls) != 6 {
		t.Errorf("expected 6 trial invocations, got %d", len(runner.calls))
	}
	if report.Trials["workers-2"].DurationSeconds != 7.0 {
		t.Errorf("expected median duration 7.0, got %f", report.Trials["workers-2"].DurationSeconds)
	}
}

func TestHarnessRun_TimedOutTrialHasNoImprovementEntry(t *testing.T) {
	runner := &stubRunner{
		durations: map[int]float64{1: 10.0, 2: 6.0, 4: 600.0},
		timedOut:  map[int]bool{4: true},
	}
	h := NewHarness(runner, benchCfg(), nil)

	report, err := h.Run(context.Background(), "", nil, []int{2, 4})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if report.Trials["workers-4"] == nil || !report.Trials["workers-4"].TimedOut {
		t.Fatalf("timed-out trial must still be recorded: %+v", report.Trials["workers-4"])
	}
	// A ceiling-capped duration is not a measurement; no improvement or
	// analysis is derived from it.
	if _, ok := report.Improvement["workers-4"]; ok {
		t.Error("timed-out trial must not carry an improvement entry")
	}
	if _, ok := report.Analysis["workers-4"]; ok {
		t.Error("timed-out trial must not carry an analysis entry")
	}
	if got := report.Improvement["workers-2"]; got != 40.0 {
		t.Errorf("viable trial unaffected, expected 40%%, got %f", got)
	}
}

func TestImprovement_Monotonicity(t *testing.T) {
	if got := Improvement(10.0, 4.0); got <= 0 {
		t.Errorf("strictly faster parallel run must report > 0, got %f", got)
	}
	if got := Improvement(10.0, 10.0); got != 0 {
		t.Errorf("equal duration must report 0, got %f", got)
	}
	// Slower parallel runs clamp to 0, never negative.
	if got := Improvement(10.0, 12.0); got != 0 {
		t.Errorf("slower parallel run must clamp to 0, got %f", got)
	}
	if got := Improvement(0, 1.0); got != 0 {
		t.Errorf("degenerate baseline must report 0, got %f", got)
	}
}

func TestTruncatePercent_NoBoundaryFlapping(t *testing.T) {
	if TruncatePercent(49.6) != 49 {
		t.Errorf("49.6 must truncate to 49, got %d", TruncatePercent(49.6))
	}
	if MeetsGate(49.6, 50) {
		t.Error("49.6%% must not satisfy a >=50%% gate")
	}
	if !MeetsGate(50.0, 50) {
		t.Error("exactly 50%% satisfies the gate")
	}
}
