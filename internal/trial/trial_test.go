package trial

import (
	"runtime"
	"testing"
)

func TestConfigValidate_NegativeWorkersFatal(t *testing.T) {
	cfg := Config{Workers: -2, Label: "bad"}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for negative worker count")
	}
	if err := (Config{Workers: 0}).Validate(); err != nil {
		t.Errorf("auto workers should validate, got %v", err)
	}
}

func TestConfigResolved_AutoBecomesConcrete(t *testing.T) {
	resolved := Config{Workers: 0}.Resolved()
	if resolved.Workers != runtime.NumCPU() {
		t.Errorf("expected %d workers, got %d", runtime.NumCPU(), resolved.Workers)
	}
	if got := (Config{Workers: 4}).Resolved().Workers; got != 4 {
		t.Errorf("concrete count must not change, got %d", got)
	}
}

func TestConfigSequential(t *testing.T) {
	if !(Config{Workers: 1}).Sequential() {
		t.Error("one worker is sequential")
	}
	if (Config{Workers: 4}).Sequential() {
		t.Error("four workers is not sequential")
	}
}

func TestResultViable(t *testing.T) {
	if (&Result{TimedOut: true}).Viable() {
		t.Error("timed-out trial must be nonviable")
	}
	if !(&Result{ExitStatus: 3}).Viable() {
		t.Error("unit failures do not make a trial nonviable")
	}
}

func TestResultClean(t *testing.T) {
	if !(&Result{}).Clean() {
		t.Error("zero exit without timeout is clean")
	}
	if (&Result{ExitStatus: 1}).Clean() {
		t.Error("nonzero exit is not clean")
	}
	if (&Result{TimedOut: true}).Clean() {
		t.Error("a timed-out trial is never clean, whatever the exit status")
	}
}
