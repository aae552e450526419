package trial

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"time"

	"go.uber.org/zap"

	"paraplan/internal/config"
)

// Runner executes trials against one engine. It is stateless between runs:
// each call produces an independently owned Result.
type Runner struct {
	engine    Engine
	tree      string
	extraArgs []string
	ceiling   time.Duration
	maxOutput int64
	logger    *zap.Logger
}

// NewRunner wires an engine to the configured tree and limits.
func NewRunner(engine Engine, engCfg config.EngineConfig, benchCfg config.BenchConfig, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	maxOutput := benchCfg.MaxOutputBytes
	if maxOutput <= 0 {
		maxOutput = 4 << 20
	}
	return &Runner{
		engine:    engine,
		tree:      engCfg.Tree,
		extraArgs: engCfg.ExtraArgs,
		ceiling:   benchCfg.TrialCeiling,
		maxOutput: maxOutput,
		logger:    logger,
	}
}

// Run invokes the engine once for cfg and captures the result.
//
// A process that cannot be started is a fatal configuration error. A
// process that starts and exits nonzero is a valid trial: the per-unit
// outcome map is intact and the caller interprets significance. A process
// killed at the ceiling comes back with TimedOut set, not an error.
func (r *Runner) Run(ctx context.Context, cfg Config) (*Result, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	resolved := cfg.Resolved()

	args := append(r.engine.Args(r.tree, resolved), r.extraArgs...)
	r.logger.Debug("Starting trial",
		zap.String("label", resolved.Label),
		zap.Int("workers", resolved.Workers),
		zap.String("binary", r.engine.Binary()),
		zap.Strings("args", args))

	execCtx, cancel := context.WithTimeout(ctx, r.ceiling)
	defer cancel()

	cmd := exec.CommandContext(execCtx, r.engine.Binary(), args...)
	cmd.Dir = r.engine.Dir(r.tree)

	var buf bytes.Buffer
	limited := &limitedWriter{w: &buf, max: r.maxOutput}
	cmd.Stdout = limited
	cmd.Stderr = limited

	// Wall clock is measured here, around the whole process, because engine
	// self-reported timing excludes startup and teardown overhead.
	start := time.Now()
	runErr := cmd.Run()
	duration := time.Since(start)

	result := &Result{
		Config:          resolved,
		DurationSeconds: duration.Seconds(),
		Output:          buf.String(),
	}

	if runErr != nil {
		switch {
		case errors.Is(execCtx.Err(), context.DeadlineExceeded):
			result.TimedOut = true
			result.ExitStatus = -1
			r.logger.Warn("Trial exceeded wall-clock ceiling",
				zap.String("label", resolved.Label),
				zap.Duration("ceiling", r.ceiling))
		case errors.Is(execCtx.Err(), context.Canceled):
			return nil, execCtx.Err()
		default:
			var exitErr *exec.ExitError
			if errors.As(runErr, &exitErr) {
				result.ExitStatus = exitErr.ExitCode()
			} else {
				return nil, fmt.Errorf("engine %s unlaunchable: %w", r.engine.Name(), runErr)
			}
		}
	}

	result.Outcomes = r.engine.ParseOutcomes(result.Output)
	result.TotalUnits = len(result.Outcomes)

	r.logger.Info("Trial complete",
		zap.String("label", resolved.Label),
		zap.Int("workers", resolved.Workers),
		zap.Float64("seconds", result.DurationSeconds),
		zap.Int("exit_status", result.ExitStatus),
		zap.Int("units", result.TotalUnits),
		zap.Bool("timed_out", result.TimedOut))
	return result, nil
}

// Warmup performs one collection-only invocation so cold-start costs do
// not pollute the baseline sample. Unit failures are irrelevant here; only
// a launch failure is fatal.
func (r *Runner) Warmup(ctx context.Context) error {
	execCtx, cancel := context.WithTimeout(ctx, r.ceiling)
	defer cancel()

	cmd := exec.CommandContext(execCtx, r.engine.Binary(), r.engine.CollectArgs(r.tree)...)
	cmd.Dir = r.engine.Dir(r.tree)
	cmd.Stdout = io.Discard
	cmd.Stderr = io.Discard

	err := cmd.Run()
	var exitErr *exec.ExitError
	if err != nil && !errors.As(err, &exitErr) && !errors.Is(execCtx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("engine %s unlaunchable: %w", r.engine.Name(), err)
	}
	return nil
}

// limitedWriter caps captured output so a chatty engine cannot balloon the
// planner's memory.
type limitedWriter struct {
	w       io.Writer
	max     int64
	written int64
}

func (lw *limitedWriter) Write(p []byte) (int, error) {
	n := len(p)
	if lw.written >= lw.max {
		return n, nil
	}
	if remaining := lw.max - lw.written; int64(n) > remaining {
		written, err := lw.w.Write(p[:remaining])
		lw.written += int64(written)
		return n, err
	}
	written, err := lw.w.Write(p)
	lw.written += int64(written)
	return written, err
}
