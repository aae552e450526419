// Package config holds all paraplan configuration.
// Config is loaded from a YAML file, with environment variable overrides
// applied on top so CI systems can tune behavior without editing files.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all paraplan configuration.
type Config struct {
	// Engine configures the external test-execution engine.
	Engine EngineConfig `yaml:"engine"`

	// Classify configures the static classification policy.
	Classify ClassifyConfig `yaml:"classify"`

	// Bench configures the benchmark protocol.
	Bench BenchConfig `yaml:"bench"`

	// Reports configures artifact output locations.
	Reports ReportsConfig `yaml:"reports"`
}

// EngineConfig selects and parameterizes the test-execution engine.
type EngineConfig struct {
	// Name selects the engine adapter: "pytest" or "gotest".
	Name string `yaml:"name"`

	// Binary overrides the engine executable. Empty uses the adapter default.
	Binary string `yaml:"binary,omitempty"`

	// Tree is the test source tree the engine runs against.
	Tree string `yaml:"tree"`

	// ExtraArgs are appended to every engine invocation.
	ExtraArgs []string `yaml:"extra_args,omitempty"`
}

// ClassifyConfig holds the classification policy knobs.
// These are named constants rather than inline magic numbers so the policy
// can be tuned without code changes.
type ClassifyConfig struct {
	// InteractionThreshold is the cross-component call count above which a
	// unit is classified workflow. Intentionally low: a false workflow label
	// costs parallelism, a false fast-isolated label costs correctness.
	InteractionThreshold int `yaml:"interaction_threshold"`

	// InteractionPatterns are regexes counted against each unit body.
	InteractionPatterns []string `yaml:"interaction_patterns"`

	// WorkflowKeywords are case-insensitive regexes whose presence marks a
	// unit workflow.
	WorkflowKeywords []string `yaml:"workflow_keywords"`

	// SlowIndicators are lowercase substrings whose presence marks a unit
	// heavy.
	SlowIndicators []string `yaml:"slow_indicators"`

	// ParseWorkers bounds concurrent source-file parsing. 0 means NumCPU.
	ParseWorkers int `yaml:"parse_workers,omitempty"`
}

// BenchConfig holds the benchmark protocol knobs.
type BenchConfig struct {
	// WorkerCandidates are the parallel worker counts to trial.
	// 0 means "engine auto" and is resolved to a concrete count before any
	// comparison logic runs.
	WorkerCandidates []int `yaml:"worker_candidates"`

	// Samples is how many times each configuration is run; the median
	// duration is used. 1 mirrors a single-sample protocol but is
	// vulnerable to process-level noise.
	Samples int `yaml:"samples"`

	// Warmup runs one collection-only invocation before the baseline.
	Warmup bool `yaml:"warmup"`

	// TrialCeiling is the wall-clock ceiling per trial. A trial that
	// exceeds it is reported nonviable, not crashed.
	TrialCeiling time.Duration `yaml:"trial_ceiling"`

	// ImprovementGate is the integer percentage a parallel configuration
	// must reach to be called an improvement in summaries. Compared against
	// the truncated percentage to avoid boundary flapping.
	ImprovementGate int `yaml:"improvement_gate"`

	// MaxOutputBytes caps captured engine output per trial.
	MaxOutputBytes int64 `yaml:"max_output_bytes,omitempty"`
}

// ReportsConfig holds artifact output locations.
type ReportsConfig struct {
	// Dir is the directory all report artifacts are written to.
	Dir string `yaml:"dir"`

	Classification string `yaml:"classification"`
	Benchmark      string `yaml:"benchmark"`
	Plan           string `yaml:"plan"`
}

// DefaultConfig returns sensible defaults.
// The classification defaults implement the policy: slow indicators
// dominate, workflow next, fast-isolated is the residual.
func DefaultConfig() *Config {
	return &Config{
		Engine: EngineConfig{
			Name: "pytest",
			Tree: "tests",
		},
		Classify: ClassifyConfig{
			InteractionThreshold: 3,
			InteractionPatterns: []string{
				`\.assert_called`,
				`await \w+\.`,
				`mock_\w+\.`,
				`\.On\(`,
				`\.AssertExpectations\(`,
			},
			WorkflowKeywords: []string{
				`create.*start.*stop`,
				`lifecycle`,
				`complete.*workflow`,
			},
			SlowIndicators: []string{
				"task_monitoring",
				"performance",
				"benchmark",
				"timeout",
			},
		},
		Bench: BenchConfig{
			WorkerCandidates: []int{2, 4, 0},
			Samples:          1,
			Warmup:           true,
			TrialCeiling:     10 * time.Minute,
			ImprovementGate:  50,
			MaxOutputBytes:   4 << 20,
		},
		Reports: ReportsConfig{
			Dir:            ".",
			Classification: "classification.json",
			Benchmark:      "benchmark_report.json",
			Plan:           "optimization_plan.json",
		},
	}
}

// Load reads config from path, falling back to defaults when the file does
// not exist. Environment overrides are applied in both cases.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// Save writes the config as YAML.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}
	return os.WriteFile(path, data, 0644)
}

// applyEnvOverrides applies PARAPLAN_* environment variables on top of the
// loaded values.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("PARAPLAN_ENGINE"); v != "" {
		c.Engine.Name = v
	}
	if v := os.Getenv("PARAPLAN_ENGINE_BINARY"); v != "" {
		c.Engine.Binary = v
	}
	if v := os.Getenv("PARAPLAN_TREE"); v != "" {
		c.Engine.Tree = v
	}
	if v := os.Getenv("PARAPLAN_WORKERS"); v != "" {
		if counts, err := parseWorkerList(v); err == nil {
			c.Bench.WorkerCandidates = counts
		}
	}
	if v := os.Getenv("PARAPLAN_SAMPLES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Bench.Samples = n
		}
	}
	if v := os.Getenv("PARAPLAN_REPORT_DIR"); v != "" {
		c.Reports.Dir = v
	}
}

// parseWorkerList parses a comma-separated worker count list like "2,4,auto".
func parseWorkerList(s string) ([]int, error) {
	var counts []int
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if part == "auto" {
			counts = append(counts, 0)
			continue
		}
		n, err := strconv.Atoi(part)
		if err != nil {
			return nil, fmt.Errorf("invalid worker count %q: %w", part, err)
		}
		counts = append(counts, n)
	}
	if len(counts) == 0 {
		return nil, fmt.Errorf("empty worker count list")
	}
	return counts, nil
}

// ParseWorkerList is the exported form used by CLI flag parsing.
func ParseWorkerList(s string) ([]int, error) {
	return parseWorkerList(s)
}

// Validate checks the configuration for fatal problems.
func (c *Config) Validate() error {
	switch c.Engine.Name {
	case "pytest", "gotest":
	default:
		return fmt.Errorf("unknown engine %q (supported: pytest, gotest)", c.Engine.Name)
	}
	if c.Engine.Tree == "" {
		return fmt.Errorf("engine.tree is required")
	}
	if c.Classify.InteractionThreshold < 0 {
		return fmt.Errorf("classify.interaction_threshold must be >= 0, got %d", c.Classify.InteractionThreshold)
	}
	if len(c.Bench.WorkerCandidates) == 0 {
		return fmt.Errorf("bench.worker_candidates must not be empty")
	}
	for _, w := range c.Bench.WorkerCandidates {
		if w < 0 {
			return fmt.Errorf("bench.worker_candidates contains negative count %d", w)
		}
	}
	if c.Bench.Samples < 1 {
		return fmt.Errorf("bench.samples must be >= 1, got %d", c.Bench.Samples)
	}
	if c.Bench.TrialCeiling <= 0 {
		return fmt.Errorf("bench.trial_ceiling must be positive")
	}
	return nil
}

// ReportPath joins the report directory with a configured file name.
func (c *Config) ReportPath(name string) string {
	return filepath.Join(c.Reports.Dir, name)
}
