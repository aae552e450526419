package trial

import (
	"encoding/json"
	"fmt"
	"path"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// GoTestEngine drives a Go test suite via "go test -json".
type GoTestEngine struct {
	binary string
}

// NewGoTestEngine returns a go test adapter. An empty binary uses "go"
// from PATH.
func NewGoTestEngine(binary string) *GoTestEngine {
	if binary == "" {
		binary = "go"
	}
	return &GoTestEngine{binary: binary}
}

func (e *GoTestEngine) Name() string   { return "gotest" }
func (e *GoTestEngine) Binary() string { return e.binary }

// Dir runs go test from inside the tree so ./... resolves against it.
func (e *GoTestEngine) Dir(tree string) string { return tree }

// Args builds the go test invocation. Category scoping has no marker
// equivalent in go test, so the harness passes explicit unit subsets and
// they become a -run anchor set. -run matches function names only, so the
// package list is narrowed to the directories the units live in; otherwise
// a same-named test in an unrelated package would join the trial.
func (e *GoTestEngine) Args(tree string, cfg Config) []string {
	args := []string{"test", "-json", "-count=1", "-parallel", strconv.Itoa(cfg.Workers)}
	if cfg.Sequential() {
		// One worker process, not just -parallel: package-level parallelism
		// would otherwise contaminate the sequential baseline.
		args = append(args, "-p", "1")
	}
	if len(cfg.Units) > 0 {
		args = append(args, "-run", runPattern(cfg.Units))
		args = append(args, packageDirs(cfg.Units)...)
	} else {
		args = append(args, "./...")
	}
	return args
}

// CollectArgs lists tests without running them, warming the build cache.
func (e *GoTestEngine) CollectArgs(tree string) []string {
	return []string{"test", "-list", ".*", "./..."}
}

// testEvent is one go test -json record.
type testEvent struct {
	Action  string `json:"Action"`
	Package string `json:"Package"`
	Test    string `json:"Test"`
}

// ParseOutcomes reads the -json event stream into the unit outcome map.
func (e *GoTestEngine) ParseOutcomes(output string) map[string]Outcome {
	outcomes := make(map[string]Outcome)
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || line[0] != '{' {
			continue
		}
		var ev testEvent
		if err := json.Unmarshal([]byte(line), &ev); err != nil || ev.Test == "" {
			continue
		}
		// Subtests roll up into their parent; the parent name is the unit.
		name := ev.Package + "::" + strings.SplitN(ev.Test, "/", 2)[0]
		switch ev.Action {
		case "pass":
			if outcomes[name] == "" {
				outcomes[name] = OutcomePassed
			}
		case "fail":
			outcomes[name] = OutcomeFailed
		}
	}
	return outcomes
}

// RenderCommand renders the recommended invocation.
func (e *GoTestEngine) RenderCommand(category string, workers int) string {
	cmd := fmt.Sprintf("%s test ./... -parallel %d", e.binary, workers)
	if workers == 1 {
		cmd += " -p 1"
	}
	return cmd
}

// runPattern builds an anchored -run alternation from unit names. Unit
// names carry a file or package prefix before "::"; only the function part
// addresses tests in -run.
func runPattern(units []string) string {
	names := make([]string, 0, len(units))
	seen := make(map[string]bool)
	for _, u := range units {
		name := u
		if idx := strings.LastIndex(u, "::"); idx >= 0 {
			name = u[idx+2:]
		}
		if !seen[name] {
			seen[name] = true
			names = append(names, regexp.QuoteMeta(name))
		}
	}
	return "^(" + strings.Join(names, "|") + ")$"
}

// packageDirs maps unit names to the package directories containing them,
// deduplicated and sorted. The prefix before "::" is a file path relative
// to the tree the invocation runs in.
func packageDirs(units []string) []string {
	seen := make(map[string]bool)
	var dirs []string
	for _, u := range units {
		prefix := u
		if idx := strings.LastIndex(u, "::"); idx >= 0 {
			prefix = u[:idx]
		}
		dir := "./" + path.Dir(prefix)
		if !seen[dir] {
			seen[dir] = true
			dirs = append(dirs, dir)
		}
	}
	sort.Strings(dirs)
	return dirs
}
