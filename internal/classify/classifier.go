// Package classify statically inspects a test source tree and assigns each
// discovered test unit a parallel-safety category. Parsing uses tree-sitter
// so the signals are pattern counts over a real syntax tree, not line greps.
package classify

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"sort"
	"strings"
	"sync"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/golang"
	"github.com/smacker/go-tree-sitter/python"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"paraplan/internal/config"
)

// Classifier assigns categories to test units under a fixed policy.
// Re-running on unchanged source yields identical assignments.
type Classifier struct {
	threshold    int
	interaction  []*regexp.Regexp
	workflow     []*regexp.Regexp
	slow         []string
	parseWorkers int
	logger       *zap.Logger
}

// New compiles the classification policy.
func New(cfg config.ClassifyConfig, logger *zap.Logger) (*Classifier, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Classifier{
		threshold:    cfg.InteractionThreshold,
		slow:         make([]string, len(cfg.SlowIndicators)),
		parseWorkers: cfg.ParseWorkers,
		logger:       logger,
	}
	for i, s := range cfg.SlowIndicators {
		c.slow[i] = strings.ToLower(s)
	}
	for _, p := range cfg.InteractionPatterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("invalid interaction pattern %q: %w", p, err)
		}
		c.interaction = append(c.interaction, re)
	}
	for _, p := range cfg.WorkflowKeywords {
		re, err := regexp.Compile("(?is)" + p)
		if err != nil {
			return nil, fmt.Errorf("invalid workflow keyword %q: %w", p, err)
		}
		c.workflow = append(c.workflow, re)
	}
	if c.parseWorkers <= 0 {
		c.parseWorkers = runtime.NumCPU()
	}
	return c, nil
}

// ClassifyTree scans root for test source files and classifies every unit
// found. An unreadable root is fatal; a single unparseable file is recorded
// as a ParseError and its units are excluded (fails closed).
func (c *Classifier) ClassifyTree(ctx context.Context, root string) (*Report, error) {
	files, err := discoverTestFiles(root)
	if err != nil {
		return nil, fmt.Errorf("source tree unreadable: %w", err)
	}
	c.logger.Debug("Discovered test files", zap.String("root", root), zap.Int("count", len(files)))

	report := &Report{Root: root}
	var mu sync.Mutex

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(c.parseWorkers)
	for _, file := range files {
		file := file
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			rel, relErr := filepath.Rel(root, file)
			if relErr != nil {
				rel = file
			}
			rel = filepath.ToSlash(rel)

			units, findings, parseErr := c.classifyFile(ctx, file, rel)

			mu.Lock()
			defer mu.Unlock()
			if parseErr != nil {
				c.logger.Warn("Parse failed, excluding file from classification",
					zap.String("file", rel), zap.Error(parseErr))
				report.Errors = append(report.Errors, ParseError{File: rel, Detail: parseErr.Error()})
				return nil
			}
			report.Units = append(report.Units, units...)
			report.Findings = append(report.Findings, findings...)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	// Deterministic output regardless of parse scheduling.
	sort.Slice(report.Units, func(i, j int) bool {
		if report.Units[i].File != report.Units[j].File {
			return report.Units[i].File < report.Units[j].File
		}
		return report.Units[i].Line < report.Units[j].Line
	})
	sort.Slice(report.Errors, func(i, j int) bool { return report.Errors[i].File < report.Errors[j].File })
	sort.Slice(report.Findings, func(i, j int) bool {
		if report.Findings[i].File != report.Findings[j].File {
			return report.Findings[i].File < report.Findings[j].File
		}
		return report.Findings[i].Line < report.Findings[j].Line
	})

	c.logger.Info("Classification complete",
		zap.Int("units", len(report.Units)),
		zap.Int("parse_errors", len(report.Errors)),
		zap.Int("findings", len(report.Findings)))
	return report, nil
}

// classifyFile parses one source file and extracts its test units.
func (c *Classifier) classifyFile(ctx context.Context, path, rel string) ([]TestUnit, []Finding, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, err
	}

	parser := sitter.NewParser()
	defer parser.Close()

	var lang *sitter.Language
	switch filepath.Ext(path) {
	case ".py":
		lang = python.GetLanguage()
	case ".go":
		lang = golang.GetLanguage()
	default:
		return nil, nil, fmt.Errorf("unsupported source file type: %s", path)
	}
	parser.SetLanguage(lang)

	tree, err := parser.ParseCtx(ctx, nil, content)
	if err != nil {
		return nil, nil, err
	}
	defer tree.Close()

	root := tree.RootNode()
	if root.HasError() {
		return nil, nil, fmt.Errorf("syntax errors in %s", rel)
	}

	if filepath.Ext(path) == ".py" {
		units := c.extractPythonUnits(root, rel, content)
		findings := detectSharedState(root, rel, content)
		return units, findings, nil
	}
	return c.extractGoUnits(root, rel, content), nil, nil
}

// Categorize applies the decision policy to one unit body.
// Priority order: slow indicator beats workflow beats fast-isolated, so a
// tie resolves toward the less-parallel-safe tier.
func (c *Classifier) Categorize(name, body string) (Category, Signals) {
	var sig Signals
	for _, re := range c.interaction {
		sig.Interactions += len(re.FindAllStringIndex(body, -1))
	}
	for _, re := range c.workflow {
		if re.MatchString(body) || re.MatchString(name) {
			sig.Workflow = true
			break
		}
	}
	lower := strings.ToLower(body)
	lowerName := strings.ToLower(name)
	for _, ind := range c.slow {
		if strings.Contains(lower, ind) || strings.Contains(lowerName, ind) {
			sig.Slow = true
			break
		}
	}

	switch {
	case sig.Slow:
		return CategoryHeavy, sig
	case sig.Workflow || sig.Interactions > c.threshold:
		return CategoryWorkflow, sig
	default:
		return CategoryFastIsolated, sig
	}
}

// extractPythonUnits walks a pytest file and classifies each test function.
// Unit names follow the pytest node id shape: file::Class::method.
func (c *Classifier) extractPythonUnits(root *sitter.Node, rel string, content []byte) []TestUnit {
	var units []TestUnit

	var walk func(n *sitter.Node, class string)
	walk = func(n *sitter.Node, class string) {
		switch n.Type() {
		case "class_definition":
			if nameNode := n.ChildByFieldName("name"); nameNode != nil {
				class = nameNode.Content(content)
			}
		case "function_definition":
			nameNode := n.ChildByFieldName("name")
			if nameNode == nil {
				break
			}
			name := nameNode.Content(content)
			if !strings.HasPrefix(name, "test_") {
				break
			}
			id := rel + "::" + name
			if class != "" {
				id = rel + "::" + class + "::" + name
			}
			// Asynchrony is irrelevant to classification; async defs are
			// function_definition nodes too and land here unchanged.
			category, sig := c.Categorize(name, n.Content(content))
			units = append(units, TestUnit{
				Name:     id,
				File:     rel,
				Line:     int(n.StartPoint().Row) + 1,
				Category: category,
				Signals:  sig,
			})
			return // no nested test defs inside a test body
		}
		for i := 0; i < int(n.ChildCount()); i++ {
			walk(n.Child(i), class)
		}
	}
	walk(root, "")
	return units
}

// extractGoUnits walks a Go test file and classifies each Test function.
func (c *Classifier) extractGoUnits(root *sitter.Node, rel string, content []byte) []TestUnit {
	var units []TestUnit

	var walk func(n *sitter.Node)
	walk = func(n *sitter.Node) {
		if n.Type() == "function_declaration" {
			nameNode := n.ChildByFieldName("name")
			if nameNode != nil {
				name := nameNode.Content(content)
				if isGoTestName(name) {
					category, sig := c.Categorize(name, n.Content(content))
					units = append(units, TestUnit{
						Name:     rel + "::" + name,
						File:     rel,
						Line:     int(n.StartPoint().Row) + 1,
						Category: category,
						Signals:  sig,
					})
				}
			}
			return
		}
		for i := 0; i < int(n.ChildCount()); i++ {
			walk(n.Child(i))
		}
	}
	walk(root)
	return units
}

// isGoTestName reports whether name is a go test entry point (TestXxx).
func isGoTestName(name string) bool {
	if !strings.HasPrefix(name, "Test") || len(name) == len("Test") {
		return false
	}
	r := name[len("Test")]
	return r < 'a' || r > 'z'
}

// skipDirs are directory names never scanned for test sources.
var skipDirs = map[string]bool{
	".git":         true,
	"__pycache__":  true,
	"node_modules": true,
	"vendor":       true,
	".venv":        true,
}

// discoverTestFiles walks root and collects test source files, sorted.
func discoverTestFiles(root string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if skipDirs[d.Name()] {
				return filepath.SkipDir
			}
			return nil
		}
		base := d.Name()
		switch {
		case strings.HasPrefix(base, "test_") && strings.HasSuffix(base, ".py"):
			files = append(files, path)
		case strings.HasSuffix(base, "_test.go"):
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	return files, nil
}
