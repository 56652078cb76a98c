package harness

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// ScenarioOutcome is the result of one scenario file in a suite.
type ScenarioOutcome struct {
	Name   string   `json:"name"`
	Path   string   `json:"path"`
	Pass   bool     `json:"pass"`
	Golden string   `json:"golden,omitempty"` // "match", "mismatch", "updated" or "missing"
	Errors []string `json:"errors,omitempty"`
}

// SuiteResult summarizes a scenario directory run.
type SuiteResult struct {
	Scenarios []ScenarioOutcome `json:"scenarios"`
	Passed    int               `json:"passed"`
	Failed    int               `json:"failed"`
	Total     int               `json:"total"`
}

// SuiteOptions control RunSuite.
type SuiteOptions struct {
	// Filter is a glob matched against scenario file names without
	// extension.
	Filter string

	// Update rewrites golden files instead of comparing them.
	Update bool
}

// FindScenarios returns every .yaml/.yml file under dir whose base name
// matches filter, in lexical order. The golden directory is skipped.
func FindScenarios(dir, filter string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != dir && d.Name() == GoldenDir {
				return filepath.SkipDir
			}
			return nil
		}

		ext := filepath.Ext(path)
		if ext != ".yaml" && ext != ".yml" {
			return nil
		}
		if filter != "" {
			name := strings.TrimSuffix(filepath.Base(path), ext)
			matched, err := filepath.Match(filter, name)
			if err != nil {
				return fmt.Errorf("invalid filter pattern: %w", err)
			}
			if !matched {
				return nil
			}
		}
		files = append(files, path)
		return nil
	})
	return files, err
}

// RunSuite runs every scenario under dir. A scenario passes when its
// assertions hold and its snapshot matches the golden file, if one exists.
// Load and execution failures count as scenario failures.
func RunSuite(dir string, opts SuiteOptions) (*SuiteResult, error) {
	if _, err := os.Stat(dir); err != nil {
		return nil, fmt.Errorf("scenarios directory: %w", err)
	}
	files, err := FindScenarios(dir, opts.Filter)
	if err != nil {
		return nil, fmt.Errorf("failed to find scenarios: %w", err)
	}

	result := &SuiteResult{
		Scenarios: make([]ScenarioOutcome, 0, len(files)),
		Total:     len(files),
	}
	for _, path := range files {
		outcome := runFile(path, opts)
		if outcome.Pass {
			result.Passed++
		} else {
			result.Failed++
		}
		result.Scenarios = append(result.Scenarios, outcome)
	}
	return result, nil
}

func runFile(path string, opts SuiteOptions) ScenarioOutcome {
	outcome := ScenarioOutcome{Name: filepath.Base(path), Path: path}

	scenario, err := LoadScenario(path)
	if err != nil {
		outcome.Errors = []string{fmt.Sprintf("failed to load scenario: %v", err)}
		return outcome
	}
	outcome.Name = scenario.Name

	result, err := Run(scenario)
	if err != nil {
		outcome.Errors = []string{fmt.Sprintf("execution failed: %v", err)}
		return outcome
	}
	outcome.Errors = result.Errors

	snapshot, err := Snapshot(scenario.Name, result)
	if err != nil {
		outcome.Errors = append(outcome.Errors, fmt.Sprintf("snapshot failed: %v", err))
		return outcome
	}

	goldenPath := GoldenPath(path)
	switch {
	case opts.Update:
		if err := UpdateGolden(goldenPath, snapshot); err != nil {
			outcome.Errors = append(outcome.Errors, err.Error())
			return outcome
		}
		outcome.Golden = "updated"
	default:
		if _, err := os.Stat(goldenPath); os.IsNotExist(err) {
			outcome.Golden = "missing"
			break
		}
		match, err := CompareGolden(goldenPath, snapshot)
		if err != nil {
			outcome.Errors = append(outcome.Errors, err.Error())
			return outcome
		}
		if !match {
			outcome.Golden = "mismatch"
			outcome.Errors = append(outcome.Errors, "request does not match golden file (run with --update to regenerate)")
			return outcome
		}
		outcome.Golden = "match"
	}

	outcome.Pass = result.Pass
	return outcome
}
