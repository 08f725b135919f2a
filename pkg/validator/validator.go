// Package validator validates flow files before execution.
// It parses all files upfront, resolves runFlow references, and detects errors.
package validator

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/devicelab-dev/harmony-runner/pkg/config"
	"github.com/devicelab-dev/harmony-runner/pkg/flow"
)

// ValidationError represents a validation error with context.
type ValidationError struct {
	File    string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.File, e.Message)
}

// Result contains the validation result.
type Result struct {
	// TestCases is the list of top-level flow file paths in execution order.
	// Flows that are only referenced via runFlow are validated but not listed.
	TestCases []string
	// Errors contains all validation errors found.
	Errors []error
}

// IsValid returns true if there are no validation errors.
func (r *Result) IsValid() bool {
	return len(r.Errors) == 0
}

// Validator validates flow files.
type Validator struct {
	includeTags []string
	excludeTags []string
}

// New creates a new Validator.
func New(includeTags, excludeTags []string) *Validator {
	return &Validator{
		includeTags: includeTags,
		excludeTags: excludeTags,
	}
}

// Validate validates a file or directory.
// For a directory, flow selection honors the workspace config.yaml: its
// "flows" glob patterns pick the test cases (default: top-level files only),
// and its tag filters combine with the validator's own.
// All runFlow references are resolved recursively with cycle detection.
func (v *Validator) Validate(path string) *Result {
	result := &Result{}

	info, err := os.Stat(path)
	if err != nil {
		result.Errors = append(result.Errors, &ValidationError{
			File:    path,
			Message: fmt.Sprintf("cannot access: %v", err),
		})
		return result
	}

	includeTags := v.includeTags
	excludeTags := v.excludeTags

	var files []string
	if info.IsDir() {
		cfg, err := config.LoadFromDir(path)
		if err != nil {
			result.Errors = append(result.Errors, &ValidationError{
				File:    path,
				Message: fmt.Sprintf("invalid workspace config: %v", err),
			})
			return result
		}
		includeTags = mergeTags(v.includeTags, cfg.IncludeTags)
		excludeTags = mergeTags(v.excludeTags, cfg.ExcludeTags)

		files, err = collectTestCases(path, cfg.Flows)
		if err != nil {
			result.Errors = append(result.Errors, &ValidationError{
				File:    path,
				Message: fmt.Sprintf("failed to scan directory: %v", err),
			})
			return result
		}
	} else {
		files = []string{path}
	}

	// Validate each test case and resolve its dependencies
	validated := make(map[string]bool)
	for _, file := range files {
		f, err := flow.ParseFile(file)
		if err != nil {
			result.Errors = append(result.Errors, &ValidationError{
				File:    file,
				Message: fmt.Sprintf("parse error: %v", err),
			})
			continue
		}

		if !flow.ShouldIncludeFlow(f, includeTags, excludeTags) {
			continue
		}

		result.TestCases = append(result.TestCases, file)

		// Recursively validate runFlow dependencies, including lifecycle hooks
		chain := []string{file}
		v.validateRunFlowSteps(f.Steps, file, result, validated, chain)
		v.validateRunFlowSteps(f.Config.OnFlowStart, file, result, validated, chain)
		v.validateRunFlowSteps(f.Config.OnFlowComplete, file, result, validated, chain)
	}

	return result
}

// validateDependency validates a file referenced by runFlow.
func (v *Validator) validateDependency(filePath string, result *Result, validated map[string]bool, chain []string) {
	// Check for circular dependency
	for _, ancestor := range chain {
		if ancestor == filePath {
			cycle := append(chain, filePath)
			result.Errors = append(result.Errors, &ValidationError{
				File:    filePath,
				Message: fmt.Sprintf("circular dependency detected: %s", strings.Join(cycle, " -> ")),
			})
			return
		}
	}

	// Skip if already validated
	if validated[filePath] {
		return
	}

	// Parse the file
	f, err := flow.ParseFile(filePath)
	if err != nil {
		result.Errors = append(result.Errors, &ValidationError{
			File:    filePath,
			Message: fmt.Sprintf("parse error: %v", err),
		})
		return
	}

	validated[filePath] = true

	// Recursively validate nested runFlow dependencies
	newChain := append(chain, filePath)
	v.validateRunFlowSteps(f.Steps, filePath, result, validated, newChain)
	v.validateRunFlowSteps(f.Config.OnFlowStart, filePath, result, validated, newChain)
	v.validateRunFlowSteps(f.Config.OnFlowComplete, filePath, result, validated, newChain)
}

// validateRunFlowSteps finds and validates runFlow references in steps.
func (v *Validator) validateRunFlowSteps(steps []flow.Step, parentFile string, result *Result, validated map[string]bool, chain []string) {
	parentDir := filepath.Dir(parentFile)

	for _, step := range steps {
		switch s := step.(type) {
		case *flow.RunFlowStep:
			if s.File != "" {
				refPath := resolveFilePath(parentDir, s.File)
				v.validateDependency(refPath, result, validated, chain)
			}
			// Also check inline commands
			v.validateRunFlowSteps(s.Steps, parentFile, result, validated, chain)

		case *flow.RepeatStep:
			v.validateRunFlowSteps(s.Steps, parentFile, result, validated, chain)
		}
	}
}

// collectTestCases selects the top-level flow files for a workspace directory.
// With no patterns, only flow files directly in the directory count; patterns
// from config.yaml widen or narrow that (globs, dir matches, ** recursion).
func collectTestCases(dir string, patterns []string) ([]string, error) {
	if len(patterns) == 0 {
		return topLevelFlows(dir)
	}

	seen := make(map[string]bool)
	var files []string
	add := func(path string) {
		if !seen[path] {
			seen[path] = true
			files = append(files, path)
		}
	}

	for _, pattern := range patterns {
		matches, err := expandPattern(dir, pattern)
		if err != nil {
			return nil, err
		}
		for _, m := range matches {
			add(m)
		}
	}

	return files, nil
}

// topLevelFlows lists flow files directly inside dir, skipping subdirectories.
func topLevelFlows(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var files []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if isFlowFile(name) {
			files = append(files, filepath.Join(dir, name))
		}
	}
	return files, nil
}

// expandPattern resolves one config.yaml flow pattern against the workspace dir.
func expandPattern(dir, pattern string) ([]string, error) {
	if strings.Contains(pattern, "**") {
		return expandRecursivePattern(dir, pattern)
	}

	matches, err := filepath.Glob(filepath.Join(dir, pattern))
	if err != nil {
		return nil, fmt.Errorf("pattern %q: %w", pattern, err)
	}

	var files []string
	for _, match := range matches {
		info, err := os.Stat(match)
		if err != nil {
			continue
		}
		if info.IsDir() {
			// A matched directory contributes all flow files beneath it
			nested, err := flowFilesUnder(match)
			if err != nil {
				return nil, err
			}
			files = append(files, nested...)
			continue
		}
		if isFlowFile(filepath.Base(match)) {
			files = append(files, match)
		}
	}
	return files, nil
}

// expandRecursivePattern handles patterns containing "**".
// "**" alone matches every flow file; "**/name*.yaml" constrains the basename.
func expandRecursivePattern(dir, pattern string) ([]string, error) {
	idx := strings.Index(pattern, "**")
	root := filepath.Join(dir, strings.TrimSuffix(pattern[:idx], "/"))
	base := strings.TrimPrefix(pattern[idx+2:], "/")

	var files []string
	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		if !isFlowFile(info.Name()) {
			return nil
		}
		if base != "" {
			ok, err := filepath.Match(base, info.Name())
			if err != nil {
				return fmt.Errorf("pattern %q: %w", pattern, err)
			}
			if !ok {
				return nil
			}
		}
		files = append(files, path)
		return nil
	})
	return files, err
}

// flowFilesUnder collects all flow files in a directory tree.
func flowFilesUnder(dir string) ([]string, error) {
	var files []string
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		if isFlowFile(info.Name()) {
			files = append(files, path)
		}
		return nil
	})
	return files, err
}

// mergeTags combines validator tags with workspace config tags.
func mergeTags(base, extra []string) []string {
	if len(extra) == 0 {
		return base
	}
	merged := make([]string, 0, len(base)+len(extra))
	merged = append(merged, base...)
	return append(merged, extra...)
}

// isFlowFile reports whether name looks like a flow file. The workspace
// config itself is never a flow.
func isFlowFile(name string) bool {
	if name == "config.yaml" || name == "config.yml" {
		return false
	}
	ext := strings.ToLower(filepath.Ext(name))
	return ext == ".yaml" || ext == ".yml"
}

// resolveFilePath resolves a file path relative to a base directory.
func resolveFilePath(baseDir, filePath string) string {
	if filepath.IsAbs(filePath) {
		return filePath
	}
	return filepath.Join(baseDir, filePath)
}
