// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package depscan extracts declared dependencies from source files.
// It is a lexical scan, not a build: import statements are matched by
// per-language patterns and reduced to top-level module names. The
// result over-approximates (commented-out imports match) but never
// executes or resolves anything.
package depscan

import (
	"fmt"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/bureau-foundation/devtoolbox/lib/analysis"
)

// Dependency is one discovered module reference.
type Dependency struct {
	// Module is the top-level module or package name.
	Module string `json:"module"`

	// Language is the language the reference was found in.
	Language string `json:"language"`

	// Count is how many files reference the module.
	Count int `json:"count"`
}

// languagePatterns maps a language name to the patterns that capture
// a module reference in group 1.
var languagePatterns = map[string][]*regexp.Regexp{
	"Python": {
		regexp.MustCompile(`(?m)^\s*import\s+([A-Za-z_][\w.]*)`),
		regexp.MustCompile(`(?m)^\s*from\s+([A-Za-z_][\w.]*)\s+import\b`),
	},
	"JavaScript": {
		regexp.MustCompile(`(?m)require\(\s*['"]([^'"./][^'"]*)['"]\s*\)`),
		regexp.MustCompile(`(?m)^\s*import\b[^'"]*['"]([^'"./][^'"]*)['"]`),
	},
	"Ruby": {
		regexp.MustCompile(`(?m)^\s*require\s+['"]([^'"./][^'"]*)['"]`),
	},
}

// topLevel reduces a dotted or slashed module path to its first
// segment: "yaml.parser" is "yaml", "@scope/pkg/sub" is "@scope/pkg".
func topLevel(module string) string {
	if strings.HasPrefix(module, "@") {
		// Scoped npm package: keep scope plus name.
		parts := strings.SplitN(module, "/", 3)
		if len(parts) >= 2 {
			return parts[0] + "/" + parts[1]
		}
		return module
	}
	if head, _, found := strings.Cut(module, "."); found {
		return head
	}
	head, _, _ := strings.Cut(module, "/")
	return head
}

// ScanSource extracts the top-level modules referenced by one file's
// contents, given its detected language. Languages without patterns
// return nothing.
func ScanSource(language string, contents []byte) []string {
	patterns, known := languagePatterns[language]
	if !known {
		return nil
	}

	seen := map[string]struct{}{}
	for _, pattern := range patterns {
		for _, match := range pattern.FindAllSubmatch(contents, -1) {
			seen[topLevel(string(match[1]))] = struct{}{}
		}
	}

	modules := make([]string, 0, len(seen))
	for module := range seen {
		modules = append(modules, module)
	}
	sort.Strings(modules)
	return modules
}

// ScanTree walks root through source and aggregates dependency
// references across all recognized files. Results are sorted by
// module name.
func ScanTree(source analysis.FileSource, root string) ([]Dependency, error) {
	counts := map[string]*Dependency{}

	err := walk(source, root, func(path string, contents []byte) {
		language := analysis.DetectLanguage(filepath.Base(path), contents)
		for _, module := range ScanSource(language, contents) {
			key := language + "\x00" + module
			if existing, ok := counts[key]; ok {
				existing.Count++
				continue
			}
			counts[key] = &Dependency{Module: module, Language: language, Count: 1}
		}
	})
	if err != nil {
		return nil, err
	}

	deps := make([]Dependency, 0, len(counts))
	for _, dep := range counts {
		deps = append(deps, *dep)
	}
	sort.Slice(deps, func(i, j int) bool {
		if deps[i].Module != deps[j].Module {
			return deps[i].Module < deps[j].Module
		}
		return deps[i].Language < deps[j].Language
	})
	return deps, nil
}

func walk(source analysis.FileSource, dir string, visit func(path string, contents []byte)) error {
	entries, err := source.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("scanning %s: %w", dir, err)
	}
	for _, entry := range entries {
		name := entry.Name()
		full := filepath.Join(dir, name)
		if entry.IsDir() {
			if strings.HasPrefix(name, ".") {
				continue
			}
			if name == "node_modules" || name == "vendor" || name == "__pycache__" {
				continue
			}
			if err := walk(source, full, visit); err != nil {
				return err
			}
			continue
		}
		if !entry.Type().IsRegular() {
			continue
		}
		contents, err := source.ReadFile(full)
		if err != nil {
			return fmt.Errorf("scanning %s: %w", full, err)
		}
		if analysis.IsBinary(contents) {
			continue
		}
		visit(full, contents)
	}
	return nil
}
