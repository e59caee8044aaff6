// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package analysis inspects source trees: it detects the language of
// each file and aggregates per-language file and line counts. All
// filesystem access goes through a caller-supplied FileSource, so the
// walk is subject to whatever path policy the source enforces.
package analysis

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/alecthomas/chroma/v2/lexers"
)

// FileSource is the read-side filesystem surface the walker uses.
// The sandbox filesystem capability satisfies it; so does a plain
// os-backed implementation for unrestricted use.
type FileSource interface {
	ReadDir(path string) ([]os.DirEntry, error)
	ReadFile(path string) ([]byte, error)
}

// osSource reads through the os package directly.
type osSource struct{}

func (osSource) ReadDir(path string) ([]os.DirEntry, error) { return os.ReadDir(path) }
func (osSource) ReadFile(path string) ([]byte, error)       { return os.ReadFile(path) }

// OSSource returns a FileSource with no path restrictions.
func OSSource() FileSource { return osSource{} }

// skipDirs are directory names never descended into: version control
// metadata, package caches, and build output.
var skipDirs = map[string]struct{}{
	".git":         {},
	".hg":          {},
	".svn":         {},
	"node_modules": {},
	"vendor":       {},
	"__pycache__":  {},
	".venv":        {},
	"dist":         {},
	"target":       {},
}

// LanguageStats aggregates counts for one detected language.
type LanguageStats struct {
	Files int `json:"files"`
	Lines int `json:"lines"`
}

// Report is the result of analyzing a source tree.
type Report struct {
	// Root is the analyzed directory.
	Root string `json:"root"`

	// Files is the number of text files inspected.
	Files int `json:"files"`

	// Lines is the total line count across inspected files.
	Lines int `json:"lines"`

	// Binary is the number of files skipped as binary.
	Binary int `json:"binary,omitempty"`

	// Languages maps language name to its aggregate counts.
	Languages map[string]LanguageStats `json:"languages"`
}

// TopLanguages returns language names ordered by descending line
// count, ties broken by name.
func (r *Report) TopLanguages() []string {
	names := make([]string, 0, len(r.Languages))
	for name := range r.Languages {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		a, b := r.Languages[names[i]], r.Languages[names[j]]
		if a.Lines != b.Lines {
			return a.Lines > b.Lines
		}
		return names[i] < names[j]
	})
	return names
}

// DetectLanguage names the language of a file. Filename-based lexer
// matching is tried first; when the filename is ambiguous the content
// is analysed. Unknown files report as "Text".
func DetectLanguage(filename string, contents []byte) string {
	lexer := lexers.Match(filepath.Base(filename))
	if lexer == nil && len(contents) > 0 {
		lexer = lexers.Analyse(string(contents))
	}
	if lexer == nil {
		return "Text"
	}
	return lexer.Config().Name
}

// IsBinary reports whether contents look like binary data: a NUL
// byte in the first 8 KiB.
func IsBinary(contents []byte) bool {
	probe := contents
	if len(probe) > 8192 {
		probe = probe[:8192]
	}
	return bytes.IndexByte(probe, 0) >= 0
}

// CountLines counts newline-terminated lines, treating a non-empty
// final fragment as a line.
func CountLines(contents []byte) int {
	if len(contents) == 0 {
		return 0
	}
	lines := bytes.Count(contents, []byte{'\n'})
	if contents[len(contents)-1] != '\n' {
		lines++
	}
	return lines
}

// AnalyzeTree walks root through the given source and aggregates
// per-language statistics. Hidden files are skipped; directories in
// the skip set are not descended into.
func AnalyzeTree(source FileSource, root string) (*Report, error) {
	report := &Report{
		Root:      root,
		Languages: make(map[string]LanguageStats),
	}
	if err := analyzeDir(source, root, report); err != nil {
		return nil, err
	}
	return report, nil
}

func analyzeDir(source FileSource, dir string, report *Report) error {
	entries, err := source.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("analyzing %s: %w", dir, err)
	}

	for _, entry := range entries {
		name := entry.Name()
		if strings.HasPrefix(name, ".") && entry.IsDir() {
			continue
		}
		full := filepath.Join(dir, name)

		if entry.IsDir() {
			if _, skip := skipDirs[name]; skip {
				continue
			}
			if err := analyzeDir(source, full, report); err != nil {
				return err
			}
			continue
		}
		if !entry.Type().IsRegular() {
			continue
		}

		contents, err := source.ReadFile(full)
		if err != nil {
			return fmt.Errorf("analyzing %s: %w", full, err)
		}
		if IsBinary(contents) {
			report.Binary++
			continue
		}

		language := DetectLanguage(name, contents)
		lines := CountLines(contents)

		stats := report.Languages[language]
		stats.Files++
		stats.Lines += lines
		report.Languages[language] = stats
		report.Files++
		report.Lines += lines
	}
	return nil
}
