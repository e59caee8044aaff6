// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package manifest

import (
	"fmt"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bureau-foundation/devtoolbox/lib/analysis"
	"github.com/bureau-foundation/devtoolbox/lib/depscan"
)

// Generate builds a manifest for the tool rooted at dir: the file
// list is the tree's regular files as relative slash paths, and the
// dependency list is what a lexical scan of those files references.
// The caller supplies identity; everything else is derived.
func Generate(source analysis.FileSource, dir, name, version string) (*Manifest, error) {
	var files []string
	if err := collectFiles(source, dir, "", &files); err != nil {
		return nil, err
	}
	sort.Strings(files)

	scanned, err := depscan.ScanTree(source, dir)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]struct{})
	var modules []string
	for _, dep := range scanned {
		if _, ok := seen[dep.Module]; ok {
			continue
		}
		seen[dep.Module] = struct{}{}
		modules = append(modules, dep.Module)
	}
	sort.Strings(modules)

	m := &Manifest{
		Name:         name,
		Version:      version,
		Files:        files,
		Dependencies: modules,
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return m, nil
}

// collectFiles lists the tree's regular files relative to the root,
// skipping hidden entries and package caches the same way the scan
// does.
func collectFiles(source analysis.FileSource, dir, rel string, files *[]string) error {
	entries, err := source.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("listing %s: %w", dir, err)
	}
	for _, entry := range entries {
		name := entry.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}
		if entry.IsDir() {
			if name == "node_modules" || name == "vendor" || name == "__pycache__" {
				continue
			}
			if err := collectFiles(source, filepath.Join(dir, name), path.Join(rel, name), files); err != nil {
				return err
			}
			continue
		}
		if !entry.Type().IsRegular() {
			continue
		}
		*files = append(*files, path.Join(rel, name))
	}
	return nil
}
