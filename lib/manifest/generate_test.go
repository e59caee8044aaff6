// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package manifest

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/bureau-foundation/devtoolbox/lib/analysis"
)

func writeTree(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, contents := range files {
		full := filepath.Join(dir, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
			t.Fatalf("mkdir for %s: %v", name, err)
		}
		if err := os.WriteFile(full, []byte(contents), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	return dir
}

func TestGenerate(t *testing.T) {
	dir := writeTree(t, map[string]string{
		"main.py":         "import requests\nimport yaml\n",
		"util/helpers.py": "import yaml\n",
		".secret":         "hidden\n",
		"vendor/dep.py":   "import hidden\n",
	})

	m, err := Generate(analysis.OSSource(), dir, "linecount", "1.0.0")
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	wantFiles := []string{"main.py", "util/helpers.py"}
	if !reflect.DeepEqual(m.Files, wantFiles) {
		t.Errorf("Files = %v, want %v", m.Files, wantFiles)
	}
	wantDeps := []string{"requests", "yaml"}
	if !reflect.DeepEqual(m.Dependencies, wantDeps) {
		t.Errorf("Dependencies = %v, want %v", m.Dependencies, wantDeps)
	}
	if m.Name != "linecount" || m.Version != "1.0.0" {
		t.Errorf("identity = %s %s, want linecount 1.0.0", m.Name, m.Version)
	}

	if _, err := m.Digest(); err != nil {
		t.Errorf("Digest on generated manifest failed: %v", err)
	}
}

func TestGenerateRejectsBadName(t *testing.T) {
	dir := writeTree(t, map[string]string{"a.py": "import os\n"})
	if _, err := Generate(analysis.OSSource(), dir, "Bad Name", "1.0.0"); err == nil {
		t.Fatal("invalid tool name should be rejected")
	}
}

func TestGenerateMissingRoot(t *testing.T) {
	if _, err := Generate(analysis.OSSource(), filepath.Join(t.TempDir(), "nope"), "x", "1.0.0"); err == nil {
		t.Fatal("missing root should be an error")
	}
}
