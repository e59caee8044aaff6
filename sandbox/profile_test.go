// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package sandbox

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultProfileDeniesEverything(t *testing.T) {
	profile := DefaultProfile()

	if len(profile.AllowedCapabilities) != 0 {
		t.Errorf("expected empty capability set, got %v", profile.AllowedCapabilities)
	}
	if len(profile.ReadPaths) != 0 || len(profile.WritePaths) != 0 {
		t.Errorf("expected empty path lists, got %v / %v", profile.ReadPaths, profile.WritePaths)
	}
	if profile.AllowDelete {
		t.Error("expected allow_delete false")
	}
	if len(profile.AllowedHosts) != 0 || len(profile.AllowedPorts) != 0 {
		t.Error("expected empty network sets")
	}
	if profile.AllowLocalhost || profile.AllowEnvAccess {
		t.Error("expected all booleans false")
	}
}

func TestCompileProfileNilDocument(t *testing.T) {
	profile, err := CompileProfile(nil)
	if err != nil {
		t.Fatalf("CompileProfile(nil) failed: %v", err)
	}
	if !profile.Equal(DefaultProfile()) {
		t.Error("nil document should compile to the default profile")
	}
}

func TestCompileProfileCanonicalizesPaths(t *testing.T) {
	dir := t.TempDir()
	messy := dir + string(filepath.Separator) + "." + string(filepath.Separator)

	doc := &ProfileDocument{}
	doc.Filesystem.ReadPaths = []string{messy}

	profile, err := CompileProfile(doc)
	if err != nil {
		t.Fatalf("CompileProfile failed: %v", err)
	}

	want, err := filepath.EvalSymlinks(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(profile.ReadPaths) != 1 || profile.ReadPaths[0] != want {
		t.Errorf("expected canonical path %q, got %v", want, profile.ReadPaths)
	}
}

func TestCompileProfileResolvesSymlinks(t *testing.T) {
	dir := t.TempDir()
	real := filepath.Join(dir, "real")
	if err := os.Mkdir(real, 0o755); err != nil {
		t.Fatal(err)
	}
	link := filepath.Join(dir, "link")
	if err := os.Symlink(real, link); err != nil {
		t.Fatal(err)
	}

	doc := &ProfileDocument{}
	doc.Filesystem.WritePaths = []string{link}

	profile, err := CompileProfile(doc)
	if err != nil {
		t.Fatalf("CompileProfile failed: %v", err)
	}

	want, err := filepath.EvalSymlinks(real)
	if err != nil {
		t.Fatal(err)
	}
	if profile.WritePaths[0] != want {
		t.Errorf("symlink not resolved: got %q, want %q", profile.WritePaths[0], want)
	}
}

func TestCompileProfileRejectsSymlinkLoop(t *testing.T) {
	dir := t.TempDir()
	loop := filepath.Join(dir, "loop")
	if err := os.Symlink(loop, loop); err != nil {
		t.Fatal(err)
	}

	doc := &ProfileDocument{}
	doc.Filesystem.ReadPaths = []string{filepath.Join(loop, "inner")}

	_, err := CompileProfile(doc)
	if err == nil {
		t.Fatal("expected ProfileError for symlink loop")
	}
	var profileErr *ProfileError
	if !errors.As(err, &profileErr) {
		t.Fatalf("expected ProfileError, got %T: %v", err, err)
	}
	if profileErr.Field != "filesystem.read_paths" {
		t.Errorf("unexpected field %q", profileErr.Field)
	}
}

func TestCompileProfileRejectsBadPort(t *testing.T) {
	doc := &ProfileDocument{}
	doc.Network.AllowedPorts = []int{70000}

	if _, err := CompileProfile(doc); err == nil {
		t.Fatal("expected ProfileError for out-of-range port")
	}
}

func TestCanonicalPathNonexistentTarget(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "not", "created", "yet")

	canonical, err := CanonicalPath(target)
	if err != nil {
		t.Fatalf("CanonicalPath failed for nonexistent target: %v", err)
	}

	resolvedDir, err := filepath.EvalSymlinks(dir)
	if err != nil {
		t.Fatal(err)
	}
	want := filepath.Join(resolvedDir, "not", "created", "yet")
	if canonical != want {
		t.Errorf("got %q, want %q", canonical, want)
	}
}

func TestProfileDocumentRoundTrip(t *testing.T) {
	dir := t.TempDir()

	doc := &ProfileDocument{
		Name:                "roundtrip",
		AllowedCapabilities: []string{"analysis", "fs.read"},
	}
	doc.Filesystem.ReadPaths = []string{dir}
	doc.Filesystem.WritePaths = []string{dir}
	doc.Filesystem.AllowDelete = true
	doc.Network.AllowedHosts = []string{"example.com", "pypi.org"}
	doc.Network.AllowedPorts = []int{80, 443}
	doc.Network.AllowLocalhost = true
	doc.Environment.AllowAccess = false
	doc.Environment.PassthroughVars = []string{"CI", "NO_COLOR"}

	profile, err := CompileProfile(doc)
	if err != nil {
		t.Fatalf("CompileProfile failed: %v", err)
	}

	recompiled, err := CompileProfile(profile.Document())
	if err != nil {
		t.Fatalf("recompile failed: %v", err)
	}
	if !profile.Equal(recompiled) {
		t.Error("profile did not survive document round-trip")
	}
}

func TestProfileLoaderDefaults(t *testing.T) {
	loader := NewProfileLoader()
	if err := loader.LoadDefaults(); err != nil {
		t.Fatalf("LoadDefaults failed: %v", err)
	}

	profiles := loader.List()
	if len(profiles) == 0 {
		t.Fatal("no profiles loaded")
	}

	expected := []string{"locked", "analyzer", "scanner", "checker", "toolsmith"}
	for _, name := range expected {
		found := false
		for _, p := range profiles {
			if p == name {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("expected profile %q not found", name)
		}
	}
}

func TestProfileLoaderResolveLocked(t *testing.T) {
	loader := NewProfileLoader()
	if err := loader.LoadDefaults(); err != nil {
		t.Fatalf("LoadDefaults failed: %v", err)
	}

	locked, err := loader.Resolve("locked")
	if err != nil {
		t.Fatalf("Resolve(locked) failed: %v", err)
	}
	if locked.Name != "locked" {
		t.Errorf("expected name 'locked', got %q", locked.Name)
	}
	if len(locked.AllowedCapabilities) != 0 || len(locked.ReadPaths) != 0 {
		t.Error("locked profile should deny everything")
	}

	// Second resolve hits the cache and returns the same profile.
	again, err := loader.Resolve("locked")
	if err != nil {
		t.Fatalf("second Resolve failed: %v", err)
	}
	if again != locked {
		t.Error("expected cached profile instance")
	}
}

func TestProfileLoaderResolveUnknown(t *testing.T) {
	loader := NewProfileLoader()
	if err := loader.LoadDefaults(); err != nil {
		t.Fatalf("LoadDefaults failed: %v", err)
	}
	if _, err := loader.Resolve("nonexistent"); err == nil {
		t.Fatal("expected error for unknown profile")
	}
}

func TestProfileLoaderFileOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	override := filepath.Join(dir, "profiles.yaml")
	content := "profiles:\n  locked:\n    network:\n      allow_localhost: true\n"
	if err := os.WriteFile(override, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	loader := NewProfileLoader()
	if err := loader.LoadDefaults(); err != nil {
		t.Fatal(err)
	}
	if err := loader.LoadFile(override); err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}

	locked, err := loader.Resolve("locked")
	if err != nil {
		t.Fatal(err)
	}
	if !locked.AllowLocalhost {
		t.Error("later-loaded config should override the built-in profile")
	}
}

func TestProfileLoaderLoadDirectory(t *testing.T) {
	dir := t.TempDir()
	files := map[string]string{
		"a.yaml": "profiles:\n  alpha:\n    allowed_capabilities: [fs.read]\n",
		"b.yml":  "profiles:\n  beta:\n    network:\n      allow_localhost: true\n",
		"c.txt":  "profiles:\n  gamma: {}\n",
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	loader := NewProfileLoader()
	if err := loader.LoadDirectory(dir); err != nil {
		t.Fatalf("LoadDirectory failed: %v", err)
	}

	if _, err := loader.Resolve("alpha"); err != nil {
		t.Errorf("Resolve(alpha) failed: %v", err)
	}
	if _, err := loader.Resolve("beta"); err != nil {
		t.Errorf("Resolve(beta) failed: %v", err)
	}
	// Non-YAML files are not profile configs.
	if _, err := loader.Resolve("gamma"); err == nil {
		t.Error("Resolve(gamma) should fail: .txt files are skipped")
	}
}

func TestProfileLoaderLoadDirectoryMissing(t *testing.T) {
	loader := NewProfileLoader()
	if err := loader.LoadDirectory(filepath.Join(t.TempDir(), "absent")); err != nil {
		t.Fatalf("missing directory should not be an error, got %v", err)
	}
}

func TestLoadFromSearchPaths(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(home, ".config"))

	configDir := filepath.Join(home, ".config", "devtoolbox")
	if err := os.MkdirAll(filepath.Join(configDir, "profiles.d"), 0o755); err != nil {
		t.Fatal(err)
	}
	mainConfig := "profiles:\n  site:\n    allowed_capabilities: [fs.read]\n"
	if err := os.WriteFile(filepath.Join(configDir, "profiles.yaml"), []byte(mainConfig), 0o644); err != nil {
		t.Fatal(err)
	}
	dropIn := "profiles:\n  site:\n    network:\n      allow_localhost: true\n"
	if err := os.WriteFile(filepath.Join(configDir, "profiles.d", "site.yaml"), []byte(dropIn), 0o644); err != nil {
		t.Fatal(err)
	}

	loader, err := LoadFromSearchPaths(nil)
	if err != nil {
		t.Fatalf("LoadFromSearchPaths failed: %v", err)
	}

	// Built-in profiles are always present.
	if _, err := loader.Resolve("locked"); err != nil {
		t.Errorf("Resolve(locked) failed: %v", err)
	}
	// The profiles.d drop-in loads after profiles.yaml, so it wins.
	site, err := loader.Resolve("site")
	if err != nil {
		t.Fatalf("Resolve(site) failed: %v", err)
	}
	if !site.AllowLocalhost {
		t.Error("profiles.d drop-in should override the search-path config")
	}
}
