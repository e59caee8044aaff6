// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package sandbox

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
)

// SecurityProfile is the resolved, immutable policy governing one
// sandboxed run. All paths are canonicalized to absolute form at
// construction time; build one with CompileProfile and treat it as
// read-only afterward.
type SecurityProfile struct {
	// Name is the profile name, empty for inline documents.
	Name string

	// AllowedCapabilities is the set of capability names the unit may
	// acquire. A name allows itself and everything beneath its
	// top-level dot-segment.
	AllowedCapabilities map[string]struct{}

	// ReadPaths and WritePaths hold canonicalized absolute path
	// prefixes. The two lists are independent: a path present only in
	// WritePaths is writable but not readable, and vice versa.
	ReadPaths  []string
	WritePaths []string

	// AllowDelete permits deletion of paths that also pass the write
	// check. With empty WritePaths, deletion is never permitted
	// regardless of this flag.
	AllowDelete bool

	// AllowedHosts is the set of permitted destination hosts. The
	// wildcard entry "*" allows every host, even when specific hosts
	// are also listed.
	AllowedHosts map[string]struct{}

	// AllowedPorts is the set of permitted destination ports. An empty
	// set denies every port.
	AllowedPorts map[int]struct{}

	// AllowLocalhost permits connections to loopback aliases
	// (localhost, 127.0.0.1, ::1) without listing them in AllowedHosts.
	AllowLocalhost bool

	// AllowEnvAccess exposes the full process environment to the unit.
	// When false, only the minimal runtime passthrough set plus
	// PassthroughVars is visible.
	AllowEnvAccess bool

	// PassthroughVars are environment variable names visible to the
	// unit in addition to the minimal runtime set.
	PassthroughVars map[string]struct{}
}

// HostWildcard is the AllowedHosts entry that permits every host.
const HostWildcard = "*"

// minimalPassthrough is the environment variable set required for the
// runtime itself to function. It is always visible to sandboxed units,
// independent of profile configuration.
var minimalPassthrough = []string{"PATH", "HOME", "LANG", "TERM", "TMPDIR"}

// DefaultProfile returns the conservative fallback profile used when no
// profile is supplied: empty capability, host, and port sets, no
// writes, no deletes, and no environment access beyond the minimal
// passthrough set.
func DefaultProfile() *SecurityProfile {
	return &SecurityProfile{
		Name:                "default",
		AllowedCapabilities: map[string]struct{}{},
		AllowedHosts:        map[string]struct{}{},
		AllowedPorts:        map[int]struct{}{},
		PassthroughVars:     map[string]struct{}{},
	}
}

// CompileProfile resolves a profile document into an immutable
// SecurityProfile. Every path entry is normalized to absolute,
// canonicalized form; a path that cannot be canonicalized (e.g. a
// symlink loop) yields a ProfileError. Missing document fields fall
// back to the conservative defaults.
func CompileProfile(doc *ProfileDocument) (*SecurityProfile, error) {
	if doc == nil {
		return DefaultProfile(), nil
	}

	profile := DefaultProfile()
	profile.Name = doc.Name
	profile.AllowDelete = doc.Filesystem.AllowDelete
	profile.AllowLocalhost = doc.Network.AllowLocalhost
	profile.AllowEnvAccess = doc.Environment.AllowAccess

	for _, name := range doc.AllowedCapabilities {
		if name == "" {
			return nil, &ProfileError{Field: "allowed_capabilities", Err: fmt.Errorf("empty capability name")}
		}
		profile.AllowedCapabilities[name] = struct{}{}
	}

	var err error
	if profile.ReadPaths, err = canonicalizePaths(doc.Filesystem.ReadPaths); err != nil {
		return nil, &ProfileError{Field: "filesystem.read_paths", Err: err}
	}
	if profile.WritePaths, err = canonicalizePaths(doc.Filesystem.WritePaths); err != nil {
		return nil, &ProfileError{Field: "filesystem.write_paths", Err: err}
	}

	for _, host := range doc.Network.AllowedHosts {
		if host == "" {
			return nil, &ProfileError{Field: "network.allowed_hosts", Err: fmt.Errorf("empty host entry")}
		}
		profile.AllowedHosts[host] = struct{}{}
	}
	for _, port := range doc.Network.AllowedPorts {
		if port < 1 || port > 65535 {
			return nil, &ProfileError{Field: "network.allowed_ports", Err: fmt.Errorf("port %d out of range", port)}
		}
		profile.AllowedPorts[port] = struct{}{}
	}

	for _, name := range doc.Environment.PassthroughVars {
		if name == "" {
			return nil, &ProfileError{Field: "environment.passthrough_vars", Err: fmt.Errorf("empty variable name")}
		}
		profile.PassthroughVars[name] = struct{}{}
	}

	return profile, nil
}

// Document converts the profile back to its serializable document form.
// Compiling the returned document yields an equal profile, so profiles
// round-trip losslessly through serialization.
func (p *SecurityProfile) Document() *ProfileDocument {
	doc := &ProfileDocument{Name: p.Name}
	doc.AllowedCapabilities = sortedKeys(p.AllowedCapabilities)
	doc.Filesystem.ReadPaths = append([]string(nil), p.ReadPaths...)
	doc.Filesystem.WritePaths = append([]string(nil), p.WritePaths...)
	doc.Filesystem.AllowDelete = p.AllowDelete
	doc.Network.AllowedHosts = sortedKeys(p.AllowedHosts)
	doc.Network.AllowedPorts = sortedPorts(p.AllowedPorts)
	doc.Network.AllowLocalhost = p.AllowLocalhost
	doc.Environment.AllowAccess = p.AllowEnvAccess
	doc.Environment.PassthroughVars = sortedKeys(p.PassthroughVars)
	return doc
}

// Equal reports whether two profiles describe the same policy.
func (p *SecurityProfile) Equal(other *SecurityProfile) bool {
	if p == nil || other == nil {
		return p == other
	}
	if p.Name != other.Name ||
		p.AllowDelete != other.AllowDelete ||
		p.AllowLocalhost != other.AllowLocalhost ||
		p.AllowEnvAccess != other.AllowEnvAccess {
		return false
	}
	return stringSetsEqual(p.AllowedCapabilities, other.AllowedCapabilities) &&
		stringSlicesEqual(p.ReadPaths, other.ReadPaths) &&
		stringSlicesEqual(p.WritePaths, other.WritePaths) &&
		stringSetsEqual(p.AllowedHosts, other.AllowedHosts) &&
		portSetsEqual(p.AllowedPorts, other.AllowedPorts) &&
		stringSetsEqual(p.PassthroughVars, other.PassthroughVars)
}

// canonicalizePaths normalizes each entry to absolute, symlink-resolved
// form. Order is preserved.
func canonicalizePaths(paths []string) ([]string, error) {
	if len(paths) == 0 {
		return nil, nil
	}
	result := make([]string, 0, len(paths))
	for _, p := range paths {
		canonical, err := CanonicalPath(p)
		if err != nil {
			return nil, err
		}
		result = append(result, canonical)
	}
	return result, nil
}

// CanonicalPath resolves a path to absolute, cleaned, symlink-free
// form. If the path does not exist yet, symlinks are resolved on the
// nearest existing ancestor and the remaining components are appended
// unchanged, so policies can name paths that will be created during
// the run.
func CanonicalPath(path string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("empty path")
	}
	absolute, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolving %q: %w", path, err)
	}
	absolute = filepath.Clean(absolute)

	resolved, err := filepath.EvalSymlinks(absolute)
	if err == nil {
		return filepath.Clean(resolved), nil
	}
	if !os.IsNotExist(err) {
		return "", fmt.Errorf("canonicalizing %q: %w", path, err)
	}

	// Path doesn't exist - resolve the deepest existing ancestor and
	// rebuild the suffix on top of it.
	suffix := ""
	current := absolute
	for {
		parent := filepath.Dir(current)
		if parent == current {
			return "", fmt.Errorf("canonicalizing %q: no resolvable ancestor", path)
		}
		suffix = filepath.Join(filepath.Base(current), suffix)
		current = parent

		resolved, err := filepath.EvalSymlinks(current)
		if err == nil {
			return filepath.Clean(filepath.Join(resolved, suffix)), nil
		}
		if !os.IsNotExist(err) {
			return "", fmt.Errorf("canonicalizing %q: %w", path, err)
		}
	}
}

// ProfileLoader loads and resolves named security profiles.
type ProfileLoader struct {
	configs  []*ProfilesConfig
	compiled map[string]*SecurityProfile
	logger   *slog.Logger
}

// NewProfileLoader creates a new profile loader.
func NewProfileLoader() *ProfileLoader {
	return &ProfileLoader{
		configs:  make([]*ProfilesConfig, 0),
		compiled: make(map[string]*SecurityProfile),
	}
}

// SetLogger enables verbose logging during profile loading.
func (l *ProfileLoader) SetLogger(logger *slog.Logger) {
	l.logger = logger
}

// log is a helper that only logs if a logger is configured.
func (l *ProfileLoader) log(msg string, args ...any) {
	if l.logger != nil {
		l.logger.Info(msg, args...)
	}
}

// LoadDefaults loads the built-in default profiles.
func (l *ProfileLoader) LoadDefaults() error {
	l.log("loading built-in default profiles")
	config, err := ParseProfilesConfig([]byte(defaultProfilesYAML))
	if err != nil {
		return fmt.Errorf("failed to parse default profiles: %w", err)
	}
	l.configs = append(l.configs, config)
	l.log("loaded default profiles", "count", len(config.Profiles))
	return nil
}

// LoadFile loads profiles from a YAML file.
func (l *ProfileLoader) LoadFile(path string) error {
	l.log("loading profiles from file", "path", path)
	config, err := LoadProfilesConfig(path)
	if err != nil {
		l.log("failed to load profiles", "path", path, "error", err)
		return err
	}
	l.configs = append(l.configs, config)
	l.log("loaded profiles from file", "path", path, "count", len(config.Profiles))
	return nil
}

// LoadDirectory loads all YAML files from a directory.
func (l *ProfileLoader) LoadDirectory(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil // Directory doesn't exist - not an error.
		}
		return fmt.Errorf("failed to read directory %s: %w", dir, err)
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if filepath.Ext(name) != ".yaml" && filepath.Ext(name) != ".yml" {
			continue
		}
		path := filepath.Join(dir, name)
		if err := l.LoadFile(path); err != nil {
			return fmt.Errorf("failed to load %s: %w", path, err)
		}
	}

	return nil
}

// Names returns every loadable profile name, sorted.
func (l *ProfileLoader) Names() []string {
	seen := make(map[string]struct{})
	for _, config := range l.configs {
		for name := range config.Profiles {
			seen[name] = struct{}{}
		}
	}
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Resolve compiles a profile by name. Later-loaded configs override
// earlier ones. Compiled profiles are cached.
func (l *ProfileLoader) Resolve(name string) (*SecurityProfile, error) {
	l.log("resolving profile", "name", name)

	if profile, ok := l.compiled[name]; ok {
		l.log("profile found in cache", "name", name)
		return profile, nil
	}

	// Find profile document in configs (last one wins).
	var doc *ProfileDocument
	for _, config := range l.configs {
		if d, ok := config.Profiles[name]; ok {
			doc = d
		}
	}

	if doc == nil {
		l.log("profile not found", "name", name)
		return nil, fmt.Errorf("profile not found: %s", name)
	}
	doc.Name = name

	profile, err := CompileProfile(doc)
	if err != nil {
		return nil, err
	}

	l.compiled[name] = profile
	l.log("profile resolved",
		"name", name,
		"capabilities", len(profile.AllowedCapabilities),
		"read_paths", len(profile.ReadPaths),
		"write_paths", len(profile.WritePaths),
	)
	return profile, nil
}

// List returns all available profile names.
func (l *ProfileLoader) List() []string {
	names := make(map[string]bool)
	for _, config := range l.configs {
		for name := range config.Profiles {
			names[name] = true
		}
	}

	result := make([]string, 0, len(names))
	for name := range names {
		result = append(result, name)
	}
	sort.Strings(result)
	return result
}

// ConfigSearchPaths returns the paths to search for profile configs.
func ConfigSearchPaths() []string {
	paths := []string{}

	if configDir, err := os.UserConfigDir(); err == nil {
		paths = append(paths, filepath.Join(configDir, "devtoolbox", "profiles.yaml"))
	}

	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		paths = append(paths, filepath.Join(xdgConfig, "devtoolbox", "profiles.yaml"))
	}

	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "devtoolbox", "profiles.yaml"))
	}

	paths = append(paths, "/etc/devtoolbox/profiles.yaml")

	return paths
}

// LoadFromSearchPaths creates a loader with the built-in defaults plus
// profiles from the standard locations: each search path's
// profiles.yaml, then its profiles.d directory. Later loads override
// earlier ones. A nil logger disables load logging.
func LoadFromSearchPaths(logger *slog.Logger) (*ProfileLoader, error) {
	loader := NewProfileLoader()
	loader.SetLogger(logger)

	if err := loader.LoadDefaults(); err != nil {
		return nil, err
	}

	for _, path := range ConfigSearchPaths() {
		if _, err := os.Stat(path); err == nil {
			if err := loader.LoadFile(path); err != nil {
				return nil, fmt.Errorf("failed to load %s: %w", path, err)
			}
		} else {
			loader.log("profile config not found", "path", path)
		}
		if err := loader.LoadDirectory(filepath.Join(filepath.Dir(path), "profiles.d")); err != nil {
			return nil, err
		}
	}

	return loader, nil
}

func sortedKeys(set map[string]struct{}) []string {
	if len(set) == 0 {
		return nil
	}
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func sortedPorts(set map[int]struct{}) []int {
	if len(set) == 0 {
		return nil
	}
	ports := make([]int, 0, len(set))
	for p := range set {
		ports = append(ports, p)
	}
	sort.Ints(ports)
	return ports
}

func stringSetsEqual(a, b map[string]struct{}) bool {
	if len(a) != len(b) {
		return false
	}
	for k := range a {
		if _, ok := b[k]; !ok {
			return false
		}
	}
	return true
}

func portSetsEqual(a, b map[int]struct{}) bool {
	if len(a) != len(b) {
		return false
	}
	for k := range a {
		if _, ok := b[k]; !ok {
			return false
		}
	}
	return true
}

func stringSlicesEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// defaultProfilesYAML contains the built-in profile definitions.
// The locked profile is the deny-everything baseline; the tool
// profiles grant each built-in unit exactly what it needs. Path
// entries support ${VAR} expansion against the process environment
// at load time (see Variables).
const defaultProfilesYAML = `
profiles:
  locked:
    # Deny-everything baseline. Identical to the fallback used when no
    # profile is supplied.
    allowed_capabilities: []
    filesystem:
      read_paths: []
      write_paths: []
      allow_delete: false
    network:
      allowed_hosts: []
      allowed_ports: []
      allow_localhost: false
    environment:
      allow_access: false
      passthrough_vars: []

  analyzer:
    # Read-only code statistics over the working directory.
    allowed_capabilities:
      - fs.read
      - analysis
    filesystem:
      read_paths:
        - ${WORKDIR}

  scanner:
    # Dependency scanning: reads sources, writes the dependency list.
    allowed_capabilities:
      - fs.read
      - fs.write
      - depscan
    filesystem:
      read_paths:
        - ${WORKDIR}
      write_paths:
        - ${WORKDIR}

  checker:
    # Version lookups against the package index over HTTPS.
    allowed_capabilities:
      - fs.read
      - fs.write
      - net.http
      - depscan
      - pkgver
    filesystem:
      read_paths:
        - ${WORKDIR}
      write_paths:
        - ${WORKDIR}
    network:
      allowed_hosts:
        - pypi.org
      allowed_ports:
        - 443

  toolsmith:
    # Manifest generation and bundling: full read/write in the working
    # directory, including overwrite-by-delete.
    allowed_capabilities:
      - fs.read
      - fs.write
      - fs.delete
      - manifest
      - bundle
      - depscan
    filesystem:
      read_paths:
        - ${WORKDIR}
      write_paths:
        - ${WORKDIR}
      allow_delete: true
`
