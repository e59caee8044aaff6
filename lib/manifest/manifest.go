// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package manifest defines the tool manifest format: a JSONC document
// declaring a tool's identity, its capability requirements, and the
// files it ships. Manifests are content-addressed by a BLAKE3 keyed
// digest so that two manifests with the same digest are guaranteed to
// declare the same tool.
package manifest

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path"
	"regexp"
	"sort"
	"strings"

	"github.com/tidwall/jsonc"
	"github.com/zeebo/blake3"
)

// Hash is a 32-byte BLAKE3 digest of a manifest.
type Hash [32]byte

// String returns the digest as lowercase hex.
func (h Hash) String() string {
	return hex.EncodeToString(h[:])
}

// ParseHash parses a 64-character hex digest.
func ParseHash(s string) (Hash, error) {
	var h Hash
	decoded, err := hex.DecodeString(s)
	if err != nil {
		return h, fmt.Errorf("parsing manifest digest: %w", err)
	}
	if len(decoded) != len(h) {
		return h, fmt.Errorf("manifest digest must be %d bytes, got %d", len(h), len(decoded))
	}
	copy(h[:], decoded)
	return h, nil
}

// manifestDomainKey is the BLAKE3 keyed-hash domain for manifest
// digests. The byte values are the ASCII encoding of the domain name,
// zero-padded to 32 bytes: readable in hex dumps, and distinct from
// every other hashing context in the system. Changing this key
// invalidates all existing manifest digests.
var manifestDomainKey = [32]byte{
	'd', 'e', 'v', 't', 'o', 'o', 'l', 'b', 'o', 'x', '.',
	'm', 'a', 'n', 'i', 'f', 'e', 's', 't', 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
}

// Manifest declares a tool: its identity, the capabilities it needs
// at run time, and the files that make it up.
type Manifest struct {
	// Name is the tool's registry name.
	Name string `json:"name"`

	// Version is the tool's semantic version string.
	Version string `json:"version"`

	// Summary is a one-line description shown in listings.
	Summary string `json:"summary,omitempty"`

	// Profile is the name of the security profile the tool runs
	// under. Empty means the locked default.
	Profile string `json:"profile,omitempty"`

	// Requires lists the capability names the tool declares up
	// front. Every entry is checked against the profile before the
	// tool runs.
	Requires []string `json:"requires,omitempty"`

	// Files are the relative paths shipped with the tool, sorted.
	Files []string `json:"files,omitempty"`

	// Dependencies lists the external modules the tool's sources
	// reference, as discovered by scanning. Informational: nothing
	// checks them at run time.
	Dependencies []string `json:"dependencies,omitempty"`
}

var nameAnchor = regexp.MustCompile(`^[a-z][a-z0-9-]*$`)

// Validate checks the manifest for structural problems. It does not
// touch the filesystem.
func (m *Manifest) Validate() error {
	if m.Name == "" {
		return fmt.Errorf("manifest: name is required")
	}
	if !nameAnchor.MatchString(m.Name) {
		return fmt.Errorf("manifest: name %q must be lowercase alphanumeric with hyphens", m.Name)
	}
	if m.Version == "" {
		return fmt.Errorf("manifest %s: version is required", m.Name)
	}
	for _, file := range m.Files {
		if file == "" {
			return fmt.Errorf("manifest %s: empty file entry", m.Name)
		}
		if path.IsAbs(file) {
			return fmt.Errorf("manifest %s: file %q must be relative", m.Name, file)
		}
		clean := path.Clean(file)
		if clean != file || clean == ".." || strings.HasPrefix(clean, "../") {
			return fmt.Errorf("manifest %s: file %q escapes the tool root", m.Name, file)
		}
	}
	return nil
}

// Parse parses a manifest from JSONC bytes. Line comments, block
// comments, and trailing commas are accepted.
func Parse(data []byte) (*Manifest, error) {
	var m Manifest
	if err := json.Unmarshal(jsonc.ToJSON(data), &m); err != nil {
		return nil, fmt.Errorf("parsing manifest: %w", err)
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// Load reads and parses a manifest file.
func Load(filename string) (*Manifest, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("reading manifest %s: %w", filename, err)
	}
	return Parse(data)
}

// Digest computes the manifest's BLAKE3 keyed digest over its
// canonical encoding. The digest is independent of comment placement,
// whitespace, field order in the source document, and the order of
// the Requires and Files lists.
func (m *Manifest) Digest() (Hash, error) {
	canonical := Manifest{
		Name:         m.Name,
		Version:      m.Version,
		Summary:      m.Summary,
		Profile:      m.Profile,
		Requires:     sortedCopy(m.Requires),
		Files:        sortedCopy(m.Files),
		Dependencies: sortedCopy(m.Dependencies),
	}
	encoded, err := json.Marshal(&canonical)
	if err != nil {
		return Hash{}, fmt.Errorf("encoding manifest %s: %w", m.Name, err)
	}

	hasher, err := blake3.NewKeyed(manifestDomainKey[:])
	if err != nil {
		return Hash{}, fmt.Errorf("initializing manifest hasher: %w", err)
	}
	hasher.Write(encoded)

	var digest Hash
	copy(digest[:], hasher.Sum(nil))
	return digest, nil
}

func sortedCopy(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	out := append([]string(nil), values...)
	sort.Strings(out)
	return out
}
