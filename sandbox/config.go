// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package sandbox

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"
)

// ProfileDocument is the serialized form of a security profile. It is
// the only externally visible schema: profiles are authored as YAML
// (the profiles config format) or JSON/JSONC (the inline document
// format), and every field omitted in the document falls back to the
// conservative default.
type ProfileDocument struct {
	Name                string             `yaml:"name,omitempty" json:"name,omitempty"`
	AllowedCapabilities []string           `yaml:"allowed_capabilities,omitempty" json:"allowed_capabilities,omitempty"`
	Filesystem          FilesystemDocument `yaml:"filesystem,omitempty" json:"filesystem,omitempty"`
	Network             NetworkDocument    `yaml:"network,omitempty" json:"network,omitempty"`
	Environment         EnvDocument        `yaml:"environment,omitempty" json:"environment,omitempty"`
}

// FilesystemDocument declares filesystem policy.
type FilesystemDocument struct {
	ReadPaths   []string `yaml:"read_paths,omitempty" json:"read_paths,omitempty"`
	WritePaths  []string `yaml:"write_paths,omitempty" json:"write_paths,omitempty"`
	AllowDelete bool     `yaml:"allow_delete,omitempty" json:"allow_delete,omitempty"`
}

// NetworkDocument declares network policy.
type NetworkDocument struct {
	AllowedHosts   []string `yaml:"allowed_hosts,omitempty" json:"allowed_hosts,omitempty"`
	AllowedPorts   []int    `yaml:"allowed_ports,omitempty" json:"allowed_ports,omitempty"`
	AllowLocalhost bool     `yaml:"allow_localhost,omitempty" json:"allow_localhost,omitempty"`
}

// EnvDocument declares environment policy.
type EnvDocument struct {
	AllowAccess     bool     `yaml:"allow_access,omitempty" json:"allow_access,omitempty"`
	PassthroughVars []string `yaml:"passthrough_vars,omitempty" json:"passthrough_vars,omitempty"`
}

// ProfilesConfig is a named collection of profile documents, the
// top-level structure of a profiles YAML file.
type ProfilesConfig struct {
	Profiles map[string]*ProfileDocument `yaml:"profiles"`
}

// ParseProfilesConfig parses a profiles YAML document and expands
// ${VAR} references in path entries against the default variable set.
func ParseProfilesConfig(data []byte) (*ProfilesConfig, error) {
	var config ProfilesConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("parsing profiles config: %w", err)
	}
	if config.Profiles == nil {
		config.Profiles = make(map[string]*ProfileDocument)
	}

	vars := DefaultVariables()
	for _, doc := range config.Profiles {
		vars.ExpandDocument(doc)
	}
	return &config, nil
}

// LoadProfilesConfig loads a profiles YAML file.
func LoadProfilesConfig(path string) (*ProfilesConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading profiles config %s: %w", path, err)
	}
	return ParseProfilesConfig(data)
}

// ParseProfileYAML parses a single inline profile document from YAML.
func ParseProfileYAML(data []byte) (*ProfileDocument, error) {
	var doc ProfileDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing profile document: %w", err)
	}
	DefaultVariables().ExpandDocument(&doc)
	return &doc, nil
}

// ParseProfileJSON parses a single inline profile document from JSON.
// The input may be JSONC: // line comments, /* block comments */, and
// trailing commas are stripped before unmarshaling.
func ParseProfileJSON(data []byte) (*ProfileDocument, error) {
	stripped := jsonc.ToJSON(data)

	var doc ProfileDocument
	if err := json.Unmarshal(stripped, &doc); err != nil {
		return nil, fmt.Errorf("parsing profile document: %w", err)
	}
	DefaultVariables().ExpandDocument(&doc)
	return &doc, nil
}

// LoadProfileDocument loads an inline profile document from a file,
// choosing the parser by extension: .json/.jsonc use the JSONC parser,
// everything else is treated as YAML.
func LoadProfileDocument(path string) (*ProfileDocument, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading profile document %s: %w", path, err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".jsonc":
		return ParseProfileJSON(data)
	default:
		return ParseProfileYAML(data)
	}
}

// EncodeYAML serializes the document to YAML.
func (d *ProfileDocument) EncodeYAML() ([]byte, error) {
	data, err := yaml.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("serializing profile document: %w", err)
	}
	return data, nil
}

// EncodeJSON serializes the document to indented JSON.
func (d *ProfileDocument) EncodeJSON() ([]byte, error) {
	data, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("serializing profile document: %w", err)
	}
	return data, nil
}

// Variables holds the variable values for ${VAR} expansion in profile
// documents.
type Variables map[string]string

var variablePattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// Expand expands variables in a string using ${VAR} syntax. Falls back
// to environment variables if not in the Variables map; unknown
// variables are left verbatim.
func (v Variables) Expand(s string) string {
	return variablePattern.ReplaceAllStringFunc(s, func(match string) string {
		varName := match[2 : len(match)-1]

		if val, ok := v[varName]; ok {
			return val
		}
		if val := os.Getenv(varName); val != "" {
			return val
		}
		return match
	})
}

// ExpandDocument expands variables in all path entries of a profile
// document in place. Only filesystem paths are expanded; capability
// names, hosts, and variable names are taken literally.
func (v Variables) ExpandDocument(doc *ProfileDocument) {
	for i := range doc.Filesystem.ReadPaths {
		doc.Filesystem.ReadPaths[i] = v.Expand(doc.Filesystem.ReadPaths[i])
	}
	for i := range doc.Filesystem.WritePaths {
		doc.Filesystem.WritePaths[i] = v.Expand(doc.Filesystem.WritePaths[i])
	}
}

// DefaultVariables returns the default variable set. WORKDIR is the
// current working directory, overridable via the DEVTOOLBOX_WORKDIR
// environment variable.
func DefaultVariables() Variables {
	workdir := os.Getenv("DEVTOOLBOX_WORKDIR")
	if workdir == "" {
		if cwd, err := os.Getwd(); err == nil {
			workdir = cwd
		} else {
			workdir = "."
		}
	}
	return Variables{
		"WORKDIR": workdir,
	}
}
