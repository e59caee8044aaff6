// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package sandbox

import (
	"os"
	"path/filepath"
	"testing"
)

func TestParseProfileYAML(t *testing.T) {
	dir := t.TempDir()
	input := `
name: yaml-test
allowed_capabilities:
  - analysis
  - depscan
filesystem:
  read_paths:
    - ` + dir + `
  allow_delete: false
network:
  allowed_hosts:
    - pypi.org
  allowed_ports:
    - 443
environment:
  passthrough_vars:
    - CI
`
	doc, err := ParseProfileYAML([]byte(input))
	if err != nil {
		t.Fatalf("ParseProfileYAML failed: %v", err)
	}
	if doc.Name != "yaml-test" {
		t.Errorf("name: got %q", doc.Name)
	}
	if len(doc.AllowedCapabilities) != 2 {
		t.Errorf("capabilities: got %v", doc.AllowedCapabilities)
	}
	if len(doc.Network.AllowedPorts) != 1 || doc.Network.AllowedPorts[0] != 443 {
		t.Errorf("ports: got %v", doc.Network.AllowedPorts)
	}
}

func TestParseProfileJSONWithComments(t *testing.T) {
	dir := t.TempDir()
	input := `{
	// capability grants for the unit
	"name": "jsonc-test",
	"allowed_capabilities": ["analysis"],
	"filesystem": {
		"read_paths": ["` + dir + `"], // workspace root
	},
	/* network stays shut */
	"network": {},
}`
	doc, err := ParseProfileJSON([]byte(input))
	if err != nil {
		t.Fatalf("ParseProfileJSON failed: %v", err)
	}
	if doc.Name != "jsonc-test" {
		t.Errorf("name: got %q", doc.Name)
	}
	if len(doc.Filesystem.ReadPaths) != 1 {
		t.Errorf("read_paths: got %v", doc.Filesystem.ReadPaths)
	}
}

func TestLoadProfileDocumentByExtension(t *testing.T) {
	dir := t.TempDir()

	yamlPath := filepath.Join(dir, "p.yaml")
	if err := os.WriteFile(yamlPath, []byte("name: from-yaml\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	jsonPath := filepath.Join(dir, "p.json")
	if err := os.WriteFile(jsonPath, []byte(`{"name": "from-json"}`), 0o644); err != nil {
		t.Fatal(err)
	}
	jsoncPath := filepath.Join(dir, "p.jsonc")
	if err := os.WriteFile(jsoncPath, []byte("{\"name\": \"from-jsonc\"} // c\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	doc, err := LoadProfileDocument(yamlPath)
	if err != nil {
		t.Fatalf("yaml load failed: %v", err)
	}
	if doc.Name != "from-yaml" {
		t.Errorf("yaml name: got %q", doc.Name)
	}

	doc, err = LoadProfileDocument(jsonPath)
	if err != nil {
		t.Fatalf("json load failed: %v", err)
	}
	if doc.Name != "from-json" {
		t.Errorf("json name: got %q", doc.Name)
	}

	doc, err = LoadProfileDocument(jsoncPath)
	if err != nil {
		t.Fatalf("jsonc load failed: %v", err)
	}
	if doc.Name != "from-jsonc" {
		t.Errorf("jsonc name: got %q", doc.Name)
	}
}

func TestEncodeDecodeSymmetry(t *testing.T) {
	doc := &ProfileDocument{
		Name:                "sym",
		AllowedCapabilities: []string{"analysis"},
	}
	doc.Network.AllowedHosts = []string{"example.com"}
	doc.Network.AllowedPorts = []int{443}

	yamlBytes, err := doc.EncodeYAML()
	if err != nil {
		t.Fatalf("EncodeYAML failed: %v", err)
	}
	fromYAML, err := ParseProfileYAML(yamlBytes)
	if err != nil {
		t.Fatalf("re-parse yaml failed: %v", err)
	}
	if fromYAML.Name != doc.Name || len(fromYAML.Network.AllowedHosts) != 1 {
		t.Error("yaml encode/decode lost data")
	}

	jsonBytes, err := doc.EncodeJSON()
	if err != nil {
		t.Fatalf("EncodeJSON failed: %v", err)
	}
	fromJSON, err := ParseProfileJSON(jsonBytes)
	if err != nil {
		t.Fatalf("re-parse json failed: %v", err)
	}
	if fromJSON.Name != doc.Name || len(fromJSON.Network.AllowedPorts) != 1 {
		t.Error("json encode/decode lost data")
	}
}

func TestVariablesExpand(t *testing.T) {
	vars := Variables{"WORKDIR": "/work", "NAME": "demo"}

	got := vars.Expand("${WORKDIR}/src/${NAME}")
	if got != "/work/src/demo" {
		t.Errorf("got %q", got)
	}
}

func TestVariablesExpandEnvFallback(t *testing.T) {
	t.Setenv("SANDBOX_TEST_ONLY_VAR", "fallback")

	vars := Variables{}
	if got := vars.Expand("${SANDBOX_TEST_ONLY_VAR}/x"); got != "fallback/x" {
		t.Errorf("got %q", got)
	}
}

func TestVariablesExpandUnknownLeftVerbatim(t *testing.T) {
	vars := Variables{}
	in := "${SANDBOX_DEFINITELY_UNSET_VAR_93}/x"
	if got := vars.Expand(in); got != in {
		t.Errorf("unknown variable should stay verbatim, got %q", got)
	}
}

func TestExpandDocumentPathsOnly(t *testing.T) {
	doc := &ProfileDocument{Name: "${WORKDIR}"}
	doc.Filesystem.ReadPaths = []string{"${WORKDIR}/src"}
	doc.Filesystem.WritePaths = []string{"${WORKDIR}/out"}

	vars := Variables{"WORKDIR": "/work"}
	vars.ExpandDocument(doc)

	if doc.Filesystem.ReadPaths[0] != "/work/src" {
		t.Errorf("read path: got %q", doc.Filesystem.ReadPaths[0])
	}
	if doc.Filesystem.WritePaths[0] != "/work/out" {
		t.Errorf("write path: got %q", doc.Filesystem.WritePaths[0])
	}
	if doc.Name != "${WORKDIR}" {
		t.Errorf("name should not be expanded, got %q", doc.Name)
	}
}

func TestParseProfilesConfig(t *testing.T) {
	input := `
profiles:
  alpha:
    allowed_capabilities: [analysis]
  beta:
    network:
      allow_localhost: true
`
	config, err := ParseProfilesConfig([]byte(input))
	if err != nil {
		t.Fatalf("ParseProfilesConfig failed: %v", err)
	}
	if len(config.Profiles) != 2 {
		t.Fatalf("expected 2 profiles, got %d", len(config.Profiles))
	}
	if !config.Profiles["beta"].Network.AllowLocalhost {
		t.Error("beta should allow localhost")
	}
}
