// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package sandbox

import (
	"log/slog"
	"testing"
)

func capabilityProfile(names ...string) *SecurityProfile {
	profile := DefaultProfile()
	for _, name := range names {
		profile.AllowedCapabilities[name] = struct{}{}
	}
	return profile
}

func TestImportGuardDefaultDeny(t *testing.T) {
	log := NewViolationLog(slog.Default())
	guard := NewImportGuard(DefaultProfile(), log)

	if guard.IsAllowed("analysis") {
		t.Error("empty profile must deny every capability")
	}
}

func TestImportGuardAllowsExactAndSubCapability(t *testing.T) {
	log := NewViolationLog(slog.Default())
	guard := NewImportGuard(capabilityProfile("analysis", "fs.read"), log)

	cases := []struct {
		name string
		want bool
	}{
		{"analysis", true},
		{"analysis.lexers", true}, // sub-capability of an allowed root
		{"fs.read", true},
		{"fs.write", false}, // root "fs" itself was never allowed
		{"fs", false},
		{"depscan", false},
	}
	for _, tc := range cases {
		if got := guard.IsAllowed(tc.name); got != tc.want {
			t.Errorf("IsAllowed(%q): got %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestImportGuardDeniedListOverridesAllow(t *testing.T) {
	log := NewViolationLog(slog.Default())
	guard := NewImportGuard(capabilityProfile("exec", "socket.raw", "fs.rmtree"), log)

	for _, name := range []string{"exec", "socket.raw", "fs.rmtree", "exec.spawn"} {
		if guard.IsAllowed(name) {
			t.Errorf("dangerous capability %q must stay denied even when the profile allows it", name)
		}
	}
}

func TestImportGuardAcquireRecordsViolation(t *testing.T) {
	log := NewViolationLog(slog.Default())
	guard := NewImportGuard(capabilityProfile("analysis"), log)

	if err := guard.Acquire("analysis"); err != nil {
		t.Fatalf("allowed acquire failed: %v", err)
	}
	if !log.Empty() {
		t.Fatal("allowed acquire must not record a violation")
	}

	err := guard.Acquire("shell")
	if err == nil {
		t.Fatal("expected violation for denied capability")
	}
	if _, ok := IsViolation(err); !ok {
		t.Fatalf("expected Violation, got %T: %v", err, err)
	}

	violations := log.Violations()
	if len(violations) != 1 {
		t.Fatalf("expected 1 recorded violation, got %d", len(violations))
	}
	if violations[0].Class != ViolationImport || violations[0].Resource != "shell" {
		t.Errorf("unexpected violation record: %+v", violations[0])
	}
}
