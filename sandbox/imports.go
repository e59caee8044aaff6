// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package sandbox

import "strings"

// deniedCapabilities is the fixed deny-list of dangerous capability
// names. It is a code constant, never derived from configuration, so
// it cannot be overridden by policy: a profile that explicitly lists
// one of these in allowed_capabilities still has it denied. Matching
// is by name prefix, so "exec" also covers "exec.shell".
var deniedCapabilities = []string{
	"exec",       // process spawning
	"shell",      // interactive shells
	"pty",        // terminal allocation
	"socket.raw", // raw socket construction
	"fs.rmtree",  // recursive tree deletion
	"mail",       // outbound mail
	"ftp",        // legacy file transfer
}

// ImportGuard restricts which named capabilities the sandboxed unit
// may bring into scope. It is consulted both at load time (against the
// unit's declared requirements) and at runtime (Capability.Use).
type ImportGuard struct {
	allowed map[string]struct{}
	log     *ViolationLog
	active  bool
}

// NewImportGuard builds an import guard from the profile's capability
// set.
func NewImportGuard(profile *SecurityProfile, log *ViolationLog) *ImportGuard {
	return &ImportGuard{allowed: profile.AllowedCapabilities, log: log}
}

// Name implements Guard.
func (g *ImportGuard) Name() string { return "import" }

// Activate implements Guard. Capability gating is enforced through the
// injected capability context, so activation only arms the guard.
func (g *ImportGuard) Activate() error {
	g.active = true
	return nil
}

// Deactivate implements Guard.
func (g *ImportGuard) Deactivate() error {
	g.active = false
	return nil
}

// IsAllowed reports whether name may be acquired: either name itself
// or its top-level dot-segment must be in the profile's allowed set,
// and name must not match the fixed deny-list. The deny-list wins even
// over an explicit allow entry.
func (g *ImportGuard) IsAllowed(name string) bool {
	if name == "" {
		return false
	}
	for _, denied := range deniedCapabilities {
		if name == denied || strings.HasPrefix(name, denied+".") {
			return false
		}
	}
	if _, ok := g.allowed[name]; ok {
		return true
	}
	top, _, _ := strings.Cut(name, ".")
	_, ok := g.allowed[top]
	return ok
}

// Acquire checks name and records a violation on denial. The returned
// error is the violation itself.
func (g *ImportGuard) Acquire(name string) error {
	if g.IsAllowed(name) {
		return nil
	}
	v := Violation{Class: ViolationImport, Resource: name}
	g.log.Record(v)
	return &v
}
