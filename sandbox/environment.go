// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package sandbox

import (
	"os"
	"strings"
)

// EnvironmentGuard hides ambient environment variables from sandboxed
// code unless explicitly allowed. Unlike the other guards, it also
// mutates real process state: on activation it scrubs os.Environ down
// to the passthrough set, and on deactivation it restores the exact
// prior mapping (key set and values), so a run leaves the process
// environment bit-identical to its pre-activation value.
type EnvironmentGuard struct {
	allowAccess bool
	passthrough map[string]struct{} // minimal runtime set plus profile vars
	snapshot    []string            // prior environ, valid while scrubbed
	scrubbed    bool
}

// NewEnvironmentGuard builds an environment guard from the profile's
// environment policy.
func NewEnvironmentGuard(profile *SecurityProfile) *EnvironmentGuard {
	passthrough := make(map[string]struct{}, len(minimalPassthrough)+len(profile.PassthroughVars))
	for _, name := range minimalPassthrough {
		passthrough[name] = struct{}{}
	}
	for name := range profile.PassthroughVars {
		passthrough[name] = struct{}{}
	}
	return &EnvironmentGuard{
		allowAccess: profile.AllowEnvAccess,
		passthrough: passthrough,
	}
}

// Name implements Guard.
func (g *EnvironmentGuard) Name() string { return "environment" }

// Activate implements Guard. With allow_access false, the process
// environment is snapshotted and replaced with the passthrough
// subset. With allow_access true, nothing is touched.
func (g *EnvironmentGuard) Activate() error {
	if g.allowAccess || g.scrubbed {
		return nil
	}

	g.snapshot = os.Environ()
	os.Clearenv()
	// Scrubbed from this point: if the passthrough replay fails
	// partway, Deactivate must still restore the snapshot.
	g.scrubbed = true
	for _, entry := range g.snapshot {
		key, value, ok := strings.Cut(entry, "=")
		if !ok {
			continue
		}
		if _, allowed := g.passthrough[key]; allowed {
			if err := os.Setenv(key, value); err != nil {
				return err
			}
		}
	}
	return nil
}

// Deactivate implements Guard. Restores the exact prior environment
// mapping: the environment is cleared first so variables set during
// the run do not survive, then the snapshot is replayed verbatim.
// Idempotent: a second call is a no-op.
func (g *EnvironmentGuard) Deactivate() error {
	if !g.scrubbed {
		return nil
	}

	os.Clearenv()
	for _, entry := range g.snapshot {
		key, value, ok := strings.Cut(entry, "=")
		if !ok {
			continue
		}
		if err := os.Setenv(key, value); err != nil {
			return err
		}
	}
	g.scrubbed = false
	g.snapshot = nil
	return nil
}

// IsVisible reports whether a variable is visible to the sandboxed
// unit.
func (g *EnvironmentGuard) IsVisible(key string) bool {
	if g.allowAccess {
		return true
	}
	_, ok := g.passthrough[key]
	return ok
}

// Env is the environment capability handed to sandboxed units. Hidden
// variables read as unset; hiding is policy, not a violation, so no
// denial is recorded.
type Env struct {
	guard *EnvironmentGuard
}

// Getenv returns the value of a visible variable, or "" if the
// variable is hidden or unset.
func (e *Env) Getenv(key string) string {
	value, _ := e.LookupEnv(key)
	return value
}

// LookupEnv returns the value of a visible variable and whether it is
// set. Hidden variables report as unset.
func (e *Env) LookupEnv(key string) (string, bool) {
	if !e.guard.IsVisible(key) {
		return "", false
	}
	return os.LookupEnv(key)
}

// Environ returns the visible environment in "key=value" form.
func (e *Env) Environ() []string {
	all := os.Environ()
	visible := make([]string, 0, len(all))
	for _, entry := range all {
		key, _, ok := strings.Cut(entry, "=")
		if !ok {
			continue
		}
		if e.guard.IsVisible(key) {
			visible = append(visible, entry)
		}
	}
	return visible
}
