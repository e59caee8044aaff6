// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package sandbox

// Capability is the per-run context handed to a sandboxed unit. It is
// the unit's only authority: there is no ambient global to fall back
// on, so everything the unit can touch flows through a guard. The
// context is call-scoped and released when the run finishes.
type Capability struct {
	fs      *FS
	net     *Net
	env     *Env
	imports *ImportGuard
}

// FS returns the checked filesystem capability.
func (c *Capability) FS() *FS { return c.fs }

// Net returns the checked network capability.
func (c *Capability) Net() *Net { return c.net }

// Env returns the filtered environment capability.
func (c *Capability) Env() *Env { return c.env }

// Use acquires a named capability dynamically, supplementing the
// load-time check of the unit's declared requirements. It returns a
// Violation if the name is not allowed by the profile or matches the
// fixed deny-list.
func (c *Capability) Use(name string) error {
	return c.imports.Acquire(name)
}

// newCapability assembles the capability context over activated
// guards.
func newCapability(imports *ImportGuard, fs *FilesystemGuard, netGuard *NetworkGuard, env *EnvironmentGuard) *Capability {
	return &Capability{
		fs:      &FS{guard: fs},
		net:     &Net{guard: netGuard},
		env:     &Env{guard: env},
		imports: imports,
	}
}
