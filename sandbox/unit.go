// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package sandbox

import (
	"context"
	"errors"
	"fmt"
	"sort"
)

// ErrUnitNotFound reports that no unit with the requested name is
// registered.
var ErrUnitNotFound = errors.New("unit not found")

// RunFunc is the entry point of a code unit. The capability context is
// the unit's only authority; args are the unit's positional arguments.
type RunFunc func(ctx context.Context, caps *Capability, args []string) error

// Unit is a runnable code unit with a declared capability manifest.
// Requires is checked against the profile before any guard activates,
// so a unit that declares a capability the profile withholds never
// starts.
type Unit struct {
	// Name is the unit's registry key.
	Name string

	// Summary is a one-line description for listings.
	Summary string

	// Requires lists the capability names the unit needs. Checked at
	// load time; dynamic acquisitions via Capability.Use are checked
	// at runtime in addition.
	Requires []string

	// Run executes the unit.
	Run RunFunc
}

// Registry resolves units by name.
type Registry struct {
	units map[string]*Unit
}

// NewRegistry creates an empty unit registry.
func NewRegistry() *Registry {
	return &Registry{units: make(map[string]*Unit)}
}

// Register adds a unit. Re-registering a name replaces the previous
// unit.
func (r *Registry) Register(unit *Unit) error {
	if unit == nil || unit.Name == "" {
		return fmt.Errorf("unit must have a name")
	}
	if unit.Run == nil {
		return fmt.Errorf("unit %q must have a run function", unit.Name)
	}
	r.units[unit.Name] = unit
	return nil
}

// Lookup resolves a unit by name. An unknown name is a SetupFault
// wrapping ErrUnitNotFound.
func (r *Registry) Lookup(name string) (*Unit, error) {
	unit, ok := r.units[name]
	if !ok {
		return nil, &SetupFault{Unit: name, Err: ErrUnitNotFound}
	}
	return unit, nil
}

// List returns all registered units sorted by name.
func (r *Registry) List() []*Unit {
	units := make([]*Unit, 0, len(r.units))
	for _, u := range r.units {
		units = append(units, u)
	}
	sort.Slice(units, func(i, j int) bool { return units[i].Name < units[j].Name })
	return units
}
