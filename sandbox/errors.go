// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package sandbox

import (
	"errors"
	"fmt"
)

// ProfileError reports a malformed or inconsistent security profile.
// It is returned before any guard activates and is never retried.
type ProfileError struct {
	// Field is the profile field that failed validation, in document
	// notation (e.g. "filesystem.read_paths").
	Field string

	// Err is the underlying cause.
	Err error
}

func (e *ProfileError) Error() string {
	return fmt.Sprintf("invalid profile: %s: %v", e.Field, e.Err)
}

func (e *ProfileError) Unwrap() error {
	return e.Err
}

// ViolationClass identifies the capability class a denial belongs to.
type ViolationClass string

const (
	ViolationImport      ViolationClass = "import"
	ViolationFileRead    ViolationClass = "file-read"
	ViolationFileWrite   ViolationClass = "file-write"
	ViolationFileDelete  ViolationClass = "file-delete"
	ViolationNetwork     ViolationClass = "network"
	ViolationEnvironment ViolationClass = "environment"
)

// Violation reports that a guard denied a specific request during
// execution. It always carries the denied resource identifier. A
// violation is a policy decision, not a transient failure; callers
// must not retry.
type Violation struct {
	// Class is the capability class of the denied request.
	Class ViolationClass

	// Resource identifies what was denied: a capability name, a
	// canonicalized path, or a host:port pair.
	Resource string

	// Detail is an optional human-readable elaboration.
	Detail string
}

func (v *Violation) Error() string {
	if v.Detail != "" {
		return fmt.Sprintf("capability violation: %s: %s (%s)", v.Class, v.Resource, v.Detail)
	}
	return fmt.Sprintf("capability violation: %s: %s", v.Class, v.Resource)
}

// IsViolation reports whether err is (or wraps) a capability violation.
func IsViolation(err error) (*Violation, bool) {
	var v *Violation
	if errors.As(err, &v) {
		return v, true
	}
	return nil, false
}

// SetupFault reports that the target code unit could not be located or
// loaded. It occurs before guard activation, so there is nothing to
// deactivate.
type SetupFault struct {
	// Unit is the name of the unit that could not be resolved.
	Unit string

	// Err is the underlying cause.
	Err error
}

func (e *SetupFault) Error() string {
	return fmt.Sprintf("sandbox setup failed for unit %q: %v", e.Unit, e.Err)
}

func (e *SetupFault) Unwrap() error {
	return e.Err
}

// IsSetupFault reports whether err is (or wraps) a setup fault.
func IsSetupFault(err error) bool {
	var f *SetupFault
	return errors.As(err, &f)
}

// DeactivationFault reports that a guard failed to restore ambient
// state. This is the most severe error class: the process may be left
// in a non-pristine state. When the failure occurred while unwinding
// from another fault, During carries that original fault so neither is
// hidden behind the other.
type DeactivationFault struct {
	// Guard is the name of the guard that failed to deactivate.
	Guard string

	// Err is the restoration failure.
	Err error

	// During is the fault being unwound when deactivation failed,
	// or nil if deactivation failed on a clean exit.
	During error
}

func (e *DeactivationFault) Error() string {
	if e.During != nil {
		return fmt.Sprintf("guard %s failed to deactivate: %v (while unwinding: %v)", e.Guard, e.Err, e.During)
	}
	return fmt.Sprintf("guard %s failed to deactivate: %v", e.Guard, e.Err)
}

func (e *DeactivationFault) Unwrap() error {
	return e.Err
}

// IsDeactivationFault reports whether err is (or wraps) a
// deactivation fault.
func IsDeactivationFault(err error) bool {
	var f *DeactivationFault
	return errors.As(err, &f)
}
