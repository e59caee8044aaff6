// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package sandbox

import (
	"fmt"
	"io"
	"os"
	"strings"
)

// ValidationResult holds the result of a validation check.
type ValidationResult struct {
	Name    string
	Passed  bool
	Message string
	Warning bool // True if this is a warning, not an error.
}

// Validator performs pre-flight validation for a sandboxed run: the
// profile is checked for internal consistency and the unit's declared
// requirements are checked against it, before anything activates.
type Validator struct {
	results []ValidationResult
	errors  int
}

// NewValidator creates a new validator.
func NewValidator() *Validator {
	return &Validator{
		results: make([]ValidationResult, 0),
	}
}

// Results returns all validation results.
func (v *Validator) Results() []ValidationResult {
	return v.results
}

// HasErrors returns true if any validation failed.
func (v *Validator) HasErrors() bool {
	return v.errors > 0
}

// pass records a successful validation.
func (v *Validator) pass(name, message string) {
	v.results = append(v.results, ValidationResult{
		Name:    name,
		Passed:  true,
		Message: message,
	})
}

// warn records a warning (not a failure).
func (v *Validator) warn(name, message string) {
	v.results = append(v.results, ValidationResult{
		Name:    name,
		Passed:  true,
		Message: message,
		Warning: true,
	})
}

// fail records a validation failure.
func (v *Validator) fail(name, message string) {
	v.results = append(v.results, ValidationResult{
		Name:    name,
		Passed:  false,
		Message: message,
	})
	v.errors++
}

// ValidateAll runs all validation checks for a profile and, when unit
// is non-nil, its capability requirements.
func (v *Validator) ValidateAll(profile *SecurityProfile, unit *Unit) {
	v.ValidatePaths(profile)
	v.ValidateNetwork(profile)
	v.ValidateEnvironment(profile)
	if unit != nil {
		v.ValidateRequirements(profile, unit)
	}
}

// ValidatePaths checks that the profile's path entries exist where
// expected. A missing read path is an error (nothing could ever be
// read under it); a missing write path is a warning, since write
// targets may be created during the run.
func (v *Validator) ValidatePaths(profile *SecurityProfile) {
	for _, path := range profile.ReadPaths {
		info, err := os.Stat(path)
		if err != nil {
			v.fail("read-path", fmt.Sprintf("%s: %v", path, err))
			continue
		}
		if !info.IsDir() {
			v.warn("read-path", fmt.Sprintf("%s is a file, not a directory", path))
			continue
		}
		v.pass("read-path", path)
	}

	for _, path := range profile.WritePaths {
		if _, err := os.Stat(path); err != nil {
			v.warn("write-path", fmt.Sprintf("%s does not exist yet: %v", path, err))
			continue
		}
		v.pass("write-path", path)
	}

	if len(profile.WritePaths) == 0 && profile.AllowDelete {
		v.warn("filesystem", "allow_delete is set but write_paths is empty: deletion is never permitted")
	}
}

// ValidateNetwork checks the network policy for configurations that
// deny everything despite listing hosts.
func (v *Validator) ValidateNetwork(profile *SecurityProfile) {
	hasHosts := len(profile.AllowedHosts) > 0 || profile.AllowLocalhost
	if hasHosts && len(profile.AllowedPorts) == 0 {
		v.warn("network", "hosts are allowed but allowed_ports is empty: every connection is denied")
		return
	}
	if _, wildcard := profile.AllowedHosts[HostWildcard]; wildcard && len(profile.AllowedHosts) > 1 {
		v.warn("network", "wildcard host entry makes the other host entries redundant")
	}
	if hasHosts {
		v.pass("network", fmt.Sprintf("%d hosts, %d ports", len(profile.AllowedHosts), len(profile.AllowedPorts)))
	} else {
		v.pass("network", "all network access denied")
	}
}

// ValidateEnvironment checks the environment policy.
func (v *Validator) ValidateEnvironment(profile *SecurityProfile) {
	if profile.AllowEnvAccess && len(profile.PassthroughVars) > 0 {
		v.warn("environment", "passthrough_vars is ignored when allow_access is true")
		return
	}
	if profile.AllowEnvAccess {
		v.pass("environment", "full environment access")
		return
	}
	v.pass("environment", fmt.Sprintf("minimal passthrough plus %d vars", len(profile.PassthroughVars)))
}

// ValidateRequirements checks the unit's declared capabilities against
// the profile, including the fixed deny-list.
func (v *Validator) ValidateRequirements(profile *SecurityProfile, unit *Unit) {
	guard := NewImportGuard(profile, NewViolationLog(nil))
	for _, name := range unit.Requires {
		if guard.IsAllowed(name) {
			v.pass("requirement", name)
			continue
		}
		v.fail("requirement", fmt.Sprintf("unit %s requires %q which the profile denies", unit.Name, name))
	}
}

// PrintResults writes a formatted validation report.
func (v *Validator) PrintResults(w io.Writer) {
	for _, r := range v.results {
		marker := "ok"
		if r.Warning {
			marker = "warn"
		} else if !r.Passed {
			marker = "FAIL"
		}
		fmt.Fprintf(w, "%-5s %-12s %s\n", marker, r.Name, r.Message)
	}

	fmt.Fprintln(w, strings.Repeat("-", 40))
	if v.errors > 0 {
		fmt.Fprintf(w, "%d check(s) failed\n", v.errors)
	} else {
		fmt.Fprintf(w, "all checks passed\n")
	}
}
