// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package sandbox

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

// Guard interposes on one capability class. Lifecycle: constructed
// from a profile fragment, activated once, consulted for enforcement
// checks, deactivated once. Deactivation must restore prior ambient
// state exactly and must be safe to call even if activation only
// partially succeeded.
type Guard interface {
	// Name identifies the guard in logs and deactivation faults.
	Name() string

	// Activate installs the guard. Must be idempotent-safe for a
	// single call per lifecycle.
	Activate() error

	// Deactivate restores prior ambient state. Idempotent: a second
	// call is a no-op.
	Deactivate() error
}

// ViolationLog is the observable channel guards report denials on.
// Every denied request is recorded exactly once before the operation
// fails.
type ViolationLog struct {
	mu         sync.Mutex
	violations []Violation
	logger     *slog.Logger
}

// NewViolationLog creates a violation log. A nil logger disables
// denial logging but still records violations.
func NewViolationLog(logger *slog.Logger) *ViolationLog {
	return &ViolationLog{logger: logger}
}

// Record registers a denial and logs it.
func (l *ViolationLog) Record(v Violation) {
	l.mu.Lock()
	l.violations = append(l.violations, v)
	l.mu.Unlock()

	if l.logger != nil {
		l.logger.Warn("capability denied",
			"class", string(v.Class),
			"resource", v.Resource,
		)
	}
}

// Violations returns a copy of all recorded denials.
func (l *ViolationLog) Violations() []Violation {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Violation(nil), l.violations...)
}

// Empty reports whether no denial has been recorded.
func (l *ViolationLog) Empty() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.violations) == 0
}

// GuardStack composes an ordered list of guards with paired
// activation and deactivation. The activation order is fixed by the
// caller (import, filesystem, network, environment) so that a later
// guard's setup never depends on a capability an earlier guard
// restricts; deactivation runs in exact reverse order.
type GuardStack struct {
	guards    []Guard
	activated int // number of successfully activated guards
	logger    *slog.Logger
}

// NewGuardStack creates a stack over the given guards in activation
// order.
func NewGuardStack(logger *slog.Logger, guards ...Guard) *GuardStack {
	return &GuardStack{guards: guards, logger: logger}
}

// Activate activates every guard in order. If any activation fails,
// guards activated so far are deactivated in reverse order
// (best-effort) and the activation error is returned: the stack has
// all-or-nothing visible effect.
func (s *GuardStack) Activate() error {
	for _, g := range s.guards {
		if err := g.Activate(); err != nil {
			activationErr := fmt.Errorf("activating guard %s: %w", g.Name(), err)
			if rollbackErr := s.Deactivate(); rollbackErr != nil {
				return errors.Join(activationErr, rollbackErr)
			}
			return activationErr
		}
		s.activated++
		if s.logger != nil {
			s.logger.Debug("guard activated", "guard", g.Name())
		}
	}
	return nil
}

// Deactivate deactivates every activated guard in reverse order.
// Each guard is deactivated exactly once; a second Deactivate call is
// a no-op. Failures are collected as DeactivationFaults and joined --
// a failing guard never prevents the remaining guards from
// deactivating, and no failure is silently swallowed.
func (s *GuardStack) Deactivate() error {
	var faults []error
	for i := s.activated - 1; i >= 0; i-- {
		g := s.guards[i]
		if err := g.Deactivate(); err != nil {
			faults = append(faults, &DeactivationFault{Guard: g.Name(), Err: err})
			if s.logger != nil {
				s.logger.Error("guard deactivation failed", "guard", g.Name(), "error", err)
			}
			continue
		}
		if s.logger != nil {
			s.logger.Debug("guard deactivated", "guard", g.Name())
		}
	}
	s.activated = 0
	return errors.Join(faults...)
}

// Activated returns the number of currently activated guards.
func (s *GuardStack) Activated() int {
	return s.activated
}
