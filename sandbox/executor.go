// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package sandbox

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// State is the executor's position in its lifecycle.
type State int

const (
	StateIdle State = iota
	StatePreparing
	StateActive
	StateFinalizing
	StateCompleted
	StateViolated
	StateFaulted
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePreparing:
		return "preparing"
	case StateActive:
		return "active"
	case StateFinalizing:
		return "finalizing"
	case StateCompleted:
		return "completed"
	case StateViolated:
		return "violated"
	case StateFaulted:
		return "faulted"
	default:
		return "unknown"
	}
}

// Result holds the classified outcome of one sandboxed run.
type Result struct {
	// Unit is the name of the executed unit.
	Unit string

	// State is the terminal state: Completed, Violated, or Faulted.
	State State

	// Duration is the wall-clock time of the unit's execution,
	// excluding guard activation and deactivation.
	Duration time.Duration

	// Violations are all capability denials recorded during the run.
	Violations []Violation

	// Err is the preserved unit error: the capability violation for a
	// Violated run, the unexpected failure for a Faulted run, nil for
	// a Completed run.
	Err error

	// DeactivationErr holds any guard restoration failure. It is
	// reported alongside Err, never instead of it.
	DeactivationErr error
}

// ExecutorConfig holds configuration for creating an Executor.
type ExecutorConfig struct {
	// Profile is the security profile for the run. Nil falls back to
	// the conservative default profile.
	Profile *SecurityProfile

	// Registry resolves unit names. Required.
	Registry *Registry

	// Timeout is an optional wall-clock budget for the unit. Expiry
	// cancels the unit's context and classifies the run Faulted; the
	// unit goroutine is abandoned if it does not honor cancellation,
	// but guards are still deactivated in reverse order.
	Timeout time.Duration

	// Dial overrides the network guard's underlying dialer. Nil uses
	// the default dialer.
	Dial DialFunc

	// Logger for run and denial logging.
	Logger *slog.Logger
}

// runMu serializes sandboxed runs. The environment guard mutates
// process-wide state, so at most one run may span Preparing through
// Finalizing at a time per process. Nested invocation from inside a
// unit would deadlock; it is unsupported.
var runMu sync.Mutex

// Executor runs one code unit under a guard stack built from a
// security profile. An executor is ephemeral: create one per run and
// discard it. It does not persist state across runs.
type Executor struct {
	profile  *SecurityProfile
	registry *Registry
	timeout  time.Duration
	dial     DialFunc
	logger   *slog.Logger
	state    State
}

// NewExecutor creates an executor for a single run.
func NewExecutor(config ExecutorConfig) (*Executor, error) {
	if config.Registry == nil {
		return nil, fmt.Errorf("registry is required")
	}
	profile := config.Profile
	if profile == nil {
		profile = DefaultProfile()
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Executor{
		profile:  profile,
		registry: config.Registry,
		timeout:  config.Timeout,
		dial:     config.Dial,
		logger:   logger,
		state:    StateIdle,
	}, nil
}

// State returns the executor's current lifecycle state.
func (e *Executor) State() State {
	return e.state
}

// Execute runs the named unit under the profile and classifies the
// outcome. The returned error is nil exactly when the result state is
// Completed; otherwise it is the result's primary error. Every guard
// that activated is deactivated exactly once before Execute returns,
// on every exit path.
func (e *Executor) Execute(ctx context.Context, unitName string, args []string) (*Result, error) {
	runMu.Lock()
	defer runMu.Unlock()

	result := &Result{Unit: unitName}

	// Idle -> Preparing: locate the target unit.
	e.state = StatePreparing
	unit, err := e.registry.Lookup(unitName)
	if err != nil {
		e.state = StateFaulted
		result.State = StateFaulted
		result.Err = err
		return result, err
	}

	log := NewViolationLog(e.logger)

	// Load-time manifest check: every declared requirement must be
	// allowed by the profile before anything activates.
	imports := NewImportGuard(e.profile, log)
	for _, name := range unit.Requires {
		if !imports.IsAllowed(name) {
			v := Violation{Class: ViolationImport, Resource: name, Detail: "declared requirement"}
			log.Record(v)
			e.state = StateViolated
			result.State = StateViolated
			result.Violations = log.Violations()
			result.Err = &v
			return result, result.Err
		}
	}

	// Fixed activation order: import, filesystem, network,
	// environment. Deactivation is the exact reverse.
	filesystem := NewFilesystemGuard(e.profile, log)
	network := NewNetworkGuard(e.profile, log, e.dial)
	environment := NewEnvironmentGuard(e.profile)
	stack := NewGuardStack(e.logger, imports, filesystem, network, environment)

	// Preparing -> Active.
	if err := stack.Activate(); err != nil {
		e.state = StateFaulted
		result.State = StateFaulted
		result.Err = err
		result.Violations = log.Violations()
		return result, err
	}
	e.state = StateActive

	e.logger.Info("running sandboxed unit",
		"unit", unit.Name,
		"profile", e.profile.Name,
	)

	caps := newCapability(imports, filesystem, network, environment)
	started := time.Now()
	unitErr := e.runUnit(ctx, unit, caps, args)
	result.Duration = time.Since(started)

	// Active -> Finalizing: unconditional, even on failure.
	e.state = StateFinalizing
	deactivationErr := stack.Deactivate()
	result.Violations = log.Violations()

	// Classification. A deactivation failure is the most severe
	// class: it forces Faulted even when the unit's own failure was a
	// policy violation, and both errors are preserved.
	switch {
	case deactivationErr != nil:
		e.state = StateFaulted
		result.State = StateFaulted
		result.Err = unitErr
		result.DeactivationErr = deactivationErr
		if unitErr != nil {
			// Unwinding from another fault: report both, never hide
			// the first behind the second.
			return result, errors.Join(unitErr, deactivationErr)
		}
		return result, deactivationErr
	case unitErr != nil:
		if _, ok := IsViolation(unitErr); ok || !log.Empty() {
			e.state = StateViolated
			result.State = StateViolated
		} else {
			e.state = StateFaulted
			result.State = StateFaulted
		}
		result.Err = unitErr
		return result, unitErr
	case !log.Empty():
		// The unit swallowed a denial and returned nil. The denial
		// still counts: a recorded violation is a policy outcome, not
		// a unit implementation detail.
		e.state = StateViolated
		result.State = StateViolated
		result.Err = &result.Violations[0]
		return result, result.Err
	default:
		e.state = StateCompleted
		result.State = StateCompleted
		return result, nil
	}
}

// runUnit executes the unit body with panic recovery and the optional
// wall-clock budget.
func (e *Executor) runUnit(ctx context.Context, unit *Unit, caps *Capability, args []string) error {
	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	done := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- fmt.Errorf("unit %s panicked: %v", unit.Name, r)
			}
		}()
		done <- unit.Run(ctx, caps, args)
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		// Budget expired or caller cancelled. The unit goroutine is
		// abandoned; cooperative units observe ctx and stop.
		return fmt.Errorf("unit %s aborted: %w", unit.Name, ctx.Err())
	}
}
