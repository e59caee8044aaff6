// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package sandbox runs untrusted code units under declarative security
// profiles using explicit capability passing.
//
// The central type is [Executor], which resolves a code unit
// ([Unit]) from a [Registry], builds a stack of guards from a
// [SecurityProfile], and runs the unit with a [Capability] context as
// its only authority. Profiles declare which capability names a unit
// may acquire, which filesystem paths it may read, write, or delete,
// which network endpoints it may reach, and which environment
// variables it may observe. Everything a profile does not explicitly
// allow is denied.
//
// Guards activate in a fixed order (import, filesystem, network,
// environment) and deactivate in exact reverse, on every exit path:
// normal return, capability violation, unexpected fault, or budget
// expiry. Rather than patching process-global interception points,
// each guard checks requests that flow through the injected
// capability context, so a unit holds no ambient authority. The one
// exception is [EnvironmentGuard], which additionally scrubs and
// exactly restores the real process environment as defense in depth —
// the reason at most one sandboxed run may be active per process.
//
// Outcomes are classified into three terminal states: Completed,
// Violated (a guard denied a request; the denial is preserved in
// [Result]), and Faulted (anything else, including guard restoration
// failures, which are reported alongside the original fault rather
// than replacing it).
//
// Profiles are authored as YAML ([ProfilesConfig], with named
// built-ins loaded by [ProfileLoader]) or as inline JSON/JSONC
// documents, and round-trip losslessly through [ProfileDocument].
// [Validator] performs pre-flight checks and [RunDenialTests]
// verifies the guard layer by running a battery of operations the
// locked profile must deny.
package sandbox
