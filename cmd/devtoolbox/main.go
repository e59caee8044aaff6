// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// devtoolbox runs developer tools inside a capability-restricted
// sandbox.
//
// Usage:
//
//	devtoolbox run [flags] <unit> [args...]
//	devtoolbox validate [flags] [unit]
//	devtoolbox list-profiles
//	devtoolbox show-profile <name>
//	devtoolbox list-units
//	devtoolbox test [flags]
package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/bureau-foundation/devtoolbox/lib/version"
	"github.com/bureau-foundation/devtoolbox/sandbox"
)

// Exit codes. A capability denial is a distinct outcome from a broken
// run: callers scripting around devtoolbox can tell "the policy said
// no" apart from "something failed".
const (
	exitOK        = 0
	exitSetup     = 1 // usage errors, unknown units, bad profiles
	exitViolation = 2 // the run was stopped by a capability denial
	exitFault     = 3 // unexpected failure, timeout, restoration fault
)

func main() {
	os.Exit(run())
}

func run() int {
	if len(os.Args) < 2 {
		printUsage()
		return exitSetup
	}

	logLevel := slog.LevelInfo
	if os.Getenv("DEVTOOLBOX_DEBUG") != "" {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	}))

	command := os.Args[1]
	args := os.Args[2:]

	var err error
	switch command {
	case "run":
		err = runCmd(args, logger)
	case "validate":
		err = validateCmd(args, logger)
	case "list-profiles":
		err = listProfilesCmd(args, logger)
	case "show-profile":
		err = showProfileCmd(args, logger)
	case "list-units":
		err = listUnitsCmd(args)
	case "test":
		err = testCmd(args, logger)
	case "version", "--version", "-v":
		fmt.Printf("devtoolbox %s\n", version.Info())
		return exitOK
	case "help", "--help", "-h":
		printUsage()
		return exitOK
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", command)
		printUsage()
		return exitSetup
	}

	if err == nil {
		return exitOK
	}
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	return classifyExit(err)
}

// classifyExit maps an error to the process exit code.
func classifyExit(err error) int {
	if _, ok := sandbox.IsViolation(err); ok {
		return exitViolation
	}
	if sandbox.IsDeactivationFault(err) {
		return exitFault
	}
	if sandbox.IsSetupFault(err) {
		return exitSetup
	}
	var profileErr *sandbox.ProfileError
	if errors.As(err, &profileErr) {
		return exitSetup
	}
	var usage *usageError
	if errors.As(err, &usage) {
		return exitSetup
	}
	return exitFault
}

// usageError marks bad invocations (missing arguments, unparseable
// flags) so they exit with the setup code rather than the fault code.
type usageError struct {
	message string
}

func (e *usageError) Error() string { return e.message }

func usagef(format string, args ...any) error {
	return &usageError{message: fmt.Sprintf(format, args...)}
}

func printUsage() {
	fmt.Print(`devtoolbox - Run developer tools in a capability-restricted sandbox

USAGE
    devtoolbox <command> [flags] [args...]

COMMANDS
    run           Run a tool unit under a security profile
    validate      Pre-flight a profile (and optionally a unit) without running
    list-profiles List available security profiles
    show-profile  Show a profile document
    list-units    List registered tool units
    test          Run the denial battery against a profile
    version       Show version

EXAMPLES
    # Analyze the working tree under the analyzer profile
    devtoolbox run --profile=analyzer analyze .

    # Check latest registry versions under the checker profile
    devtoolbox run --profile=checker pkgcheck requests pyyaml

    # Validate a custom profile document before using it
    devtoolbox validate --profile-file=./restricted.yaml depscan

    # Confirm the locked profile blocks everything it should
    devtoolbox test

ENVIRONMENT
    DEVTOOLBOX_WORKDIR  Working directory for ${WORKDIR} in profiles (default: cwd)
    DEVTOOLBOX_DEBUG    Enable debug logging
`)
}
