// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package sandbox

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// DenialTest attempts an operation the locked profile must deny.
// A passing test means the operation was BLOCKED (Run returned nil).
// A failing test means the operation SUCCEEDED (Run returned an error
// describing how), which indicates a hole in the guard layer.
type DenialTest struct {
	Name        string
	Description string
	Category    string // "import", "filesystem", "network", "environment"
	Run         func(ctx context.Context, caps *Capability) error
}

// DenialTestResult holds the result of running a denial test.
type DenialTestResult struct {
	Test   *DenialTest
	Passed bool   // True if the operation was blocked.
	Error  string // If the operation succeeded, describes how.
}

// DenialTests contains the built-in denial battery.
var DenialTests = []DenialTest{
	{
		Name:        "import-denied-capability",
		Description: "Acquire a capability the profile does not allow",
		Category:    "import",
		Run: func(ctx context.Context, caps *Capability) error {
			if err := caps.Use("net.http"); err != nil {
				return nil // Good - acquisition blocked.
			}
			return fmt.Errorf("acquired net.http without a grant")
		},
	},
	{
		Name:        "import-dangerous-capability",
		Description: "Acquire a deny-listed capability",
		Category:    "import",
		Run: func(ctx context.Context, caps *Capability) error {
			if err := caps.Use("exec"); err != nil {
				return nil
			}
			return fmt.Errorf("acquired deny-listed capability exec")
		},
	},
	{
		Name:        "filesystem-read-etc",
		Description: "Read /etc/passwd through the capability context",
		Category:    "filesystem",
		Run: func(ctx context.Context, caps *Capability) error {
			if _, err := caps.FS().ReadFile("/etc/passwd"); err != nil {
				return nil
			}
			return fmt.Errorf("read /etc/passwd succeeded")
		},
	},
	{
		Name:        "filesystem-write-tmp",
		Description: "Write outside the (empty) write set",
		Category:    "filesystem",
		Run: func(ctx context.Context, caps *Capability) error {
			target := filepath.Join(os.TempDir(), "devtoolbox-denial-probe")
			if err := caps.FS().WriteFile(target, []byte("probe"), 0o644); err != nil {
				return nil
			}
			os.Remove(target)
			return fmt.Errorf("write to %s succeeded", target)
		},
	},
	{
		Name:        "filesystem-delete",
		Description: "Delete with allow_delete unset",
		Category:    "filesystem",
		Run: func(ctx context.Context, caps *Capability) error {
			if err := caps.FS().Remove(filepath.Join(os.TempDir(), "devtoolbox-denial-probe")); err != nil {
				return nil
			}
			return fmt.Errorf("delete succeeded")
		},
	},
	{
		Name:        "network-external",
		Description: "Dial an external host",
		Category:    "network",
		Run: func(ctx context.Context, caps *Capability) error {
			conn, err := caps.Net().DialContext(ctx, "tcp", "1.1.1.1:80")
			if err != nil {
				return nil
			}
			conn.Close()
			return fmt.Errorf("connection to 1.1.1.1:80 succeeded")
		},
	},
	{
		Name:        "network-localhost",
		Description: "Dial localhost with allow_localhost unset",
		Category:    "network",
		Run: func(ctx context.Context, caps *Capability) error {
			conn, err := caps.Net().DialContext(ctx, "tcp", "127.0.0.1:8080")
			if err != nil {
				return nil
			}
			conn.Close()
			return fmt.Errorf("connection to 127.0.0.1:8080 succeeded")
		},
	},
	{
		Name:        "environment-hidden",
		Description: "Read a non-passthrough environment variable",
		Category:    "environment",
		Run: func(ctx context.Context, caps *Capability) error {
			os.Setenv("DEVTOOLBOX_SELFTEST_SECRET", "secret")
			defer os.Unsetenv("DEVTOOLBOX_SELFTEST_SECRET")
			if _, visible := caps.Env().LookupEnv("DEVTOOLBOX_SELFTEST_SECRET"); !visible {
				return nil
			}
			return fmt.Errorf("non-passthrough variable is visible")
		},
	},
}

// RunDenialTests activates a guard stack for the given profile
// (typically the locked default), runs the denial battery against a
// capability context, and deactivates the stack. It does not go
// through the Executor because the battery triggers denials on
// purpose; classifying those as a Violated run would defeat the point.
func RunDenialTests(ctx context.Context, profile *SecurityProfile) ([]DenialTestResult, error) {
	if profile == nil {
		profile = DefaultProfile()
	}

	// The environment guard mutates process-wide state, so the
	// battery takes the same run lock as the executor.
	runMu.Lock()
	defer runMu.Unlock()

	log := NewViolationLog(nil)
	imports := NewImportGuard(profile, log)
	filesystem := NewFilesystemGuard(profile, log)
	network := NewNetworkGuard(profile, log, nil)
	environment := NewEnvironmentGuard(profile)
	stack := NewGuardStack(nil, imports, filesystem, network, environment)

	if err := stack.Activate(); err != nil {
		return nil, fmt.Errorf("activating guard stack: %w", err)
	}

	caps := newCapability(imports, filesystem, network, environment)

	results := make([]DenialTestResult, 0, len(DenialTests))
	for i := range DenialTests {
		test := &DenialTests[i]
		err := test.Run(ctx, caps)
		result := DenialTestResult{Test: test, Passed: err == nil}
		if err != nil {
			result.Error = err.Error()
		}
		results = append(results, result)
	}

	// Deactivation failures are never swallowed, even here.
	if err := stack.Deactivate(); err != nil {
		return results, err
	}
	return results, nil
}

// PrintDenialResults writes a formatted denial battery report and
// returns the number of failures.
func PrintDenialResults(w io.Writer, results []DenialTestResult) int {
	failures := 0
	for _, r := range results {
		marker := "ok"
		if !r.Passed {
			marker = "FAIL"
			failures++
		}
		fmt.Fprintf(w, "%-5s %-28s %s\n", marker, r.Test.Name, r.Test.Description)
		if !r.Passed {
			fmt.Fprintf(w, "      %s\n", r.Error)
		}
	}
	return failures
}
