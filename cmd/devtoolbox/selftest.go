// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/devtoolbox/sandbox"
)

// testCmd runs the denial battery: a set of probes that each attempt
// an operation the profile should deny. A probe that gets through is
// a hole in the sandbox and fails the battery.
func testCmd(args []string, logger *slog.Logger) error {
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	var pf profileFlags
	addProfileFlags(flags, &pf)

	if err := flags.Parse(args); err != nil {
		return usagef("%v", err)
	}

	profile, err := resolveProfile(&pf, logger)
	if err != nil {
		return err
	}

	results, err := sandbox.RunDenialTests(context.Background(), profile)
	if err != nil {
		return err
	}
	failures := sandbox.PrintDenialResults(os.Stdout, results)
	if failures > 0 {
		return fmt.Errorf("denial battery: %d of %d probes got through", failures, len(results))
	}
	fmt.Printf("denial battery: all %d probes denied\n", len(results))
	return nil
}
