// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/devtoolbox/sandbox"
)

// profileFlags is the flag subset shared by run and validate.
type profileFlags struct {
	profile     string
	profileFile string
	configFile  string
}

func addProfileFlags(flags *pflag.FlagSet, pf *profileFlags) {
	flags.StringVar(&pf.profile, "profile", "locked", "named security profile")
	flags.StringVar(&pf.profileFile, "profile-file", "", "inline profile document (YAML, JSON, or JSONC); overrides --profile")
	flags.StringVar(&pf.configFile, "config", "", "extra profiles file loaded over the built-in set")
}

// newLoader builds a loader over the built-in defaults, the standard
// search paths, and any --config file. Load logging is enabled only
// in debug mode.
func newLoader(pf *profileFlags, logger *slog.Logger) (*sandbox.ProfileLoader, error) {
	var loadLogger *slog.Logger
	if os.Getenv("DEVTOOLBOX_DEBUG") != "" {
		loadLogger = logger
	}
	loader, err := sandbox.LoadFromSearchPaths(loadLogger)
	if err != nil {
		return nil, usagef("%v", err)
	}
	if pf.configFile != "" {
		if err := loader.LoadFile(pf.configFile); err != nil {
			return nil, usagef("%v", err)
		}
	}
	return loader, nil
}

// resolveProfile loads the profile selected by the flags: an inline
// document when --profile-file is set, otherwise a named profile from
// the built-in set, the standard search paths, and any --config file.
func resolveProfile(pf *profileFlags, logger *slog.Logger) (*sandbox.SecurityProfile, error) {
	if pf.profileFile != "" {
		doc, err := sandbox.LoadProfileDocument(pf.profileFile)
		if err != nil {
			return nil, usagef("%v", err)
		}
		if doc.Name == "" {
			doc.Name = pf.profileFile
		}
		return sandbox.CompileProfile(doc)
	}

	loader, err := newLoader(pf, logger)
	if err != nil {
		return nil, err
	}
	profile, err := loader.Resolve(pf.profile)
	if err != nil {
		return nil, usagef("%v", err)
	}
	return profile, nil
}

func runCmd(args []string, logger *slog.Logger) error {
	flags := pflag.NewFlagSet("run", pflag.ContinueOnError)
	var pf profileFlags
	addProfileFlags(flags, &pf)
	timeout := flags.Duration("timeout", 0, "wall-clock budget for the unit (0 = none)")

	if err := flags.Parse(args); err != nil {
		return usagef("%v", err)
	}
	rest := flags.Args()
	if len(rest) == 0 {
		return usagef("run: unit name required")
	}
	unitName, unitArgs := rest[0], rest[1:]

	profile, err := resolveProfile(&pf, logger)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	executor, err := sandbox.NewExecutor(sandbox.ExecutorConfig{
		Profile:  profile,
		Registry: builtinRegistry(),
		Timeout:  *timeout,
		Logger:   logger,
	})
	if err != nil {
		return err
	}

	started := time.Now()
	result, execErr := executor.Execute(ctx, unitName, unitArgs)

	logger.Info("run finished",
		"unit", unitName,
		"profile", profile.Name,
		"state", result.State.String(),
		"duration", time.Since(started).Round(time.Millisecond),
		"violations", len(result.Violations),
	)
	for _, violation := range result.Violations {
		fmt.Fprintf(os.Stderr, "denied: %s %s\n", violation.Class, violation.Resource)
	}
	return execErr
}
