// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/devtoolbox/sandbox"
)

func validateCmd(args []string, logger *slog.Logger) error {
	flags := pflag.NewFlagSet("validate", pflag.ContinueOnError)
	var pf profileFlags
	addProfileFlags(flags, &pf)

	if err := flags.Parse(args); err != nil {
		return usagef("%v", err)
	}
	rest := flags.Args()
	if len(rest) > 1 {
		return usagef("validate: at most one unit name")
	}

	profile, err := resolveProfile(&pf, logger)
	if err != nil {
		return err
	}

	var unit *sandbox.Unit
	if len(rest) == 1 {
		unit, err = builtinRegistry().Lookup(rest[0])
		if err != nil {
			return err
		}
	}

	validator := sandbox.NewValidator()
	validator.ValidateAll(profile, unit)
	validator.PrintResults(os.Stdout)
	if validator.HasErrors() {
		return usagef("profile %q failed validation", profile.Name)
	}
	return nil
}

func listProfilesCmd(args []string, logger *slog.Logger) error {
	flags := pflag.NewFlagSet("list-profiles", pflag.ContinueOnError)
	configFile := flags.String("config", "", "extra profiles file loaded over the built-in set")
	if err := flags.Parse(args); err != nil {
		return usagef("%v", err)
	}

	loader, err := newLoader(&profileFlags{configFile: *configFile}, logger)
	if err != nil {
		return err
	}

	for _, name := range loader.Names() {
		profile, err := loader.Resolve(name)
		if err != nil {
			return err
		}
		fmt.Printf("%-12s caps=%d read=%d write=%d hosts=%d\n",
			name,
			len(profile.AllowedCapabilities),
			len(profile.ReadPaths),
			len(profile.WritePaths),
			len(profile.AllowedHosts),
		)
	}
	return nil
}

func showProfileCmd(args []string, logger *slog.Logger) error {
	flags := pflag.NewFlagSet("show-profile", pflag.ContinueOnError)
	var pf profileFlags
	addProfileFlags(flags, &pf)
	asJSON := flags.Bool("json", false, "emit the document as JSON instead of YAML")

	if err := flags.Parse(args); err != nil {
		return usagef("%v", err)
	}
	if rest := flags.Args(); len(rest) == 1 {
		pf.profile = rest[0]
	} else if len(rest) > 1 {
		return usagef("show-profile: at most one profile name")
	}

	profile, err := resolveProfile(&pf, logger)
	if err != nil {
		return err
	}

	doc := profile.Document()
	var encoded []byte
	if *asJSON {
		encoded, err = doc.EncodeJSON()
	} else {
		encoded, err = doc.EncodeYAML()
	}
	if err != nil {
		return err
	}
	os.Stdout.Write(encoded)
	return nil
}

func listUnitsCmd(args []string) error {
	if len(args) > 0 {
		return usagef("units: no arguments expected")
	}
	for _, unit := range builtinRegistry().List() {
		fmt.Printf("%-16s %-48s requires: %v\n", unit.Name, unit.Summary, unit.Requires)
	}
	return nil
}
