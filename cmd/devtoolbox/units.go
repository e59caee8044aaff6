// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path"
	"path/filepath"

	"github.com/bureau-foundation/devtoolbox/lib/analysis"
	"github.com/bureau-foundation/devtoolbox/lib/bundle"
	"github.com/bureau-foundation/devtoolbox/lib/depscan"
	"github.com/bureau-foundation/devtoolbox/lib/manifest"
	"github.com/bureau-foundation/devtoolbox/lib/pkgver"
	"github.com/bureau-foundation/devtoolbox/sandbox"
)

// builtinRegistry registers the units shipped with the binary. Every
// unit touches the world only through its capability context, so the
// same unit is safe under any profile: a profile that withholds a
// declared requirement stops the unit before it starts.
func builtinRegistry() *sandbox.Registry {
	registry := sandbox.NewRegistry()
	for _, unit := range []*sandbox.Unit{
		{
			Name:     "analyze",
			Summary:  "detect languages and count lines in a source tree",
			Requires: []string{"analysis", "fs.read"},
			Run:      analyzeUnit,
		},
		{
			Name:     "depscan",
			Summary:  "extract declared dependencies from a source tree",
			Requires: []string{"depscan", "fs.read"},
			Run:      depscanUnit,
		},
		{
			Name:     "pkgcheck",
			Summary:  "look up package versions on the PyPI registry",
			Requires: []string{"pkgver", "net.http"},
			Run:      pkgcheckUnit,
		},
		{
			Name:     "manifest-init",
			Summary:  "generate a manifest for a tool directory",
			Requires: []string{"manifest", "depscan", "fs.read", "fs.write"},
			Run:      manifestInitUnit,
		},
		{
			Name:     "manifest-digest",
			Summary:  "compute the keyed digest of a tool manifest",
			Requires: []string{"manifest", "fs.read"},
			Run:      manifestDigestUnit,
		},
		{
			Name:     "pack",
			Summary:  "pack a manifest's files into a compressed bundle",
			Requires: []string{"bundle", "manifest", "fs.read", "fs.write"},
			Run:      packUnit,
		},
		{
			Name:     "unpack",
			Summary:  "extract a compressed bundle into a directory",
			Requires: []string{"bundle", "fs.read", "fs.write"},
			Run:      unpackUnit,
		},
	} {
		if err := registry.Register(unit); err != nil {
			panic(err)
		}
	}
	return registry
}

func printJSON(v any) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

func analyzeUnit(ctx context.Context, caps *sandbox.Capability, args []string) error {
	root := "."
	if len(args) > 0 {
		root = args[0]
	}
	report, err := analysis.AnalyzeTree(caps.FS(), root)
	if err != nil {
		return err
	}
	return printJSON(report)
}

func depscanUnit(ctx context.Context, caps *sandbox.Capability, args []string) error {
	root := "."
	if len(args) > 0 {
		root = args[0]
	}
	deps, err := depscan.ScanTree(caps.FS(), root)
	if err != nil {
		return err
	}
	return printJSON(deps)
}

func pkgcheckUnit(ctx context.Context, caps *sandbox.Capability, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("pkgcheck: at least one package name required")
	}
	client, err := pkgver.NewClient(caps.Net().HTTPClient(), pkgver.DefaultBaseURL)
	if err != nil {
		return err
	}
	for _, name := range args {
		info, err := client.Lookup(ctx, name)
		if err != nil {
			return err
		}
		fmt.Printf("%s %s  %s\n", info.Name, info.Version, info.Summary)
	}
	return nil
}

func manifestInitUnit(ctx context.Context, caps *sandbox.Capability, args []string) error {
	if len(args) != 3 {
		return fmt.Errorf("manifest-init: directory, name, and version required")
	}
	dir, name, ver := args[0], args[1], args[2]

	m, err := manifest.Generate(caps.FS(), dir, name, ver)
	if err != nil {
		return err
	}
	encoded, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}
	target := filepath.Join(dir, "manifest.json")
	if err := caps.FS().WriteFile(target, append(encoded, '\n'), 0o644); err != nil {
		return err
	}
	fmt.Printf("wrote %s (%d files, %d dependencies)\n", target, len(m.Files), len(m.Dependencies))
	return nil
}

func manifestDigestUnit(ctx context.Context, caps *sandbox.Capability, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("manifest-digest: manifest file required")
	}
	data, err := caps.FS().ReadFile(args[0])
	if err != nil {
		return err
	}
	m, err := manifest.Parse(data)
	if err != nil {
		return err
	}
	digest, err := m.Digest()
	if err != nil {
		return err
	}
	fmt.Printf("%s  %s %s\n", digest, m.Name, m.Version)
	return nil
}

func packUnit(ctx context.Context, caps *sandbox.Capability, args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("pack: manifest file and output path required")
	}
	manifestPath, outputPath := args[0], args[1]

	data, err := caps.FS().ReadFile(manifestPath)
	if err != nil {
		return err
	}
	m, err := manifest.Parse(data)
	if err != nil {
		return err
	}

	baseDir := filepath.Dir(manifestPath)
	files := make([]bundle.File, 0, len(m.Files))
	for _, name := range m.Files {
		contents, err := caps.FS().ReadFile(filepath.Join(baseDir, filepath.FromSlash(name)))
		if err != nil {
			return err
		}
		files = append(files, bundle.File{Name: name, Mode: 0o644, Data: contents})
	}

	out, err := caps.FS().Create(outputPath)
	if err != nil {
		return err
	}
	if err := bundle.Write(out, files); err != nil {
		out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("closing bundle %s: %w", outputPath, err)
	}
	fmt.Printf("packed %d files into %s\n", len(files), outputPath)
	return nil
}

func unpackUnit(ctx context.Context, caps *sandbox.Capability, args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("unpack: bundle file and destination directory required")
	}
	bundlePath, destDir := args[0], args[1]

	in, err := caps.FS().Open(bundlePath)
	if err != nil {
		return err
	}
	defer in.Close()

	files, err := bundle.Read(in)
	if err != nil {
		return err
	}
	for _, file := range files {
		target := filepath.Join(destDir, filepath.FromSlash(file.Name))
		if dir := path.Dir(file.Name); dir != "." {
			if err := caps.FS().MkdirAll(filepath.Join(destDir, filepath.FromSlash(dir)), 0o755); err != nil {
				return err
			}
		}
		if err := caps.FS().WriteFile(target, file.Data, os.FileMode(file.Mode)); err != nil {
			return err
		}
	}
	fmt.Printf("unpacked %d files into %s\n", len(files), destDir)
	return nil
}
