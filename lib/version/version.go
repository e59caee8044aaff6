// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package version reports build identity for devtoolbox binaries.
//
// The variables are injected at build time via -ldflags:
//
//	go build -ldflags "-X github.com/bureau-foundation/devtoolbox/lib/version.GitCommit=$(git rev-parse --short HEAD)"
//
// A binary built without ldflags falls back to the VCS stamp the Go
// toolchain embeds, when one is present.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

// Set via -ldflags at build time.
var (
	// Version is the semantic version, set manually for releases.
	Version = "0.1.0-dev"

	// GitCommit is the short git SHA of the build.
	GitCommit = "unknown"

	// GitDirty is "true" when the working tree had uncommitted
	// changes.
	GitDirty = "false"

	// BuildTime is the UTC timestamp of the build.
	BuildTime = "unknown"
)

// Info returns a one-line version string for --version output.
func Info() string {
	commit, dirty := Commit(), GitDirty == "true"
	suffix := ""
	if dirty {
		suffix = "-dirty"
	}
	return fmt.Sprintf("%s (%s%s, %s)", Version, commit, suffix, BuildTime)
}

// Full returns multi-line version detail including the Go toolchain
// and target platform.
func Full() string {
	return fmt.Sprintf("%s\n  Go: %s\n  Platform: %s/%s",
		Info(), runtime.Version(), runtime.GOOS, runtime.GOARCH)
}

// Short returns just the version number.
func Short() string {
	return Version
}

// Commit returns the git commit SHA: the ldflags value when set,
// otherwise the toolchain's embedded VCS revision.
func Commit() string {
	if GitCommit != "unknown" {
		return GitCommit
	}
	if info, ok := debug.ReadBuildInfo(); ok {
		for _, setting := range info.Settings {
			if setting.Key == "vcs.revision" && len(setting.Value) >= 12 {
				return setting.Value[:12]
			}
		}
	}
	return GitCommit
}
