// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package version

import (
	"strings"
	"testing"
)

func TestInfoIncludesCommit(t *testing.T) {
	info := Info()
	if !strings.Contains(info, Commit()) {
		t.Errorf("Info() = %q, should include commit %q", info, Commit())
	}
	if !strings.Contains(info, Version) {
		t.Errorf("Info() = %q, should include version %q", info, Version)
	}
}

func TestCommitPrefersLdflagsValue(t *testing.T) {
	defer func(prev string) { GitCommit = prev }(GitCommit)

	GitCommit = "abc1234"
	if Commit() != "abc1234" {
		t.Errorf("Commit() = %q, want the injected value", Commit())
	}
}

func TestInfoDirtyFlag(t *testing.T) {
	defer func(prev string) { GitDirty = prev }(GitDirty)

	GitDirty = "true"
	if !strings.Contains(Info(), "-dirty") {
		t.Error("dirty builds should be marked")
	}

	GitDirty = "false"
	if strings.Contains(Info(), "-dirty") {
		t.Error("clean builds should not be marked dirty")
	}
}

func TestFullIncludesPlatform(t *testing.T) {
	full := Full()
	if !strings.Contains(full, "Go:") || !strings.Contains(full, "Platform:") {
		t.Errorf("Full() = %q, should include Go and platform lines", full)
	}
}
