// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package sandbox

import (
	"os"
	"path/filepath"
	"strings"
)

// FilesystemGuard mediates file open, read, write, and delete
// operations against the profile's path lists. All comparisons happen
// on canonicalized absolute paths, so relative segments, trailing
// separators, and symlinks cannot widen access.
type FilesystemGuard struct {
	readPaths   []string // canonical
	writePaths  []string // canonical
	allowDelete bool
	log         *ViolationLog
	active      bool
}

// NewFilesystemGuard builds a filesystem guard from the profile's
// filesystem policy. The profile's paths are already canonical.
func NewFilesystemGuard(profile *SecurityProfile, log *ViolationLog) *FilesystemGuard {
	return &FilesystemGuard{
		readPaths:   profile.ReadPaths,
		writePaths:  profile.WritePaths,
		allowDelete: profile.AllowDelete,
		log:         log,
	}
}

// Name implements Guard.
func (g *FilesystemGuard) Name() string { return "filesystem" }

// Activate implements Guard. Enforcement happens through the injected
// FS capability, so activation only arms the guard.
func (g *FilesystemGuard) Activate() error {
	g.active = true
	return nil
}

// Deactivate implements Guard.
func (g *FilesystemGuard) Deactivate() error {
	g.active = false
	return nil
}

// IsPathAllowed reports whether path passes the profile check for the
// given mode: descendant-of-or-equal-to some write_paths entry when
// write is true, some read_paths entry otherwise. The path is
// canonicalized before comparison; a path that cannot be
// canonicalized is denied.
func (g *FilesystemGuard) IsPathAllowed(path string, write bool) bool {
	canonical, err := CanonicalPath(path)
	if err != nil {
		return false
	}
	if write {
		return underAny(canonical, g.writePaths)
	}
	return underAny(canonical, g.readPaths)
}

// underAny reports whether path equals or descends from any prefix.
// Both sides must be canonical.
func underAny(path string, prefixes []string) bool {
	for _, prefix := range prefixes {
		if path == prefix || strings.HasPrefix(path, prefix+string(filepath.Separator)) {
			return true
		}
	}
	return false
}

// checkRead canonicalizes path and verifies read access, recording a
// violation on denial.
func (g *FilesystemGuard) checkRead(path string) (string, error) {
	canonical, err := CanonicalPath(path)
	if err != nil {
		v := Violation{Class: ViolationFileRead, Resource: path, Detail: err.Error()}
		g.log.Record(v)
		return "", &v
	}
	if !underAny(canonical, g.readPaths) {
		v := Violation{Class: ViolationFileRead, Resource: canonical}
		g.log.Record(v)
		return "", &v
	}
	return canonical, nil
}

// checkWrite canonicalizes path and verifies write access, recording a
// violation on denial.
func (g *FilesystemGuard) checkWrite(path string) (string, error) {
	canonical, err := CanonicalPath(path)
	if err != nil {
		v := Violation{Class: ViolationFileWrite, Resource: path, Detail: err.Error()}
		g.log.Record(v)
		return "", &v
	}
	if !underAny(canonical, g.writePaths) {
		v := Violation{Class: ViolationFileWrite, Resource: canonical}
		g.log.Record(v)
		return "", &v
	}
	return canonical, nil
}

// checkDelete verifies deletion: categorically blocked unless the
// profile allows deletes AND the path passes the write check.
func (g *FilesystemGuard) checkDelete(path string) (string, error) {
	canonical, err := CanonicalPath(path)
	if err != nil {
		v := Violation{Class: ViolationFileDelete, Resource: path, Detail: err.Error()}
		g.log.Record(v)
		return "", &v
	}
	if !g.allowDelete || !underAny(canonical, g.writePaths) {
		v := Violation{Class: ViolationFileDelete, Resource: canonical}
		g.log.Record(v)
		return "", &v
	}
	return canonical, nil
}

// FS is the filesystem capability handed to sandboxed units. Every
// operation is checked by the FilesystemGuard before touching the
// host filesystem.
type FS struct {
	guard *FilesystemGuard
}

// Open opens a file for reading.
func (f *FS) Open(path string) (*os.File, error) {
	canonical, err := f.guard.checkRead(path)
	if err != nil {
		return nil, err
	}
	return os.Open(canonical)
}

// ReadFile reads a file's contents.
func (f *FS) ReadFile(path string) ([]byte, error) {
	canonical, err := f.guard.checkRead(path)
	if err != nil {
		return nil, err
	}
	return os.ReadFile(canonical)
}

// Create creates or truncates a file for writing.
func (f *FS) Create(path string) (*os.File, error) {
	canonical, err := f.guard.checkWrite(path)
	if err != nil {
		return nil, err
	}
	return os.Create(canonical)
}

// WriteFile writes data to a file, creating it if necessary.
func (f *FS) WriteFile(path string, data []byte, perm os.FileMode) error {
	canonical, err := f.guard.checkWrite(path)
	if err != nil {
		return err
	}
	return os.WriteFile(canonical, data, perm)
}

// Remove deletes a file or empty directory. Deletion is gated on both
// allow_delete and the write check.
func (f *FS) Remove(path string) error {
	canonical, err := f.guard.checkDelete(path)
	if err != nil {
		return err
	}
	return os.Remove(canonical)
}

// Stat returns file info. Gated by the read check.
func (f *FS) Stat(path string) (os.FileInfo, error) {
	canonical, err := f.guard.checkRead(path)
	if err != nil {
		return nil, err
	}
	return os.Stat(canonical)
}

// ReadDir lists a directory. Gated by the read check.
func (f *FS) ReadDir(path string) ([]os.DirEntry, error) {
	canonical, err := f.guard.checkRead(path)
	if err != nil {
		return nil, err
	}
	return os.ReadDir(canonical)
}

// MkdirAll creates a directory tree. Gated by the write check.
func (f *FS) MkdirAll(path string, perm os.FileMode) error {
	canonical, err := f.guard.checkWrite(path)
	if err != nil {
		return err
	}
	return os.MkdirAll(canonical, perm)
}
