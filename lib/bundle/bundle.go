// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package bundle packs tool trees into zstd-compressed tar archives
// and unpacks them again. Archive member names are always relative,
// forward-slash paths; extraction rejects anything that would land
// outside the destination.
package bundle

import (
	"archive/tar"
	"fmt"
	"io"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/klauspost/compress/zstd"
)

// File is one archive member.
type File struct {
	// Name is the member's relative, slash-separated path.
	Name string

	// Mode is the member's permission bits.
	Mode int64

	// Data is the member's contents.
	Data []byte
}

// maxMemberSize bounds a single decompressed member. Bundles carry
// tool sources, not datasets; anything larger is a malformed or
// hostile archive.
const maxMemberSize = 64 << 20

// checkMemberName rejects names that would escape the extraction
// root: absolute paths, dot-dot traversal, and Windows volume names.
func checkMemberName(name string) error {
	if name == "" {
		return fmt.Errorf("bundle: empty member name")
	}
	if strings.Contains(name, `\`) || strings.Contains(name, ":") {
		return fmt.Errorf("bundle: member %q has a non-portable name", name)
	}
	if path.IsAbs(name) {
		return fmt.Errorf("bundle: member %q is absolute", name)
	}
	clean := path.Clean(name)
	if clean != name || clean == ".." || strings.HasPrefix(clean, "../") {
		return fmt.Errorf("bundle: member %q escapes the archive root", name)
	}
	return nil
}

// Write packs files into a zstd-compressed tar stream. Members are
// written in sorted name order with zeroed timestamps, so the same
// file set always produces the same archive bytes.
func Write(w io.Writer, files []File) error {
	ordered := append([]File(nil), files...)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].Name < ordered[j].Name })

	seen := map[string]struct{}{}
	for _, file := range ordered {
		if err := checkMemberName(file.Name); err != nil {
			return err
		}
		if _, dup := seen[file.Name]; dup {
			return fmt.Errorf("bundle: duplicate member %q", file.Name)
		}
		seen[file.Name] = struct{}{}
	}

	// Single-threaded encoding keeps the output bytes a pure function
	// of the input, which the digest layer depends on.
	compressor, err := zstd.NewWriter(w,
		zstd.WithEncoderLevel(zstd.SpeedDefault),
		zstd.WithEncoderConcurrency(1),
	)
	if err != nil {
		return fmt.Errorf("bundle: initializing compressor: %w", err)
	}

	archive := tar.NewWriter(compressor)
	for _, file := range ordered {
		header := &tar.Header{
			Typeflag: tar.TypeReg,
			Name:     file.Name,
			Mode:     file.Mode,
			Size:     int64(len(file.Data)),
			ModTime:  time.Unix(0, 0).UTC(),
			Format:   tar.FormatPAX,
		}
		if err := archive.WriteHeader(header); err != nil {
			return fmt.Errorf("bundle: writing header for %s: %w", file.Name, err)
		}
		if _, err := archive.Write(file.Data); err != nil {
			return fmt.Errorf("bundle: writing %s: %w", file.Name, err)
		}
	}

	if err := archive.Close(); err != nil {
		return fmt.Errorf("bundle: finalizing archive: %w", err)
	}
	if err := compressor.Close(); err != nil {
		return fmt.Errorf("bundle: finalizing compression: %w", err)
	}
	return nil
}

// Read unpacks a zstd-compressed tar stream. Member names are
// validated before any data is read; a single oversized member aborts
// the whole read.
func Read(r io.Reader) ([]File, error) {
	decompressor, err := zstd.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("bundle: initializing decompressor: %w", err)
	}
	defer decompressor.Close()

	archive := tar.NewReader(decompressor)
	var files []File
	for {
		header, err := archive.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("bundle: reading archive: %w", err)
		}
		if header.Typeflag != tar.TypeReg {
			continue
		}
		if err := checkMemberName(header.Name); err != nil {
			return nil, err
		}
		if header.Size > maxMemberSize {
			return nil, fmt.Errorf("bundle: member %s is %d bytes, limit is %d", header.Name, header.Size, maxMemberSize)
		}

		data, err := io.ReadAll(io.LimitReader(archive, maxMemberSize+1))
		if err != nil {
			return nil, fmt.Errorf("bundle: reading %s: %w", header.Name, err)
		}
		if int64(len(data)) > maxMemberSize {
			return nil, fmt.Errorf("bundle: member %s exceeds the size limit", header.Name)
		}

		files = append(files, File{
			Name: header.Name,
			Mode: header.Mode,
			Data: data,
		})
	}
	return files, nil
}
