// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package pkgver queries package registries for published version
// information. The HTTP client is injected, never constructed here:
// when a sandboxed tool passes its capability-scoped client, every
// registry request is subject to the run's network policy.
package pkgver

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"sort"
	"strings"
)

// DefaultBaseURL is the production PyPI JSON API endpoint.
const DefaultBaseURL = "https://pypi.org"

// Info is the version information for one published package.
type Info struct {
	// Name is the canonical package name as reported by the registry.
	Name string `json:"name"`

	// Version is the latest published version.
	Version string `json:"version"`

	// Summary is the package's one-line description.
	Summary string `json:"summary,omitempty"`

	// Releases lists all published version strings, sorted.
	Releases []string `json:"releases,omitempty"`
}

// Client queries the PyPI JSON API.
type Client struct {
	httpClient *http.Client
	baseURL    string
}

// NewClient creates a registry client using the given HTTP client.
// The HTTP client is required: callers inside a sandbox pass the
// capability-scoped client; unrestricted callers pass
// http.DefaultClient explicitly.
func NewClient(httpClient *http.Client, baseURL string) (*Client, error) {
	if httpClient == nil {
		return nil, fmt.Errorf("pkgver: http client is required")
	}
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		httpClient: httpClient,
		baseURL:    strings.TrimSuffix(baseURL, "/"),
	}, nil
}

var packageNamePattern = regexp.MustCompile(`^[A-Za-z0-9]([A-Za-z0-9._-]*[A-Za-z0-9])?$`)

// pypiResponse mirrors the subset of the PyPI JSON document we read.
type pypiResponse struct {
	Info struct {
		Name    string `json:"name"`
		Version string `json:"version"`
		Summary string `json:"summary"`
	} `json:"info"`
	Releases map[string]json.RawMessage `json:"releases"`
}

// Lookup fetches version information for a package. Unknown packages
// return an error wrapping the registry's status.
func (c *Client) Lookup(ctx context.Context, name string) (*Info, error) {
	if !packageNamePattern.MatchString(name) {
		return nil, fmt.Errorf("pkgver: invalid package name %q", name)
	}

	endpoint := fmt.Sprintf("%s/pypi/%s/json", c.baseURL, url.PathEscape(name))
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("building registry request for %s: %w", name, err)
	}
	request.Header.Set("Accept", "application/json")

	response, err := c.httpClient.Do(request)
	if err != nil {
		return nil, fmt.Errorf("querying registry for %s: %w", name, err)
	}
	defer response.Body.Close()

	if response.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("package %s not found in registry", name)
	}
	if response.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(response.Body, 512))
		return nil, fmt.Errorf("registry returned %d for %s: %s", response.StatusCode, name, strings.TrimSpace(string(body)))
	}

	var decoded pypiResponse
	if err := json.NewDecoder(response.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("decoding registry response for %s: %w", name, err)
	}

	releases := make([]string, 0, len(decoded.Releases))
	for version := range decoded.Releases {
		releases = append(releases, version)
	}
	sort.Strings(releases)

	return &Info{
		Name:     decoded.Info.Name,
		Version:  decoded.Info.Version,
		Summary:  decoded.Info.Summary,
		Releases: releases,
	}, nil
}

// LatestVersion fetches just the latest published version string.
func (c *Client) LatestVersion(ctx context.Context, name string) (string, error) {
	info, err := c.Lookup(ctx, name)
	if err != nil {
		return "", err
	}
	return info.Version, nil
}
