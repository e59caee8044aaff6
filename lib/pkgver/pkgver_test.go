// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package pkgver

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func registryStub(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := NewClient(server.Client(), server.URL)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return client
}

func TestLookup(t *testing.T) {
	var requestedPath string
	client := registryStub(t, func(writer http.ResponseWriter, request *http.Request) {
		requestedPath = request.URL.Path
		json.NewEncoder(writer).Encode(map[string]any{
			"info": map[string]any{
				"name":    "requests",
				"version": "2.32.3",
				"summary": "Python HTTP for Humans.",
			},
			"releases": map[string]any{
				"2.31.0": []any{},
				"2.32.3": []any{},
				"2.30.0": []any{},
			},
		})
	})

	info, err := client.Lookup(context.Background(), "requests")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}

	if requestedPath != "/pypi/requests/json" {
		t.Errorf("path = %s, want /pypi/requests/json", requestedPath)
	}
	if info.Version != "2.32.3" {
		t.Errorf("Version = %q, want 2.32.3", info.Version)
	}
	if len(info.Releases) != 3 || info.Releases[0] != "2.30.0" {
		t.Errorf("Releases = %v, want sorted list of 3", info.Releases)
	}
}

func TestLookupNotFound(t *testing.T) {
	client := registryStub(t, func(writer http.ResponseWriter, request *http.Request) {
		writer.WriteHeader(http.StatusNotFound)
	})

	if _, err := client.Lookup(context.Background(), "no-such-pkg"); err == nil {
		t.Fatal("expected error for unknown package")
	}
}

func TestLookupServerError(t *testing.T) {
	client := registryStub(t, func(writer http.ResponseWriter, request *http.Request) {
		http.Error(writer, "upstream exploded", http.StatusBadGateway)
	})

	if _, err := client.Lookup(context.Background(), "requests"); err == nil {
		t.Fatal("expected error for 502")
	}
}

func TestLookupRejectsBadNames(t *testing.T) {
	client := registryStub(t, func(writer http.ResponseWriter, request *http.Request) {
		t.Error("no request should be sent for an invalid name")
	})

	for _, name := range []string{"", "../escape", "has space", "-leading"} {
		if _, err := client.Lookup(context.Background(), name); err == nil {
			t.Errorf("name %q should be rejected", name)
		}
	}
}

func TestLatestVersion(t *testing.T) {
	client := registryStub(t, func(writer http.ResponseWriter, request *http.Request) {
		json.NewEncoder(writer).Encode(map[string]any{
			"info": map[string]any{"name": "pyyaml", "version": "6.0.2"},
		})
	})

	version, err := client.LatestVersion(context.Background(), "pyyaml")
	if err != nil {
		t.Fatalf("LatestVersion: %v", err)
	}
	if version != "6.0.2" {
		t.Errorf("version = %q, want 6.0.2", version)
	}
}

func TestNewClientRequiresHTTPClient(t *testing.T) {
	if _, err := NewClient(nil, ""); err == nil {
		t.Fatal("nil http client should be rejected")
	}
}
