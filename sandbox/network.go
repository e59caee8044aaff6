// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package sandbox

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"
)

// DialFunc is the signature of the underlying dialer the network
// guard wraps. Tests substitute their own to observe which
// connections would be made.
type DialFunc func(ctx context.Context, network, address string) (net.Conn, error)

// loopbackAliases are the host spellings treated as localhost.
var loopbackAliases = map[string]struct{}{
	"localhost": {},
	"127.0.0.1": {},
	"::1":       {},
}

// NetworkGuard mediates outbound connections by destination host and
// port. Every entry point the capability context exposes -- the raw
// dialer and the HTTP client -- routes through the same checked dial,
// so there is no unguarded path into the network stack.
type NetworkGuard struct {
	hosts          map[string]struct{}
	ports          map[int]struct{}
	allowLocalhost bool
	log            *ViolationLog
	baseDial       DialFunc
	active         bool
}

// NewNetworkGuard builds a network guard from the profile's network
// policy. A nil dial uses the default net.Dialer.
func NewNetworkGuard(profile *SecurityProfile, log *ViolationLog, dial DialFunc) *NetworkGuard {
	if dial == nil {
		dialer := &net.Dialer{Timeout: 30 * time.Second}
		dial = dialer.DialContext
	}
	return &NetworkGuard{
		hosts:          profile.AllowedHosts,
		ports:          profile.AllowedPorts,
		allowLocalhost: profile.AllowLocalhost,
		log:            log,
		baseDial:       dial,
	}
}

// Name implements Guard.
func (g *NetworkGuard) Name() string { return "network" }

// Activate implements Guard. Enforcement happens through the injected
// Net capability, so activation only arms the guard.
func (g *NetworkGuard) Activate() error {
	g.active = true
	return nil
}

// Deactivate implements Guard.
func (g *NetworkGuard) Deactivate() error {
	g.active = false
	return nil
}

// IsHostAllowed reports whether host may be contacted: true if the
// wildcard entry is present, host is listed, or host is a loopback
// alias and the profile allows localhost. A bare wildcard allows all
// hosts even when specific hosts are also listed.
func (g *NetworkGuard) IsHostAllowed(host string) bool {
	if _, ok := g.hosts[HostWildcard]; ok {
		return true
	}
	if g.allowLocalhost {
		if _, ok := loopbackAliases[host]; ok {
			return true
		}
	}
	_, ok := g.hosts[host]
	return ok
}

// IsPortAllowed reports whether port may be contacted. An empty
// allowed set denies every port.
func (g *NetworkGuard) IsPortAllowed(port int) bool {
	if len(g.ports) == 0 {
		return false
	}
	_, ok := g.ports[port]
	return ok
}

// checkAddress splits and validates a dial address. Both the host and
// the port check must pass; either denial records a violation.
func (g *NetworkGuard) checkAddress(address string) error {
	host, portStr, err := net.SplitHostPort(address)
	if err != nil {
		return fmt.Errorf("invalid address %q: %w", address, err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		// Named port (e.g. "https"). Resolve it so the policy sees
		// the numeric port the connection would actually use.
		port, err = net.LookupPort("tcp", portStr)
		if err != nil {
			return fmt.Errorf("invalid port %q: %w", portStr, err)
		}
	}

	if !g.IsHostAllowed(host) || !g.IsPortAllowed(port) {
		v := Violation{Class: ViolationNetwork, Resource: net.JoinHostPort(host, strconv.Itoa(port))}
		g.log.Record(v)
		return &v
	}
	return nil
}

// Net is the network capability handed to sandboxed units.
type Net struct {
	guard *NetworkGuard
}

// DialContext opens a connection if the destination passes the host
// and port checks.
func (n *Net) DialContext(ctx context.Context, network, address string) (net.Conn, error) {
	if err := n.guard.checkAddress(address); err != nil {
		return nil, err
	}
	return n.guard.baseDial(ctx, network, address)
}

// HTTPClient returns an HTTP client whose transport dials through the
// guard. Connections made by the client are subject to the same host
// and port checks as DialContext.
func (n *Net) HTTPClient() *http.Client {
	return &http.Client{
		Timeout: 30 * time.Second,
		Transport: &http.Transport{
			DialContext:       n.DialContext,
			ForceAttemptHTTP2: true,
		},
	}
}
