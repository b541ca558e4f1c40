// Copyright 2023-2025 Buf Technologies, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package resolver

import (
	"context"
	"io"
	"net"
	"net/netip"
)

// AddressFamilyPolicy is an option that allows control over the preference
// for which addresses to consider when resolving, based on their address
// family.
type AddressFamilyPolicy int

const (
	// UseBothIPv4AndIPv6 will result in all addresses being used, regardless
	// of their address family. This is what the system resolver does.
	UseBothIPv4AndIPv6 AddressFamilyPolicy = iota

	// PreferIPv4 will result in only IPv4 addresses being used, if any
	// IPv4 addresses are present. If no IPv4 addresses are resolved, then
	// all addresses will be used.
	PreferIPv4

	// RequireIPv4 will result in only IPv4 addresses being used. If no IPv4
	// addresses are present, no addresses will be resolved.
	RequireIPv4

	// PreferIPv6 will result in only IPv6 addresses being used, if any
	// IPv6 addresses are present. If no IPv6 addresses are resolved, then
	// all addresses will be used.
	PreferIPv6

	// RequireIPv6 will result in only IPv6 addresses being used. If no IPv6
	// addresses are present, no addresses will be resolved.
	RequireIPv6
)

// Resolver is an interface for continuous name resolution.
type Resolver interface {
	// New creates a continuous resolver task for the given name. When the
	// name is resolved into addresses, they are provided to the given
	// receiver.
	//
	// As new result sets arrive (since the set of addresses may change over
	// time), the receiver may be called repeatedly. Each time, the entire set
	// of addresses is supplied.
	//
	// The resolver may report errors in addition to or instead of addresses,
	// but it keeps trying to resolve, even in the face of errors, until it
	// is closed or the given context is cancelled.
	//
	// The Close method on the return value stops the task before returning.
	// After Close returns, there are no subsequent calls to the receiver.
	New(ctx context.Context, name string, receiver Receiver) io.Closer
}

// SingleShotResolver is an interface for one-shot name resolution.
type SingleShotResolver interface {
	// ResolveOnce resolves the given name once.
	ResolveOnce(ctx context.Context, name string) ([]Address, error)
}

// Receiver is a client of a resolver and receives the resolved addresses.
type Receiver interface {
	// OnResolve is called when the set of addresses is resolved. It may be
	// called repeatedly as the set of addresses changes over time. Each call
	// always supplies the full set of resolved addresses (no deltas).
	OnResolve([]Address)
	// OnResolveError is called when resolution encounters an error. This can
	// happen at any time, including after addresses are initially resolved.
	OnResolveError(error)
}

// ResolveProber is the blocking capability behind a resolver: something that
// can resolve a name once, possibly blocking the calling goroutine for a
// long time. Implementations are called from pool workers only.
type ResolveProber interface {
	// ResolveOnce resolves the given name once. Returned addresses may omit
	// the port, in which case the consumer supplies a default.
	ResolveOnce(ctx context.Context, name string) ([]Address, error)
}

// ResolveProberFunc is an adapter that allows use of ordinary functions as
// a ResolveProber.
type ResolveProberFunc func(ctx context.Context, name string) ([]Address, error)

// ResolveOnce calls f(ctx, name).
func (f ResolveProberFunc) ResolveOnce(ctx context.Context, name string) ([]Address, error) {
	return f(ctx, name)
}

// Executor runs probes somewhere other than the calling goroutine.
type Executor interface {
	// Execute queues one resolve of name. The returned channel receives
	// exactly one Result once the resolve completes or is abandoned.
	Execute(name string) <-chan Result
}

// Result is the outcome of one resolve run by an Executor.
type Result struct {
	Addresses []Address
	Err       error
}

// Address contains a resolved address to a host.
type Address struct {
	// HostPort stores the host:port pair of the resolved address. The port
	// is absent when the resolver had no port to offer.
	HostPort string
}

// NewStdProber creates a prober that resolves names with the given
// [net.Resolver]. This is the blocking "std" resolution capability.
//
// If the name has the form host:port, the port is kept on every resolved
// address; otherwise the addresses are bare IPs. The given policy can be used
// to restrict or prefer one address family when there are both A and AAAA
// records.
func NewStdProber(resolver *net.Resolver, policy AddressFamilyPolicy) ResolveProber {
	if resolver == nil {
		resolver = net.DefaultResolver
	}
	return &stdResolveProber{
		resolver: resolver,
		policy:   policy,
	}
}

type stdResolveProber struct {
	resolver *net.Resolver
	policy   AddressFamilyPolicy
}

func (r *stdResolveProber) ResolveOnce(ctx context.Context, name string) ([]Address, error) {
	host, port, err := net.SplitHostPort(name)
	if err != nil {
		// Not a host:port pair.
		host, port = name, ""
	}
	network := "ip"
	switch r.policy {
	case RequireIPv4:
		network = "ip4"
	case RequireIPv6:
		network = "ip6"
	case UseBothIPv4AndIPv6, PreferIPv4, PreferIPv6:
	}
	addresses, err := r.resolver.LookupNetIP(ctx, network, host)
	if err != nil {
		return nil, err
	}
	switch r.policy {
	case PreferIPv4:
		addresses = preferFamily(addresses, func(addr netip.Addr) bool { return addr.Is4() || addr.Is4In6() })
	case PreferIPv6:
		addresses = preferFamily(addresses, func(addr netip.Addr) bool { return addr.Is6() && !addr.Is4In6() })
	case UseBothIPv4AndIPv6, RequireIPv4, RequireIPv6:
	}
	result := make([]Address, len(addresses))
	for i, address := range addresses {
		if port == "" {
			result[i].HostPort = address.Unmap().String()
		} else {
			result[i].HostPort = net.JoinHostPort(address.Unmap().String(), port)
		}
	}
	return result, nil
}

func preferFamily(addresses []netip.Addr, match func(netip.Addr) bool) []netip.Addr {
	preferred := make([]netip.Addr, 0, len(addresses))
	for _, address := range addresses {
		if match(address) {
			preferred = append(preferred, address)
		}
	}
	if len(preferred) == 0 {
		return addresses
	}
	return preferred
}
