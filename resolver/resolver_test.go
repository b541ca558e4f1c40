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
	"encoding/binary"
	"io"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/dns/dnsmessage"
)

func TestStdProberAddressFamilyPolicy(t *testing.T) {
	t.Parallel()

	ip4Header := dnsmessage.ResourceHeader{
		Name:  dnsmessage.MustNewName("example.com."),
		Type:  dnsmessage.TypeA,
		Class: dnsmessage.ClassINET,
	}
	ip6Header := dnsmessage.ResourceHeader{
		Name:  dnsmessage.MustNewName("example.com."),
		Type:  dnsmessage.TypeAAAA,
		Class: dnsmessage.ClassINET,
	}
	ip4Address1 := net.ParseIP("10.0.0.100")
	ip4Address2 := net.ParseIP("10.0.0.101")
	ip6Address1 := net.ParseIP("fe80::1")
	ip6Address2 := net.ParseIP("fe80::2")
	ip4Address1Resource := dnsmessage.Resource{
		Header: ip4Header,
		Body:   &dnsmessage.AResource{A: [4]byte(ip4Address1.To4())},
	}
	ip4Address2Resource := dnsmessage.Resource{
		Header: ip4Header,
		Body:   &dnsmessage.AResource{A: [4]byte(ip4Address2.To4())},
	}
	ip6Address1Resource := dnsmessage.Resource{
		Header: ip6Header,
		Body:   &dnsmessage.AAAAResource{AAAA: [16]byte(ip6Address1)},
	}
	ip6Address2Resource := dnsmessage.Resource{
		Header: ip6Header,
		Body:   &dnsmessage.AAAAResource{AAAA: [16]byte(ip6Address2)},
	}

	// Mixed A/AAAA records
	mixedDNSResolver := newFakeDNSResolver(t, []dnsmessage.Resource{
		ip4Address1Resource,
		ip6Address1Resource,
		ip4Address2Resource,
		ip6Address2Resource,
	})
	testProbeAddresses(t, NewStdProber(mixedDNSResolver, PreferIPv4), "example.com", []net.IP{ip4Address1, ip4Address2})
	testProbeAddresses(t, NewStdProber(mixedDNSResolver, RequireIPv4), "example.com", []net.IP{ip4Address1, ip4Address2})
	testProbeAddresses(t, NewStdProber(mixedDNSResolver, PreferIPv6), "example.com", []net.IP{ip6Address1, ip6Address2})
	testProbeAddresses(t, NewStdProber(mixedDNSResolver, RequireIPv6), "example.com", []net.IP{ip6Address1, ip6Address2})
	testProbeAddresses(t, NewStdProber(mixedDNSResolver, UseBothIPv4AndIPv6), "example.com", []net.IP{ip4Address1, ip4Address2, ip6Address1, ip6Address2})

	// A records only
	ip4DNSResolver := newFakeDNSResolver(t, []dnsmessage.Resource{
		ip4Address1Resource,
		ip4Address2Resource,
	})
	testProbeAddresses(t, NewStdProber(ip4DNSResolver, PreferIPv6), "example.com", []net.IP{ip4Address1, ip4Address2})
	testProbeAddresses(t, NewStdProber(ip4DNSResolver, RequireIPv6), "example.com", []net.IP{})
	testProbeAddresses(t, NewStdProber(ip4DNSResolver, UseBothIPv4AndIPv6), "example.com", []net.IP{ip4Address1, ip4Address2})

	// AAAA records only
	ip6DNSResolver := newFakeDNSResolver(t, []dnsmessage.Resource{
		ip6Address1Resource,
		ip6Address2Resource,
	})
	testProbeAddresses(t, NewStdProber(ip6DNSResolver, PreferIPv4), "example.com", []net.IP{ip6Address1, ip6Address2})
	testProbeAddresses(t, NewStdProber(ip6DNSResolver, RequireIPv4), "example.com", []net.IP{})
	testProbeAddresses(t, NewStdProber(ip6DNSResolver, UseBothIPv4AndIPv6), "example.com", []net.IP{ip6Address1, ip6Address2})

	// IPv4 embedded in IPv6
	// Go does this for all IPv4 addresses that are passed into the resolver.
	// Even if Go's behavior changes, we should behave consistently in the
	// face of this quirk.
	loopback := net.ParseIP("127.0.0.1")
	prober := NewStdProber(net.DefaultResolver, RequireIPv4)
	testProbeAddresses(t, prober, "127.0.0.1", []net.IP{loopback})
	testProbeAddresses(t, prober, "::ffff:127.0.0.1", []net.IP{loopback})
}

func TestStdProberPorts(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	t.Cleanup(cancel)

	prober := NewStdProber(nil, UseBothIPv4AndIPv6)

	addresses, err := prober.ResolveOnce(ctx, "127.0.0.1")
	require.NoError(t, err)
	assert.Equal(t, []Address{{HostPort: "127.0.0.1"}}, addresses)

	addresses, err = prober.ResolveOnce(ctx, "127.0.0.1:8080")
	require.NoError(t, err)
	assert.Equal(t, []Address{{HostPort: "127.0.0.1:8080"}}, addresses)

	addresses, err = prober.ResolveOnce(ctx, "[::1]:443")
	require.NoError(t, err)
	assert.Equal(t, []Address{{HostPort: "[::1]:443"}}, addresses)

	addresses, err = prober.ResolveOnce(ctx, "::1")
	require.NoError(t, err)
	assert.Equal(t, []Address{{HostPort: "::1"}}, addresses)
}

func testProbeAddresses(
	t *testing.T,
	prober ResolveProber,
	target string,
	expectedAddresses []net.IP,
) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	t.Cleanup(cancel)

	resolvedAddresses, err := prober.ResolveOnce(ctx, target)
	if len(expectedAddresses) == 0 {
		dnsErr := &net.DNSError{}
		if assert.ErrorAs(t, err, &dnsErr) {
			assert.True(t, dnsErr.IsNotFound)
		}
		return
	}
	require.NoError(t, err)
	actualAddresses := make([]net.IP, len(resolvedAddresses))
	for i, address := range resolvedAddresses {
		actualAddresses[i] = net.ParseIP(address.HostPort)
	}
	assert.ElementsMatch(t, expectedAddresses, actualAddresses)
}

type fakeDNSResolver struct {
	t       *testing.T
	answers []dnsmessage.Resource
}

func (r *fakeDNSResolver) Dial(context.Context, string, string) (net.Conn, error) {
	clientConn, serverConn := net.Pipe()
	go func() {
		var requestLength uint16
		if err := binary.Read(serverConn, binary.BigEndian, &requestLength); err != nil {
			r.t.Errorf("error reading dns request length: %v", err)
			return
		}
		requestData := make([]byte, requestLength)
		if _, err := io.ReadFull(serverConn, requestData); err != nil {
			r.t.Errorf("error reading dns request: %v", err)
			return
		}
		request := &dnsmessage.Message{}
		if err := request.Unpack(requestData); err != nil {
			r.t.Errorf("error unpacking dns request: %v", err)
			return
		}
		answers := []dnsmessage.Resource{}
		for _, answer := range r.answers {
			if answer.Header.Type == request.Questions[0].Type {
				answers = append(answers, answer)
			}
		}
		response := &dnsmessage.Message{
			Header: dnsmessage.Header{
				ID:            request.ID,
				Response:      true,
				RCode:         dnsmessage.RCodeSuccess,
				Authoritative: true,
			},
			Questions: request.Questions,
			Answers:   answers,
		}
		responseData, err := response.Pack()
		if err != nil {
			r.t.Errorf("error packing dns response: %v", err)
			return
		}
		responseLength := uint16(len(responseData))
		if err := binary.Write(serverConn, binary.BigEndian, &responseLength); err != nil {
			r.t.Errorf("error writing dns response length: %v", err)
			return
		}
		if _, err := serverConn.Write(responseData); err != nil {
			r.t.Errorf("error writing dns response: %v", err)
			return
		}
		if err := serverConn.Close(); err != nil {
			r.t.Errorf("error closing dns server connection: %v", err)
			return
		}
	}()
	return clientConn, nil
}

func newFakeDNSResolver(t *testing.T, answers []dnsmessage.Resource) *net.Resolver {
	t.Helper()

	dialer := fakeDNSResolver{
		t:       t,
		answers: answers,
	}
	return &net.Resolver{
		PreferGo: true,
		Dial:     dialer.Dial,
	}
}
