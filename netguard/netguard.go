// Copyright 2017 Fortio Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package netguard classifies hosts as private (§4.B) and resolves a
// host:port to a pinned, SSRF-safe address set (§4.C). Grounded on
// fnet.Resolve's host/IP literal handling, generalized to reject
// destinations an attacker could use to reach internal infrastructure.
package netguard // import "github.com/rhoxyproxy/rhoxy/netguard"

import (
	"context"
	"net"
	"strings"

	"fortio.org/log"
	"github.com/rhoxyproxy/rhoxy/perr"
)

// IsPrivate reports whether host - a literal IP (v4 or v6, optionally
// IPv6-zoned) or the literal string "localhost" - designates a private
// destination per §4.B. Non-IP hostnames other than "localhost" return
// false here; they must go through ResolveNonPrivate before any trust
// decision, per the TOCTOU note in §9.
func IsPrivate(host string) bool {
	if strings.EqualFold(host, "localhost") {
		return true
	}
	if i := strings.IndexByte(host, '%'); i >= 0 {
		host = host[:i] // strip IPv6 zone id, e.g. "fe80::1%eth0"
	}
	ip := net.ParseIP(host)
	if ip == nil {
		return false
	}
	return isPrivateIP(ip)
}

// isPrivateIP covers both plain IPv4 and IPv4-mapped IPv6 (::ffff:a.b.c.d)
// via To4(), which normalizes both to the 4-byte form.
func isPrivateIP(ip net.IP) bool {
	if v4 := ip.To4(); v4 != nil {
		return isPrivateIPv4(v4)
	}
	if ip.Equal(net.IPv6unspecified) || ip.Equal(net.IPv6loopback) {
		return true
	}
	if ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() {
		return true
	}
	return isUniqueLocalIPv6(ip)
}

func isPrivateIPv4(v4 net.IP) bool {
	return v4.IsLoopback() ||
		v4.IsUnspecified() ||
		v4.IsLinkLocalUnicast() ||
		v4[0] == 10 ||
		(v4[0] == 172 && v4[1]&0xf0 == 16) ||
		(v4[0] == 192 && v4[1] == 168)
}

func isUniqueLocalIPv6(ip net.IP) bool {
	return len(ip) == net.IPv6len && ip[0]&0xfe == 0xfc
}

// Resolver abstracts DNS lookup so tests can substitute canned answers.
// net.DefaultResolver satisfies this.
type Resolver interface {
	LookupIPAddr(ctx context.Context, host string) ([]net.IPAddr, error)
}

// ResolveNonPrivate resolves host (literal IP or DNS name) and fails
// closed if any returned address is private, or if none resolved at
// all (§4.C). The full address set is returned so the caller can pin an
// outbound connection to exactly it, closing the DNS-rebinding TOCTOU
// window described in §9.
func ResolveNonPrivate(ctx context.Context, resolver Resolver, host string) ([]net.IP, error) {
	if ip := net.ParseIP(stripZone(host)); ip != nil {
		if isPrivateIP(ip) {
			log.Warnf("netguard: literal address %s is private, refusing", host)
			return nil, perr.ErrRebinding
		}
		return []net.IP{ip}, nil
	}
	addrs, err := resolver.LookupIPAddr(ctx, host)
	if err != nil {
		log.Errf("netguard: lookup failed for %s: %v", host, err)
		return nil, perr.ErrNoAddresses
	}
	if len(addrs) == 0 {
		return nil, perr.ErrNoAddresses
	}
	ips := make([]net.IP, 0, len(addrs))
	for _, a := range addrs {
		if isPrivateIP(a.IP) {
			log.Warnf("netguard: %s resolved to private address %s, refusing", host, a.IP)
			return nil, perr.ErrRebinding
		}
		ips = append(ips, a.IP)
	}
	return ips, nil
}

func stripZone(host string) string {
	if i := strings.IndexByte(host, '%'); i >= 0 {
		return host[:i]
	}
	return host
}
