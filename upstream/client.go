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

// Package upstream provides the process-wide HTTP client used to forward
// absolute-form requests (§4.F step 5). It is grounded on
// fhttp.NewStdClient's DialContext override: instead of letting the
// transport re-resolve the target host, every dial pulls the address set
// that netguard already validated out of the request context, closing the
// DNS-rebinding window between the SSRF check and the actual connection.
package upstream // import "github.com/rhoxyproxy/rhoxy/upstream"

import (
	"context"
	"net"
	"net/http"
	"time"

	"fortio.org/log"
	"github.com/rhoxyproxy/rhoxy/config"
	"github.com/rhoxyproxy/rhoxy/perr"
	"golang.org/x/net/http2"
)

type pinnedAddrsKey struct{}

type pinned struct {
	ips  []net.IP
	port string
}

// WithPinnedAddrs attaches the SSRF-validated address set for the next
// dial made by Client through this context. port is the numeric port to
// connect to (the original host's port survives header rewriting but the
// dialer must not re-resolve the host).
func WithPinnedAddrs(ctx context.Context, ips []net.IP, port string) context.Context {
	return context.WithValue(ctx, pinnedAddrsKey{}, pinned{ips: ips, port: port})
}

var dialer = &net.Dialer{
	Timeout:   config.UpstreamConnectTimeout,
	KeepAlive: config.UpstreamTCPKeepAlive,
}

// dialPinned ignores the host in addr and dials only the addresses
// stashed in ctx by WithPinnedAddrs, trying each in order (§4.C, §9). A
// context with no pinned addresses is a programming error on the
// caller's part: every outbound request must go through netguard first.
func dialPinned(ctx context.Context, network, addr string) (net.Conn, error) {
	p, ok := ctx.Value(pinnedAddrsKey{}).(pinned)
	if !ok || len(p.ips) == 0 {
		log.Errf("upstream: dial requested without pinned addresses for %s", addr)
		return nil, perr.ErrNoAddresses
	}
	var lastErr error
	for _, ip := range p.ips {
		conn, err := dialer.DialContext(ctx, network, net.JoinHostPort(ip.String(), p.port))
		if err == nil {
			return conn, nil
		}
		lastErr = err
		log.LogVf("upstream: dial %s (for %s) failed: %v", ip, addr, err)
	}
	return nil, lastErr
}

var baseTransport = &http.Transport{
	Proxy:                 nil,
	DialContext:           dialPinned,
	MaxIdleConnsPerHost:   config.UpstreamIdleConnsPerHost,
	IdleConnTimeout:       config.UpstreamIdleConnTimeout,
	TLSHandshakeTimeout:   config.UpstreamConnectTimeout,
	ExpectContinueTimeout: 1 * time.Second,
	ForceAttemptHTTP2:     true,
}

func init() {
	// Negotiates h2 over TLS automatically via ForceAttemptHTTP2 above;
	// this additionally lets baseTransport speak HTTP/2 keepalive pings
	// the way fhttp.NewStdClient's h2/h2c transport does, bounded by the
	// configured ping interval/timeout (§4.J).
	if t2, err := http2.ConfigureTransports(baseTransport); err == nil {
		t2.ReadIdleTimeout = config.UpstreamHTTP2PingInterval
		t2.PingTimeout = config.UpstreamHTTP2PingTimeout
	} else {
		log.Warnf("upstream: unable to configure http2 transport: %v", err)
	}
}

// Client is the shared HTTP client used for every forwarded request. It
// never follows redirects (the response is relayed to the downstream
// client verbatim, per §4.F step 7) and never reads proxy environment
// variables (this process IS the proxy).
var Client = &http.Client{
	Timeout: config.UpstreamRequestTimeout,
	CheckRedirect: func(_ *http.Request, _ []*http.Request) error {
		return http.ErrUseLastResponse
	},
	Transport: baseTransport,
}
