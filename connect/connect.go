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

// Package connect implements the CONNECT tunnel handler (§4.E): parse the
// authority, reject private destinations, dial a pinned address, tell the
// client the tunnel is up, then splice bytes in both directions until
// either side closes. Grounded on fnet.Proxy / fnet.handleProxyRequest's
// half-close splice and on the admission-control proxy in
// peter-wagstaff-claude-hybrid-router's internal/proxy for the overall
// CONNECT-then-copy shape.
package connect // import "github.com/rhoxyproxy/rhoxy/connect"

import (
	"bufio"
	"context"
	"errors"
	"io"
	"net"
	"strconv"
	"strings"
	"sync"

	"fortio.org/log"
	"github.com/rhoxyproxy/rhoxy/config"
	"github.com/rhoxyproxy/rhoxy/httpwire"
	"github.com/rhoxyproxy/rhoxy/netguard"
	"github.com/rhoxyproxy/rhoxy/perr"
	"github.com/rhoxyproxy/rhoxy/respond"
)

// ParseAuthority splits a CONNECT target into host and port (§4.E step 2).
// Three forms are accepted: bracketed IPv6 with or without a port
// ("[::1]:443", "[::1]"), host:port, and a bare host or unbracketed IPv6
// literal with no port at all, which defaults to 443.
func ParseAuthority(authority string) (host, port string, err error) {
	if strings.HasPrefix(authority, "[") {
		if idx := strings.Index(authority, "]:"); idx >= 0 {
			host = authority[1:idx]
			port = authority[idx+2:]
			if !validPort(port) {
				return "", "", perr.ErrBadAuthority
			}
			return host, port, nil
		}
		if strings.HasSuffix(authority, "]") {
			return authority[1 : len(authority)-1], config.DefaultConnectPort, nil
		}
		return "", "", perr.ErrBadAuthority
	}
	if idx := strings.LastIndexByte(authority, ':'); idx >= 0 {
		if strings.Count(authority, ":") > 1 {
			// Unbracketed IPv6 literal: no unambiguous port separator.
			return authority, config.DefaultConnectPort, nil
		}
		host = authority[:idx]
		port = authority[idx+1:]
		if host == "" || !validPort(port) {
			return "", "", perr.ErrBadAuthority
		}
		return host, port, nil
	}
	if authority == "" {
		return "", "", perr.ErrBadAuthority
	}
	return authority, config.DefaultConnectPort, nil
}

func validPort(s string) bool {
	if s == "" {
		return false
	}
	p, err := strconv.Atoi(s)
	return err == nil && p > 0 && p <= 65535
}

// Handle drains any remaining request headers (CONNECT has none that
// matter to us, but a client may still send them), validates the target,
// dials it, and if that succeeds splices conn and the upstream connection
// until one side closes (§4.E). On every failure, Handle writes the
// appropriate status response itself and returns the underlying error
// only for logging; a malformed authority is the one exception left to
// the caller, which is closer to the request line.
func Handle(ctx context.Context, br *bufio.Reader, conn net.Conn, authority string) error {
	if _, err := httpwire.ParseHeaders(br); err != nil {
		_ = respond.BadRequest(conn)
		return err
	}
	host, port, err := ParseAuthority(authority)
	if err != nil {
		return err
	}
	if netguard.IsPrivate(host) {
		log.Warnf("connect: refusing private destination %s", host)
		_ = respond.Forbidden(conn)
		return perr.ErrPrivateHost
	}
	ips, err := netguard.ResolveNonPrivate(ctx, net.DefaultResolver, host)
	if err != nil {
		_ = respond.Forbidden(conn)
		return err
	}
	upstream, err := dialPinned(ctx, ips, port)
	if err != nil {
		log.Warnf("connect: unable to reach %s:%s: %v", host, port, err)
		_ = respond.BadGateway(conn)
		return perr.ErrConnectFailed
	}
	defer upstream.Close()

	if _, err := io.WriteString(conn, respond.Established); err != nil {
		return err
	}
	splice(conn, br, upstream)
	return nil
}

func dialPinned(ctx context.Context, ips []net.IP, port string) (net.Conn, error) {
	d := net.Dialer{Timeout: config.UpstreamConnectTimeout}
	var lastErr error
	for _, ip := range ips {
		c, err := d.DialContext(ctx, "tcp", net.JoinHostPort(ip.String(), port))
		if err == nil {
			return c, nil
		}
		lastErr = err
	}
	return nil, lastErr
}

// halfCloser is satisfied by *net.TCPConn; splice uses it to shut down
// each direction independently once its copy finishes, so a client that
// only half-closes its side (shutdown(SHUT_WR)) doesn't hang the other
// direction.
type halfCloser interface {
	CloseRead() error
	CloseWrite() error
}

// splice copies bytes in both directions between a and b until both
// copies finish, mirroring fnet.transfer's half-close discipline. The
// client->upstream direction reads through br rather than a directly:
// ParseHeaders above may have already pulled pipelined tunnel bytes (sent
// in the same TCP segment as the CONNECT head) into br's buffer, and
// reading from a would silently drop them.
func splice(a net.Conn, br *bufio.Reader, b net.Conn) {
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		copyHalf(b, br, a)
	}()
	go func() {
		defer wg.Done()
		copyHalf(a, b, b)
	}()
	wg.Wait()
}

// copyHalf copies from src to dst, then half-closes: the read side of
// srcConn (the connection backing src, which may be src itself or, for
// the buffered client->upstream direction, the conn wrapped by it) and
// the write side of dst.
func copyHalf(dst net.Conn, src io.Reader, srcConn net.Conn) {
	_, err := io.Copy(dst, src)
	if err != nil && !errors.Is(err, net.ErrClosed) {
		log.LogVf("connect: copy error: %v", err)
	}
	if hc, ok := srcConn.(halfCloser); ok {
		_ = hc.CloseRead()
	}
	if hc, ok := dst.(halfCloser); ok {
		_ = hc.CloseWrite()
	} else {
		_ = dst.Close()
	}
}
