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

// Package forward implements the absolute-form HTTP forwarding handler
// (§4.F): parse the body, resolve and guard the target, dispatch through
// the shared upstream client with DNS pinning, and stream the response
// back verbatim as HTTP/1.1. Grounded on fhttp.CopyHeaders' hop-by-hop
// filtering and on fhttp.NewStdClient's dial-override pattern, adapted
// from teeing to proxying.
package forward // import "github.com/rhoxyproxy/rhoxy/forward"

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"net"
	"net/http"
	"net/url"
	"sort"
	"strconv"

	"fortio.org/log"
	"github.com/rhoxyproxy/rhoxy/config"
	"github.com/rhoxyproxy/rhoxy/httpwire"
	"github.com/rhoxyproxy/rhoxy/netguard"
	"github.com/rhoxyproxy/rhoxy/respond"
	"github.com/rhoxyproxy/rhoxy/upstream"
)

// Handle implements handle_http(reader, writer, method, target) (§4.F).
// headers have already been through DrainHeaders-equivalent parsing by
// the caller only in the sense that the request line is consumed; Handle
// itself owns header and body parsing.
func Handle(ctx context.Context, br *bufio.Reader, w io.Writer, method, target string) error {
	headers, err := httpwire.ParseHeaders(br)
	if err != nil {
		_ = respond.BadRequest(w)
		return err
	}
	body, err := httpwire.ReadBody(br, headers, config.MaxBodySize)
	if err != nil {
		_ = respond.BadRequest(w)
		return err
	}
	u, err := url.ParseRequestURI(target)
	if err != nil || !u.IsAbs() {
		return respond.BadRequest(w)
	}
	host := u.Hostname()
	port := u.Port()
	if port == "" {
		port = defaultPortFor(u.Scheme)
	}
	if netguard.IsPrivate(host) {
		log.Warnf("forward: refusing private destination %s", host)
		return respond.Forbidden(w)
	}
	ips, err := netguard.ResolveNonPrivate(ctx, net.DefaultResolver, host)
	if err != nil {
		log.Warnf("forward: %s did not resolve to a safe address: %v", host, err)
		return respond.Forbidden(w)
	}
	ctx = upstream.WithPinnedAddrs(ctx, ips, port)

	var bodyReader io.Reader
	if len(body) > 0 {
		bodyReader = bytes.NewReader(body)
	}
	outReq, err := http.NewRequestWithContext(ctx, method, u.String(), bodyReader)
	if err != nil {
		return respond.BadRequest(w)
	}
	copyRequestHeaders(outReq, headers)

	resp, err := upstream.Client.Do(outReq)
	if err != nil {
		log.Warnf("forward: request to %s failed: %v", u, err)
		return respond.BadGateway(w)
	}
	defer resp.Body.Close()

	return streamResponse(w, resp)
}

func defaultPortFor(scheme string) string {
	if scheme == "https" {
		return config.DefaultHTTPSPort
	}
	return config.DefaultHTTPPort
}

func copyRequestHeaders(req *http.Request, headers httpwire.Headers) {
	for _, h := range headers {
		if httpwire.IsHopByHop(h.Name) || h.Name == "host" {
			continue
		}
		req.Header.Add(h.Name, h.Value)
	}
}

func streamResponse(w io.Writer, resp *http.Response) error {
	statusLine := "HTTP/1.1 " + strconv.Itoa(resp.StatusCode) + " " + http.StatusText(resp.StatusCode) + "\r\n"
	if _, err := io.WriteString(w, statusLine); err != nil {
		return err
	}
	// resp.Header is a map, so cross-name order from the upstream response
	// isn't available to preserve; names are sorted for deterministic
	// output instead. Values within a name (e.g. repeated Set-Cookie) keep
	// the order net/http parsed them in.
	names := make([]string, 0, len(resp.Header))
	for name := range resp.Header {
		if !httpwire.IsHopByHop(name) {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	for _, name := range names {
		for _, v := range resp.Header[name] {
			if _, err := io.WriteString(w, name+": "+v+"\r\n"); err != nil {
				return err
			}
		}
	}
	if _, err := io.WriteString(w, "\r\n"); err != nil {
		return err
	}
	_, err := io.Copy(w, resp.Body)
	return err
}
