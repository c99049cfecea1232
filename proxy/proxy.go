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

// Package proxy implements the protocol dispatcher and connection driver
// (§4.G, §4.H): read one request line, intercept the local health check,
// and hand off to the connect or forward handler. Grounded on
// fnet.handleProxyRequest's read-classify-dispatch shape.
package proxy // import "github.com/rhoxyproxy/rhoxy/proxy"

import (
	"bufio"
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"strings"

	"fortio.org/log"
	"github.com/google/uuid"
	"github.com/rhoxyproxy/rhoxy/config"
	"github.com/rhoxyproxy/rhoxy/connect"
	"github.com/rhoxyproxy/rhoxy/forward"
	"github.com/rhoxyproxy/rhoxy/httpwire"
	"github.com/rhoxyproxy/rhoxy/respond"
)

// HandleConnection implements handle_connection(reader, writer) (§4.H).
// conn is used both for its bufio.Reader (already positioned after any
// previously consumed bytes) and, for CONNECT, as the raw net.Conn the
// tunnel takes over.
func HandleConnection(ctx context.Context, br *bufio.Reader, conn net.Conn) {
	cid := uuid.New().String()
	line, err := httpwire.ParseRequestLine(br)
	if err != nil {
		log.S(log.Debug, "bad request line", log.Str("id", cid), log.Attr("err", err))
		_ = respond.BadRequest(conn)
		return
	}
	if line.Method != http.MethodConnect && line.Target == config.HealthPath {
		if _, err := io.WriteString(conn, respond.HealthOK); err != nil {
			log.S(log.Verbose, "health response write failed", log.Str("id", cid), log.Attr("err", err))
		}
		return
	}
	dispatch(ctx, br, conn, line, cid)
}

// dispatch is the trivial CONNECT-vs-HTTP classifier (§4.G), split out so
// tests can reach each handler directly without going through the
// request-line reader.
func dispatch(ctx context.Context, br *bufio.Reader, conn net.Conn, line httpwire.RequestLine, cid string) {
	if line.Method == http.MethodConnect {
		err := connect.Handle(ctx, br, conn, line.Target)
		if errors.Is(err, perr.ErrBadAuthority) {
			_ = respond.BadRequest(conn)
		}
		if err != nil && !errors.Is(err, context.Canceled) {
			log.S(log.Verbose, "connect failed", log.Str("id", cid), log.Str("target", line.Target), log.Attr("err", err))
		}
		return
	}
	if err := forward.Handle(ctx, br, conn, line.Method, line.Target); err != nil {
		log.S(log.Verbose, "forwarding failed", log.Str("id", cid), log.Str("method", line.Method),
			log.Str("target", line.Target), log.Attr("err", err))
	}
}

// IsHealthCheck reports whether method/target is the local health probe,
// exposed for tests that want to exercise the classification rule on its
// own (absolute-form /health must NOT match).
func IsHealthCheck(method, target string) bool {
	return method != http.MethodConnect && target == config.HealthPath && !strings.Contains(target, "://")
}
