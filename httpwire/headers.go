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

// Package httpwire implements the hand-rolled, length-bounded HTTP/1.1
// request-line and header parser (§4.D) plus the chunked/fixed-length
// body framing rules (§4.F steps 2-3). It operates directly on a
// bufio.Reader via lineio, the way fnet/fhttp hand-parse wire bytes
// rather than reaching for net/http's server-side reader.
package httpwire // import "github.com/rhoxyproxy/rhoxy/httpwire"

import (
	"bufio"
	"strings"

	"github.com/rhoxyproxy/rhoxy/config"
	"github.com/rhoxyproxy/rhoxy/lineio"
	"github.com/rhoxyproxy/rhoxy/perr"
)

// Header is a single (name, value) pair; Name is lowercased exactly once,
// at parse time, per the invariant in §3.
type Header struct {
	Name  string
	Value string
}

// Headers is an ordered, duplicate-preserving header list (§3).
type Headers []Header

// Get returns the first value for name (case-insensitive) and whether it was found.
func (h Headers) Get(name string) (string, bool) {
	name = strings.ToLower(name)
	for _, hd := range h {
		if hd.Name == name {
			return hd.Value, true
		}
	}
	return "", false
}

// Values returns all values for name (case-insensitive), in order, for
// headers like Set-Cookie where duplicates must not be collapsed (§4.D).
func (h Headers) Values(name string) []string {
	name = strings.ToLower(name)
	var out []string
	for _, hd := range h {
		if hd.Name == name {
			out = append(out, hd.Value)
		}
	}
	return out
}

// RequestLine is the parsed method/target/version triple (§3).
type RequestLine struct {
	Method  string
	Target  string
	Version string
}

// ParseRequestLine reads exactly one bounded line and splits it into its
// three whitespace-separated tokens (§4.D). Extra surrounding whitespace
// is tolerated per §6.
func ParseRequestLine(r *bufio.Reader) (RequestLine, error) {
	line, err := lineio.ReadLineString(r, config.MaxRequestLineLen)
	if err != nil {
		return RequestLine{}, err
	}
	fields := strings.Fields(line)
	if len(fields) != 3 {
		return RequestLine{}, perr.ErrBadRequestLine
	}
	return RequestLine{Method: fields[0], Target: fields[1], Version: fields[2]}, nil
}

// ParseHeaders reads bounded lines until a blank line, splitting each at
// the first ':' and lowercasing the name (§4.D). Order and duplicates are
// preserved.
func ParseHeaders(r *bufio.Reader) (Headers, error) {
	var headers Headers
	for {
		line, err := lineio.ReadLineString(r, config.MaxHeaderLineLen)
		if err != nil {
			return nil, err
		}
		if line == "" {
			return headers, nil
		}
		idx := strings.IndexByte(line, ':')
		if idx < 0 {
			return nil, perr.ErrBadHeader
		}
		name := strings.ToLower(strings.TrimSpace(line[:idx]))
		value := strings.TrimSpace(line[idx+1:])
		headers = append(headers, Header{Name: name, Value: value})
		if len(headers) > config.MaxHeaderCount {
			return nil, perr.ErrTooManyHeaders
		}
	}
}

// HopByHop is the set of header names (already lowercased) that must
// never be forwarded across a hop (§4.F step 6, GLOSSARY).
var HopByHop = map[string]bool{
	"connection":          true,
	"keep-alive":          true,
	"proxy-authenticate":  true,
	"proxy-authorization": true,
	"te":                  true,
	"trailers":            true,
	"transfer-encoding":   true,
	"upgrade":             true,
}

// IsHopByHop reports whether name (any case) is a hop-by-hop header.
func IsHopByHop(name string) bool {
	return HopByHop[strings.ToLower(name)]
}

// IsChunked reports whether any transfer-encoding header value contains
// the token "chunked", case-insensitively and substring-matched to
// tolerate stacked encodings (§4.F step 2, §9).
func IsChunked(h Headers) bool {
	for _, v := range h.Values("transfer-encoding") {
		if strings.Contains(strings.ToLower(v), "chunked") {
			return true
		}
	}
	return false
}

// ContentLength returns the parsed content-length header value, if
// present and well-formed.
func ContentLength(h Headers) (int64, bool, error) {
	v, ok := h.Get("content-length")
	if !ok {
		return 0, false, nil
	}
	n, err := parseNonNegativeInt(v)
	if err != nil {
		return 0, false, perr.ErrBadHeader
	}
	return n, true, nil
}

func parseNonNegativeInt(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, perr.ErrBadHeader
	}
	var n int64
	for _, c := range s {
		if c < '0' || c > '9' {
			return 0, perr.ErrBadHeader
		}
		n = n*10 + int64(c-'0')
	}
	return n, nil
}
