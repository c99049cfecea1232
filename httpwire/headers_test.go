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

package httpwire

import (
	"bufio"
	"errors"
	"strings"
	"testing"

	"fortio.org/assert"
	"github.com/rhoxyproxy/rhoxy/perr"
)

func TestParseRequestLine(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  RequestLine
		err   error
	}{
		{"basic", "GET http://example.com/ HTTP/1.1\r\n", RequestLine{"GET", "http://example.com/", "HTTP/1.1"}, nil},
		{"connect", "CONNECT example.com:443 HTTP/1.1\r\n", RequestLine{"CONNECT", "example.com:443", "HTTP/1.1"}, nil},
		{"extra whitespace", "GET   /   HTTP/1.1\r\n", RequestLine{"GET", "/", "HTTP/1.1"}, nil},
		{"missing version", "GET /\r\n", RequestLine{}, perr.ErrBadRequestLine},
		{"empty", "\r\n", RequestLine{}, perr.ErrBadRequestLine},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := bufio.NewReader(strings.NewReader(tt.input))
			got, err := ParseRequestLine(r)
			if tt.err != nil {
				if !errors.Is(err, tt.err) {
					t.Fatalf("expected %v, got %v", tt.err, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			assert.Equal(t, tt.want, got, "parsed request line mismatch")
		})
	}
}

func TestParseHeaders(t *testing.T) {
	input := "Host: example.com\r\nX-Forwarded-For: 1.2.3.4\r\nSet-Cookie: a=1\r\nSet-Cookie: b=2\r\n\r\n"
	r := bufio.NewReader(strings.NewReader(input))
	h, err := ParseHeaders(r)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v, ok := h.Get("host"); !ok || v != "example.com" {
		t.Fatalf("expected host=example.com, got %q ok=%v", v, ok)
	}
	if v, ok := h.Get("HOST"); !ok || v != "example.com" {
		t.Fatalf("lookup should be case-insensitive, got %q ok=%v", v, ok)
	}
	cookies := h.Values("set-cookie")
	if len(cookies) != 2 || cookies[0] != "a=1" || cookies[1] != "b=2" {
		t.Fatalf("expected duplicate headers preserved in order, got %v", cookies)
	}
}

func TestParseHeadersEmpty(t *testing.T) {
	r := bufio.NewReader(strings.NewReader("\r\n"))
	h, err := ParseHeaders(r)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(h) != 0 {
		t.Fatalf("expected no headers, got %v", h)
	}
}

func TestParseHeadersMalformed(t *testing.T) {
	r := bufio.NewReader(strings.NewReader("this-has-no-colon\r\n\r\n"))
	if _, err := ParseHeaders(r); !errors.Is(err, perr.ErrBadHeader) {
		t.Fatalf("expected ErrBadHeader, got %v", err)
	}
}

func TestParseHeadersEmptyValue(t *testing.T) {
	r := bufio.NewReader(strings.NewReader("X-Empty:\r\n\r\n"))
	h, err := ParseHeaders(r)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v, ok := h.Get("x-empty"); !ok || v != "" {
		t.Fatalf("expected empty value, got %q ok=%v", v, ok)
	}
}

// P5: headers with the same (case-insensitive) name are all preserved, in order.
func TestParseHeadersDuplicatesPreserved(t *testing.T) {
	r := bufio.NewReader(strings.NewReader("X-A: 1\r\nx-a: 2\r\nX-A: 3\r\n\r\n"))
	h, err := ParseHeaders(r)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	assert.Equal(t, []string{"1", "2", "3"}, h.Values("X-A"), "duplicate headers must survive in order")
}

func TestParseHeadersTooMany(t *testing.T) {
	var sb strings.Builder
	for i := 0; i < 200; i++ {
		sb.WriteString("X-N: v\r\n")
	}
	sb.WriteString("\r\n")
	r := bufio.NewReader(strings.NewReader(sb.String()))
	if _, err := ParseHeaders(r); !errors.Is(err, perr.ErrTooManyHeaders) {
		t.Fatalf("expected ErrTooManyHeaders, got %v", err)
	}
}

func TestIsHopByHop(t *testing.T) {
	for _, name := range []string{"Connection", "keep-alive", "Proxy-Authorization", "TE", "Upgrade"} {
		if !IsHopByHop(name) {
			t.Errorf("expected %q to be hop-by-hop", name)
		}
	}
	for _, name := range []string{"Host", "Content-Type", "Authorization"} {
		if IsHopByHop(name) {
			t.Errorf("expected %q to not be hop-by-hop", name)
		}
	}
}

func TestIsChunked(t *testing.T) {
	yes := Headers{{Name: "transfer-encoding", Value: "gzip, chunked"}}
	no := Headers{{Name: "transfer-encoding", Value: "gzip"}}
	none := Headers{}
	if !IsChunked(yes) {
		t.Error("expected chunked")
	}
	if IsChunked(no) {
		t.Error("expected not chunked")
	}
	if IsChunked(none) {
		t.Error("expected not chunked")
	}
}

func TestContentLength(t *testing.T) {
	h := Headers{{Name: "content-length", Value: "42"}}
	n, ok, err := ContentLength(h)
	if err != nil || !ok || n != 42 {
		t.Fatalf("expected 42, got n=%d ok=%v err=%v", n, ok, err)
	}
	bad := Headers{{Name: "content-length", Value: "not-a-number"}}
	if _, _, err := ContentLength(bad); !errors.Is(err, perr.ErrBadHeader) {
		t.Fatalf("expected ErrBadHeader, got %v", err)
	}
	_, ok, err = ContentLength(Headers{})
	if err != nil || ok {
		t.Fatalf("expected absent content-length, got ok=%v err=%v", ok, err)
	}
}
