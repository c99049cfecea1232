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

package connect

import (
	"bufio"
	"context"
	"errors"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/rhoxyproxy/rhoxy/perr"
)

func TestParseAuthority(t *testing.T) {
	tests := []struct {
		in        string
		host      string
		port      string
		expectErr error
	}{
		{"example.com:443", "example.com", "443", nil},
		{"127.0.0.1:8080", "127.0.0.1", "8080", nil},
		{"[::1]:443", "::1", "443", nil},
		{"[2001:db8::1]:80", "2001:db8::1", "80", nil},
		{"[::1]", "::1", "443", nil},
		{"example.com", "example.com", "443", nil},
		{"2001:db8::1", "2001:db8::1", "443", nil},
		{"example.com:", "", "", perr.ErrBadAuthority},
		{"example.com:0", "", "", perr.ErrBadAuthority},
		{"example.com:99999", "", "", perr.ErrBadAuthority},
		{"example.com:abc", "", "", perr.ErrBadAuthority},
		{"[::1]:", "", "", perr.ErrBadAuthority},
		{"", "", "", perr.ErrBadAuthority},
	}
	for _, tt := range tests {
		host, port, err := ParseAuthority(tt.in)
		if tt.expectErr != nil {
			if !errors.Is(err, tt.expectErr) {
				t.Errorf("ParseAuthority(%q): expected %v, got %v", tt.in, tt.expectErr, err)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseAuthority(%q): unexpected error %v", tt.in, err)
			continue
		}
		if host != tt.host || port != tt.port {
			t.Errorf("ParseAuthority(%q) = (%q, %q), want (%q, %q)", tt.in, host, port, tt.host, tt.port)
		}
	}
}

func TestHandleRejectsPrivateHost(t *testing.T) {
	br := bufio.NewReader(strings.NewReader("\r\n"))
	a, b := net.Pipe()
	defer a.Close()
	defer b.Close()
	go func() {
		buf := make([]byte, 512)
		for {
			if _, err := b.Read(buf); err != nil {
				return
			}
		}
	}()
	err := Handle(context.Background(), br, a, "127.0.0.1:9999")
	if !errors.Is(err, perr.ErrPrivateHost) {
		t.Fatalf("expected ErrPrivateHost, got %v", err)
	}
}

func TestHandleRejectsBadAuthority(t *testing.T) {
	br := bufio.NewReader(strings.NewReader("\r\n"))
	a, b := net.Pipe()
	defer a.Close()
	defer b.Close()
	err := Handle(context.Background(), br, a, "not-an-authority:")
	if !errors.Is(err, perr.ErrBadAuthority) {
		t.Fatalf("expected ErrBadAuthority, got %v", err)
	}
}

// TestSplice verifies bidirectional copying: bytes written on one pipe's
// client end arrive on the other pipe's client end and vice versa, the
// way a CONNECT tunnel relays client <-> upstream traffic.
func TestSplice(t *testing.T) {
	clientSide, aEnd := net.Pipe()
	upstreamSide, bEnd := net.Pipe()
	br := bufio.NewReader(aEnd)

	done := make(chan struct{})
	go func() {
		splice(aEnd, br, bEnd)
		close(done)
	}()

	go func() {
		clientSide.Write([]byte("ping"))
	}()
	buf := make([]byte, 4)
	upstreamSide.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, err := readFull(upstreamSide, buf); err != nil {
		t.Fatalf("upstream side did not receive client bytes: %v", err)
	}
	if string(buf) != "ping" {
		t.Fatalf("expected %q, got %q", "ping", buf)
	}

	go func() {
		upstreamSide.Write([]byte("pong"))
		upstreamSide.Close()
	}()
	buf2 := make([]byte, 4)
	clientSide.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, err := readFull(clientSide, buf2); err != nil {
		t.Fatalf("client side did not receive upstream bytes: %v", err)
	}
	if string(buf2) != "pong" {
		t.Fatalf("expected %q, got %q", "pong", buf2)
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("splice did not terminate after both sides closed")
	}
}

// TestSplicePreservesBufferedBytes verifies that bytes a client pipelines
// in the same TCP segment as the CONNECT request line (and therefore
// already sitting in br's buffer by the time splice runs) are still
// relayed to the upstream side, not dropped in favor of reading aEnd raw.
func TestSplicePreservesBufferedBytes(t *testing.T) {
	clientSide, aEnd := net.Pipe()
	upstreamSide, bEnd := net.Pipe()

	br := bufio.NewReader(strings.NewReader("buffered"))

	done := make(chan struct{})
	go func() {
		splice(aEnd, br, bEnd)
		close(done)
	}()

	buf := make([]byte, len("buffered"))
	upstreamSide.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, err := readFull(upstreamSide, buf); err != nil {
		t.Fatalf("upstream side did not receive buffered bytes: %v", err)
	}
	if string(buf) != "buffered" {
		t.Fatalf("expected %q, got %q", "buffered", buf)
	}

	clientSide.Close()
	upstreamSide.Close()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("splice did not terminate")
	}
}

func readFull(c net.Conn, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := c.Read(buf[total:])
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}
