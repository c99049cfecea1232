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

// Package lineio implements the bounded CRLF line reader used to parse
// untrusted HTTP request lines and headers (§4.A). Modeled after
// fnet.SmallReadUntil: read one byte at a time so we never buffer more
// than the caller's declared cap, which is what defeats slowloris /
// oversize-header style attacks at the parser boundary.
package lineio // import "github.com/rhoxyproxy/rhoxy/lineio"

import (
	"bufio"
	"errors"
	"io"
	"unicode/utf8"

	"github.com/rhoxyproxy/rhoxy/perr"
)

// ReadLine reads up to and including the first '\n', or until EOF,
// whichever comes first. If maxBytes bytes are read without finding a
// '\n', it returns perr.ErrLineTooLong without reading any further byte.
// The returned slice never includes the trailing '\n' or '\r'; on EOF
// without a newline, whatever was read so far is returned with no error.
func ReadLine(r *bufio.Reader, maxBytes int) ([]byte, error) {
	buf := make([]byte, 0, 256)
	for len(buf) < maxBytes {
		b, err := r.ReadByte()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return trimCRLF(buf), nil
			}
			return nil, err
		}
		if b == '\n' {
			buf = append(buf, b)
			return trimCRLF(buf), nil
		}
		buf = append(buf, b)
	}
	return nil, perr.ErrLineTooLong
}

func trimCRLF(b []byte) []byte {
	b = bytesTrimSuffix(b, '\n')
	b = bytesTrimSuffix(b, '\r')
	return b
}

func bytesTrimSuffix(b []byte, c byte) []byte {
	if len(b) > 0 && b[len(b)-1] == c {
		return b[:len(b)-1]
	}
	return b
}

// ValidateUTF8 returns perr.ErrInvalidUTF8 if b is not valid UTF-8.
func ValidateUTF8(b []byte) error {
	if !utf8.Valid(b) {
		return perr.ErrInvalidUTF8
	}
	return nil
}

// ReadLineString is ReadLine followed by UTF-8 validation, returning a string.
func ReadLineString(r *bufio.Reader, maxBytes int) (string, error) {
	b, err := ReadLine(r, maxBytes)
	if err != nil {
		return "", err
	}
	if err := ValidateUTF8(b); err != nil {
		return "", err
	}
	return string(b), nil
}
