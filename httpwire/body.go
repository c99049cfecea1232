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
	"io"
	"strings"

	"github.com/rhoxyproxy/rhoxy/config"
	"github.com/rhoxyproxy/rhoxy/lineio"
	"github.com/rhoxyproxy/rhoxy/perr"
)

// ReadBody reads a request or response body framed by h, bounded by
// maxBody bytes, per §4.F steps 2-3. A message with neither
// Transfer-Encoding: chunked nor Content-Length has no body and an empty
// slice is returned, matching the proxy's GET/HEAD/health traffic.
func ReadBody(r *bufio.Reader, h Headers, maxBody int64) ([]byte, error) {
	if IsChunked(h) {
		return readChunkedBody(r, maxBody)
	}
	n, ok, err := ContentLength(h)
	if err != nil {
		return nil, err
	}
	if !ok || n == 0 {
		return nil, nil
	}
	if n > maxBody {
		return nil, perr.ErrBodyTooLarge
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

// readChunkedBody decodes a chunked-transfer-encoded body (RFC 7230 §4.1),
// discarding chunk extensions and the trailer section, bounded by maxBody
// total decoded bytes.
func readChunkedBody(r *bufio.Reader, maxBody int64) ([]byte, error) {
	var out []byte
	var total int64
	for {
		sizeLine, err := lineio.ReadLineString(r, config.MaxHeaderLineLen)
		if err != nil {
			return nil, err
		}
		size, err := parseChunkSize(sizeLine)
		if err != nil {
			return nil, err
		}
		if size == 0 {
			// Trailer section: zero or more header-like lines, then a blank line.
			for {
				line, err := lineio.ReadLineString(r, config.MaxHeaderLineLen)
				if err != nil {
					return nil, err
				}
				if line == "" {
					break
				}
			}
			return out, nil
		}
		total += size
		if total > maxBody {
			return nil, perr.ErrBodyTooLarge
		}
		chunk := make([]byte, size)
		if _, err := io.ReadFull(r, chunk); err != nil {
			return nil, err
		}
		out = append(out, chunk...)
		// Each chunk is followed by a bare CRLF.
		trailer, err := lineio.ReadLine(r, 2)
		if err != nil {
			return nil, err
		}
		if len(trailer) != 0 {
			return nil, perr.ErrBadChunkSize
		}
	}
}

// parseChunkSize parses a chunk-size line, discarding any chunk
// extensions introduced by ';' (RFC 7230 §4.1.1).
func parseChunkSize(line string) (int64, error) {
	if i := strings.IndexByte(line, ';'); i >= 0 {
		line = line[:i]
	}
	if line == "" {
		return 0, perr.ErrBadChunkSize
	}
	var n int64
	for _, c := range line {
		var d int64
		switch {
		case c >= '0' && c <= '9':
			d = int64(c - '0')
		case c >= 'a' && c <= 'f':
			d = int64(c-'a') + 10
		case c >= 'A' && c <= 'F':
			d = int64(c-'A') + 10
		default:
			return 0, perr.ErrBadChunkSize
		}
		n = n*16 + d
	}
	return n, nil
}
