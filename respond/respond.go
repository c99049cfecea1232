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

// Package respond writes the small, fixed set of status-line responses
// the connection driver and its handlers ever emit directly (§4.H, §5).
// Every response is plain text and short enough to build as one string,
// the way the health-check and bad-gateway literals are built in
// original_source/src/constants.rs.
package respond // import "github.com/rhoxyproxy/rhoxy/respond"

import "io"

// HealthOK is the exact health-check response (§4.H step 4).
const HealthOK = "HTTP/1.1 200 OK\r\nContent-Length: 2\r\n\r\nOK"

// Established is the CONNECT tunnel success response (§4.E step 6).
const Established = "HTTP/1.1 200 Connection Established\r\n\r\n"

// BadRequest writes a 400 for malformed request lines/headers (§4.H step 2).
func BadRequest(w io.Writer) error {
	return writeStatus(w, "400 Bad Request")
}

// Forbidden writes a 403 for any SSRF-guarded destination (§4.E step 3-4, §4.F step 5).
func Forbidden(w io.Writer) error {
	return writeStatus(w, "403 Forbidden")
}

// BadGateway writes a 502 when the upstream dial or send fails (§4.E step 5, §4.F step 7).
func BadGateway(w io.Writer) error {
	_, err := io.WriteString(w, "HTTP/1.1 502 Bad Gateway\r\nContent-Type: text/plain\r\n\r\n")
	return err
}

func writeStatus(w io.Writer, statusLine string) error {
	_, err := io.WriteString(w, "HTTP/1.1 "+statusLine+"\r\nContent-Type: text/plain\r\nContent-Length: 0\r\n\r\n")
	return err
}
