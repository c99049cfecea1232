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

// Package perr holds the sentinel error values for the proxy's ingress
// and egress paths so handlers and tests can compare by identity
// instead of parsing messages.
package perr // import "github.com/rhoxyproxy/rhoxy/perr"

import "errors"

// Ingress (parsing) errors - all map to 400 Bad Request.
var (
	ErrLineTooLong    = errors.New("line exceeds maximum length")
	ErrBadRequestLine = errors.New("malformed request line")
	ErrBadHeader      = errors.New("malformed header line")
	ErrTooManyHeaders = errors.New("too many headers")
	ErrBodyTooLarge   = errors.New("request body too large")
	ErrBadAuthority   = errors.New("malformed CONNECT authority")
	ErrBadURL         = errors.New("malformed absolute-form target")
	ErrInvalidUTF8    = errors.New("invalid utf-8 in request line or header")
	ErrBadChunkSize   = errors.New("malformed chunk size")
)

// Egress (SSRF / upstream) errors.
var (
	// ErrRebinding and ErrNoAddresses and ErrPrivateHost all map to 403 Forbidden.
	ErrRebinding    = errors.New("resolved address is private")
	ErrNoAddresses  = errors.New("no addresses resolved for host")
	ErrPrivateHost  = errors.New("destination host is private")
	// ErrConnectFailed, ErrSendFailed and ErrUpstreamTimeout all map to 502 Bad Gateway.
	ErrConnectFailed   = errors.New("unable to connect to upstream")
	ErrSendFailed      = errors.New("unable to send request to upstream")
	ErrUpstreamTimeout = errors.New("upstream request timed out")
)
