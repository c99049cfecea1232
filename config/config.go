// Copyright 2023 Fortio Authors
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

// Package config holds the proxy's bounded constants (§6 of the design).
// They are package level vars, not untyped consts, so tests can tighten
// them the way fnet.MaxPayloadSize is adjusted via ChangeMaxPayloadSize.
package config // import "github.com/rhoxyproxy/rhoxy/config"

import "time"

var (
	// MaxRequestLineLen bounds the request line (method + target + version).
	MaxRequestLineLen = 8 * 1024
	// MaxHeaderLineLen bounds any single header line.
	MaxHeaderLineLen = 8 * 1024
	// MaxHeaderCount bounds the number of headers accepted on one request.
	MaxHeaderCount = 100
	// MaxBodySize bounds request bodies accepted for HTTP forwarding (10 MiB).
	MaxBodySize int64 = 10 * 1024 * 1024
	// ConnectionTimeout is the hard upper bound on a single connection's lifetime.
	ConnectionTimeout = 60 * time.Second
	// MaxConcurrentConnections bounds admission into the acceptor.
	MaxConcurrentConnections = 512
)

// Upstream client tuning, process-wide (see §4.J).
const (
	UpstreamRequestTimeout    = 30 * time.Second
	UpstreamConnectTimeout    = 10 * time.Second
	UpstreamIdleConnsPerHost  = 20
	UpstreamIdleConnTimeout   = 90 * time.Second
	UpstreamTCPKeepAlive      = 60 * time.Second
	UpstreamHTTP2PingInterval = 30 * time.Second
	UpstreamHTTP2PingTimeout  = 10 * time.Second
)

// HealthPath is the origin-form path intercepted locally by the connection driver.
const HealthPath = "/health"

// DefaultConnectPort and DefaultHTTPPort are used when the target/authority omits a port.
const (
	DefaultConnectPort = "443"
	DefaultHTTPPort    = "80"
	DefaultHTTPSPort   = "443"
)
