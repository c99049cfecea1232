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

// Package server implements the acceptor (§4.I): bind a listener, admit
// connections through a non-blocking counting semaphore, and run each one
// through the connection driver under a per-connection timeout. Grounded
// on fnet.Listen/fnet.Proxy for the listen-then-accept-loop shape and on
// the peter-wagstaff-claude-hybrid-router proxy's non-blocking
// select/default semaphore for admission control.
package server // import "github.com/rhoxyproxy/rhoxy/server"

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"fortio.org/log"
	"fortio.org/version"
	"github.com/rhoxyproxy/rhoxy/config"
	"github.com/rhoxyproxy/rhoxy/proxy"
)

// Server owns the listener and the admission semaphore for one proxy instance.
type Server struct {
	listener net.Listener
	sem      chan struct{}
	wg       sync.WaitGroup
}

// Listen binds host:port (§4.I). Name is used only for the startup log line.
func Listen(name, host, port string) (*Server, error) {
	l, err := net.Listen("tcp", net.JoinHostPort(host, port))
	if err != nil {
		log.Critf("server: unable to listen on %s:%s: %v", host, port, err)
		return nil, err
	}
	fmt.Printf("rhoxy %s %s listening on %s\n", version.Short(), name, l.Addr())
	return &Server{
		listener: l,
		sem:      make(chan struct{}, config.MaxConcurrentConnections),
	}, nil
}

// Addr returns the bound address, useful for tests that bind to port 0.
func (s *Server) Addr() net.Addr {
	return s.listener.Addr()
}

// Serve runs the accept loop until ctx is cancelled, then drains
// in-flight connections before returning (§4.I).
func (s *Server) Serve(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		_ = s.listener.Close()
	}()
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				break
			}
			log.Errf("server: accept error: %v", err)
			continue
		}
		select {
		case s.sem <- struct{}{}:
			s.wg.Add(1)
			go s.serveOne(ctx, conn)
		default:
			log.LogVf("server: admission semaphore full, dropping %v", conn.RemoteAddr())
			_ = conn.Close()
		}
	}
	s.wg.Wait()
	return nil
}

func (s *Server) serveOne(ctx context.Context, conn net.Conn) {
	defer s.wg.Done()
	defer func() { <-s.sem }()
	defer conn.Close()

	cctx, cancel := context.WithTimeout(ctx, config.ConnectionTimeout)
	defer cancel()

	_ = conn.SetDeadline(time.Now().Add(config.ConnectionTimeout))
	br := bufio.NewReader(conn)
	proxy.HandleConnection(cctx, br, conn)
}
