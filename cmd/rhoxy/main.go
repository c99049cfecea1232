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

// Command rhoxy runs the SSRF-hardened forward proxy (§4.I, §8).
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"fortio.org/cli"
	"fortio.org/log"
	"github.com/rhoxyproxy/rhoxy/server"
)

var (
	hostFlag    = flag.String("host", "127.0.0.1", "Address to listen on")
	portFlag    = flag.String("p", "8080", "Port to listen on")
	verboseFlag = flag.Bool("verbose", false, "Enable verbose (debug) logging")
)

func main() {
	cli.ProgramName = "rhoxy"
	cli.ArgsHelp = ""
	cli.MinArgs = 0
	cli.MaxArgs = 0
	flag.StringVar(portFlag, "port", *portFlag, "Port to listen on (long form of -p)")
	cli.Main()

	if *verboseFlag {
		log.SetLogLevel(log.Debug)
	}

	s, err := server.Listen("rhoxy", *hostFlag, *portFlag)
	if err != nil {
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := s.Serve(ctx); err != nil {
		log.Critf("rhoxy: server exited with error: %v", err)
		os.Exit(1)
	}
}
