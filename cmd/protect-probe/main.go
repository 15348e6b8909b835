// Copyright 2025 The Outline Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// protect-probe dials one or more destinations through protected sockets, to check that the configured protection
// handler works before a tunnel relies on it.
//
//	protect-probe -config protect.yaml -proto tcp example.com:443 192.0.2.1:853
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path"
	"time"

	"github.com/Jigsaw-Code/socketprotect/config"
	"github.com/Jigsaw-Code/socketprotect/protect"
	"github.com/Jigsaw-Code/socketprotect/transport"
	"github.com/lmittmann/tint"
	"golang.org/x/sync/errgroup"
	"golang.org/x/term"
)

func init() {
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s [flags...] <address>...\n", path.Base(os.Args[0]))
		flag.PrintDefaults()
	}
}

// probeAll dials every address concurrently and returns the first failure.
func probeAll(ctx context.Context, gate *protect.Gate, proto string, addrs []string) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, addr := range addrs {
		addr := addr
		g.Go(func() error {
			start := time.Now()
			if err := probe(ctx, gate, proto, addr); err != nil {
				slog.Error("Probe failed", "proto", proto, "address", addr, "error", err)
				return fmt.Errorf("%v %v: %w", proto, addr, err)
			}
			slog.Info("Probe succeeded", "proto", proto, "address", addr, "elapsed", time.Since(start))
			return nil
		})
	}
	return g.Wait()
}

func probe(ctx context.Context, gate *protect.Gate, proto string, addr string) error {
	switch proto {
	case "tcp":
		conn, err := (&transport.TCPDialer{Gate: gate}).DialStream(ctx, addr)
		if err != nil {
			return err
		}
		return conn.Close()
	case "udp":
		conn, err := (&transport.UDPDialer{Gate: gate}).DialPacket(ctx, addr)
		if err != nil {
			return err
		}
		return conn.Close()
	default:
		return fmt.Errorf("unsupported protocol %q", proto)
	}
}

func main() {
	verboseFlag := flag.Bool("v", false, "Enable debug output")
	configFlag := flag.String("config", "", "YAML or TOML protection config. If empty, protection is enabled with no handler")
	protoFlag := flag.String("proto", "tcp", "Protocol to probe (tcp, udp)")
	timeoutSecFlag := flag.Int("timeout", 5, "Timeout in seconds")

	flag.Parse()

	logLevel := slog.LevelInfo
	if *verboseFlag {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(tint.NewHandler(
		os.Stderr,
		&tint.Options{NoColor: !term.IsTerminal(int(os.Stderr.Fd())), Level: logLevel},
	)))

	addrs := flag.Args()
	if len(addrs) == 0 {
		slog.Error("Need to pass at least one address to probe in the command-line")
		flag.Usage()
		os.Exit(1)
	}

	cfg := &config.Config{Enabled: true}
	if *configFlag != "" {
		var err error
		cfg, err = config.Load(*configFlag)
		if err != nil {
			slog.Error("Could not load config", "error", err)
			os.Exit(1)
		}
	}
	if err := cfg.Apply(protect.DefaultRegistry(), protect.DefaultGate(), slog.Default()); err != nil {
		slog.Error("Could not apply config", "error", err)
		os.Exit(1)
	}
	if _, ok := protect.RegisteredHandler(); !ok && protect.IsEnabled() {
		slog.Warn("Protection is enabled but no handler is registered, sockets will not be protected")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(*timeoutSecFlag)*time.Second)
	defer cancel()
	if err := probeAll(ctx, protect.DefaultGate(), *protoFlag, addrs); err != nil {
		os.Exit(1)
	}
}
