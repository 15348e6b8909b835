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

/*
Package transport has dialers for the connections a VPN opens on its own behalf, such as the connection to its relay
server. Every socket they create goes through a [protect.Gate] before it connects or binds, so its traffic bypasses the
tunnel.

If protection fails, the dial fails with an error that matches [protect.ErrProtectionFailed], and the socket is closed
before any packet is sent.
*/
package transport

import (
	"context"
	"net"
	"syscall"

	"github.com/Jigsaw-Code/socketprotect/protect"
)

func gateOrDefault(g *protect.Gate) *protect.Gate {
	if g == nil {
		return protect.DefaultGate()
	}
	return g
}

// protectDialer returns a copy of d that protects each socket before running d's own control function.
func protectDialer(d net.Dialer, gate *protect.Gate) net.Dialer {
	gate = gateOrDefault(gate)
	// net.Dialer ignores Control when ControlContext is set.
	if userControl := d.ControlContext; userControl != nil {
		d.ControlContext = func(ctx context.Context, network, address string, c syscall.RawConn) error {
			if err := gate.Control(network, address, c); err != nil {
				return err
			}
			return userControl(ctx, network, address, c)
		}
		return d
	}
	d.Control = chainControl(gate, d.Control)
	return d
}

func chainControl(gate *protect.Gate, userControl func(network, address string, c syscall.RawConn) error) func(network, address string, c syscall.RawConn) error {
	return func(network, address string, c syscall.RawConn) error {
		if err := gate.Control(network, address, c); err != nil {
			return err
		}
		if userControl != nil {
			return userControl(network, address, c)
		}
		return nil
	}
}
