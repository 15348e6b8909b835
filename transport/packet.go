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

package transport

import (
	"context"
	"net"

	"github.com/Jigsaw-Code/socketprotect/protect"
)

// PacketDialer provides a way to dial a destination and establish datagram connections.
type PacketDialer interface {
	// DialPacket connects to `addr`.
	// `addr` has the form `host:port`, where `host` can be a domain name or IP address.
	DialPacket(ctx context.Context, addr string) (net.Conn, error)
}

// FuncPacketDialer is a [PacketDialer] that uses the given function to dial.
type FuncPacketDialer func(ctx context.Context, addr string) (net.Conn, error)

var _ PacketDialer = (FuncPacketDialer)(nil)

// DialPacket implements the [PacketDialer] interface.
func (f FuncPacketDialer) DialPacket(ctx context.Context, addr string) (net.Conn, error) {
	return f(ctx, addr)
}

// UDPDialer is a [PacketDialer] that uses the standard [net.Dialer] to dial UDP, protecting each socket before it
// connects.
type UDPDialer struct {
	// Dialer configures the connection. Its control function, if any, runs after protection.
	Dialer net.Dialer
	// Gate protects the sockets. If nil, the process-wide gate is used.
	Gate *protect.Gate
}

var _ PacketDialer = (*UDPDialer)(nil)

// DialPacket implements [PacketDialer].DialPacket.
func (d *UDPDialer) DialPacket(ctx context.Context, addr string) (net.Conn, error) {
	dialer := protectDialer(d.Dialer, d.Gate)
	return dialer.DialContext(ctx, "udp", addr)
}

// PacketListener provides a way to create a local unbound packet connection to send packets to different destinations.
type PacketListener interface {
	// ListenPacket creates a PacketConn that can be used to relay packets (such as UDP) through some proxy.
	ListenPacket(ctx context.Context) (net.PacketConn, error)
}

// UDPListener is a [PacketListener] that uses the standard [net.ListenConfig].ListenPacket to listen, protecting
// the socket before it binds.
type UDPListener struct {
	net.ListenConfig
	// The local address to bind to, as specified in [net.ListenPacket].
	Address string
	// Gate protects the socket. If nil, the process-wide gate is used.
	Gate *protect.Gate
}

var _ PacketListener = (*UDPListener)(nil)

// ListenPacket implements [PacketListener].ListenPacket.
func (l *UDPListener) ListenPacket(ctx context.Context) (net.PacketConn, error) {
	config := l.ListenConfig
	config.Control = chainControl(gateOrDefault(l.Gate), config.Control)
	return config.ListenPacket(ctx, "udp", l.Address)
}
