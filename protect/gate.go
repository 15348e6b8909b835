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

package protect

import (
	"fmt"
	"log/slog"
	"sync/atomic"
	"syscall"
)

// Gate is the entry point for socket protection. It combines an enabled flag with a [Registry].
// The zero value is a disabled gate that reads the process-wide registry.
type Gate struct {
	// Registry provides the handler. If nil, the process-wide registry is used.
	Registry *Registry
	// Logger receives diagnostics. If nil, [slog.Default] is used.
	Logger *slog.Logger

	enabled atomic.Bool
}

// NewGate creates a disabled [Gate] that reads handlers from reg.
func NewGate(reg *Registry) *Gate {
	return &Gate{Registry: reg}
}

// SetEnabled sets whether [Gate.Protect] calls the handler. It may be called at any time, from any goroutine.
func (g *Gate) SetEnabled(enabled bool) {
	g.enabled.Store(enabled)
}

// IsEnabled reports whether protection is currently attempted.
func (g *Gate) IsEnabled() bool {
	return g.enabled.Load()
}

func (g *Gate) registry() *Registry {
	if g.Registry == nil {
		return &defaultRegistry
	}
	return g.Registry
}

// Protect protects the socket fd. It returns nil when the gate is disabled, when no handler is registered, or when the
// handler succeeds. Otherwise it returns an error wrapping [ErrProtectionFailed].
//
// The enabled flag and the registry are read independently, without a common snapshot.
func (g *Gate) Protect(fd int) error {
	if !g.IsEnabled() {
		return nil
	}
	h, ok := g.registry().Get()
	if !ok {
		// Without a handler there is nothing we can do. Callers get success to stay compatible with embedders that
		// never wired one.
		loggerOrDefault(g.Logger).Debug("No socket protector registered, leaving socket unprotected", "fd", fd)
		return nil
	}
	if !g.callHandler(h, fd) {
		return fmt.Errorf("could not protect socket %d: %w", fd, ErrProtectionFailed)
	}
	return nil
}

func (g *Gate) callHandler(h Handler, fd int) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			loggerOrDefault(g.Logger).Error("Socket protector panicked", "fd", fd, "panic", r)
			ok = false
		}
	}()
	return h.Protect(fd)
}

// Control protects the socket behind c. Its signature matches the Control field of [net.Dialer] and
// [net.ListenConfig], so the socket is protected after creation and before it connects or binds.
func (g *Gate) Control(network, address string, c syscall.RawConn) error {
	if !g.IsEnabled() {
		return nil
	}
	var protectErr error
	if err := c.Control(func(fd uintptr) {
		protectErr = g.Protect(int(fd))
	}); err != nil {
		return fmt.Errorf("could not access socket for %v %v: %w", network, address, err)
	}
	return protectErr
}

// ProtectConn protects the socket of an already open connection, such as a [*net.TCPConn] or [*net.UDPConn].
func (g *Gate) ProtectConn(conn syscall.Conn) error {
	rawConn, err := conn.SyscallConn()
	if err != nil {
		return fmt.Errorf("could not get raw connection: %w", err)
	}
	return g.Control("", "", rawConn)
}
