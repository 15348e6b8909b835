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

import "syscall"

var (
	defaultRegistry Registry
	defaultGate     = &Gate{Registry: &defaultRegistry}
)

// DefaultRegistry returns the process-wide [Registry].
func DefaultRegistry() *Registry {
	return &defaultRegistry
}

// DefaultGate returns the process-wide [Gate]. It reads the handler from [DefaultRegistry].
func DefaultGate() *Gate {
	return defaultGate
}

// Register registers h in the process-wide registry. Only the first registration takes effect.
func Register(h Handler) {
	defaultRegistry.Register(h)
}

// RegisterFunc registers f in the process-wide registry. Only the first registration takes effect.
func RegisterFunc(f func(fd int) bool) {
	defaultRegistry.RegisterFunc(f)
}

// RegisteredHandler returns the handler in the process-wide registry, if any.
func RegisteredHandler() (Handler, bool) {
	return defaultRegistry.Get()
}

// SetEnabled turns the process-wide gate on or off.
func SetEnabled(enabled bool) {
	defaultGate.SetEnabled(enabled)
}

// IsEnabled reports whether the process-wide gate is on.
func IsEnabled() bool {
	return defaultGate.IsEnabled()
}

// Protect protects fd using the process-wide gate. See [Gate.Protect].
func Protect(fd int) error {
	return defaultGate.Protect(fd)
}

// Control is [Gate.Control] on the process-wide gate.
func Control(network, address string, c syscall.RawConn) error {
	return defaultGate.Control(network, address, c)
}
