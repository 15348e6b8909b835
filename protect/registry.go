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
	"log/slog"
	"reflect"
	"sync/atomic"
)

// Registry holds at most one [Handler] for its whole lifetime.
// The zero value is an empty registry, ready to use. A Registry must not be copied after first use.
type Registry struct {
	// Logger receives debug messages about ignored registrations. If nil, [slog.Default] is used.
	Logger *slog.Logger

	entry atomic.Pointer[registryEntry]
}

type registryEntry struct {
	handler Handler
}

// Register stores h if no handler has been stored yet. Later calls are ignored, so that concurrent registrations
// resolve to the first writer. Registering nil, including a nil func or pointer wrapped in a Handler, is a no-op and
// does not consume the slot.
func (r *Registry) Register(h Handler) {
	if isNilHandler(h) {
		loggerOrDefault(r.Logger).Debug("Ignoring nil socket protector")
		return
	}
	if !r.entry.CompareAndSwap(nil, &registryEntry{handler: h}) {
		loggerOrDefault(r.Logger).Debug("Socket protector already registered, ignoring new one")
	}
}

// RegisterFunc is a convenience for Register(HandlerFunc(f)). A nil f is ignored.
func (r *Registry) RegisterFunc(f func(fd int) bool) {
	if f == nil {
		return
	}
	r.Register(HandlerFunc(f))
}

// Get returns the registered handler, if any. It is safe to call concurrently with [Registry.Register].
func (r *Registry) Get() (Handler, bool) {
	e := r.entry.Load()
	if e == nil {
		return nil, false
	}
	return e.handler, true
}

func isNilHandler(h Handler) bool {
	if h == nil {
		return true
	}
	if f, ok := h.(HandlerFunc); ok {
		return f == nil
	}
	switch v := reflect.ValueOf(h); v.Kind() {
	case reflect.Pointer, reflect.Func, reflect.Map, reflect.Slice, reflect.Chan, reflect.Interface:
		return v.IsNil()
	}
	return false
}

func loggerOrDefault(l *slog.Logger) *slog.Logger {
	if l == nil {
		return slog.Default()
	}
	return l
}
