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

package bridge

import (
	"errors"
	"fmt"
	"log/slog"
	"math"

	"github.com/Jigsaw-Code/socketprotect/protect"
)

// Bridge invokes the host protect method through a [Runtime].
type Bridge struct {
	runtime RuntimeProvider
	target  Target
	logger  *slog.Logger
}

var _ protect.Handler = (*Bridge)(nil)

// Option customizes a [Bridge].
type Option func(*Bridge)

// WithTarget overrides [DefaultTarget].
func WithTarget(target Target) Option {
	return func(b *Bridge) {
		b.target = target
	}
}

// WithLogger sets the logger that receives failure diagnostics. The default is [slog.Default].
func WithLogger(logger *slog.Logger) Option {
	return func(b *Bridge) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// New creates a [Bridge] that obtains its runtime from provider on every call.
func New(provider RuntimeProvider, opts ...Option) *Bridge {
	b := &Bridge{
		runtime: provider,
		target:  DefaultTarget,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Target returns the host entry point this bridge calls.
func (b *Bridge) Target() Target {
	return b.target
}

// InvokeProtect calls the host protect method for fd and returns its result verbatim. A false result is not an error:
// it means the host tried and failed to protect the socket.
//
// The thread attachment is released on every return path. Class resolution is not cached between calls.
func (b *Bridge) InvokeProtect(fd int) (bool, error) {
	if b.runtime == nil {
		return false, b.fail(ErrAttachFailed, fd, errors.New("no runtime provider"))
	}
	rt, err := b.runtime()
	if err != nil {
		return false, b.fail(ErrAttachFailed, fd, err)
	}
	thread, err := rt.AttachCurrentThread()
	if err != nil {
		return false, b.fail(ErrAttachFailed, fd, err)
	}
	defer thread.Release()

	class, err := b.resolve(thread)
	if err != nil {
		return false, b.fail(ErrResolutionFailed, fd, err)
	}

	if fd < math.MinInt32 || fd > math.MaxInt32 {
		return false, b.fail(ErrCallFailed, fd, fmt.Errorf("descriptor %d does not fit in a Java int", fd))
	}
	ok, err := thread.CallStaticBooleanMethod(class, b.target.Method, b.target.Signature, int32(fd))
	if err != nil {
		return false, b.fail(ErrCallFailed, fd, err)
	}
	b.logger.Debug("Host protect call returned", "fd", fd, "result", ok)
	return ok, nil
}

// resolve tries a direct lookup first, then the class loader of the host context. In plugin-hosted apps the service
// class is registered by a loader that FindClass does not search from natively attached threads.
func (b *Bridge) resolve(thread Thread) (Class, error) {
	class, directErr := thread.FindClass(b.target.Class)
	if directErr == nil {
		return class, nil
	}
	b.logger.Debug("Direct class lookup failed, falling back to class loader", "class", b.target.Class, "error", directErr)
	class, loaderErr := thread.LoadClass(b.target.BinaryName())
	if loaderErr == nil {
		return class, nil
	}
	return 0, errors.Join(
		fmt.Errorf("direct lookup: %w", directErr),
		fmt.Errorf("class loader lookup: %w", loaderErr),
	)
}

func (b *Bridge) fail(kind error, fd int, err error) error {
	bErr := &Error{Kind: kind, Target: b.target, Err: err}
	b.logger.Error("Socket protect bridge failed", "fd", fd, "error", bErr)
	return bErr
}

// Protect implements [protect.Handler]. Bridge errors are logged and reported as a failed protection.
func (b *Bridge) Protect(fd int) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("Socket protect bridge panicked", "fd", fd, "panic", r)
			ok = false
		}
	}()
	ok, err := b.InvokeProtect(fd)
	if err != nil {
		return false
	}
	return ok
}
