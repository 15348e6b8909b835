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

// Package jni implements [bridge.Runtime] on top of a Java VM, calling the JNI function tables directly through
// [purego]. No cgo code is needed on Linux and macOS. On Android, purego loads libraries through cgo, so builds need
// CGO_ENABLED=1, which gomobile sets.
//
// The host application provides its JavaVM pointer and, optionally, a global reference to an
// android.content.Context with [SetHostContext]. When the host does not, [CurrentVM] looks the VM up with
// JNI_GetCreatedJavaVMs.
//
// JNI references are kept as uintptr values: they are opaque handles, not addresses the Go garbage collector may
// follow.
//
// [purego]: https://github.com/ebitengine/purego
package jni

import (
	"errors"
	"sync/atomic"

	"github.com/Jigsaw-Code/socketprotect/bridge"
)

var (
	// ErrNoVM is returned when no Java VM was provided by the host or found in the process.
	ErrNoVM = errors.New("no Java VM available")
	// ErrUnsupported is returned on platforms where the JNI tables can't be called.
	ErrUnsupported = errors.New("JNI is not supported on this platform")
	// ErrException wraps a Java exception raised by a JNI call.
	ErrException = errors.New("Java exception")
)

type hostContext struct {
	vm      uintptr
	context uintptr
}

var host atomic.Pointer[hostContext]

// SetHostContext records the process JavaVM pointer and a global reference to the application Context. context may
// be zero, in which case the class loader fallback obtains the application from ActivityThread. Passing a zero vm
// clears the recorded context.
func SetHostContext(vm, context uintptr) {
	if vm == 0 {
		host.Store(nil)
		return
	}
	host.Store(&hostContext{vm: vm, context: context})
}

func loadHostContext() (hostContext, bool) {
	hc := host.Load()
	if hc == nil {
		return hostContext{}, false
	}
	return *hc, true
}

// Provider returns a [bridge.RuntimeProvider] backed by [CurrentVM].
func Provider() bridge.RuntimeProvider {
	return func() (bridge.Runtime, error) {
		vm, err := CurrentVM()
		if err != nil {
			return nil, err
		}
		return vm, nil
	}
}
