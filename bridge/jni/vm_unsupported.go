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

//go:build !((android || linux || darwin || freebsd) && (amd64 || arm64))

package jni

import "github.com/Jigsaw-Code/socketprotect/bridge"

// VM is unavailable on this platform.
type VM struct{}

// CurrentVM always fails with [ErrUnsupported] on this platform.
func CurrentVM() (*VM, error) {
	return nil, ErrUnsupported
}

// AttachCurrentThread implements [bridge.Runtime].
func (vm *VM) AttachCurrentThread() (bridge.Thread, error) {
	return nil, ErrUnsupported
}
