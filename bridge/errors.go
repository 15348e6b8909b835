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
)

// Kinds of bridge failures. Errors returned by [Bridge.InvokeProtect] match exactly one of these with [errors.Is].
var (
	// ErrAttachFailed means the calling thread could not join the host runtime, or there was no runtime to join.
	ErrAttachFailed = errors.New("failed to attach thread to host runtime")
	// ErrResolutionFailed means neither the direct lookup nor the class loader found the target class.
	// It usually indicates a misconfigured or incompatible host application.
	ErrResolutionFailed = errors.New("failed to resolve host class")
	// ErrCallFailed means the target method was missing, had a different signature, or threw.
	ErrCallFailed = errors.New("host call failed")
)

// Error describes a failed bridge invocation.
type Error struct {
	// Kind is one of ErrAttachFailed, ErrResolutionFailed or ErrCallFailed.
	Kind error
	// Target is the entry point that was being invoked.
	Target Target
	// Err is the underlying diagnostic.
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%v (%v): %v", e.Kind, e.Target, e.Err)
}

// Unwrap exposes both the kind and the cause to [errors.Is] and [errors.As].
func (e *Error) Unwrap() []error {
	return []error{e.Kind, e.Err}
}
