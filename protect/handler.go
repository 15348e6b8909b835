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

// Handler performs the privileged call that excludes a socket from the VPN routing.
type Handler interface {
	// Protect returns true if fd was protected, or if the platform considers that no protection is needed.
	// fd is a raw socket descriptor, valid only for the duration of the call.
	Protect(fd int) bool
}

// HandlerFunc is an adapter to allow the use of ordinary functions as a [Handler].
type HandlerFunc func(fd int) bool

var _ Handler = HandlerFunc(nil)

// Protect implements [Handler].Protect.
func (f HandlerFunc) Protect(fd int) bool {
	return f(fd)
}
