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

import "errors"

// ErrProtectionFailed is returned by [Gate.Protect] when the registered handler reports that the socket could not be
// protected. A connection over such a socket may be routed back into the tunnel, so callers should abandon it.
var ErrProtectionFailed = errors.New("VpnService.protect() failed")
