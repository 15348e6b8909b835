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

// Package bridge crosses from Go into the host application's runtime to perform the privileged protect call.
//
// On Android, VpnService.protect can only be invoked by the VPN service object, which lives in the Java runtime. A
// [Bridge] attaches the calling thread to that runtime, locates the host class that wraps the service, and calls its
// static protect method. The runtime itself is abstracted by [Runtime], so the same logic drives the real Java VM (see
// package [github.com/Jigsaw-Code/socketprotect/bridge/jni]) and test doubles.
//
// A [Bridge] implements [protect.Handler], so it can be registered directly with package protect.
package bridge
