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

/*
Package protect decides whether sockets must be excluded from a VPN's own routing and dispatches that work to a
platform handler.

On Android only the VpnService object may call protect(fd), so tunnel code cannot do it directly. Instead, the
platform glue registers a [Handler] once at start-up, and tunnel code calls [Protect] on each outbound socket it opens
before connecting it. The [Gate] decides whether protection is attempted at all:

  - when the gate is disabled, [Protect] succeeds without doing anything;
  - when it is enabled and a handler is registered, the handler decides;
  - when it is enabled but nothing is registered, [Protect] also succeeds. This keeps platforms where protection is
    structurally unnecessary working, at the cost of hiding a missing registration.

The process-wide [Registry] is write-once: the first registered handler stays in place for the lifetime of the process.

Use [Gate.Control] as a [net.Dialer] Control function to protect sockets as they are created.
*/
package protect
