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

// Package fwmark protects sockets on Linux by tagging them with a firewall mark.
//
// Desktop Linux has no VpnService. The usual equivalent is a policy routing rule that sends marked traffic through the
// main table instead of the tunnel's, for example:
//
//	ip rule add fwmark 0x6f lookup main priority 100
//
// The rule belongs to the embedder. [Handler] only sets SO_MARK, which requires CAP_NET_ADMIN.
package fwmark

import (
	"log/slog"

	"github.com/Jigsaw-Code/socketprotect/protect"
)

// Handler is a [protect.Handler] that sets SO_MARK on each socket.
type Handler struct {
	// Mark is the firewall mark to set.
	Mark int
	// Logger receives failures. If nil, [slog.Default] is used.
	Logger *slog.Logger
}

var _ protect.Handler = (*Handler)(nil)

// Protect implements [protect.Handler].
func (h *Handler) Protect(fd int) bool {
	if err := setMark(fd, h.Mark); err != nil {
		h.logger().Warn("Failed to mark socket", "fd", fd, "mark", h.Mark, "error", err)
		return false
	}
	return true
}

func (h *Handler) logger() *slog.Logger {
	if h.Logger == nil {
		return slog.Default()
	}
	return h.Logger
}
