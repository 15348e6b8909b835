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

package main

import (
	"context"
	"testing"

	"github.com/Jigsaw-Code/socketprotect/protect"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/nettest"
)

func TestProbeAll(t *testing.T) {
	listener, err := nettest.NewLocalListener("tcp")
	require.NoError(t, err)
	defer listener.Close()
	go func() {
		for {
			conn, err := listener.Accept()
			if err != nil {
				return
			}
			conn.Close()
		}
	}()

	reg := &protect.Registry{}
	reg.RegisterFunc(func(fd int) bool { return true })
	gate := protect.NewGate(reg)
	gate.SetEnabled(true)

	addr := listener.Addr().String()
	require.NoError(t, probeAll(context.Background(), gate, "tcp", []string{addr, addr}))
	require.NoError(t, probeAll(context.Background(), gate, "udp", []string{addr}))
	require.Error(t, probeAll(context.Background(), gate, "sctp", []string{addr}))

	failing := &protect.Registry{}
	failing.RegisterFunc(func(fd int) bool { return false })
	failingGate := protect.NewGate(failing)
	failingGate.SetEnabled(true)
	err = probeAll(context.Background(), failingGate, "tcp", []string{addr})
	require.ErrorIs(t, err, protect.ErrProtectionFailed)
}
