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

package jni

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSetHostContext(t *testing.T) {
	defer SetHostContext(0, 0)

	_, ok := loadHostContext()
	require.False(t, ok)

	SetHostContext(0x1000, 0x2000)
	hc, ok := loadHostContext()
	require.True(t, ok)
	require.Equal(t, hostContext{vm: 0x1000, context: 0x2000}, hc)

	SetHostContext(0, 0x2000)
	_, ok = loadHostContext()
	require.False(t, ok)
}

// No Java VM runs inside the test binary, so the provider must fail cleanly instead of returning a typed nil.
func TestProviderWithoutVM(t *testing.T) {
	SetHostContext(0, 0)
	rt, err := Provider()()
	require.Nil(t, rt)
	require.True(t, errors.Is(err, ErrNoVM) || errors.Is(err, ErrUnsupported), "unexpected error: %v", err)
}
