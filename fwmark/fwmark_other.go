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

//go:build !linux

package fwmark

import (
	"fmt"
	"runtime"
)

var errUnsupported = fmt.Errorf("SO_MARK is not supported on %v", runtime.GOOS)

func setMark(fd, mark int) error {
	return errUnsupported
}

// Mark returns the firewall mark of the socket fd.
func Mark(fd int) (int, error) {
	return 0, errUnsupported
}
