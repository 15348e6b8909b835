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

// Package mobile exposes socket protection to Android and iOS apps through Go Mobile.
//
// Build the bindings with:
//
//	gomobile bind -target=android -o socketprotect.aar github.com/Jigsaw-Code/socketprotect/mobile
//
// There are two ways to wire the app. Either the VpnService implements [SocketProtector] and passes itself to
// [SetSocketProtector], or the app exposes a static TauriVpnService.protectFd(int) method and calls [UseHostBridge]
// with its JavaVM pointer, so Go reaches the service through JNI. Either way, call [SetProtectionEnabled] to turn the
// gate on.
package mobile

import (
	"errors"

	"github.com/Jigsaw-Code/socketprotect/bridge"
	"github.com/Jigsaw-Code/socketprotect/bridge/jni"
	"github.com/Jigsaw-Code/socketprotect/config"
	"github.com/Jigsaw-Code/socketprotect/protect"

	_ "golang.org/x/mobile/bind"
)

// SocketProtector is implemented by the app, typically by calling VpnService.protect.
type SocketProtector interface {
	// Protect returns true if the socket fd was protected.
	Protect(fd int) bool
}

// SetSocketProtector registers p as the process-wide handler. Only the first registration takes effect.
func SetSocketProtector(p SocketProtector) {
	if p == nil {
		return
	}
	protect.Register(p)
}

// UseHostBridge registers a handler that calls the static protectFd(int) method of <packageName>.TauriVpnService
// through JNI. vm is the JavaVM pointer. context is a global reference to the application Context, or 0 to use the
// current Application. An empty packageName means "com.plugin.vpnservice".
func UseHostBridge(vm int64, context int64, packageName string) error {
	if vm == 0 {
		return errors.New("JavaVM pointer must not be 0")
	}
	jni.SetHostContext(uintptr(vm), uintptr(context))
	target := bridge.DefaultTarget
	if packageName != "" {
		target = bridge.TargetForPackage(packageName)
	}
	protect.Register(bridge.New(jni.Provider(), bridge.WithTarget(target)))
	return nil
}

// ApplyConfig applies a YAML configuration to the process-wide gate and registry. See package config for the format.
func ApplyConfig(yamlConfig string) error {
	cfg, err := config.Parse([]byte(yamlConfig), config.FormatYAML)
	if err != nil {
		return err
	}
	return cfg.Apply(protect.DefaultRegistry(), protect.DefaultGate(), nil)
}

// SetProtectionEnabled turns the process-wide gate on or off.
func SetProtectionEnabled(enabled bool) {
	protect.SetEnabled(enabled)
}

// IsProtectionEnabled reports whether the process-wide gate is on.
func IsProtectionEnabled() bool {
	return protect.IsEnabled()
}

// Protect protects the socket fd using the process-wide gate.
func Protect(fd int) error {
	return protect.Protect(fd)
}
