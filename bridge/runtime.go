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
	"fmt"
	"strings"
)

// Class is an opaque reference to a class resolved in the host runtime.
// It is only valid while the [Thread] that produced it is attached.
type Class uintptr

// Runtime is the embedding host runtime, such as a Java VM.
type Runtime interface {
	// AttachCurrentThread makes the calling OS thread usable by the runtime. The caller must call [Thread.Release]
	// on the result once it is done, from the same goroutine.
	AttachCurrentThread() (Thread, error)
}

// Thread is a scoped attachment of the current thread to a [Runtime].
type Thread interface {
	// FindClass looks a class up by its fully-qualified name in slash form, like "java/lang/String".
	FindClass(name string) (Class, error)
	// LoadClass asks the class loader of the host execution context to load a class by its binary name, like
	// "java.lang.String". It reaches classes that FindClass can't see from a natively attached thread.
	LoadClass(binaryName string) (Class, error)
	// CallStaticBooleanMethod calls a static method that takes a single int and returns a boolean.
	CallStaticBooleanMethod(class Class, name, signature string, arg int32) (bool, error)
	// Release undoes the attachment and frees every reference created through this Thread.
	Release()
}

// RuntimeProvider returns the process-wide runtime. It's called on every invocation, so it must be cheap.
type RuntimeProvider func() (Runtime, error)

// Target identifies the host entry point that protects a socket.
type Target struct {
	// Class is the fully-qualified class name in slash form.
	Class string
	// Method is the name of the static method.
	Method string
	// Signature is the method's JNI type signature.
	Signature string
}

const (
	// DefaultPackage is the Java package of the Tauri VPN service plugin.
	DefaultPackage = "com.plugin.vpnservice"
	// ServiceClassName is the simple name of the host class that exposes the protect method.
	ServiceClassName = "TauriVpnService"
	// ProtectSignature is the JNI signature of a static boolean method taking one int. It is the only signature a
	// protect method may have, since the call passes exactly one int argument.
	ProtectSignature = "(I)Z"
)

// DefaultTarget is the static protectFd(int) -> boolean method of com.plugin.vpnservice.TauriVpnService.
var DefaultTarget = TargetForPackage(DefaultPackage)

// TargetForPackage returns the protectFd(int) -> boolean target on the TauriVpnService class of the given Java
// package, for example "com.example.app".
func TargetForPackage(pkg string) Target {
	return Target{
		Class:     strings.ReplaceAll(pkg, ".", "/") + "/" + ServiceClassName,
		Method:    "protectFd",
		Signature: ProtectSignature,
	}
}

// BinaryName returns the class name in the dotted form expected by ClassLoader.loadClass.
func (t Target) BinaryName() string {
	return strings.ReplaceAll(t.Class, "/", ".")
}

func (t Target) String() string {
	return fmt.Sprintf("%s.%s%s", t.BinaryName(), t.Method, t.Signature)
}
