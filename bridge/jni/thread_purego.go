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

//go:build (android || linux || darwin || freebsd) && (amd64 || arm64)

package jni

import (
	"errors"
	"fmt"
	"runtime"
	"unsafe"

	"github.com/Jigsaw-Code/socketprotect/bridge"
)

// Enough for the class loader path: context class, loader, loader class, name string, result and an exception.
const localFrameCapacity = 16

// thread is a JNIEnv bound to the locked OS thread.
type thread struct {
	vm       *VM
	env      uintptr
	fn       *envFuncs
	attached bool
	released bool
}

var _ bridge.Thread = (*thread)(nil)

// Release pops the local frame, detaches the thread if we attached it, and unlocks the OS thread.
func (t *thread) Release() {
	if t.released {
		return
	}
	t.released = true
	t.fn.popLocalFrame(t.env, 0)
	t.detach()
}

func (t *thread) detach() {
	if t.attached {
		t.vm.fn.detachCurrentThread(t.vm.ptr)
	}
	runtime.UnlockOSThread()
}

// FindClass implements [bridge.Thread].
func (t *thread) FindClass(name string) (bridge.Class, error) {
	class := t.fn.findClass(t.env, name)
	if err := t.takeException(); err != nil {
		return 0, fmt.Errorf("FindClass %v: %w", name, err)
	}
	if class == 0 {
		return 0, fmt.Errorf("FindClass %v returned null", name)
	}
	return bridge.Class(class), nil
}

// LoadClass implements [bridge.Thread] with context.getClassLoader().loadClass(binaryName).
func (t *thread) LoadClass(binaryName string) (bridge.Class, error) {
	context, err := t.applicationContext()
	if err != nil {
		return 0, err
	}
	loader, err := t.callObjectMethod(context, "getClassLoader", "()Ljava/lang/ClassLoader;", nil)
	if err != nil {
		return 0, err
	}
	if loader == 0 {
		return 0, errors.New("context has no class loader")
	}
	name := t.fn.newStringUTF(t.env, binaryName)
	if err := t.takeException(); err != nil {
		return 0, fmt.Errorf("NewStringUTF: %w", err)
	}
	args := [1]jvalue{objectValue(name)}
	class, err := t.callObjectMethod(loader, "loadClass", "(Ljava/lang/String;)Ljava/lang/Class;", &args[0])
	if err != nil {
		return 0, err
	}
	if class == 0 {
		return 0, fmt.Errorf("ClassLoader.loadClass(%v) returned null", binaryName)
	}
	return bridge.Class(class), nil
}

// applicationContext returns the Context supplied by the host or, failing that, the current Application.
func (t *thread) applicationContext() (uintptr, error) {
	if t.vm.context != 0 {
		return t.vm.context, nil
	}
	activityThread, err := t.FindClass("android/app/ActivityThread")
	if err != nil {
		return 0, fmt.Errorf("no host context: %w", err)
	}
	method := t.fn.getStaticMethodID(t.env, uintptr(activityThread), "currentApplication", "()Landroid/app/Application;")
	if err := t.takeException(); err != nil || method == 0 {
		return 0, fmt.Errorf("no host context: ActivityThread.currentApplication: %w", errors.Join(err, errNullMethod))
	}
	app := t.fn.callStaticObjectMethodA(t.env, uintptr(activityThread), method, nil)
	if err := t.takeException(); err != nil {
		return 0, fmt.Errorf("no host context: %w", err)
	}
	if app == 0 {
		return 0, errors.New("no host context: no current application")
	}
	return app, nil
}

var (
	errNullMethod   = errors.New("method not found")
	errBadSignature = errors.New("unsupported method signature")
)

func (t *thread) callObjectMethod(obj uintptr, name, sig string, args *jvalue) (uintptr, error) {
	class := t.fn.getObjectClass(t.env, obj)
	method := t.fn.getMethodID(t.env, class, name, sig)
	if err := t.takeException(); err != nil || method == 0 {
		return 0, fmt.Errorf("GetMethodID %v%v: %w", name, sig, errors.Join(err, errNullMethod))
	}
	result := t.fn.callObjectMethodA(t.env, obj, method, args)
	if err := t.takeException(); err != nil {
		return 0, fmt.Errorf("%v%v: %w", name, sig, err)
	}
	return result, nil
}

// CallStaticBooleanMethod implements [bridge.Thread].
func (t *thread) CallStaticBooleanMethod(class bridge.Class, name, signature string, arg int32) (bool, error) {
	// The argument array below holds a single int.
	if signature != bridge.ProtectSignature {
		return false, fmt.Errorf("%w: %v%v, want %v", errBadSignature, name, signature, bridge.ProtectSignature)
	}
	method := t.fn.getStaticMethodID(t.env, uintptr(class), name, signature)
	if err := t.takeException(); err != nil || method == 0 {
		return false, fmt.Errorf("GetStaticMethodID %v%v: %w", name, signature, errors.Join(err, errNullMethod))
	}
	args := [1]jvalue{intValue(arg)}
	result := t.fn.callStaticBooleanMethodA(t.env, uintptr(class), method, &args[0])
	if err := t.takeException(); err != nil {
		return false, fmt.Errorf("%v%v: %w", name, signature, err)
	}
	return result != 0, nil
}

// takeException clears a pending Java exception and returns it as an error wrapping [ErrException].
func (t *thread) takeException() error {
	if t.fn.exceptionCheck(t.env) == 0 {
		return nil
	}
	throwable := t.fn.exceptionOccurred(t.env)
	t.fn.exceptionClear(t.env)
	return fmt.Errorf("%w: %v", ErrException, t.describe(throwable))
}

// describe returns obj.toString(), or a placeholder if that fails too.
func (t *thread) describe(obj uintptr) string {
	const unknown = "<unknown>"
	if obj == 0 {
		return unknown
	}
	defer t.fn.deleteLocalRef(t.env, obj)
	class := t.fn.getObjectClass(t.env, obj)
	method := t.fn.getMethodID(t.env, class, "toString", "()Ljava/lang/String;")
	if method == 0 || t.fn.exceptionCheck(t.env) != 0 {
		t.fn.exceptionClear(t.env)
		return unknown
	}
	str := t.fn.callObjectMethodA(t.env, obj, method, nil)
	if str == 0 || t.fn.exceptionCheck(t.env) != 0 {
		t.fn.exceptionClear(t.env)
		return unknown
	}
	return t.goString(str)
}

func (t *thread) goString(str uintptr) string {
	chars := t.fn.getStringUTFChars(t.env, str, nil)
	if chars == 0 {
		return ""
	}
	defer t.fn.releaseStringUTFChars(t.env, str, chars)
	n := t.fn.getStringUTFLength(t.env, str)
	return string(unsafe.Slice((*byte)(unsafe.Pointer(chars)), n))
}
