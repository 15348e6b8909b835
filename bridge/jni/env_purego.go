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
	"sync"
	"unsafe"

	"github.com/ebitengine/purego"
)

// Return codes and versions from jni.h.
const (
	jniOK        = 0
	jniEDetached = -2
	jniVersion16 = 0x00010006
)

// Slots in JNIInvokeInterface.
const (
	slotAttachCurrentThread = 4
	slotDetachCurrentThread = 5
	slotGetEnv              = 6
)

// Slots in JNINativeInterface.
const (
	slotFindClass                = 6
	slotExceptionOccurred        = 15
	slotExceptionClear           = 17
	slotPushLocalFrame           = 19
	slotPopLocalFrame            = 20
	slotDeleteLocalRef           = 23
	slotGetObjectClass           = 31
	slotGetMethodID              = 33
	slotCallObjectMethodA        = 36
	slotGetStaticMethodID        = 113
	slotCallStaticObjectMethodA  = 116
	slotCallStaticBooleanMethodA = 119
	slotNewStringUTF             = 167
	slotGetStringUTFLength       = 168
	slotGetStringUTFChars        = 169
	slotReleaseStringUTFChars    = 170
	slotExceptionCheck           = 228
)

// jvalue is the JNI argument union. Every member fits in its 8 bytes, little-endian on the supported architectures.
type jvalue uint64

func intValue(i int32) jvalue {
	return jvalue(uint32(i))
}

func objectValue(ref uintptr) jvalue {
	return jvalue(ref)
}

// invokeFuncs are the JavaVM functions we call.
type invokeFuncs struct {
	attachCurrentThread func(vm uintptr, env *uintptr, args uintptr) int32
	detachCurrentThread func(vm uintptr) int32
	getEnv              func(vm uintptr, env *uintptr, version int32) int32
}

// envFuncs are the JNIEnv functions we call.
type envFuncs struct {
	findClass                func(env uintptr, name string) uintptr
	exceptionOccurred        func(env uintptr) uintptr
	exceptionClear           func(env uintptr)
	exceptionCheck           func(env uintptr) uint8
	pushLocalFrame           func(env uintptr, capacity int32) int32
	popLocalFrame            func(env uintptr, result uintptr) uintptr
	deleteLocalRef           func(env uintptr, ref uintptr)
	getObjectClass           func(env uintptr, obj uintptr) uintptr
	getMethodID              func(env uintptr, class uintptr, name string, sig string) uintptr
	callObjectMethodA        func(env uintptr, obj uintptr, method uintptr, args *jvalue) uintptr
	getStaticMethodID        func(env uintptr, class uintptr, name string, sig string) uintptr
	callStaticObjectMethodA  func(env uintptr, class uintptr, method uintptr, args *jvalue) uintptr
	callStaticBooleanMethodA func(env uintptr, class uintptr, method uintptr, args *jvalue) uint8
	newStringUTF             func(env uintptr, s string) uintptr
	getStringUTFLength       func(env uintptr, str uintptr) int32
	getStringUTFChars        func(env uintptr, str uintptr, isCopy *uint8) uintptr
	releaseStringUTFChars    func(env uintptr, str uintptr, chars uintptr)
}

// Function tables are shared by every JavaVM or JNIEnv of the same VM, so the Go bindings are built once per table.
var (
	invokeTables sync.Map // table address -> *invokeFuncs
	envTables    sync.Map // table address -> *envFuncs
)

// functionTable returns the table that a JavaVM* or JNIEnv* points to.
func functionTable(obj uintptr) uintptr {
	return *(*uintptr)(unsafe.Pointer(obj))
}

func slot(table uintptr, index int) uintptr {
	return *(*uintptr)(unsafe.Add(unsafe.Pointer(table), index*int(unsafe.Sizeof(uintptr(0)))))
}

func invokeFuncsFor(vm uintptr) *invokeFuncs {
	table := functionTable(vm)
	if fn, ok := invokeTables.Load(table); ok {
		return fn.(*invokeFuncs)
	}
	fn := &invokeFuncs{}
	purego.RegisterFunc(&fn.attachCurrentThread, slot(table, slotAttachCurrentThread))
	purego.RegisterFunc(&fn.detachCurrentThread, slot(table, slotDetachCurrentThread))
	purego.RegisterFunc(&fn.getEnv, slot(table, slotGetEnv))
	actual, _ := invokeTables.LoadOrStore(table, fn)
	return actual.(*invokeFuncs)
}

func envFuncsFor(env uintptr) *envFuncs {
	table := functionTable(env)
	if fn, ok := envTables.Load(table); ok {
		return fn.(*envFuncs)
	}
	fn := &envFuncs{}
	purego.RegisterFunc(&fn.findClass, slot(table, slotFindClass))
	purego.RegisterFunc(&fn.exceptionOccurred, slot(table, slotExceptionOccurred))
	purego.RegisterFunc(&fn.exceptionClear, slot(table, slotExceptionClear))
	purego.RegisterFunc(&fn.exceptionCheck, slot(table, slotExceptionCheck))
	purego.RegisterFunc(&fn.pushLocalFrame, slot(table, slotPushLocalFrame))
	purego.RegisterFunc(&fn.popLocalFrame, slot(table, slotPopLocalFrame))
	purego.RegisterFunc(&fn.deleteLocalRef, slot(table, slotDeleteLocalRef))
	purego.RegisterFunc(&fn.getObjectClass, slot(table, slotGetObjectClass))
	purego.RegisterFunc(&fn.getMethodID, slot(table, slotGetMethodID))
	purego.RegisterFunc(&fn.callObjectMethodA, slot(table, slotCallObjectMethodA))
	purego.RegisterFunc(&fn.getStaticMethodID, slot(table, slotGetStaticMethodID))
	purego.RegisterFunc(&fn.callStaticObjectMethodA, slot(table, slotCallStaticObjectMethodA))
	purego.RegisterFunc(&fn.callStaticBooleanMethodA, slot(table, slotCallStaticBooleanMethodA))
	purego.RegisterFunc(&fn.newStringUTF, slot(table, slotNewStringUTF))
	purego.RegisterFunc(&fn.getStringUTFLength, slot(table, slotGetStringUTFLength))
	purego.RegisterFunc(&fn.getStringUTFChars, slot(table, slotGetStringUTFChars))
	purego.RegisterFunc(&fn.releaseStringUTFChars, slot(table, slotReleaseStringUTFChars))
	actual, _ := envTables.LoadOrStore(table, fn)
	return actual.(*envFuncs)
}
