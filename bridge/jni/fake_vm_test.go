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

//go:build (linux || darwin) && (amd64 || arm64)

package jni

import (
	"encoding/binary"
	"sync"
	"testing"
	"unsafe"

	"github.com/ebitengine/purego"
	"golang.org/x/sys/unix"
)

// Object handles and method IDs handed out by the fake VM. They are opaque to the code under test.
const (
	fakeContext         uintptr = 0x10
	fakeContextClass    uintptr = 0x11
	fakeLoader          uintptr = 0x12
	fakeLoaderClass     uintptr = 0x13
	fakeServiceClass    uintptr = 0x20
	fakeActivityThread  uintptr = 0x21
	fakeThrowableClass  uintptr = 0x30
	fakeFirstDynamicRef uintptr = 0x1000

	fakeGetClassLoader     uintptr = 0x100
	fakeLoadClass          uintptr = 0x101
	fakeProtectFd          uintptr = 0x102
	fakeToString           uintptr = 0x103
	fakeCurrentApplication uintptr = 0x104
)

// Layout of the memory backing the fake JavaVM and JNIEnv. It is mapped outside the Go heap, like a real VM.
const (
	fakeArenaSize   = 1 << 16
	fakeVMOffset    = 0
	fakeEnvOffset   = 8
	fakeInvokeTable = 64
	fakeEnvTable    = 256
	fakeCharsStart  = 4096
)

// fakeJava is a minimal Java VM driven through real JNI function tables.
type fakeJava struct {
	// Behavior.
	getEnvCode     int32
	pushFrameCode  int32
	classes        map[string]uintptr // found by FindClass
	nullClasses    map[string]bool    // FindClass returns null without an exception
	loaderClasses  map[string]uintptr // found by ClassLoader.loadClass
	protectResult  bool
	protectThrows  string
	hasApplication bool

	// Recorded activity.
	attached     int
	detached     int
	pushed       int
	popped       int
	findClass    []string
	loadClass    []string
	protectArgs  []int32
	staticLookup int
	deleted      []uintptr
	charsOut     int

	pending    uintptr
	nextRef    uintptr
	strs       map[uintptr]string
	throwables map[uintptr]string
}

var (
	// fakeMu guards fake. Callbacks run on the calling goroutine, but the state is also read by the tests.
	fakeMu sync.Mutex
	fake   = &fakeJava{}

	fakeArena     []byte
	fakeArenaBase uintptr
	fakeCharsNext uintptr
	fakeSetupOnce sync.Once
	fakeSetupErr  error
)

func (f *fakeJava) newRef() uintptr {
	f.nextRef++
	return f.nextRef
}

func (f *fakeJava) throw(msg string) {
	ref := f.newRef()
	f.throwables[ref] = msg
	f.pending = ref
}

func (f *fakeJava) newString(s string) uintptr {
	ref := f.newRef()
	f.strs[ref] = s
	return ref
}

func cString(p *byte) string {
	if p == nil {
		return ""
	}
	n := 0
	for *(*byte)(unsafe.Add(unsafe.Pointer(p), n)) != 0 {
		n++
	}
	return string(unsafe.Slice(p, n))
}

func putPointer(off int, v uintptr) {
	binary.LittleEndian.PutUint64(fakeArena[off:], uint64(v))
}

func setupFakeJava() error {
	fakeSetupOnce.Do(func() {
		fakeArena, fakeSetupErr = unix.Mmap(-1, 0, fakeArenaSize, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
		if fakeSetupErr != nil {
			return
		}
		fakeArenaBase = uintptr(unsafe.Pointer(&fakeArena[0]))
		fakeCharsNext = fakeArenaBase + fakeCharsStart
		putPointer(fakeVMOffset, fakeArenaBase+fakeInvokeTable)
		putPointer(fakeEnvOffset, fakeArenaBase+fakeEnvTable)

		invoke := func(index int, fn any) {
			putPointer(fakeInvokeTable+index*8, purego.NewCallback(fn))
		}
		env := func(index int, fn any) {
			putPointer(fakeEnvTable+index*8, purego.NewCallback(fn))
		}
		envPtr := fakeArenaBase + fakeEnvOffset

		invoke(slotAttachCurrentThread, func(vm uintptr, out *uintptr, args uintptr) int32 {
			fakeMu.Lock()
			defer fakeMu.Unlock()
			fake.attached++
			*out = envPtr
			return jniOK
		})
		invoke(slotDetachCurrentThread, func(vm uintptr) int32 {
			fakeMu.Lock()
			defer fakeMu.Unlock()
			fake.detached++
			return jniOK
		})
		invoke(slotGetEnv, func(vm uintptr, out *uintptr, version int32) int32 {
			fakeMu.Lock()
			defer fakeMu.Unlock()
			if fake.getEnvCode == jniOK {
				*out = envPtr
			}
			return fake.getEnvCode
		})

		env(slotFindClass, func(env uintptr, name *byte) uintptr {
			fakeMu.Lock()
			defer fakeMu.Unlock()
			n := cString(name)
			fake.findClass = append(fake.findClass, n)
			if class, ok := fake.classes[n]; ok {
				return class
			}
			if !fake.nullClasses[n] {
				fake.throw("java.lang.NoClassDefFoundError: " + n)
			}
			return 0
		})
		env(slotExceptionOccurred, func(env uintptr) uintptr {
			fakeMu.Lock()
			defer fakeMu.Unlock()
			return fake.pending
		})
		env(slotExceptionClear, func(env uintptr) {
			fakeMu.Lock()
			defer fakeMu.Unlock()
			fake.pending = 0
		})
		env(slotExceptionCheck, func(env uintptr) uintptr {
			fakeMu.Lock()
			defer fakeMu.Unlock()
			if fake.pending != 0 {
				return 1
			}
			return 0
		})
		env(slotPushLocalFrame, func(env uintptr, capacity int32) int32 {
			fakeMu.Lock()
			defer fakeMu.Unlock()
			fake.pushed++
			return fake.pushFrameCode
		})
		env(slotPopLocalFrame, func(env uintptr, result uintptr) uintptr {
			fakeMu.Lock()
			defer fakeMu.Unlock()
			fake.popped++
			return 0
		})
		env(slotDeleteLocalRef, func(env uintptr, ref uintptr) {
			fakeMu.Lock()
			defer fakeMu.Unlock()
			fake.deleted = append(fake.deleted, ref)
		})
		env(slotGetObjectClass, func(env uintptr, obj uintptr) uintptr {
			fakeMu.Lock()
			defer fakeMu.Unlock()
			switch {
			case obj == fakeContext:
				return fakeContextClass
			case obj == fakeLoader:
				return fakeLoaderClass
			case fake.throwables[obj] != "":
				return fakeThrowableClass
			}
			return 0
		})
		env(slotGetMethodID, func(env uintptr, class uintptr, name *byte, sig *byte) uintptr {
			fakeMu.Lock()
			defer fakeMu.Unlock()
			n, s := cString(name), cString(sig)
			switch {
			case class == fakeContextClass && n == "getClassLoader" && s == "()Ljava/lang/ClassLoader;":
				return fakeGetClassLoader
			case class == fakeLoaderClass && n == "loadClass" && s == "(Ljava/lang/String;)Ljava/lang/Class;":
				return fakeLoadClass
			case class == fakeThrowableClass && n == "toString" && s == "()Ljava/lang/String;":
				return fakeToString
			}
			fake.throw("java.lang.NoSuchMethodError: " + n + s)
			return 0
		})
		env(slotCallObjectMethodA, func(env uintptr, obj uintptr, method uintptr, args *jvalue) uintptr {
			fakeMu.Lock()
			defer fakeMu.Unlock()
			switch method {
			case fakeGetClassLoader:
				return fakeLoader
			case fakeLoadClass:
				name := fake.strs[uintptr(*args)]
				fake.loadClass = append(fake.loadClass, name)
				if class, ok := fake.loaderClasses[name]; ok {
					return class
				}
				fake.throw("java.lang.ClassNotFoundException: " + name)
				return 0
			case fakeToString:
				return fake.newString(fake.throwables[obj])
			}
			return 0
		})
		env(slotGetStaticMethodID, func(env uintptr, class uintptr, name *byte, sig *byte) uintptr {
			fakeMu.Lock()
			defer fakeMu.Unlock()
			fake.staticLookup++
			n, s := cString(name), cString(sig)
			switch {
			case class == fakeServiceClass && n == "protectFd" && s == "(I)Z":
				return fakeProtectFd
			case class == fakeActivityThread && n == "currentApplication" && s == "()Landroid/app/Application;":
				return fakeCurrentApplication
			}
			fake.throw("java.lang.NoSuchMethodError: " + n + s)
			return 0
		})
		env(slotCallStaticObjectMethodA, func(env uintptr, class uintptr, method uintptr, args *jvalue) uintptr {
			fakeMu.Lock()
			defer fakeMu.Unlock()
			if method == fakeCurrentApplication && fake.hasApplication {
				return fakeContext
			}
			return 0
		})
		env(slotCallStaticBooleanMethodA, func(env uintptr, class uintptr, method uintptr, args *jvalue) uintptr {
			fakeMu.Lock()
			defer fakeMu.Unlock()
			fake.protectArgs = append(fake.protectArgs, int32(uint32(*args)))
			if fake.protectThrows != "" {
				fake.throw(fake.protectThrows)
				return 0
			}
			if fake.protectResult {
				return 1
			}
			return 0
		})
		env(slotNewStringUTF, func(env uintptr, s *byte) uintptr {
			fakeMu.Lock()
			defer fakeMu.Unlock()
			return fake.newString(cString(s))
		})
		env(slotGetStringUTFLength, func(env uintptr, str uintptr) int32 {
			fakeMu.Lock()
			defer fakeMu.Unlock()
			return int32(len(fake.strs[str]))
		})
		env(slotGetStringUTFChars, func(env uintptr, str uintptr, isCopy *uint8) uintptr {
			fakeMu.Lock()
			defer fakeMu.Unlock()
			s := fake.strs[str]
			off := int(fakeCharsNext - fakeArenaBase)
			if off+len(s)+1 > len(fakeArena) {
				return 0
			}
			copy(fakeArena[off:], s)
			fakeArena[off+len(s)] = 0
			chars := fakeCharsNext
			fakeCharsNext += uintptr(len(s) + 1)
			fake.charsOut++
			return chars
		})
		env(slotReleaseStringUTFChars, func(env uintptr, str uintptr, chars uintptr) {
			fakeMu.Lock()
			defer fakeMu.Unlock()
			fake.charsOut--
		})
	})
	return fakeSetupErr
}

// useFakeJava resets the fake VM and records it as the host VM for the duration of the test. context is the host
// Context reference, or 0.
func useFakeJava(t *testing.T, context uintptr) *fakeJava {
	t.Helper()
	if err := setupFakeJava(); err != nil {
		t.Skipf("cannot map fake VM memory: %v", err)
	}
	fakeMu.Lock()
	*fake = fakeJava{
		getEnvCode:    jniEDetached,
		classes:       map[string]uintptr{},
		nullClasses:   map[string]bool{},
		loaderClasses: map[string]uintptr{},
		nextRef:       fakeFirstDynamicRef,
		strs:          map[uintptr]string{},
		throwables:    map[uintptr]string{},
	}
	fakeMu.Unlock()
	SetHostContext(fakeArenaBase+fakeVMOffset, context)
	t.Cleanup(func() { SetHostContext(0, 0) })
	return fake
}
