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
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/Jigsaw-Code/socketprotect/bridge"
	"github.com/ebitengine/purego"
)

// VM is a Java VM running in this process.
type VM struct {
	ptr     uintptr
	context uintptr
	fn      *invokeFuncs
}

var _ bridge.Runtime = (*VM)(nil)

// CurrentVM returns the VM recorded with [SetHostContext]. If the host didn't record one, it asks the runtime
// libraries for an already created VM and records it for later calls.
func CurrentVM() (*VM, error) {
	hc, ok := loadHostContext()
	if !ok {
		vm, err := discoverVM()
		if err != nil {
			return nil, err
		}
		hc = hostContext{vm: vm}
		host.CompareAndSwap(nil, &hc)
	}
	return &VM{ptr: hc.vm, context: hc.context, fn: invokeFuncsFor(hc.vm)}, nil
}

// libraryCandidates lists the libraries exporting JNI_GetCreatedJavaVMs, most specific first.
func libraryCandidates() []string {
	switch runtime.GOOS {
	case "android":
		// libnativehelper exports it from API 31, libart on older releases.
		return []string{"libnativehelper.so", "libart.so"}
	case "darwin":
		return javaHomeLibrary("libjvm.dylib")
	default:
		return javaHomeLibrary("libjvm.so")
	}
}

func javaHomeLibrary(name string) []string {
	var paths []string
	if javaHome := os.Getenv("JAVA_HOME"); javaHome != "" {
		paths = append(paths, filepath.Join(javaHome, "lib", "server", name))
	}
	return append(paths, name)
}

func discoverVM() (uintptr, error) {
	var errs []error
	for _, name := range libraryCandidates() {
		lib, err := purego.Dlopen(name, purego.RTLD_NOW|purego.RTLD_GLOBAL)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		sym, err := purego.Dlsym(lib, "JNI_GetCreatedJavaVMs")
		if err != nil {
			errs = append(errs, err)
			continue
		}
		var getCreatedJavaVMs func(vms *uintptr, bufLen int32, nVMs *int32) int32
		purego.RegisterFunc(&getCreatedJavaVMs, sym)
		var vm uintptr
		var n int32
		if rc := getCreatedJavaVMs(&vm, 1, &n); rc != jniOK {
			errs = append(errs, fmt.Errorf("%v: JNI_GetCreatedJavaVMs returned %d", name, rc))
			continue
		}
		if n > 0 && vm != 0 {
			return vm, nil
		}
	}
	if len(errs) == 0 {
		return 0, ErrNoVM
	}
	return 0, fmt.Errorf("%w: %v", ErrNoVM, errs)
}

// AttachCurrentThread implements [bridge.Runtime]. It locks the calling goroutine to its OS thread until
// [bridge.Thread.Release] is called. Threads that were already attached are not detached on release.
func (vm *VM) AttachCurrentThread() (bridge.Thread, error) {
	runtime.LockOSThread()
	var env uintptr
	attached := false
	switch rc := vm.fn.getEnv(vm.ptr, &env, jniVersion16); rc {
	case jniOK:
	case jniEDetached:
		if rc := vm.fn.attachCurrentThread(vm.ptr, &env, 0); rc != jniOK || env == 0 {
			runtime.UnlockOSThread()
			return nil, fmt.Errorf("AttachCurrentThread returned %d", rc)
		}
		attached = true
	default:
		runtime.UnlockOSThread()
		return nil, fmt.Errorf("GetEnv returned %d", rc)
	}

	t := &thread{vm: vm, env: env, fn: envFuncsFor(env), attached: attached}
	if rc := t.fn.pushLocalFrame(env, localFrameCapacity); rc != jniOK {
		t.fn.exceptionClear(env)
		t.detach()
		return nil, fmt.Errorf("PushLocalFrame returned %d", rc)
	}
	return t, nil
}
