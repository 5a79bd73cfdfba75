//go:build !(windows && 386)

package hook

import (
	"errors"
	"sync"
	"unsafe"
)

// errUnsupportedPlatform is returned by every platform primitive on a
// build that isn't windows/386: the hook engine patches 32-bit x86 code
// inside a Windows host process, so there is no meaningful
// implementation anywhere else. Kept buildable (rather than build-tagged
// out of existence) so the rest of this module, and its tests that don't
// exercise real code patching, compile and run on any platform.
var errUnsupportedPlatform = errors.New("hook: code-patching is only supported on windows/386")

// stubBuffers pins the byte slices backing allocExecutable's fake
// "executable memory" for as long as the corresponding base address is in
// use; without it the slice would be eligible for collection the instant
// allocExecutable returns, leaving the uintptr dangling.
var (
	stubMu      sync.Mutex
	stubBuffers = make(map[uintptr][]byte)
)

func allocExecutable(size int) (uintptr, error) {
	// Tests on this platform stand in a plain byte slice for "executable
	// memory"; production code never reaches here off windows/386.
	buf := make([]byte, size)
	base := uintptr(unsafe.Pointer(&buf[0]))
	stubMu.Lock()
	stubBuffers[base] = buf
	stubMu.Unlock()
	return base, nil
}

func freeExecutable(base uintptr, size int) {
	stubMu.Lock()
	delete(stubBuffers, base)
	stubMu.Unlock()
}

func writeCode(base uintptr, code []byte) error {
	dst := unsafe.Slice((*byte)(unsafe.Pointer(base)), len(code))
	copy(dst, code)
	return nil
}

func readBytes(target uintptr, n int) ([]byte, error) {
	src := unsafe.Slice((*byte)(unsafe.Pointer(target)), n)
	out := make([]byte, n)
	copy(out, src)
	return out, nil
}

func writeBytesAtomic(target uintptr, patch []byte) error {
	dst := unsafe.Slice((*byte)(unsafe.Pointer(target)), len(patch))
	copy(dst, patch)
	return nil
}

func makeDispatchCallback() (uintptr, error) {
	return 0, errUnsupportedPlatform
}
