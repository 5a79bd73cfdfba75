//go:build windows && 386

package hook

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/windows"
)

// allocExecutable reserves and commits size bytes of read-write-execute
// memory, the JIT-allocated region a trampoline's code lives in.
func allocExecutable(size int) (uintptr, error) {
	addr, err := windows.VirtualAlloc(0, uintptr(size), windows.MEM_COMMIT|windows.MEM_RESERVE, windows.PAGE_EXECUTE_READWRITE)
	if err != nil {
		return 0, fmt.Errorf("hook: VirtualAlloc: %w", err)
	}
	return addr, nil
}

func freeExecutable(base uintptr, size int) {
	_ = windows.VirtualFree(base, 0, windows.MEM_RELEASE)
}

// writeCode copies code into the already-executable region at base and
// flushes the instruction cache, as required whenever code is written to
// memory that may already have been fetched into the CPU's instruction
// cache on this architecture.
func writeCode(base uintptr, code []byte) error {
	dst := unsafe.Slice((*byte)(unsafe.Pointer(base)), len(code))
	copy(dst, code)
	return flushInstructionCache(base, len(code))
}

func flushInstructionCache(base uintptr, size int) error {
	h := windows.CurrentProcess()
	if err := windows.FlushInstructionCache(h, unsafe.Pointer(base), uintptr(size)); err != nil {
		return fmt.Errorf("hook: FlushInstructionCache: %w", err)
	}
	return nil
}

// readBytes reads n bytes from target, a live address inside the host
// process's own code, without altering its page protection (reads don't
// need PAGE_EXECUTE_READWRITE).
func readBytes(target uintptr, n int) ([]byte, error) {
	src := unsafe.Slice((*byte)(unsafe.Pointer(target)), n)
	out := make([]byte, n)
	copy(out, src)
	return out, nil
}

// writeBytesAtomic patches target with patch, making the page writable
// first (host code pages are normally PAGE_EXECUTE_READ) and flushing the
// instruction cache afterward. The write itself happens while every
// non-excluded thread is suspended (see patchWithSuspend), so "atomic"
// here means "not observable mid-write by another running thread", which
// the suspend discipline already guarantees; this function only needs to
// worry about page protection.
func writeBytesAtomic(target uintptr, patch []byte) error {
	var oldProtect uint32
	if err := windows.VirtualProtect(target, uintptr(len(patch)), windows.PAGE_EXECUTE_READWRITE, &oldProtect); err != nil {
		return fmt.Errorf("hook: VirtualProtect: %w", err)
	}
	dst := unsafe.Slice((*byte)(unsafe.Pointer(target)), len(patch))
	copy(dst, patch)

	var restored uint32
	_ = windows.VirtualProtect(target, uintptr(len(patch)), oldProtect, &restored)

	return flushInstructionCache(target, len(patch))
}

// makeDispatchCallback wraps nativeDispatchEntry as a cdecl-compatible
// function pointer: the trampoline's generated call instruction expects
// the caller (the trampoline itself) to clean up the stack after the
// call, matching the original hook engine's calling convention.
func makeDispatchCallback() (uintptr, error) {
	return windows.NewCallbackCDecl(nativeDispatchEntry), nil
}
