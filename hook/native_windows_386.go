//go:build windows && 386

package hook

import (
	"syscall"
	"unsafe"
)

// NativeCallback adapts a raw native function pointer (as supplied by a
// client over the wire, e.g. AddCallback.CallbackAddress) into a
// CallbackFunc: invoking it passes the same &Registers pointer convention
// this engine's own generated trampolines use, so a callback address can
// be either a Go-side NewCallbackCDecl shim or another hand-written
// trampoline entry point interchangeably.
func NativeCallback(addr uintptr) CallbackFunc {
	return func(regs *Registers) {
		syscall.SyscallN(addr, uintptr(unsafe.Pointer(regs)))
	}
}
