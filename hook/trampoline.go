package hook

import (
	"errors"
	"unsafe"
)

var errTrampolineTooLarge = errors.New("hook: assembled trampoline exceeds code buffer size")

// nativeDispatchEntry is the Go-land side of the native callback wired
// into every trampoline's call_hook slot. Its signature is constrained by
// the platform callback shim (makeDispatchCallback): two uintptr
// arguments, one uintptr result, matching what the generated asm pushes.
func nativeDispatchEntry(handle uintptr, regsPtr uintptr) uintptr {
	r := lookupHandle(handle)
	if r == nil {
		return 0
	}
	regs := (*Registers)(unsafe.Pointer(regsPtr))
	dispatch(r, regs)
	return 0
}

// trampoline is the JIT-allocated executable region a hook diverts
// control into: detourMain (the register-save/dispatch/restore body)
// followed immediately by nothing else — the jump stub written over the
// target is generated separately since it lives at a different address
// (the target itself) and is bounded by prefixLength.
type trampoline struct {
	base    uintptr
	size    int
	handle  uintptr
	jump    []byte
}

// newTrampoline allocates an executable buffer, assembles detourMain into
// it, wires a native-callable entry point for the dispatcher via the
// platform callback shim, and precomputes the jump stub that Install will
// write over target.
func newTrampoline(target uintptr, prefixLength int, r *record) (*trampoline, error) {
	handle := registerHandle(r)

	callHook, err := makeDispatchCallback()
	if err != nil {
		unregisterHandle(handle)
		return nil, err
	}

	// detourMain's encoded length is data-dependent (it embeds absolute
	// addresses), but comfortably under one page; codebuf below is sized
	// generously, mirroring the original's fixed 8192-byte CodeBuf.
	const codebufSize = 8192

	base, err := allocExecutable(codebufSize)
	if err != nil {
		unregisterHandle(handle)
		return nil, err
	}

	body := buildDetourMain(target, prefixLength, handle, callHook)
	if len(body) > codebufSize {
		freeExecutable(base, codebufSize)
		unregisterHandle(handle)
		return nil, errTrampolineTooLarge
	}
	if err := writeCode(base, body); err != nil {
		freeExecutable(base, codebufSize)
		unregisterHandle(handle)
		return nil, err
	}

	return &trampoline{
		base:   base,
		size:   codebufSize,
		handle: handle,
		jump:   buildJumpStub(base, prefixLength),
	}, nil
}

// jumpStub returns the bytes Install writes over the target address.
func (t *trampoline) jumpStub() []byte { return t.jump }

func (t *trampoline) free() {
	freeExecutable(t.base, t.size)
	unregisterHandle(t.handle)
}
