// Package hook implements the x86 code-patch trampoline engine: installing
// a detour at a target address, dispatching registered callbacks with the
// pre-call register state, and tearing a detour down only once no thread
// is still executing inside it.
package hook

import (
	"fmt"
	"sync"
	"time"

	"github.com/shmocz/ra2yrcpp-sub000/internal/obslog"
	"github.com/shmocz/ra2yrcpp-sub000/internal/rpcerr"
)

// minPrefixLength is the minimum control-transfer size on 32-bit x86: a
// push-imm32/ret pair is 6 bytes (0x68 imm32, 0xC3), the shortest
// unconditional jump this engine's generated stub can encode.
const minPrefixLength = 6

// Registers is the pre-call snapshot of the eight general-purpose x86
// registers, in the order the generated prologue pushes them. A callback
// may mutate it; the epilogue restores from the mutated copy, which is the
// mechanism by which a callback alters host behavior.
type Registers struct {
	EAX, EBX, ECX, EDX, ESI, EDI, EBP, ESP uint32
}

// CallbackFunc is a registered hook callback. Panics are recovered and
// discarded by the dispatcher; they are not logged, and they never
// propagate into host code.
type CallbackFunc func(regs *Registers)

type namedCallback struct {
	name string
	fn   CallbackFunc
}

// record is one installed hook's bookkeeping.
type record struct {
	name         string
	target       uintptr
	prefixLength int
	original     []byte
	trampoline   *trampoline

	mu        sync.Mutex
	callbacks []namedCallback

	inDetour int32 // refcount of threads currently running the dispatcher, see dispatch()
}

// Engine owns every installed hook. All installation and teardown goes
// through the platform suspend-discipline in suspend_*.go; the callback
// list itself is guarded independently so the dispatcher (running on an
// arbitrary host thread) never contends with the OS-level suspend.
type Engine struct {
	log *obslog.Logger

	mu      sync.Mutex
	records map[uintptr]*record
}

// New constructs an empty Engine.
func New(log *obslog.Logger) *Engine {
	return &Engine{log: log, records: make(map[uintptr]*record)}
}

// Install allocates an executable trampoline for target, following the
// installation safety protocol: enumerate and suspend every thread except
// the ones transport explicitly excludes, check none of them has an
// instruction pointer inside the patched region, patch, resume.
func (e *Engine) Install(name string, target uintptr, prefixLength int, exclude []uintptr) error {
	if prefixLength < minPrefixLength {
		return rpcerr.Wrap(rpcerr.CategoryHook, fmt.Errorf("hook: install %s at %#x: prefix length %d: %w", name, target, prefixLength, rpcerr.ErrPrefixTooShort))
	}

	e.mu.Lock()
	if _, exists := e.records[target]; exists {
		e.mu.Unlock()
		return rpcerr.Wrap(rpcerr.CategoryHook, fmt.Errorf("hook: install %s at %#x: %w", name, target, rpcerr.ErrHookExists))
	}
	e.mu.Unlock()

	r := &record{name: name, target: target, prefixLength: prefixLength}

	tr, err := newTrampoline(target, prefixLength, r)
	if err != nil {
		return rpcerr.Wrap(rpcerr.CategoryHook, fmt.Errorf("hook: install %s at %#x: build trampoline: %w", name, target, err))
	}
	r.trampoline = tr

	if err := e.patchWithSuspend(target, prefixLength, tr.jumpStub(), exclude, &r.original); err != nil {
		tr.free()
		return err
	}

	e.mu.Lock()
	e.records[target] = r
	e.mu.Unlock()
	return nil
}

// patchWithSuspend suspends every other thread, writes patch over target,
// flushes the instruction cache, and resumes, bounding retries so a busy
// target doesn't hang the worker forever.
func (e *Engine) patchWithSuspend(target uintptr, prefixLength int, patch []byte, exclude []uintptr, saveOriginal *[]byte) error {
	const maxAttempts = 20
	const retryDelay = 2 * time.Millisecond

	for attempt := 0; attempt < maxAttempts; attempt++ {
		tok, err := suspendOtherThreads(exclude)
		if err != nil {
			return rpcerr.Wrap(rpcerr.CategoryHook, fmt.Errorf("hook: suspend threads: %w", err))
		}

		clear := true
		for _, ip := range tok.instructionPointers() {
			if ip >= target && ip < target+uintptr(prefixLength) {
				clear = false
				break
			}
		}
		if !clear {
			tok.resumeAll()
			time.Sleep(retryDelay)
			continue
		}

		original, err := readBytes(target, prefixLength)
		if err != nil {
			tok.resumeAll()
			return rpcerr.Wrap(rpcerr.CategoryHook, err)
		}
		if err := writeBytesAtomic(target, patch); err != nil {
			tok.resumeAll()
			return rpcerr.Wrap(rpcerr.CategoryHook, err)
		}
		tok.resumeAll()

		*saveOriginal = original
		return nil
	}

	return rpcerr.Wrap(rpcerr.CategoryHook, fmt.Errorf("hook: install at %#x: %w", target, rpcerr.ErrSuspendRaceFailed))
}

// AddCallback registers fn under name against target's hook, in
// registration order.
func (e *Engine) AddCallback(target uintptr, name string, fn CallbackFunc) error {
	r, err := e.lookup(target)
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.callbacks = append(r.callbacks, namedCallback{name: name, fn: fn})
	return nil
}

// RemoveCallback deregisters name from target's hook. Removing an unknown
// name is a no-op that returns success.
func (e *Engine) RemoveCallback(target uintptr, name string) error {
	r, err := e.lookup(target)
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, cb := range r.callbacks {
		if cb.name == name {
			r.callbacks = append(r.callbacks[:i], r.callbacks[i+1:]...)
			break
		}
	}
	return nil
}

// Uninstall restores target's original bytes and frees the trampoline,
// first waiting for every thread currently inside the detour to leave it.
func (e *Engine) Uninstall(target uintptr, exclude []uintptr) error {
	r, err := e.lookup(target)
	if err != nil {
		return err
	}

	if err := e.patchWithSuspend(target, r.prefixLength, r.original, exclude, new([]byte)); err != nil {
		return err
	}

	waitUntilClearOfDetour(r)

	r.trampoline.free()

	e.mu.Lock()
	delete(e.records, target)
	e.mu.Unlock()
	return nil
}

func (e *Engine) lookup(target uintptr) (*record, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	r, ok := e.records[target]
	if !ok {
		return nil, rpcerr.Wrap(rpcerr.CategoryHook, fmt.Errorf("hook: %#x: %w", target, rpcerr.ErrHookNotFound))
	}
	return r, nil
}

func waitUntilClearOfDetour(r *record) {
	for loadInDetour(r) > 0 {
		time.Sleep(time.Millisecond)
	}
}

// dispatch is the common entry point the generated trampoline's call_hook
// slot invokes. It is exported (via the platform callback shim) as a
// uintptr function pointer, never called directly from Go.
func dispatch(r *record, regs *Registers) {
	incInDetour(r)
	defer decInDetour(r)

	r.mu.Lock()
	callbacks := append([]namedCallback(nil), r.callbacks...)
	r.mu.Unlock()

	for _, cb := range callbacks {
		func() {
			defer func() {
				if rec := recover(); rec != nil {
					// Callback panics never propagate into host code; they
					// are swallowed at the dispatcher boundary, same as the
					// design's try/catch around native callback invocation.
				}
			}()
			cb.fn(regs)
		}()
	}
}
