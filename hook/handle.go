package hook

import "sync"

// handles maps an opaque integer id to a *record, so the generated
// trampoline can carry a reference to its hook record as a plain integer
// instead of a real Go pointer.
// Handing a raw Go heap pointer to hand-assembled native code would run
// afoul of the same rule that makes passing Go pointers through cgo
// unsafe: the runtime gives no guarantee that an unreferenced-by-Go-stack
// address stays valid, and the generated trampoline is invisible to the
// garbage collector. A small handle table, the same trick
// runtime/cgo.Handle uses internally, sidesteps the issue entirely: the
// map holds the real reference, and the trampoline only ever sees an
// integer lookup key.
var (
	handleMu   sync.Mutex
	handles    = make(map[uintptr]*record)
	nextHandle uintptr
)

func registerHandle(r *record) uintptr {
	handleMu.Lock()
	defer handleMu.Unlock()
	nextHandle++
	h := nextHandle
	handles[h] = r
	return h
}

func lookupHandle(h uintptr) *record {
	handleMu.Lock()
	defer handleMu.Unlock()
	return handles[h]
}

func unregisterHandle(h uintptr) {
	handleMu.Lock()
	defer handleMu.Unlock()
	delete(handles, h)
}
