//go:build windows

package hook

import (
	"fmt"
	"os"
	"unsafe"

	"golang.org/x/sys/windows"
)

// suspendToken holds the set of threads this call suspended, so the
// caller can inspect their instruction pointers and later resume exactly
// the threads it stopped.
type suspendToken struct {
	handles []windows.Handle
	tids    []uint32
}

// suspendOtherThreads suspends every thread of the current process except
// the calling thread and any thread ID present in exclude (the transport
// reactor and command worker, which must keep servicing the RPC surface
// and may be holding locks the dispatcher also needs).
func suspendOtherThreads(exclude []uintptr) (*suspendToken, error) {
	pid := uint32(os.Getpid())
	self := windows.GetCurrentThreadId()

	excluded := make(map[uint32]bool, len(exclude))
	for _, tid := range exclude {
		excluded[uint32(tid)] = true
	}

	snap, err := windows.CreateToolhelp32Snapshot(windows.TH32CS_SNAPTHREAD, 0)
	if err != nil {
		return nil, fmt.Errorf("hook: CreateToolhelp32Snapshot: %w", err)
	}
	defer windows.CloseHandle(snap)

	tok := &suspendToken{}

	var entry windows.ThreadEntry32
	entry.Size = uint32(unsafe.Sizeof(entry))
	if err := windows.Thread32First(snap, &entry); err != nil {
		return nil, fmt.Errorf("hook: Thread32First: %w", err)
	}
	for {
		if entry.OwnerProcessID == pid && entry.ThreadID != self && !excluded[entry.ThreadID] {
			h, err := windows.OpenThread(windows.THREAD_SUSPEND_RESUME|windows.THREAD_GET_CONTEXT, false, entry.ThreadID)
			if err == nil {
				if _, err := windows.SuspendThread(h); err == nil {
					tok.handles = append(tok.handles, h)
					tok.tids = append(tok.tids, entry.ThreadID)
				} else {
					windows.CloseHandle(h)
				}
			}
		}
		if err := windows.Thread32Next(snap, &entry); err != nil {
			break
		}
	}

	return tok, nil
}

// instructionPointers returns the current instruction pointer of every
// suspended thread, for the "is anyone inside the patched region" check.
func (t *suspendToken) instructionPointers() []uintptr {
	ips := make([]uintptr, 0, len(t.handles))
	for _, h := range t.handles {
		var ctx windows.Context
		ctx.ContextFlags = windows.CONTEXT_CONTROL
		if err := windows.GetThreadContext(h, &ctx); err == nil {
			ips = append(ips, uintptr(ctx.Eip))
		}
	}
	return ips
}

func (t *suspendToken) resumeAll() {
	for _, h := range t.handles {
		_, _ = windows.ResumeThread(h)
		windows.CloseHandle(h)
	}
	t.handles = nil
	t.tids = nil
}
