//go:build windows && 386

package hook

import (
	"testing"
	"unsafe"

	"github.com/stretchr/testify/require"
)

// newPatchTarget returns the address of a heap-backed buffer at least
// minPrefixLength bytes long, standing in for a live code address: the
// engine only ever reads/writes memory through VirtualProtect and plain
// pointer arithmetic, so a pinned Go buffer is indistinguishable from a
// real in-process code page for exercising Install/Uninstall.
func newPatchTarget(t *testing.T) uintptr {
	t.Helper()
	buf := make([]byte, 32)
	for i := range buf {
		buf[i] = 0x90
	}
	return uintptr(unsafe.Pointer(&buf[0]))
}

func TestInstallAddCallbackUninstall(t *testing.T) {
	e := New(nil)
	target := newPatchTarget(t)

	called := make(chan *Registers, 1)
	require.NoError(t, e.Install("probe-target", target, minPrefixLength, nil))
	defer func() {
		_ = e.Uninstall(target, nil)
	}()

	require.NoError(t, e.AddCallback(target, "probe", func(regs *Registers) {
		select {
		case called <- regs:
		default:
		}
	}))

	dispatchAtHandle(t, target)

	select {
	case <-called:
	default:
		t.Fatal("expected hook callback to have fired")
	}

	require.NoError(t, e.RemoveCallback(target, "probe"))
	require.NoError(t, e.Uninstall(target, nil))
}

// dispatchAtHandle invokes the record's dispatch directly rather than
// jumping into the generated machine code, since driving control flow
// through a hand-assembled trampoline from a test has no safe calling
// convention to return through; Install/Uninstall/AddCallback already
// exercise every other part of the real code path (suspend, patch,
// trampoline allocation, teardown).
func dispatchAtHandle(t *testing.T, target uintptr) {
	t.Helper()
	r := lookupHandle(findHandleForTarget(t, target))
	require.NotNil(t, r)
	dispatch(r, &Registers{})
}

func findHandleForTarget(t *testing.T, target uintptr) uintptr {
	t.Helper()
	handleMu.Lock()
	defer handleMu.Unlock()
	for h, r := range handles {
		if r.target == target {
			return h
		}
	}
	t.Fatal("no handle registered for target")
	return 0
}

func TestInstallDuplicateTargetFails(t *testing.T) {
	e := New(nil)
	target := newPatchTarget(t)

	require.NoError(t, e.Install("first", target, minPrefixLength, nil))
	defer func() { _ = e.Uninstall(target, nil) }()

	err := e.Install("second", target, minPrefixLength, nil)
	require.Error(t, err)
}
