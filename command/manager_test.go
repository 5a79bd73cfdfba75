package command

import (
	"sync"
	"testing"
	"time"

	"github.com/shmocz/ra2yrcpp-sub000/hook"
	"github.com/shmocz/ra2yrcpp-sub000/storage"
	"github.com/shmocz/ra2yrcpp-sub000/wire"
	"github.com/stretchr/testify/require"
)

// fakeDeps is a minimal command.Deps for exercising the manager without a
// real hook engine, storage store, or callback bridge.
type fakeDeps struct {
	mu       sync.Mutex
	deferred []func()
	frame    uint64
	manager  *Manager
}

func (f *fakeDeps) Storage() *storage.Store { return nil }
func (f *fakeDeps) InstallHook(name string, target uintptr, prefixLength int) error {
	return nil
}
func (f *fakeDeps) UninstallHook(target uintptr) error { return nil }
func (f *fakeDeps) AddCallback(target uintptr, name string, fn hook.CallbackFunc) error {
	return nil
}
func (f *fakeDeps) RemoveCallback(target uintptr, name string) error { return nil }
func (f *fakeDeps) CurrentFrame() uint64                             { return f.frame }

func (f *fakeDeps) Defer(fn func()) {
	f.mu.Lock()
	f.deferred = append(f.deferred, fn)
	f.mu.Unlock()
}

func (f *fakeDeps) Complete(ctx *Context) {
	f.manager.Complete(ctx)
}

// drainDeferred runs and clears every closure queued via Defer, simulating
// the bridge's per-frame drain callback.
func (f *fakeDeps) drainDeferred() {
	f.mu.Lock()
	work := f.deferred
	f.deferred = nil
	f.mu.Unlock()
	for _, fn := range work {
		fn()
	}
}

func newTestManager(t *testing.T, reg *Registry) (*Manager, *fakeDeps) {
	t.Helper()
	deps := &fakeDeps{}
	m := NewManager(reg, deps, nil)
	deps.manager = m
	go m.Run()
	t.Cleanup(func() {
		m.Shutdown()
		m.Wait()
	})
	return m, deps
}

func TestManagerEnqueueAndFlush(t *testing.T) {
	reg := NewRegistry()
	reg.Register(wire.PayloadKindStoreValue, func(ctx *Context) error {
		ctx.Ok(wire.Pack(wire.PayloadKindStoreValue, wire.StoreValue{Key: "k", Result: "ok"}))
		return nil
	})

	m, _ := newTestManager(t, reg)

	qid := m.AllocateQueueID()
	m.CreateQueueSync(qid)

	taskID, err := m.EnqueueUser(qid, wire.PayloadKindStoreValue, (wire.StoreValue{Key: "k"}).Marshal())
	require.NoError(t, err)

	results, err := m.FlushResults(qid, 10, time.Second)
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Equal(t, taskID, results[0].CommandID)
	require.Equal(t, wire.ResultCodeOK, results[0].ResultCode)
}

func TestManagerEnqueueUnknownQueue(t *testing.T) {
	reg := NewRegistry()
	m, _ := newTestManager(t, reg)

	_, err := m.EnqueueUser(999, wire.PayloadKindStoreValue, nil)
	require.Error(t, err)
}

func TestManagerFlushUnknownQueue(t *testing.T) {
	reg := NewRegistry()
	m, _ := newTestManager(t, reg)

	_, err := m.FlushResults(999, 10, time.Millisecond)
	require.Error(t, err)
}

func TestManagerHandlerPanicBecomesErrorResult(t *testing.T) {
	reg := NewRegistry()
	reg.Register(wire.PayloadKindStoreValue, func(ctx *Context) error {
		panic("boom")
	})

	m, _ := newTestManager(t, reg)
	qid := m.AllocateQueueID()
	m.CreateQueueSync(qid)

	_, err := m.EnqueueUser(qid, wire.PayloadKindStoreValue, nil)
	require.NoError(t, err)

	results, err := m.FlushResults(qid, 10, time.Second)
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Equal(t, wire.ResultCodeError, results[0].ResultCode)
}

func TestManagerUnknownHandlerBecomesErrorResult(t *testing.T) {
	reg := NewRegistry()
	m, _ := newTestManager(t, reg)
	qid := m.AllocateQueueID()
	m.CreateQueueSync(qid)

	_, err := m.EnqueueUser(qid, wire.PayloadKindStoreValue, nil)
	require.NoError(t, err)

	results, err := m.FlushResults(qid, 10, time.Second)
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Equal(t, wire.ResultCodeError, results[0].ResultCode)
}

func TestManagerPendingCommandCompletedViaDefer(t *testing.T) {
	reg := NewRegistry()
	reg.Register(wire.PayloadKindUnitOrder, func(ctx *Context) error {
		ctx.Pending()
		ctx.Deps.Defer(func() {
			ctx.Ok(wire.Pack(wire.PayloadKindUnitOrder, wire.UnitOrder{Action: "move"}))
			ctx.Deps.Complete(ctx)
		})
		return nil
	})

	m, deps := newTestManager(t, reg)
	qid := m.AllocateQueueID()
	m.CreateQueueSync(qid)

	taskID, err := m.EnqueueUser(qid, wire.PayloadKindUnitOrder, nil)
	require.NoError(t, err)

	// Pending: nothing to flush immediately.
	results, err := m.FlushResults(qid, 10, 20*time.Millisecond)
	require.NoError(t, err)
	require.Empty(t, results)

	deps.drainDeferred()

	results, err = m.FlushResults(qid, 10, time.Second)
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Equal(t, taskID, results[0].CommandID)
}

func TestManagerDestroyQueueDropsResults(t *testing.T) {
	reg := NewRegistry()
	m, _ := newTestManager(t, reg)
	qid := m.AllocateQueueID()
	m.CreateQueueSync(qid)
	m.DestroyQueueSync(qid)

	_, err := m.EnqueueUser(qid, wire.PayloadKindStoreValue, nil)
	require.Error(t, err)
}
