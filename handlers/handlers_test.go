package handlers

import (
	"testing"

	"github.com/shmocz/ra2yrcpp-sub000/command"
	"github.com/shmocz/ra2yrcpp-sub000/hook"
	"github.com/shmocz/ra2yrcpp-sub000/storage"
	"github.com/shmocz/ra2yrcpp-sub000/wire"
	"github.com/stretchr/testify/require"
)

// testDeps is a minimal command.Deps for exercising handlers directly,
// without a running Manager or a real hook engine.
type testDeps struct {
	store       *storage.Store
	installed   map[uintptr]string
	callbacks   map[uintptr]map[string]hook.CallbackFunc
	deferred    []func()
	frame       uint64
	completions []*command.Context
}

func newTestDeps() *testDeps {
	return &testDeps{
		store:     storage.New(nil),
		installed: make(map[uintptr]string),
		callbacks: make(map[uintptr]map[string]hook.CallbackFunc),
	}
}

func (d *testDeps) Storage() *storage.Store { return d.store }

func (d *testDeps) InstallHook(name string, target uintptr, prefixLength int) error {
	d.installed[target] = name
	return nil
}

func (d *testDeps) UninstallHook(target uintptr) error {
	delete(d.installed, target)
	return nil
}

func (d *testDeps) AddCallback(target uintptr, name string, fn hook.CallbackFunc) error {
	if d.callbacks[target] == nil {
		d.callbacks[target] = make(map[string]hook.CallbackFunc)
	}
	d.callbacks[target][name] = fn
	return nil
}

func (d *testDeps) RemoveCallback(target uintptr, name string) error {
	delete(d.callbacks[target], name)
	return nil
}

func (d *testDeps) Defer(fn func()) {
	d.deferred = append(d.deferred, fn)
}

func (d *testDeps) Complete(ctx *command.Context) {
	d.completions = append(d.completions, ctx)
}

func (d *testDeps) CurrentFrame() uint64 { return d.frame }

func (d *testDeps) drain() {
	work := d.deferred
	d.deferred = nil
	for _, fn := range work {
		fn()
	}
}

func newCtx(deps *testDeps, payload []byte) *command.Context {
	return &command.Context{QueueID: 1, TaskID: 1, Payload: payload, Deps: deps}
}

func TestStoreValueAndGetValue(t *testing.T) {
	deps := newTestDeps()

	ctx := newCtx(deps, (wire.StoreValue{Key: "k", Value: "v"}).Marshal())
	require.NoError(t, storeValue(ctx))

	ctx2 := newCtx(deps, (wire.GetValue{Key: "k"}).Marshal())
	require.NoError(t, getValue(ctx2))
}

func TestGetValueMissingKeyErrors(t *testing.T) {
	deps := newTestDeps()
	ctx := newCtx(deps, (wire.GetValue{Key: "missing"}).Marshal())
	require.Error(t, getValue(ctx))
}

func TestInstallAndUninstallHook(t *testing.T) {
	deps := newTestDeps()

	ctx := newCtx(deps, (wire.InstallHook{Name: "h", Address: 0x1000, PrefixLength: 6}).Marshal())
	require.NoError(t, installHook(ctx))
	require.Equal(t, "h", deps.installed[0x1000])

	ctx2 := newCtx(deps, (wire.UninstallHook{Address: 0x1000}).Marshal())
	require.NoError(t, uninstallHook(ctx2))
	require.NotContains(t, deps.installed, uintptr(0x1000))
}

func TestAddAndRemoveCallback(t *testing.T) {
	deps := newTestDeps()

	ctx := newCtx(deps, (wire.AddCallback{Target: 0x2000, Name: "cb", CallbackAddress: 0x3000}).Marshal())
	require.NoError(t, addCallback(ctx))
	require.Contains(t, deps.callbacks[0x2000], "cb")

	ctx2 := newCtx(deps, (wire.RemoveCallback{Target: 0x2000, Name: "cb"}).Marshal())
	require.NoError(t, removeCallback(ctx2))
	require.NotContains(t, deps.callbacks[0x2000], "cb")
}

func TestGetSystemStateAnswersWithoutDeferring(t *testing.T) {
	deps := newTestDeps()
	deps.frame = 42

	ctx := newCtx(deps, nil)
	ctx.QueueID = 7
	require.NoError(t, getSystemState(ctx))
	require.False(t, ctx.IsPending())
}

func TestUnitOrderDefersAndCompletes(t *testing.T) {
	deps := newTestDeps()
	ctx := newCtx(deps, (wire.UnitOrder{Action: "move"}).Marshal())

	require.NoError(t, unitOrder(ctx))
	require.True(t, ctx.IsPending())
	require.Empty(t, deps.completions)

	deps.drain()
	require.Len(t, deps.completions, 1)
	require.Same(t, ctx, deps.completions[0])
}

func TestProduceUnitDefersAndCompletes(t *testing.T) {
	deps := newTestDeps()
	ctx := newCtx(deps, (wire.ProduceUnit{UnitTypeName: "tank"}).Marshal())

	require.NoError(t, produceUnit(ctx))
	deps.drain()
	require.Len(t, deps.completions, 1)
}

func TestSetTurnRateDefersAndCompletes(t *testing.T) {
	deps := newTestDeps()
	ctx := newCtx(deps, (wire.SetTurnRate{Rate: 2}).Marshal())

	require.NoError(t, setTurnRate(ctx))
	deps.drain()
	require.Len(t, deps.completions, 1)
}
