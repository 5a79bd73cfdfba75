package command

import (
	"github.com/shmocz/ra2yrcpp-sub000/hook"
	"github.com/shmocz/ra2yrcpp-sub000/storage"
	"github.com/shmocz/ra2yrcpp-sub000/wire"
)

// Deps is the slice of the runtime a Handler may reach into. It exists so
// the command package does not import the runtime composition root
// (avoiding an import cycle, since the root imports command to register
// handlers) while still giving handlers access to storage, the hook
// engine, and the mechanism for deferring work to the host's main thread.
type Deps interface {
	Storage() *storage.Store
	InstallHook(name string, target uintptr, prefixLength int) error
	UninstallHook(target uintptr) error
	AddCallback(target uintptr, name string, fn hook.CallbackFunc) error
	RemoveCallback(target uintptr, name string) error
	// Defer schedules fn to run on the host's hijacked main-loop thread at
	// the next invocation of the bridge's drain callback, per the
	// pending-command protocol. fn is
	// responsible for calling ctx.Ok/ctx.Fail and then Complete on the same
	// *Context before returning.
	Defer(fn func())
	// Complete delivers ctx's current result into its owning queue. Only
	// meaningful for a *Context on which Pending was called; fn passed to
	// Defer must call this exactly once after recording its outcome.
	Complete(ctx *Context)
	// CurrentFrame returns the most recent per-frame callback's frame
	// counter, for handlers answering a GetSystemState query.
	CurrentFrame() uint64
}

// Context is the per-invocation object a Handler receives: the unpacked
// payload, a handle on the runtime, and a mutable result slot.
type Context struct {
	QueueID uint64
	TaskID  uint64
	Kind    wire.PayloadKind
	Payload []byte
	Deps    Deps

	result  wire.Any
	errMsg  string
	ok      bool
	pending bool
}

// Pending marks the invocation as deferred: the worker will not push a
// result for it. The handler (or something it schedules via Deps.Defer)
// must later call Complete on the same *Context to deliver the result.
func (c *Context) Pending() {
	c.pending = true
}

// IsPending reports whether Pending was called during this invocation.
func (c *Context) IsPending() bool {
	return c.pending
}

// Ok records a successful result.
func (c *Context) Ok(result wire.Any) {
	c.ok = true
	c.result = result
	c.errMsg = ""
}

// Fail records a failed result with a human-readable reason.
func (c *Context) Fail(reason string) {
	c.ok = false
	c.errMsg = reason
}

// toResult packs the context's current outcome into a CommandResult keyed
// by TaskID, matching the wire's CommandResult.command_id field.
func (c *Context) toResult() wire.CommandResult {
	code := wire.ResultCodeError
	if c.ok {
		code = wire.ResultCodeOK
	}
	return wire.CommandResult{
		CommandID:    c.TaskID,
		Result:       c.result,
		ResultCode:   code,
		ErrorMessage: c.errMsg,
	}
}
