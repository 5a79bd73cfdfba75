// Package command implements the scheduler half of the runtime: a
// handler registry keyed by wire.PayloadKind, a single priority-ordered worker that
// drains scheduled commands, and per-connection result queues that a
// poll call drains with a bounded wait.
package command

import (
	"fmt"
	"sync"

	"github.com/shmocz/ra2yrcpp-sub000/internal/rpcerr"
	"github.com/shmocz/ra2yrcpp-sub000/wire"
)

// Handler processes one command's payload and populates ctx's result (or
// marks it pending, deferring completion to a later call to
// ctx.Deps.Complete(ctx) from outside the worker, typically from the callback bridge's drain
// callback).
type Handler func(ctx *Context) error

// Registry maps a wire.PayloadKind to the Handler responsible for it,
// mirroring the request-routing table a gRPC service registrar builds,
// but keyed directly by the wire protocol's own type tag instead of a
// generated service descriptor.
type Registry struct {
	mu       sync.RWMutex
	handlers map[wire.PayloadKind]Handler
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[wire.PayloadKind]Handler)}
}

// Register binds kind to handler. Registering the same kind twice panics,
// the same way a duplicate gRPC service registration does: it is a wiring
// bug, not a runtime condition a caller should have to handle.
func (r *Registry) Register(kind wire.PayloadKind, handler Handler) {
	if handler == nil {
		panic(fmt.Sprintf("command: registry: nil handler for kind %d", kind))
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.handlers[kind]; exists {
		panic(fmt.Sprintf("command: registry: kind %d already registered", kind))
	}
	r.handlers[kind] = handler
}

// Lookup returns the handler registered for kind.
func (r *Registry) Lookup(kind wire.PayloadKind) (Handler, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[kind]
	if !ok {
		return nil, rpcerr.Wrap(rpcerr.CategoryScheduling, fmt.Errorf("command: registry: kind %d: %w", kind, rpcerr.ErrUnknownCommand))
	}
	return h, nil
}
