// Package bridge implements the callback bridge (B): the set of bundled
// callbacks the runtime installs onto fixed host target addresses, the
// per-frame snapshot pipeline, the deferred-command drain, and the
// shutdown teardown sequence. Parsing host memory into a concrete game
// state layout is out of scope (the layout is part of the external game
// schema); this package treats per-frame state as an opaque byte slice
// produced by a caller-supplied StateExtractor.
package bridge

import (
	"io"
	"sync"

	"github.com/shmocz/ra2yrcpp-sub000/hook"
	"github.com/shmocz/ra2yrcpp-sub000/internal/obslog"
	"github.com/shmocz/ra2yrcpp-sub000/storage"
)

// snapshotRingCapacity bounds the in-memory per-frame history; must stay a
// power of two (see ring.go).
const snapshotRingCapacity = 256

// gameDataKey is the storage key under which a pointer to the registered
// callback roster is published. Shutdown deregisters from the bridge's own
// roster field and then deletes this key.
const gameDataKey = "game_data"

// Snapshot is one frame's opaque host-state capture.
type Snapshot struct {
	FrameCount uint64
	Data       []byte
}

// StateExtractor parses host memory reachable from regs into an opaque
// byte slice (ordinarily a protobuf-encoded game-state message); supplied
// by the binary embedding this runtime, since the concrete layout is out
// of scope here.
type StateExtractor func(regs *hook.Registers) []byte

// registeredCallback is the game_data roster entry for one installed
// default callback.
type registeredCallback struct {
	Name   string
	Target uintptr
}

// Bridge owns the default callbacks, the snapshot ring and optional
// gzip-streamed record file, and the deferred-command drain queue.
type Bridge struct {
	log    *obslog.Logger
	engine *hook.Engine
	store  *storage.Store

	extractor StateExtractor

	mu       sync.Mutex
	frame    uint64
	ring     *ring[Snapshot]
	roster   []registeredCallback
	recorder *asyncRecordWriter
	rawOut   *asyncRecordWriter

	deferMu sync.Mutex
	pending []func()
}

// New constructs a Bridge. recordOut and rawOut, if non-nil, each get a
// background goroutine that gzip-compresses and writes snapshots/raw
// traffic to the given stream, so PerFrameCallback/RawTrafficCallback
// never block the hijacked host thread on disk I/O.
func New(log *obslog.Logger, engine *hook.Engine, store *storage.Store, extractor StateExtractor, recordOut, rawOut io.Writer) *Bridge {
	b := &Bridge{
		log:       log,
		engine:    engine,
		store:     store,
		extractor: extractor,
		ring:      newRing[Snapshot](snapshotRingCapacity),
	}
	if recordOut != nil {
		b.recorder = newAsyncRecordWriter(namedOrNil(log, "record"), recordOut)
	}
	if rawOut != nil {
		b.rawOut = newAsyncRecordWriter(namedOrNil(log, "raw-traffic"), rawOut)
	}
	_ = store.Set(gameDataKey, &b.roster)
	return b
}

// namedOrNil is obslog.Named guarded against a nil parent logger, which
// tests construct directly to exercise the bridge without a real logging
// backend.
func namedOrNil(log *obslog.Logger, component string) *obslog.Logger {
	if log == nil {
		return nil
	}
	return obslog.Named(log, component)
}

// InstallDefaultCallback installs name at target via the hook engine and
// records it in the game_data roster, so shutdown can deregister it in
// reverse order later.
func (b *Bridge) InstallDefaultCallback(name string, target uintptr, prefixLength int, fn hook.CallbackFunc, exclude []uintptr) error {
	if err := b.engine.Install(name, target, prefixLength, exclude); err != nil {
		return err
	}
	if err := b.engine.AddCallback(target, name, fn); err != nil {
		return err
	}
	b.mu.Lock()
	b.roster = append(b.roster, registeredCallback{Name: name, Target: target})
	b.mu.Unlock()
	return nil
}

// PerFrameCallback is the default per-frame hook callback: it extracts the
// current host state, records it as the latest snapshot under S, appends
// it to the in-memory ring, and streams it to the optional record file.
func (b *Bridge) PerFrameCallback(regs *hook.Registers) {
	var data []byte
	if b.extractor != nil {
		data = b.extractor(regs)
	}

	b.mu.Lock()
	b.frame++
	snap := Snapshot{FrameCount: b.frame, Data: data}
	b.ring.Push(snap)
	recorder := b.recorder
	b.mu.Unlock()

	if err := b.store.Set(gameDataKey+".snapshot", snap); err != nil && b.log != nil {
		b.log.Err().Err(err).Log("bridge: failed to publish latest snapshot")
	}

	if recorder != nil {
		recorder.push(data)
	}
}

// RawTrafficCallback records a raw send/recv buffer observed at the host's
// tunnel boundary, when a raw-traffic output stream is configured. Safe to
// call with no output configured (it becomes a no-op).
func (b *Bridge) RawTrafficCallback(buf []byte) {
	b.mu.Lock()
	rawOut := b.rawOut
	b.mu.Unlock()
	if rawOut == nil {
		return
	}
	// buf is typically a reused I/O buffer; the write now happens on a
	// background goroutine, so it must be copied before handing it off.
	cp := append([]byte(nil), buf...)
	rawOut.push(cp)
}

// CurrentFrame returns the frame counter of the most recent per-frame
// callback invocation.
func (b *Bridge) CurrentFrame() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.frame
}

// Snapshots returns every snapshot still held in the ring, oldest first.
func (b *Bridge) Snapshots() []Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.ring.Snapshot()
}

// Defer enqueues fn for execution on the next DrainCallback invocation,
// implementing command.Deps.Defer's contract: fn runs on the hijacked
// game-loop thread, not the command worker.
func (b *Bridge) Defer(fn func()) {
	b.deferMu.Lock()
	b.pending = append(b.pending, fn)
	b.deferMu.Unlock()
}

// DrainCallback is the designated "game-loop command drain" callback: it
// pops every deferred closure queued since the last call and runs each one
// synchronously, on whatever thread invokes DrainCallback (the hijacked
// game-loop thread, in production).
func (b *Bridge) DrainCallback(_ *hook.Registers) {
	b.deferMu.Lock()
	work := b.pending
	b.pending = nil
	b.deferMu.Unlock()

	for _, fn := range work {
		func() {
			defer func() {
				if r := recover(); r != nil && b.log != nil {
					b.log.Err().Interface("panic", r).Log("bridge: deferred command panicked")
				}
			}()
			fn()
		}()
	}
}

// Shutdown deregisters every default callback in the reverse of its
// installation order, flushes output streams, and clears the game_data
// entry.
func (b *Bridge) Shutdown(exclude []uintptr) {
	b.mu.Lock()
	roster := append([]registeredCallback(nil), b.roster...)
	b.roster = nil
	recorder, rawOut := b.recorder, b.rawOut
	b.recorder, b.rawOut = nil, nil
	b.mu.Unlock()

	for i := len(roster) - 1; i >= 0; i-- {
		rc := roster[i]
		if err := b.engine.RemoveCallback(rc.Target, rc.Name); err != nil && b.log != nil {
			b.log.Err().Err(err).Str("name", rc.Name).Log("bridge: remove callback failed during shutdown")
		}
		if err := b.engine.Uninstall(rc.Target, exclude); err != nil && b.log != nil {
			b.log.Err().Err(err).Str("name", rc.Name).Log("bridge: uninstall failed during shutdown")
		}
	}

	if recorder != nil {
		_ = recorder.close()
	}
	if rawOut != nil {
		_ = rawOut.close()
	}

	_ = b.store.Delete(gameDataKey)
}
