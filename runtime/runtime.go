// Package runtime is the composition root: it wires storage, the hook
// engine, the command scheduler and its handler registry, the callback
// bridge, and the transport listeners into a single running instance, and
// implements command.Deps so handlers can reach back into all of them.
package runtime

import (
	"fmt"
	"io"
	"os"

	"github.com/shmocz/ra2yrcpp-sub000/bridge"
	"github.com/shmocz/ra2yrcpp-sub000/command"
	"github.com/shmocz/ra2yrcpp-sub000/handlers"
	"github.com/shmocz/ra2yrcpp-sub000/hook"
	"github.com/shmocz/ra2yrcpp-sub000/internal/config"
	"github.com/shmocz/ra2yrcpp-sub000/internal/obslog"
	"github.com/shmocz/ra2yrcpp-sub000/storage"
	"github.com/shmocz/ra2yrcpp-sub000/transport"
	"golang.org/x/sync/errgroup"
)

// Runtime is the running instance: one per injected process. The zero
// value is not usable; construct with New.
type Runtime struct {
	log    *obslog.Logger
	cfg    config.Config
	store  *storage.Store
	engine *hook.Engine
	bridge *bridge.Bridge

	manager *command.Manager
	servers []*transport.Server

	snapshotFile *os.File

	group *errgroup.Group
}

// New constructs a Runtime from cfg, installing handlers.Register's
// handlers into a fresh command.Registry and building the snapshot
// persistence file, if cfg.SnapshotPath is set. extractor is supplied by
// the binary embedding this runtime; it may be nil (callbacks then record
// empty snapshots).
func New(cfg config.Config, extractor bridge.StateExtractor) (*Runtime, error) {
	log := obslog.New(obslog.Config{Level: cfg.LogLevel, JSON: cfg.LogJSON})

	rt := &Runtime{
		log:    log,
		cfg:    cfg,
		store:  storage.New(obslog.Named(log, "storage")),
		engine: hook.New(obslog.Named(log, "hook")),
	}

	var recordOut io.Writer
	if cfg.SnapshotPath != "" {
		f, err := os.Create(cfg.SnapshotPath)
		if err != nil {
			return nil, fmt.Errorf("runtime: open snapshot path %s: %w", cfg.SnapshotPath, err)
		}
		rt.snapshotFile = f
		recordOut = f
	}

	rt.bridge = bridge.New(obslog.Named(log, "bridge"), rt.engine, rt.store, extractor, recordOut, nil)

	registry := command.NewRegistry()
	handlers.Register(registry)
	rt.manager = command.NewManager(registry, rt, obslog.Named(log, "command"))

	return rt, nil
}

// Start launches the command worker and every configured transport
// listener, each on its own goroutine. It returns as soon as those
// goroutines are launched; it does not wait for a listener to start
// accepting, and a listener that fails to bind is only logged.
func (rt *Runtime) Start() error {
	rt.group = &errgroup.Group{}

	rt.group.Go(func() error {
		rt.manager.Run()
		return nil
	})

	listeners := rt.listenerConfigs()
	for _, lc := range listeners {
		srv, err := transport.NewServer(rt.cfg, rt.manager, obslog.Named(rt.log, "transport"))
		if err != nil {
			return fmt.Errorf("runtime: new server for %s: %w", lc.Address, err)
		}
		rt.servers = append(rt.servers, srv)

		addr, httpFallback := lc.Address, lc.HTTPFallback
		rt.group.Go(func() error {
			if err := srv.Serve(addr, httpFallback); err != nil {
				rt.log.Err().Err(err).Str("address", addr).Log("runtime: listener stopped")
			}
			return nil
		})
	}
	return nil
}

// listenerConfigs returns the distinct listener addresses to bind: the
// command address always, plus the poll address when it differs (per
// config.Config.Poll's doc comment, an empty Poll.Address shares the
// command listener instead of binding a second socket).
func (rt *Runtime) listenerConfigs() []config.ListenerConfig {
	out := []config.ListenerConfig{rt.cfg.Command}
	if rt.cfg.Poll.Address != "" && rt.cfg.Poll.Address != rt.cfg.Command.Address {
		out = append(out, rt.cfg.Poll)
	}
	return out
}

// Shutdown tears the runtime down in the reverse of Start's wiring order:
// default callbacks first (so the host stops calling into a runtime that's
// about to stop answering), then the transport listeners, then the
// scheduler (only if Start launched it), then storage.
func (rt *Runtime) Shutdown() {
	rt.bridge.Shutdown(nil)

	for _, srv := range rt.servers {
		srv.Stop()
	}

	if rt.group != nil {
		rt.manager.Shutdown()
		rt.manager.Wait()
		_ = rt.group.Wait()
	}

	if err := rt.store.Close(); err != nil && rt.log != nil {
		rt.log.Err().Err(err).Log("runtime: storage close failed")
	}
	if rt.snapshotFile != nil {
		_ = rt.snapshotFile.Close()
	}
}

// Bridge exposes the callback bridge so the embedding binary can install
// its default per-frame and drain callbacks at its chosen target
// addresses, which this package has no knowledge of.
func (rt *Runtime) Bridge() *bridge.Bridge {
	return rt.bridge
}

// The following methods implement command.Deps. Go goroutines do not map
// 1:1 onto OS threads, so this runtime has no meaningful "current thread"
// to add to a suspend exclusion list the way the original process's
// command-handling thread could exclude itself; every hook install and
// uninstall here suspends every other thread in the process instead.

func (rt *Runtime) Storage() *storage.Store {
	return rt.store
}

func (rt *Runtime) InstallHook(name string, target uintptr, prefixLength int) error {
	return rt.engine.Install(name, target, prefixLength, nil)
}

func (rt *Runtime) UninstallHook(target uintptr) error {
	return rt.engine.Uninstall(target, nil)
}

func (rt *Runtime) AddCallback(target uintptr, name string, fn hook.CallbackFunc) error {
	return rt.engine.AddCallback(target, name, fn)
}

func (rt *Runtime) RemoveCallback(target uintptr, name string) error {
	return rt.engine.RemoveCallback(target, name)
}

func (rt *Runtime) Defer(fn func()) {
	rt.bridge.Defer(fn)
}

func (rt *Runtime) Complete(ctx *command.Context) {
	rt.manager.Complete(ctx)
}

func (rt *Runtime) CurrentFrame() uint64 {
	return rt.bridge.CurrentFrame()
}
