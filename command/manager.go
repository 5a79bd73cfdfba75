package command

import (
	"container/heap"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shmocz/ra2yrcpp-sub000/internal/obslog"
	"github.com/shmocz/ra2yrcpp-sub000/internal/rpcerr"
	"github.com/shmocz/ra2yrcpp-sub000/wire"
)

// Manager is the single-worker command scheduler: it owns the priority
// queue, the per-connection result queues, and the goroutine that drains
// both.
type Manager struct {
	log      *obslog.Logger
	registry *Registry
	deps     Deps

	nextQueueID atomic.Uint64
	seq         atomic.Uint64
	taskID      atomic.Uint64

	mu       sync.Mutex
	cond     *sync.Cond
	pq       commandHeap
	queues   map[uint64]*resultQueue
	running  bool
	stopping bool

	stopped chan struct{}
}

// NewManager constructs a Manager bound to registry and deps. Call Run in
// its own goroutine to start the worker.
func NewManager(registry *Registry, deps Deps, log *obslog.Logger) *Manager {
	m := &Manager{
		log:      log,
		registry: registry,
		deps:     deps,
		queues:   make(map[uint64]*resultQueue),
		stopped:  make(chan struct{}),
	}
	m.cond = sync.NewCond(&m.mu)
	return m
}

// AllocateQueueID reserves a new queue-id. It does not create the queue
// entry itself; callers must follow up with CreateQueueSync before routing
// any user command to the id, and the transport does so immediately after
// accept, before it starts reading further bytes from the connection.
func (m *Manager) AllocateQueueID() uint64 {
	return m.nextQueueID.Add(1)
}

func (m *Manager) pushLocked(c *scheduledCommand) {
	c.seq = m.seq.Add(1)
	heap.Push(&m.pq, c)
	m.cond.Signal()
}

// CreateQueueSync schedules the create-queue built-in and blocks until the
// worker has actually installed the queue, so that a subsequent
// EnqueueUser for the same id is guaranteed to see it.
func (m *Manager) CreateQueueSync(queueID uint64) {
	done := make(chan struct{})
	m.mu.Lock()
	m.pushLocked(&scheduledCommand{prio: priorityQueueControl, builtin: builtinCreateQueue, queueID: queueID, done: done})
	m.mu.Unlock()
	<-done
}

// DestroyQueueSync schedules the destroy-queue built-in and blocks until
// it has run, dropping any results still queued for it. If the worker has
// already stopped (Run closes every queue on shutdown), it returns at once.
func (m *Manager) DestroyQueueSync(queueID uint64) {
	done := make(chan struct{})
	m.mu.Lock()
	m.pushLocked(&scheduledCommand{prio: priorityQueueControl, builtin: builtinDestroyQueue, queueID: queueID, done: done})
	m.mu.Unlock()
	select {
	case <-done:
	case <-m.stopped:
	}
}

// Shutdown schedules the shutdown built-in; once the worker reaches it, no
// further work (even higher-priority work queued after it) runs. Run
// returns once draining completes.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	m.pushLocked(&scheduledCommand{prio: priorityShutdown, builtin: builtinShutdown})
	m.mu.Unlock()
}

// EnqueueUser validates that queueID exists and schedules a user command,
// returning the task-id the eventual CommandResult will carry.
func (m *Manager) EnqueueUser(queueID uint64, kind wire.PayloadKind, payload []byte) (uint64, error) {
	m.mu.Lock()
	if _, ok := m.queues[queueID]; !ok {
		m.mu.Unlock()
		return 0, rpcerr.Wrap(rpcerr.CategoryScheduling, fmt.Errorf("command: enqueue: %w", rpcerr.ErrQueueNotFound))
	}
	taskID := m.taskID.Add(1)
	m.pushLocked(&scheduledCommand{
		prio:        priorityUser,
		queueID:     queueID,
		taskID:      taskID,
		payloadKind: kind,
		payload:     payload,
	})
	m.mu.Unlock()
	return taskID, nil
}

// FlushResults blocks up to timeout waiting for at least one result on
// queueID, then returns up to maxCount of them. A timeout of zero never
// blocks; DefaultFlushTimeout blocks using the queue's own built-in
// partial-timeout default instead of an explicit duration.
func (m *Manager) FlushResults(queueID uint64, maxCount int, timeout time.Duration) ([]wire.CommandResult, error) {
	m.mu.Lock()
	q, ok := m.queues[queueID]
	m.mu.Unlock()
	if !ok {
		return nil, rpcerr.Wrap(rpcerr.CategoryScheduling, fmt.Errorf("command: flush: %w", rpcerr.ErrQueueNotFound))
	}
	return q.flush(maxCount, timeout)
}

// Complete delivers ctx's current result into its owning queue. Handlers
// that called ctx.Pending() must arrange for this to be called later,
// typically from the callback bridge's drain callback, exactly once.
func (m *Manager) Complete(ctx *Context) {
	m.pushResult(ctx.QueueID, ctx.toResult())
}

func (m *Manager) pushResult(queueID uint64, result wire.CommandResult) {
	m.mu.Lock()
	q, ok := m.queues[queueID]
	m.mu.Unlock()
	if !ok {
		// Spec: a missing queue at result-push time discards the result
		// silently; the client already disconnected.
		return
	}
	q.push(result)
}

// Run drains the priority queue until the shutdown built-in is reached,
// then closes every remaining queue and returns. Intended to be run in its
// own goroutine; the runtime composition root joins it the way the
// original manager's destructor joins its worker thread.
func (m *Manager) Run() {
	m.mu.Lock()
	m.running = true
	m.mu.Unlock()
	defer close(m.stopped)

	for {
		m.mu.Lock()
		for m.pq.Len() == 0 {
			m.cond.Wait()
		}
		c := heap.Pop(&m.pq).(*scheduledCommand)
		m.mu.Unlock()

		if c.builtin == builtinShutdown {
			m.drainQueues()
			return
		}
		m.dispatch(c)
	}
}

func (m *Manager) drainQueues() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, q := range m.queues {
		q.close()
		delete(m.queues, id)
	}
}

func (m *Manager) dispatch(c *scheduledCommand) {
	switch c.builtin {
	case builtinCreateQueue:
		m.mu.Lock()
		m.queues[c.queueID] = newResultQueue(c.queueID)
		m.mu.Unlock()
		close(c.done)
		return
	case builtinDestroyQueue:
		m.mu.Lock()
		q, ok := m.queues[c.queueID]
		delete(m.queues, c.queueID)
		m.mu.Unlock()
		if ok {
			q.close()
		}
		close(c.done)
		return
	}

	m.invokeUser(c)
}

// invokeUser runs a user command's handler, translating a panic (this
// runtime's analogue of the original's try/catch around handler
// invocation) and a missing-handler lookup into an error result, and
// pushing the result unless the handler deferred completion.
func (m *Manager) invokeUser(c *scheduledCommand) {
	ctx := &Context{
		QueueID: c.queueID,
		TaskID:  c.taskID,
		Kind:    c.payloadKind,
		Payload: c.payload,
		Deps:    m.deps,
	}

	handler, err := m.registry.Lookup(c.payloadKind)
	if err != nil {
		ctx.Fail(err.Error())
		m.pushResult(c.queueID, ctx.toResult())
		return
	}

	func() {
		defer func() {
			if r := recover(); r != nil {
				if m.log != nil {
					m.log.Err().Interface("panic", r).Uint64("task_id", c.taskID).Log("command: handler panicked")
				}
				ctx.Fail(fmt.Sprintf("handler panicked: %v", r))
			}
		}()
		if err := handler(ctx); err != nil {
			ctx.Fail(err.Error())
		}
	}()

	if ctx.IsPending() {
		return
	}
	m.pushResult(c.queueID, ctx.toResult())
}

// Wait blocks until Run has returned (i.e. the shutdown built-in drained).
func (m *Manager) Wait() {
	<-m.stopped
}
