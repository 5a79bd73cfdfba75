package command

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/joeycumines/go-longpoll"
	"github.com/shmocz/ra2yrcpp-sub000/internal/rpcerr"
	"github.com/shmocz/ra2yrcpp-sub000/wire"
)

// resultQueueCapacity bounds how many completed results a single
// connection's queue buffers before push starts dropping the oldest one,
// so a client that never polls can't grow the queue without bound.
const resultQueueCapacity = 4096

// DefaultFlushTimeout is the sentinel flush/poll timeout distinct from
// zero: zero always means "return immediately, never block" (see
// resultQueue.flush), while DefaultFlushTimeout blocks using go-longpoll's
// own built-in partial-timeout default instead of a caller-supplied
// duration.
const DefaultFlushTimeout time.Duration = -1

// resultQueue is one client connection's FIFO of completed results,
// drained via github.com/joeycumines/go-longpoll's Channel helper: a
// blocking receive that returns up to maxCount values bounded by a
// partial timeout, in place of a hand-rolled condition variable.
type resultQueue struct {
	id uint64
	ch chan wire.CommandResult

	mu     sync.Mutex
	closed bool
}

func newResultQueue(id uint64) *resultQueue {
	return &resultQueue{id: id, ch: make(chan wire.CommandResult, resultQueueCapacity)}
}

// push appends r, discarding it if the queue has already been destroyed
// (the client disconnected before its result arrived) or, failing that,
// dropping the oldest buffered result to make room.
func (q *resultQueue) push(r wire.CommandResult) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	select {
	case q.ch <- r:
		return
	default:
	}
	select {
	case <-q.ch:
	default:
	}
	select {
	case q.ch <- r:
	default:
	}
}

// close marks the queue destroyed, dropping any results still buffered
// (they are not deliverable to any future flush) and waking any in-flight
// flush so it observes channel closure.
func (q *resultQueue) close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.closed = true
drain:
	for {
		select {
		case <-q.ch:
		default:
			break drain
		}
	}
	close(q.ch)
}

// flush returns up to maxCount results. A timeout of exactly zero never
// blocks, returning whatever is already buffered (possibly none). A
// negative timeout (DefaultFlushTimeout) blocks using go-longpoll's own
// partial-timeout default; any other positive timeout bounds the wait
// explicitly. If the queue is destroyed while flush has collected no
// results yet, flush fails with a queue-gone error; results already
// collected before destruction are still returned successfully.
func (q *resultQueue) flush(maxCount int, timeout time.Duration) ([]wire.CommandResult, error) {
	if maxCount <= 0 {
		maxCount = 1
	}

	if timeout == 0 {
		return q.drainImmediate(maxCount)
	}

	cfg := &longpoll.ChannelConfig{
		MaxSize: maxCount,
		MinSize: -1, // may return having received zero values once the partial timeout elapses
	}
	if timeout > 0 {
		cfg.PartialTimeout = timeout
	}

	var out []wire.CommandResult
	err := longpoll.Channel(context.Background(), cfg, q.ch, func(r wire.CommandResult) error {
		out = append(out, r)
		return nil
	})
	if err != nil {
		if errors.Is(err, io.EOF) {
			if len(out) == 0 {
				return nil, rpcerr.Wrap(rpcerr.CategoryScheduling, rpcerr.ErrQueueGone)
			}
			return out, nil
		}
		return nil, rpcerr.Wrap(rpcerr.CategoryScheduling, err)
	}
	return out, nil
}

// drainImmediate returns whatever is already buffered, up to maxCount,
// without ever blocking.
func (q *resultQueue) drainImmediate(maxCount int) ([]wire.CommandResult, error) {
	var out []wire.CommandResult
	for len(out) < maxCount {
		select {
		case r, ok := <-q.ch:
			if !ok {
				if len(out) == 0 {
					return nil, rpcerr.Wrap(rpcerr.CategoryScheduling, rpcerr.ErrQueueGone)
				}
				return out, nil
			}
			out = append(out, r)
		default:
			return out, nil
		}
	}
	return out, nil
}
