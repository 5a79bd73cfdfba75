package command

import (
	"container/heap"

	"github.com/shmocz/ra2yrcpp-sub000/wire"
)

// priority orders scheduledCommand entries; lower values run first: a
// pending shutdown always drains ahead of queue control, which always
// drains ahead of user commands.
type priority int

const (
	priorityShutdown priority = iota
	priorityQueueControl
	priorityUser
)

// builtinKind distinguishes the built-in control commands from a
// zero-value user command.
type builtinKind int

const (
	builtinNone builtinKind = iota
	builtinCreateQueue
	builtinDestroyQueue
	builtinShutdown
)

// scheduledCommand is one entry in the worker's priority queue.
type scheduledCommand struct {
	prio    priority
	seq     uint64 // tie-break: FIFO within equal priority
	builtin builtinKind

	queueID     uint64
	taskID      uint64
	payloadKind wire.PayloadKind
	payload     []byte

	// done, if non-nil, is closed by the worker once this entry (built-in
	// only) has finished executing, letting the submitter block until its
	// effect (e.g. queue creation) is visible.
	done chan struct{}
}

// commandHeap implements container/heap.Interface, ordering by priority
// then by sequence number, the Go-idiomatic equivalent of the
// priority_queue<Command*, ..., QueueCompare> used to drive the original
// single worker thread.
type commandHeap []*scheduledCommand

func (h commandHeap) Len() int { return len(h) }

func (h commandHeap) Less(i, j int) bool {
	if h[i].prio != h[j].prio {
		return h[i].prio < h[j].prio
	}
	return h[i].seq < h[j].seq
}

func (h commandHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *commandHeap) Push(x any) {
	*h = append(*h, x.(*scheduledCommand))
}

func (h *commandHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return item
}

var _ heap.Interface = (*commandHeap)(nil)
