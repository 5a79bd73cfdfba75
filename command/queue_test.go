package command

import (
	"testing"
	"time"

	"github.com/shmocz/ra2yrcpp-sub000/wire"
	"github.com/stretchr/testify/require"
)

func TestResultQueueFlushZeroTimeoutNeverBlocks(t *testing.T) {
	q := newResultQueue(1)

	start := time.Now()
	out, err := q.flush(10, 0)
	elapsed := time.Since(start)

	require.NoError(t, err)
	require.Empty(t, out)
	require.Less(t, elapsed, 25*time.Millisecond)
}

func TestResultQueueFlushZeroTimeoutReturnsBuffered(t *testing.T) {
	q := newResultQueue(1)
	q.push(wire.CommandResult{CommandID: 1})
	q.push(wire.CommandResult{CommandID: 2})

	out, err := q.flush(10, 0)
	require.NoError(t, err)
	require.Len(t, out, 2)
}

func TestResultQueueFlushExplicitTimeoutWaitsForPush(t *testing.T) {
	q := newResultQueue(1)

	go func() {
		time.Sleep(10 * time.Millisecond)
		q.push(wire.CommandResult{CommandID: 7})
	}()

	out, err := q.flush(10, time.Second)
	require.NoError(t, err)
	require.Len(t, out, 1)
	require.EqualValues(t, 7, out[0].CommandID)
}

func TestResultQueueFlushExplicitTimeoutExpiresEmpty(t *testing.T) {
	q := newResultQueue(1)

	start := time.Now()
	out, err := q.flush(10, 20*time.Millisecond)
	elapsed := time.Since(start)

	require.NoError(t, err)
	require.Empty(t, out)
	require.GreaterOrEqual(t, elapsed, 20*time.Millisecond)
}

func TestResultQueueFlushDefaultTimeoutUsesLongpollDefault(t *testing.T) {
	q := newResultQueue(1)

	go func() {
		time.Sleep(5 * time.Millisecond)
		q.push(wire.CommandResult{CommandID: 3})
	}()

	out, err := q.flush(10, DefaultFlushTimeout)
	require.NoError(t, err)
	require.Len(t, out, 1)
}

func TestResultQueuePushDropsOldestWhenFull(t *testing.T) {
	q := newResultQueue(1)
	for i := 0; i < resultQueueCapacity+1; i++ {
		q.push(wire.CommandResult{CommandID: uint64(i)})
	}

	out, err := q.flush(resultQueueCapacity+1, 0)
	require.NoError(t, err)
	require.Len(t, out, resultQueueCapacity)
	require.EqualValues(t, 1, out[0].CommandID)
}

func TestResultQueuePushAfterCloseIsNoop(t *testing.T) {
	q := newResultQueue(1)
	q.close()
	q.push(wire.CommandResult{CommandID: 1})

	_, err := q.flush(10, 0)
	require.Error(t, err)
}

func TestResultQueueFlushFailsWhenClosedEmpty(t *testing.T) {
	q := newResultQueue(1)
	q.close()

	_, err := q.flush(10, time.Second)
	require.Error(t, err)
}

func TestResultQueueFlushZeroTimeoutReturnsSingleBuffered(t *testing.T) {
	q := newResultQueue(1)
	q.push(wire.CommandResult{CommandID: 1})

	out, err := q.flush(10, 0)
	require.NoError(t, err)
	require.Len(t, out, 1)
}

func TestResultQueueCloseDropsBufferedResults(t *testing.T) {
	q := newResultQueue(1)
	q.push(wire.CommandResult{CommandID: 1})
	q.close()

	_, err := q.flush(10, 0)
	require.Error(t, err)
}
