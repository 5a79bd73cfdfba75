package transport

import (
	"time"

	"github.com/shmocz/ra2yrcpp-sub000/internal/rpcerr"
	"github.com/shmocz/ra2yrcpp-sub000/wire"
)

// blockingPollAttempts bounds how many short flush attempts dispatch makes
// while honoring a CLIENT_COMMAND's Blocking flag, so a handler that never
// completes (a bug, not a protocol condition) can't wedge the connection
// forever.
const blockingPollAttempts = 200

// defaultPollInterval is the per-attempt wait used when the server's
// configured flushPartialTimeout is non-positive (a misconfiguration),
// so the blocking loop still makes bounded-size sleeps instead of busy
// spinning.
const defaultPollInterval = 25 * time.Millisecond

// dispatch processes one parsed Command against the shared command
// manager, possibly rebinding *queueID (the GetSystemState pairing probe),
// and returns the Response to write back.
func (s *Server) dispatch(queueID *uint64, cmd wire.Command, first bool) wire.Response {
	switch cmd.CommandType {
	case wire.CommandTypeClientCommand:
		return s.dispatchClientCommand(queueID, cmd, first)
	case wire.CommandTypePoll:
		return s.dispatchPoll(cmd)
	case wire.CommandTypeShutdown:
		s.manager.Shutdown()
		s.beginShutdown()
		return okResponse(wire.PayloadKindTextResponse, wire.TextResponse{Message: "shutting down"})
	default:
		return errorResponse(rpcerr.ErrUnknownCommand)
	}
}

func (s *Server) dispatchClientCommand(queueID *uint64, cmd wire.Command, first bool) wire.Response {
	if first && cmd.Command.Kind == wire.PayloadKindGetSystemState {
		return s.dispatchPairing(queueID, cmd)
	}

	taskID, err := s.manager.EnqueueUser(*queueID, cmd.Command.Kind, cmd.Command.Value)
	if err != nil {
		return errorResponse(err)
	}

	if !cmd.Blocking {
		return okResponse(wire.PayloadKindRunCommandAck, wire.RunCommandAck{QueueID: *queueID, TaskID: taskID})
	}

	pollInterval := s.flushPartialTimeout
	if pollInterval <= 0 {
		pollInterval = defaultPollInterval
	}

	for attempt := 0; attempt < blockingPollAttempts; attempt++ {
		results, err := s.manager.FlushResults(*queueID, 16, pollInterval)
		if err != nil {
			return errorResponse(err)
		}
		for _, r := range results {
			if r.CommandID == taskID {
				return okResponse(wire.PayloadKindCommandResult, r)
			}
		}
	}
	return errorResponse(rpcerr.ErrQueueGone)
}

// dispatchPairing implements the dual-connection queue-binding probe: an
// incoming QueueID of zero means "allocate me a fresh queue" (the command
// connection), a nonzero QueueID means "attach me to that existing queue"
// (the poll connection), dropping the queue this accept loop speculatively
// created for it.
func (s *Server) dispatchPairing(queueID *uint64, cmd wire.Command) wire.Response {
	var req wire.GetSystemState
	if err := req.Unmarshal(cmd.Command.Value); err != nil {
		return errorResponse(rpcerr.Wrap(rpcerr.CategoryProtocol, rpcerr.ErrMalformedFrame))
	}

	if req.QueueID != 0 && req.QueueID != *queueID {
		s.manager.DestroyQueueSync(*queueID)
		*queueID = req.QueueID
	}

	return okResponse(wire.PayloadKindGetSystemState, wire.GetSystemState{QueueID: *queueID})
}

func (s *Server) dispatchPoll(cmd wire.Command) wire.Response {
	var req wire.PollRequest
	if err := req.Unmarshal(cmd.Command.Value); err != nil {
		return errorResponse(rpcerr.Wrap(rpcerr.CategoryProtocol, rpcerr.ErrMalformedFrame))
	}
	maxCount := int(req.MaxCount)
	if maxCount <= 0 {
		maxCount = s.flushMaxCount
	}
	// TimeoutMillis == 0 means "return immediately, never block" per the
	// wire contract; it is never reinterpreted as a server default.
	timeout := time.Duration(req.TimeoutMillis) * time.Millisecond

	results, err := s.manager.FlushResults(req.QueueID, maxCount, timeout)
	if err != nil {
		return errorResponse(err)
	}
	return okResponse(wire.PayloadKindPollResults, wire.PollResults{Results: results})
}

func okResponse(kind wire.PayloadKind, m wire.Marshaler) wire.Response {
	return wire.Response{Code: wire.ResponseCodeOK, Body: wire.Pack(kind, m)}
}

func errorResponse(err error) wire.Response {
	return wire.Response{
		Code: wire.ResponseCodeError,
		Body: wire.Pack(wire.PayloadKindTextResponse, wire.TextResponse{Message: err.Error()}),
	}
}
