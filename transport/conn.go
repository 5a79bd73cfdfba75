package transport

import (
	"bufio"
	"errors"
	"io"
	"net"
	"sync"

	"github.com/shmocz/ra2yrcpp-sub000/wire"
)

// handleConn owns one accepted connection end to end: queue allocation,
// frame decoding, dispatch, and response writing. It runs entirely on its
// own goroutine; the only state it shares with the rest of the server is
// the command manager, which is already safe for concurrent use.
func (s *Server) handleConn(conn net.Conn, httpFallback bool) {
	defer s.releaseClient()
	defer conn.Close()

	queueID := s.manager.AllocateQueueID()
	s.manager.CreateQueueSync(queueID)
	defer s.manager.DestroyQueueSync(queueID)

	reader := bufio.NewReader(conn)

	if httpFallback {
		peek, err := reader.Peek(8)
		if err == nil && wire.LooksLikeHTTPRequest(peek) {
			s.serveHTTP(conn, reader, &queueID)
			return
		}
	}

	var writeMu sync.Mutex
	first := true

	for {
		payload, err := wire.ReadFrame(reader)
		if err != nil {
			if !errors.Is(err, io.EOF) && s.log != nil {
				s.log.Warn().Err(err).Log("transport: frame read failed, closing connection")
			}
			return
		}

		var cmd wire.Command
		if err := cmd.Unmarshal(payload); err != nil {
			s.writeResponse(conn, &writeMu, errorResponse(err))
			return
		}

		resp := s.dispatch(&queueID, cmd, first)
		first = false
		if err := s.writeResponse(conn, &writeMu, resp); err != nil {
			return
		}

		if cmd.CommandType == wire.CommandTypeShutdown {
			return
		}
	}
}

// writeResponse serializes and frames resp, serialized against writeMu so
// a connection's writes never interleave even if, in the future, more
// than one goroutine ever wrote to it.
func (s *Server) writeResponse(conn net.Conn, writeMu *sync.Mutex, resp wire.Response) error {
	writeMu.Lock()
	defer writeMu.Unlock()
	if err := wire.WriteFrame(conn, resp.Marshal()); err != nil {
		if s.log != nil {
			s.log.Warn().Err(err).Log("transport: frame write failed, closing connection")
		}
		return err
	}
	return nil
}
