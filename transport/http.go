package transport

import (
	"bufio"
	"fmt"
	"io"
	"net"
	"net/http"

	"github.com/shmocz/ra2yrcpp-sub000/wire"
)

// serveHTTP implements the HTTP/JSON fallback framing: each request body is
// JSON-decoded into a Command with wire.CommandFromJSON, dispatched the
// same way a binary frame would be, and the Response is JSON-encoded back
// as the body. net/http.ReadRequest does the header/Content-Length
// parsing; there is no full HTTP server framework anywhere in the
// retrieved pack, so this is the one place this module leans on the
// standard library for transport framing (see DESIGN.md).
func (s *Server) serveHTTP(conn net.Conn, reader *bufio.Reader, queueID *uint64) {
	first := true
	for {
		req, err := http.ReadRequest(reader)
		if err != nil {
			return
		}

		body, err := io.ReadAll(req.Body)
		req.Body.Close()

		var resp wire.Response
		var cmd wire.Command
		if err != nil {
			resp = errorResponse(err)
		} else if cmd, err = wire.CommandFromJSON(body); err != nil {
			resp = errorResponse(err)
		} else {
			resp = s.dispatch(queueID, cmd, first)
			first = false
		}

		respBody, err := wire.ResponseToJSON(resp)
		if err != nil {
			respBody = []byte(`{"code":"ERROR","body":{"kind":"TextResponse","value":{"message":"internal encode failure"}}}`)
		}

		if err := writeHTTPResponse(conn, respBody); err != nil {
			return
		}

		if cmd.CommandType == wire.CommandTypeShutdown {
			return
		}
		if req.Close {
			return
		}
	}
}

func writeHTTPResponse(w io.Writer, body []byte) error {
	_, err := fmt.Fprintf(w,
		"HTTP/1.1 200 OK\r\nContent-Type: application/json\r\nContent-Length: %d\r\nConnection: keep-alive\r\n\r\n%s",
		len(body), body)
	return err
}
