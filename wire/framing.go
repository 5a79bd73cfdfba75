package wire

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/shmocz/ra2yrcpp-sub000/internal/rpcerr"
)

// MaxFrameLength bounds a single frame's payload size. Chosen generously
// for snapshot-carrying responses while still catching a garbled length
// prefix before it causes a multi-gigabyte allocation.
const MaxFrameLength = 64 << 20

// WriteFrame writes a 32-bit little-endian length prefix followed by
// payload to w.
func WriteFrame(w io.Writer, payload []byte) error {
	if len(payload) > MaxFrameLength {
		return rpcerr.Wrap(rpcerr.CategoryProtocol, fmt.Errorf("wire: frame of %d bytes exceeds maximum %d: %w", len(payload), MaxFrameLength, rpcerr.ErrFrameTooLarge))
	}
	var hdr [4]byte
	binary.LittleEndian.PutUint32(hdr[:], uint32(len(payload)))
	if _, err := w.Write(hdr[:]); err != nil {
		return rpcerr.Wrap(rpcerr.CategoryTransport, err)
	}
	if _, err := w.Write(payload); err != nil {
		return rpcerr.Wrap(rpcerr.CategoryTransport, err)
	}
	return nil
}

// ReadFrame reads one length-prefixed frame from r. io.EOF is returned
// unwrapped when the peer closes cleanly before any bytes of a new frame
// arrive; any other failure (including a truncated frame) is a transport
// or protocol error.
func ReadFrame(r io.Reader) ([]byte, error) {
	var hdr [4]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		if err == io.EOF {
			return nil, io.EOF
		}
		return nil, rpcerr.Wrap(rpcerr.CategoryTransport, err)
	}
	n := binary.LittleEndian.Uint32(hdr[:])
	if n > MaxFrameLength {
		return nil, rpcerr.Wrap(rpcerr.CategoryProtocol, fmt.Errorf("wire: frame of %d bytes exceeds maximum %d: %w", n, MaxFrameLength, rpcerr.ErrFrameTooLarge))
	}
	payload := make([]byte, n)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, rpcerr.Wrap(rpcerr.CategoryTransport, err)
	}
	return payload, nil
}

// LooksLikeHTTPRequest reports whether the leading bytes of a frame look
// like the start of an HTTP/1.x request line, the signal the transport
// uses to switch a connection into the HTTP/JSON fallback framing instead
// of length-prefixed binary framing.
func LooksLikeHTTPRequest(peek []byte) bool {
	methods := [][]byte{
		[]byte("GET "), []byte("POST "), []byte("PUT "),
		[]byte("DELETE "), []byte("HEAD "), []byte("OPTIONS "),
	}
	for _, m := range methods {
		if len(peek) >= len(m) && string(peek[:len(m)]) == string(m) {
			return true
		}
	}
	return false
}
