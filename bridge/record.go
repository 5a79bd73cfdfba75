package bridge

import (
	"compress/gzip"
	"io"

	"github.com/shmocz/ra2yrcpp-sub000/internal/obslog"
	"github.com/shmocz/ra2yrcpp-sub000/wire"
)

// RecordWriter appends length-prefixed snapshots to a gzip-compressed
// stream: no header, no index, no trailer. compress/gzip is the standard
// library's streaming compressor; nothing in the retrieved pack supplies
// one, so this is the one place this package reaches for it directly (see
// DESIGN.md).
type RecordWriter struct {
	gz *gzip.Writer
}

// NewRecordWriter wraps w with a gzip stream ready for successive Append
// calls.
func NewRecordWriter(w io.Writer) *RecordWriter {
	return &RecordWriter{gz: gzip.NewWriter(w)}
}

// Append writes one length-prefixed record. Callers are responsible for
// serializing their own snapshot/packet bytes beforehand.
func (r *RecordWriter) Append(payload []byte) error {
	return wire.WriteFrame(r.gz, payload)
}

// Flush pushes any buffered gzip output to the underlying writer without
// closing the stream, so a partially-written record file is still
// readable by RecordReader up to the last flushed record.
func (r *RecordWriter) Flush() error {
	return r.gz.Flush()
}

// Close finalizes the gzip stream. It does not close the underlying
// io.Writer.
func (r *RecordWriter) Close() error {
	return r.gz.Close()
}

// RecordReader reads the records RecordWriter produces, in the order they
// were appended.
type RecordReader struct {
	gz *gzip.Reader
}

// NewRecordReader opens a gzip-compressed record stream for reading.
func NewRecordReader(r io.Reader) (*RecordReader, error) {
	gz, err := gzip.NewReader(r)
	if err != nil {
		return nil, err
	}
	return &RecordReader{gz: gz}, nil
}

// Next returns the next record, or io.EOF once the stream is exhausted.
func (r *RecordReader) Next() ([]byte, error) {
	return wire.ReadFrame(r.gz)
}

func (r *RecordReader) Close() error {
	return r.gz.Close()
}

// asyncRecordBuffer bounds how many unwritten snapshots an asyncRecordWriter
// queues before it starts dropping the oldest one.
const asyncRecordBuffer = 64

// asyncRecordWriter offloads RecordWriter.Append calls (gzip compression
// plus the underlying disk write) onto a single background goroutine per
// output stream, so the per-frame and raw-traffic callbacks never block
// the hijacked host thread on I/O. A full buffer drops the oldest
// unwritten snapshot and logs a warning instead of blocking the push.
type asyncRecordWriter struct {
	log *obslog.Logger
	rw  *RecordWriter

	ch   chan []byte
	done chan struct{}
}

func newAsyncRecordWriter(log *obslog.Logger, w io.Writer) *asyncRecordWriter {
	a := &asyncRecordWriter{
		log:  log,
		rw:   NewRecordWriter(w),
		ch:   make(chan []byte, asyncRecordBuffer),
		done: make(chan struct{}),
	}
	go a.run()
	return a
}

func (a *asyncRecordWriter) run() {
	defer close(a.done)
	for payload := range a.ch {
		if err := a.rw.Append(payload); err != nil && a.log != nil {
			a.log.Err().Err(err).Log("bridge: async record append failed")
		}
	}
}

// push enqueues payload for the background writer, dropping the oldest
// still-queued payload to make room if the buffer is full rather than
// blocking the caller.
func (a *asyncRecordWriter) push(payload []byte) {
	select {
	case a.ch <- payload:
		return
	default:
	}
	select {
	case <-a.ch:
		if a.log != nil {
			a.log.Warn().Log("bridge: record writer backpressure, dropped oldest snapshot")
		}
	default:
	}
	select {
	case a.ch <- payload:
	default:
	}
}

// close stops accepting new writes, waits for the background goroutine to
// drain whatever is already buffered, and finalizes the underlying gzip
// stream.
func (a *asyncRecordWriter) close() error {
	close(a.ch)
	<-a.done
	return a.rw.Close()
}
