package wire

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWriteReadFrameRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	payload := []byte("hello world")

	require.NoError(t, WriteFrame(&buf, payload))

	got, err := ReadFrame(&buf)
	require.NoError(t, err)
	require.Equal(t, payload, got)
}

func TestWriteFrameTooLarge(t *testing.T) {
	var buf bytes.Buffer
	err := WriteFrame(&buf, make([]byte, MaxFrameLength+1))
	require.Error(t, err)
}

func TestReadFrameEOFOnCleanClose(t *testing.T) {
	var buf bytes.Buffer
	_, err := ReadFrame(&buf)
	require.ErrorIs(t, err, io.EOF)
}

func TestReadFrameTruncated(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteFrame(&buf, []byte("abc")))
	truncated := buf.Bytes()[:len(buf.Bytes())-1]
	_, err := ReadFrame(bytes.NewReader(truncated))
	require.Error(t, err)
}

func TestLooksLikeHTTPRequest(t *testing.T) {
	require.True(t, LooksLikeHTTPRequest([]byte("GET / HTTP/1.1\r\n")))
	require.True(t, LooksLikeHTTPRequest([]byte("POST /rpc HTTP/1.1")))
	require.False(t, LooksLikeHTTPRequest([]byte{0x00, 0x00, 0x00, 0x05, 0xde, 0xad}))
}
