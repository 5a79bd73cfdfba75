package bridge

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRecordWriterReaderRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	w := NewRecordWriter(&buf)

	records := [][]byte{[]byte("frame-one"), []byte("frame-two"), []byte("frame-three")}
	for _, r := range records {
		require.NoError(t, w.Append(r))
	}
	require.NoError(t, w.Close())

	r, err := NewRecordReader(&buf)
	require.NoError(t, err)

	for _, want := range records {
		got, err := r.Next()
		require.NoError(t, err)
		require.Equal(t, want, got)
	}

	_, err = r.Next()
	require.ErrorIs(t, err, io.EOF)
}

func TestRecordWriterFlushMakesRecordsVisible(t *testing.T) {
	var buf bytes.Buffer
	w := NewRecordWriter(&buf)

	require.NoError(t, w.Append([]byte("partial")))
	require.NoError(t, w.Flush())

	r, err := NewRecordReader(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)

	got, err := r.Next()
	require.NoError(t, err)
	require.Equal(t, []byte("partial"), got)
}
