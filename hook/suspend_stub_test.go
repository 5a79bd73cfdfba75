//go:build !windows

package hook

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSuspendOtherThreadsStubIsNoOp(t *testing.T) {
	tok, err := suspendOtherThreads(nil)
	require.NoError(t, err)
	require.Empty(t, tok.instructionPointers())

	require.NotPanics(t, func() {
		tok.resumeAll()
	})
}
