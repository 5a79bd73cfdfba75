//go:build !(windows && 386)

package hook

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNativeCallbackStubIsNoOp(t *testing.T) {
	fn := NativeCallback(0x1234)
	require.NotPanics(t, func() {
		fn(&Registers{})
	})
}
