package hook

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBuildJumpStubPadsToPrefixLength(t *testing.T) {
	stub := buildJumpStub(0x00401000, 10)
	require.Len(t, stub, 10)
	require.Equal(t, byte(0x68), stub[0]) // push imm32
	require.Equal(t, byte(0xC3), stub[5]) // ret
	for _, b := range stub[6:] {
		require.Equal(t, byte(0x90), b) // nop padding
	}
}

func TestBuildJumpStubExactMinimum(t *testing.T) {
	stub := buildJumpStub(0x00401000, minPrefixLength)
	require.Len(t, stub, minPrefixLength)
}

func TestOpPushPopRegEncoding(t *testing.T) {
	require.Equal(t, []byte{0x50}, opPushReg(regEAX))
	require.Equal(t, []byte{0x57}, opPushReg(regEDI))
	require.Equal(t, []byte{0x58}, opPopReg(regEAX))
}

func TestGPRPushPopOrdersAreReverses(t *testing.T) {
	require.Len(t, gprPushOrder, 8)
	require.Len(t, gprPopOrder, 8)
	for i, r := range gprPushOrder {
		require.Equal(t, r, gprPopOrder[len(gprPopOrder)-1-i])
	}
}

func TestBuildDetourMainContainsCallAndReturn(t *testing.T) {
	body := buildDetourMain(0x00401000, minPrefixLength, 0x1, 0x2000)
	require.Contains(t, string(body), string(opCallEAX()))
	require.Equal(t, byte(0xC3), body[len(body)-1])
}

func TestOpNopLength(t *testing.T) {
	require.Len(t, opNop(4), 4)
	for _, b := range opNop(4) {
		require.Equal(t, byte(0x90), b)
	}
}
