package hook

import "encoding/binary"

// Byte-level x86 (32-bit) encoding for the handful of instructions the
// trampoline needs. This is the one piece of the engine with no grounding
// in any example repo: the original project leaned on Xbyak, a C++
// JIT-assembler library, and nothing in the retrieved pack plays that role
// for Go, so it is hand-written here. See DESIGN.md.

const (
	regEAX = 0
	regECX = 1
	regEDX = 2
	regEBX = 3
	regESP = 4
	regEBP = 5
	regESI = 6
	regEDI = 7
)

func opPushImm32(v uint32) []byte {
	b := make([]byte, 5)
	b[0] = 0x68
	binary.LittleEndian.PutUint32(b[1:], v)
	return b
}

func opPushReg(reg byte) []byte { return []byte{0x50 + reg} }
func opPopReg(reg byte) []byte  { return []byte{0x58 + reg} }
func opRet() []byte             { return []byte{0xC3} }
func opNop(n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = 0x90
	}
	return b
}

// opMovEAXESP encodes `mov eax, esp`.
func opMovEAXESP() []byte { return []byte{0x8B, 0xC4} }

// opMovEAXImm32 encodes `mov eax, imm32`.
func opMovEAXImm32(v uint32) []byte {
	b := make([]byte, 5)
	b[0] = 0xB8
	binary.LittleEndian.PutUint32(b[1:], v)
	return b
}

// opCallEAX encodes `call eax`.
func opCallEAX() []byte { return []byte{0xFF, 0xD0} }

// opAddESPImm8 encodes `add esp, imm8` (sign-extended, so imm must fit an
// int8; the trampoline only ever passes small positive stack-cleanup
// amounts).
func opAddESPImm8(v uint8) []byte { return []byte{0x83, 0xC4, v} }

// gprPushOrder is the order save_regs pushes registers in: the reverse of
// the documented struct field order (eax, ebx, ecx, edx, esi, edi, ebp,
// esp), so that after all eight pushes, eax sits at the lowest address —
// i.e. reading the pushed block low-to-high reproduces the Registers field
// order exactly.
var gprPushOrder = []byte{regESP, regEBP, regEDI, regESI, regEDX, regECX, regEBX, regEAX}

// gprPopOrder restores in the opposite order, unwinding the same pushes.
var gprPopOrder = []byte{regEAX, regEBX, regECX, regEDX, regESI, regEDI, regEBP, regESP}

// buildJumpStub assembles the bytes written over the target's first
// prefixLength bytes: an unconditional jump (encoded as push-imm32/ret, a
// 6-byte control transfer) to detourAddr, padded with nops out to
// prefixLength.
func buildJumpStub(detourAddr uintptr, prefixLength int) []byte {
	var b []byte
	b = append(b, opPushImm32(uint32(detourAddr))...)
	b = append(b, opRet()...)
	if pad := prefixLength - len(b); pad > 0 {
		b = append(b, opNop(pad)...)
	}
	return b
}

// buildDetourMain assembles the trampoline body: a placeholder for the
// prefixLength bytes stolen from target, the register-save prologue, the
// call into the handle/dispatch shim, the register-restore epilogue, and a
// tail jump back to target+prefixLength. Stolen instructions are not
// re-executed out of line; the engine re-enters target directly after the
// patched region instead.
func buildDetourMain(target uintptr, prefixLength int, handle uintptr, callHook uintptr) []byte {
	var b []byte

	b = append(b, opNop(prefixLength)...) // placeholder for the original instruction bytes

	for _, r := range gprPushOrder {
		b = append(b, opPushReg(r)...)
	}

	b = append(b, opMovEAXESP()...)     // eax = pointer to the just-pushed register block
	b = append(b, opPushReg(regEAX)...) // arg 2: &Registers
	b = append(b, opPushImm32(uint32(handle))...) // arg 1: hook handle
	b = append(b, opMovEAXImm32(uint32(callHook))...)
	b = append(b, opCallEAX()...)
	b = append(b, opAddESPImm8(8)...) // caller cleans up its 2 pushed args (cdecl)

	for _, r := range gprPopOrder {
		b = append(b, opPopReg(r)...)
	}

	b = append(b, opPushImm32(uint32(target)+uint32(prefixLength))...)
	b = append(b, opRet()...)

	return b
}
