//go:build !(windows && 386)

package hook

// NativeCallback is a no-op off windows/386: there is no host process to
// call back into.
func NativeCallback(addr uintptr) CallbackFunc {
	return func(regs *Registers) {}
}
