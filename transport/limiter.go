package transport

import (
	"net"
	"time"

	"github.com/joeycumines/go-catrate"
)

// newAdmissionLimiter builds a sliding-window connection-admission guard
// out of catrate.Limiter, generalizing its per-category event-rate model
// (designed for arbitrary event categories, not specifically connections)
// into "no more than rate connections per second, per remote host, with
// burst allowance". rate <= 0 disables limiting entirely.
func newAdmissionLimiter(rate float64, burst int) *catrate.Limiter {
	if rate <= 0 {
		return nil
	}
	if burst <= 0 {
		burst = 1
	}
	window := time.Duration(float64(burst) / rate * float64(time.Second))
	if window <= 0 {
		window = time.Second
	}
	return catrate.NewLimiter(map[time.Duration]int{window: burst})
}

// remoteHost extracts the bare host (no port) from a net.Conn's remote
// address, the category admission limiting and the allowed-host regex are
// both keyed on.
func remoteHost(conn net.Conn) string {
	addr := conn.RemoteAddr().String()
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}
	return host
}
