package storage

import (
	"bytes"
	"runtime"
	"strconv"
	"sync"
)

// recursiveMutex is a mutual-exclusion lock that the owning goroutine may
// re-enter. Go's sync.Mutex is deliberately not reentrant, and nothing in
// the wider ecosystem (including this module's own dependencies) supplies
// one, so this is hand-rolled: a goroutine identifies itself by parsing the
// "goroutine N [...]" header off runtime.Stack, the standard (if inelegant)
// technique for goroutine self-identification in Go, since the runtime does
// not expose a goroutine ID through any public API.
//
// Reentrancy matters here because a command handler invoked with the store
// locked (e.g. GetOrInsert's make func) may itself call back into the store
// for a different key, on the same goroutine, before the outer call
// returns.
type recursiveMutex struct {
	mu    sync.Mutex
	owner int64 // 0 means unlocked; goroutine IDs start at 1.
	depth int
}

func (m *recursiveMutex) Lock() {
	id := goroutineID()
	m.mu.Lock()
	if m.owner == id {
		m.depth++
		m.mu.Unlock()
		return
	}
	m.mu.Unlock()

	for {
		m.mu.Lock()
		if m.owner == 0 {
			m.owner = id
			m.depth = 1
			m.mu.Unlock()
			return
		}
		m.mu.Unlock()
		runtime.Gosched()
	}
}

func (m *recursiveMutex) Unlock() {
	id := goroutineID()
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.owner != id {
		panic("storage: recursiveMutex: unlock by non-owner")
	}
	m.depth--
	if m.depth == 0 {
		m.owner = 0
	}
}

// goroutineID parses the numeric ID out of the current goroutine's stack
// trace header, which always begins "goroutine N [state]:".
func goroutineID() int64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	b := buf[:n]

	const prefix = "goroutine "
	if !bytes.HasPrefix(b, []byte(prefix)) {
		panic("storage: recursiveMutex: unexpected stack trace format")
	}
	b = b[len(prefix):]

	i := bytes.IndexByte(b, ' ')
	if i < 0 {
		panic("storage: recursiveMutex: unexpected stack trace format")
	}

	id, err := strconv.ParseInt(string(b[:i]), 10, 64)
	if err != nil {
		panic("storage: recursiveMutex: unexpected stack trace format: " + err.Error())
	}
	return id
}
