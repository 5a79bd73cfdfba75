// Package storage implements the runtime's process-lifetime key/value
// store: an arbitrary, type-erased value keyed by string, guarded by a
// reentrant lock so a handler that both reads and, through a nested call,
// writes the store does not deadlock against itself. Values are torn down
// in the reverse of their insertion order on Close, mirroring a defer
// stack, since later entries frequently hold references into earlier ones
// (a hook's dispatch table depends on the process image already having a
// code-cave base address stored).
package storage

import (
	"fmt"
	"sync"

	"github.com/shmocz/ra2yrcpp-sub000/internal/obslog"
	"github.com/shmocz/ra2yrcpp-sub000/internal/rpcerr"
)

// Closer is implemented by stored values that need explicit teardown. Its
// method set matches the standard library's io.Closer, so any io.Closer
// stored here is torn down too.
type Closer interface {
	Close() error
}

type entry struct {
	key   string
	value any
	seq   int
}

// Store is a type-erased key/value store, safe for concurrent use from
// many goroutines including the thread dispatching a hook callback.
type Store struct {
	log *obslog.Logger
	mu  recursiveMutex

	values map[string]*entry
	order  []*entry
	seq    int
	closed bool
}

// New constructs an empty Store.
func New(log *obslog.Logger) *Store {
	return &Store{
		log:    log,
		values: make(map[string]*entry),
	}
}

// Set stores val under key, replacing (and, if it implements Closer,
// closing) any previous value at that key.
func (s *Store) Set(key string, val any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return rpcerr.Wrap(rpcerr.CategoryStorage, fmt.Errorf("store: set %q: store is closed", key))
	}
	s.replaceLocked(key, val)
	return nil
}

// Get retrieves the value stored at key as T, returning
// rpcerr.ErrNotFound if key is unset and rpcerr.ErrTypeMismatch if the
// stored value is not a T.
func Get[T any](s *Store, key string) (T, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var zero T
	e, ok := s.values[key]
	if !ok {
		return zero, rpcerr.Wrap(rpcerr.CategoryStorage, fmt.Errorf("store: get %q: %w", key, rpcerr.ErrNotFound))
	}
	v, ok := e.value.(T)
	if !ok {
		return zero, rpcerr.Wrap(rpcerr.CategoryStorage, fmt.Errorf("store: get %q: %w", key, rpcerr.ErrTypeMismatch))
	}
	return v, nil
}

// GetOrInsert retrieves the value stored at key as T, calling make and
// storing its result if key is unset. make is called with the store's lock
// held, so it may itself call GetOrInsert/Get/Set for other keys (the
// lock is reentrant) but must not block on anything that depends on a
// different goroutine making progress through the store.
func GetOrInsert[T any](s *Store, key string, make_ func() (T, error)) (T, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var zero T
	if s.closed {
		return zero, rpcerr.Wrap(rpcerr.CategoryStorage, fmt.Errorf("store: get-or-insert %q: store is closed", key))
	}
	if e, ok := s.values[key]; ok {
		v, ok := e.value.(T)
		if !ok {
			return zero, rpcerr.Wrap(rpcerr.CategoryStorage, fmt.Errorf("store: get-or-insert %q: %w", key, rpcerr.ErrTypeMismatch))
		}
		return v, nil
	}
	v, err := make_()
	if err != nil {
		return zero, err
	}
	s.replaceLocked(key, v)
	return v, nil
}

// Delete removes key, closing its value if it implements Closer.
func (s *Store) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deleteLocked(key)
}

func (s *Store) deleteLocked(key string) error {
	e, ok := s.values[key]
	if !ok {
		return rpcerr.Wrap(rpcerr.CategoryStorage, fmt.Errorf("store: delete %q: %w", key, rpcerr.ErrNotFound))
	}
	delete(s.values, key)
	for i, oe := range s.order {
		if oe == e {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return closeValue(s.log, key, e.value)
}

func (s *Store) replaceLocked(key string, val any) {
	if old, ok := s.values[key]; ok {
		delete(s.values, key)
		for i, oe := range s.order {
			if oe == old {
				s.order = append(s.order[:i], s.order[i+1:]...)
				break
			}
		}
		_ = closeValue(s.log, key, old.value)
	}
	s.seq++
	e := &entry{key: key, value: val, seq: s.seq}
	s.values[key] = e
	s.order = append(s.order, e)
}

// Keys returns the currently stored keys in insertion order.
func (s *Store) Keys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys := make([]string, len(s.order))
	for i, e := range s.order {
		keys[i] = e.key
	}
	return keys
}

// Close tears down every stored value in the reverse of its insertion
// order, collecting (rather than stopping on) individual Close errors.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true

	var errs []error
	for i := len(s.order) - 1; i >= 0; i-- {
		e := s.order[i]
		if err := closeValue(s.log, e.key, e.value); err != nil {
			errs = append(errs, err)
		}
	}
	s.order = nil
	s.values = nil
	if len(errs) != 0 {
		return fmt.Errorf("store: close: %d value(s) failed to close: %w", len(errs), errs[0])
	}
	return nil
}

func closeValue(log *obslog.Logger, key string, val any) error {
	c, ok := val.(Closer)
	if !ok {
		return nil
	}
	if err := c.Close(); err != nil {
		if log != nil {
			log.Err().Err(err).Str("key", key).Log("store: value close failed")
		}
		return fmt.Errorf("store: close %q: %w", key, err)
	}
	return nil
}
