// Package rpcerr defines the error taxonomy shared by every component of
// the instrumentation runtime: protocol framing, transport I/O, command
// scheduling, handler execution, the hook engine, and storage each surface
// one of the sentinels below, wrapped with context via fmt.Errorf, rather
// than ad-hoc error strings.
package rpcerr

import "errors"

// Category classifies an error for the purpose of translating it into a
// CommandResult or a Response at the transport edge.
type Category int

const (
	// CategoryUnknown is the zero value; treated the same as Handler.
	CategoryUnknown Category = iota
	CategoryProtocol
	CategoryTransport
	CategoryScheduling
	CategoryHandler
	CategoryHook
	CategoryStorage
)

func (c Category) String() string {
	switch c {
	case CategoryProtocol:
		return "protocol"
	case CategoryTransport:
		return "transport"
	case CategoryScheduling:
		return "scheduling"
	case CategoryHandler:
		return "handler"
	case CategoryHook:
		return "hook"
	case CategoryStorage:
		return "storage"
	default:
		return "unknown"
	}
}

// Sentinel errors. Components wrap these with fmt.Errorf("...: %w", Err...)
// so callers can still errors.Is/errors.As against the sentinel after the
// message has been enriched.
var (
	// Protocol errors: malformed frame, unknown message type, oversized frame.
	ErrMalformedFrame  = errors.New("rpcerr: malformed frame")
	ErrUnknownMessage  = errors.New("rpcerr: unknown message type")
	ErrFrameTooLarge   = errors.New("rpcerr: frame exceeds maximum length")

	// Transport errors: socket read/write failure, peer closed.
	ErrConnectionClosed = errors.New("rpcerr: connection closed")

	// Scheduling errors: unknown queue, worker stopped.
	ErrQueueNotFound  = errors.New("rpcerr: queue not found")
	ErrQueueGone      = errors.New("rpcerr: queue destroyed during wait")
	ErrSchedulerDown  = errors.New("rpcerr: scheduler is not running")
	ErrUnknownCommand = errors.New("rpcerr: unknown command type")

	// Hook errors: target-patch race exhausted, invalid prefix length,
	// duplicate install.
	ErrHookExists        = errors.New("rpcerr: hook already installed at target")
	ErrHookNotFound      = errors.New("rpcerr: no hook installed at target")
	ErrPrefixTooShort    = errors.New("rpcerr: prefix length too short for control transfer")
	ErrSuspendRaceFailed = errors.New("rpcerr: exhausted retries suspending threads clear of target")

	// Storage errors: missing key or type mismatch.
	ErrNotFound     = errors.New("rpcerr: key not found")
	ErrTypeMismatch = errors.New("rpcerr: stored value type mismatch")
)

// Error is a typed error carrying the taxonomy Category alongside a wrapped
// cause, for components that need to recover the category programmatically
// (e.g. the transport edge, when deciding a Response code) without relying
// on errors.Is against every individual sentinel.
type Error struct {
	Category Category
	Cause    error
}

func (e *Error) Error() string {
	if e.Cause == nil {
		return "rpcerr: " + e.Category.String()
	}
	return e.Category.String() + ": " + e.Cause.Error()
}

func (e *Error) Unwrap() error { return e.Cause }

// Wrap annotates cause with a Category, for use at a component boundary.
func Wrap(category Category, cause error) error {
	if cause == nil {
		return nil
	}
	return &Error{Category: category, Cause: cause}
}

// CategoryOf returns the Category of err if it (or something it wraps) is
// an *Error, and CategoryUnknown otherwise.
func CategoryOf(err error) Category {
	var e *Error
	if errors.As(err, &e) {
		return e.Category
	}
	return CategoryUnknown
}
