// Package obslog is the structured logging facade used throughout the
// runtime. It wraps github.com/joeycumines/logiface, a generic
// event-builder facade that decouples log call sites from a concrete
// backend, bound here to zerolog via
// github.com/joeycumines/logiface-zerolog. No other package in this module
// imports zerolog directly.
package obslog

import (
	"io"
	"os"

	"github.com/joeycumines/logiface"
	izerolog "github.com/joeycumines/logiface-zerolog"
	"github.com/rs/zerolog"
)

// Event is the concrete event type bound to the zerolog backend.
type Event = izerolog.Event

// Logger is the structured logger every component receives. Never nil
// after New; components should hold this type, not *zerolog.Logger.
type Logger = logiface.Logger[*Event]

// Level re-exports logiface.Level for config parsing convenience.
type Level = logiface.Level

// Config controls the concrete zerolog backend.
type Config struct {
	// Level is the minimum level that will be logged.
	Level Level
	// Output receives the rendered log lines. Defaults to os.Stderr.
	Output io.Writer
	// JSON selects structured JSON output over zerolog's human-readable
	// console writer. The zero value (false) selects the console writer;
	// config.Default sets LogJSON to true, so the runtime logs JSON unless
	// configured otherwise.
	JSON bool
}

// New constructs a Logger bound to zerolog per cfg.
func New(cfg Config) *Logger {
	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	if !cfg.JSON {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: "15:04:05.000"}
	}
	zl := zerolog.New(out).With().Timestamp().Logger()

	L := logiface.LoggerFactory[*Event]{}
	return L.New(
		L.WithLevel(cfg.Level),
		izerolog.WithZerolog(zl),
	)
}

// Named returns a child logger tagging every event with a "component"
// field, so log lines from the hook engine, the scheduler, and the
// transport reactor can be told apart in aggregate output.
func Named(l *Logger, component string) *Logger {
	return l.Clone().Field("component", component).Logger()
}

// Level constants re-exported for callers that only need the common ones.
const (
	LevelTrace         = logiface.LevelTrace
	LevelDebug         = logiface.LevelDebug
	LevelInfo          = logiface.LevelInformational
	LevelWarning       = logiface.LevelWarning
	LevelError         = logiface.LevelError
	LevelDisabled      = logiface.LevelDisabled
)
