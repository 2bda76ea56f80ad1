// logging.go - structured logging for the reactor kernel.
//
// This mirrors eventloop's own logging package: a minimal Logger interface
// kept package-local so the kernel never forces a particular logging
// framework on callers, plus a ready-made implementation backed by
// logiface/stumpy for anyone who wants zero-allocation structured output
// out of the box.
//
// Design decision: the logger is a package-level global, not a Kernel
// field, because logging is an infrastructure cross-cutting concern shared
// by every Kernel instance in a process - matching eventloop/logging.go's
// own rationale.

package reactor

import (
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/joeycumines/logiface"
	"github.com/joeycumines/stumpy"
)

var globalLogger struct {
	sync.RWMutex
	logger Logger
}

// SetLogger installs the package-wide structured logger. Pass nil to
// restore the no-op default.
func SetLogger(l Logger) {
	globalLogger.Lock()
	defer globalLogger.Unlock()
	globalLogger.logger = l
}

func currentLogger() Logger {
	globalLogger.RLock()
	defer globalLogger.RUnlock()
	if globalLogger.logger != nil {
		return globalLogger.logger
	}
	return noopLogger{}
}

// LogLevel mirrors the severities the kernel emits at.
type LogLevel int32

const (
	LevelDebug LogLevel = iota
	LevelInfo
	LevelWarn
	LevelError
)

func (l LogLevel) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// LogEntry is a structured record describing one kernel-internal event:
// a dispatch, a transition, a dropped signal, a codec failure, and so on.
type LogEntry struct {
	Level     LogLevel
	Category  string // "dispatch", "flow", "bus", "param", "codec", "power", "acl", "wormhole", "trace", "supervisor", "transducer"
	Entity    EntityID
	Signal    SignalID
	State     StateID
	Message   string
	Err       error
	Timestamp time.Time
}

// Logger is the structured logging interface the kernel writes to.
// Implementations not embedding logiface (e.g. a test spy) only need to
// satisfy these two methods.
type Logger interface {
	Log(entry LogEntry)
	IsEnabled(level LogLevel) bool
}

type noopLogger struct{}

func (noopLogger) Log(LogEntry)          {}
func (noopLogger) IsEnabled(LogLevel) bool { return false }

func logAt(level LogLevel, category string, entity EntityID, signal SignalID, state StateID, msg string, err error) {
	l := currentLogger()
	if !l.IsEnabled(level) {
		return
	}
	l.Log(LogEntry{
		Level:     level,
		Category:  category,
		Entity:    entity,
		Signal:    signal,
		State:     state,
		Message:   msg,
		Err:       err,
		Timestamp: time.Now(),
	})
}

// LogifaceLogger adapts a github.com/joeycumines/logiface Logger backed by
// stumpy's zero-allocation encoder into the kernel's Logger interface.
//
// This is the recommended production logger: it reuses the logiface/stumpy
// structured logging stack instead of the kernel inventing its own
// text/JSON formatting.
type LogifaceLogger struct {
	inner    *logiface.Logger[*stumpy.Event]
	minLevel atomic.Int32
}

// NewLogifaceLogger builds a LogifaceLogger writing to w (os.Stderr if nil)
// at the given minimum level.
func NewLogifaceLogger(w *os.File, level LogLevel) *LogifaceLogger {
	if w == nil {
		w = os.Stderr
	}
	ll := toLogifaceLevel(level)
	inner := logiface.New[*stumpy.Event](
		stumpy.L.WithStumpy(stumpy.WithWriter(w)),
		logiface.WithLevel[*stumpy.Event](ll),
	)
	out := &LogifaceLogger{inner: inner}
	out.minLevel.Store(int32(level))
	return out
}

func toLogifaceLevel(level LogLevel) logiface.Level {
	switch level {
	case LevelDebug:
		return logiface.LevelDebug
	case LevelInfo:
		return logiface.LevelInformational
	case LevelWarn:
		return logiface.LevelWarning
	case LevelError:
		return logiface.LevelError
	default:
		return logiface.LevelInformational
	}
}

// IsEnabled implements Logger.
func (l *LogifaceLogger) IsEnabled(level LogLevel) bool {
	return int32(level) >= l.minLevel.Load()
}

// Log implements Logger, translating the entry into a logiface builder
// chain keyed the same way across every category.
func (l *LogifaceLogger) Log(entry LogEntry) {
	var b *logiface.Builder[*stumpy.Event]
	switch entry.Level {
	case LevelDebug:
		b = l.inner.Debug()
	case LevelWarn:
		b = l.inner.Warning()
	case LevelError:
		b = l.inner.Err()
	default:
		b = l.inner.Info()
	}
	if b == nil {
		return
	}
	b = b.Str("category", entry.Category).
		Int("entity", int(entry.Entity)).
		Int("signal", int(entry.Signal)).
		Int("state", int(entry.State))
	if entry.Err != nil {
		b = b.Err(entry.Err)
	}
	b.Log(entry.Message)
}
