// Package logger is the diagnostic sink for readaloud. It is a small
// leveled logger with three levels: off, normal (info/warn/error) and
// verbose (adds debug). Component loggers created with With share the
// parent's level and output. Safe for concurrent use.
package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"sync"
)

// Level controls the verbosity of the logger.
type Level int

const (
	// LevelOff disables all log output.
	LevelOff Level = iota
	// LevelNormal enables info, warn, and error output.
	LevelNormal
	// LevelVerbose enables all output including debug.
	LevelVerbose
)

// String returns the config spelling of the level.
func (l Level) String() string {
	switch l {
	case LevelOff:
		return "off"
	case LevelVerbose:
		return "verbose"
	default:
		return "normal"
	}
}

// ParseLevel maps a config value to a Level. Unknown values map to
// LevelNormal and ok=false.
func ParseLevel(s string) (Level, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "off", "quiet", "none":
		return LevelOff, true
	case "normal", "info", "":
		return LevelNormal, true
	case "verbose", "debug":
		return LevelVerbose, true
	}
	return LevelNormal, false
}

// levelState is shared between a logger and all of its component children.
type levelState struct {
	mu    sync.RWMutex
	level Level
}

// Logger is a leveled logger. All methods are safe for concurrent use.
type Logger struct {
	state  *levelState
	prefix string
	debug  *log.Logger
	info   *log.Logger
	warn   *log.Logger
	errLog *log.Logger
}

// New creates a logger with the given level, writing to the given output.
// If out is nil, os.Stderr is used.
func New(level Level, out io.Writer) *Logger {
	if out == nil {
		out = os.Stderr
	}
	return newLogger(&levelState{level: level}, out, "")
}

func newLogger(state *levelState, out io.Writer, prefix string) *Logger {
	flags := log.Ltime
	return &Logger{
		state:  state,
		prefix: prefix,
		debug:  log.New(out, "[DBG] ", flags),
		info:   log.New(out, "[INF] ", flags),
		warn:   log.New(out, "[WRN] ", flags),
		errLog: log.New(out, "[ERR] ", flags),
	}
}

// With returns a child logger that tags every line with the component
// name. The child shares the parent's level: SetLevel on either affects both.
func (l *Logger) With(component string) *Logger {
	prefix := component + ": "
	if l.prefix != "" {
		prefix = l.prefix + prefix
	}
	return newLogger(l.state, l.info.Writer(), prefix)
}

// SetLevel changes the log level at runtime.
func (l *Logger) SetLevel(level Level) {
	l.state.mu.Lock()
	defer l.state.mu.Unlock()
	l.state.level = level
}

// GetLevel returns the current log level.
func (l *Logger) GetLevel() Level {
	l.state.mu.RLock()
	defer l.state.mu.RUnlock()
	return l.state.level
}

func (l *Logger) enabled(min Level) bool {
	return l.GetLevel() >= min
}

func (l *Logger) output(dst *log.Logger, format string, args []any) {
	dst.Output(3, l.prefix+fmt.Sprintf(format, args...))
}

// Debug logs a message at debug level (only visible in verbose mode).
func (l *Logger) Debug(format string, args ...any) {
	if l.enabled(LevelVerbose) {
		l.output(l.debug, format, args)
	}
}

// Info logs a message at info level.
func (l *Logger) Info(format string, args ...any) {
	if l.enabled(LevelNormal) {
		l.output(l.info, format, args)
	}
}

// Warn logs a message at warn level.
func (l *Logger) Warn(format string, args ...any) {
	if l.enabled(LevelNormal) {
		l.output(l.warn, format, args)
	}
}

// Error logs a message at error level.
func (l *Logger) Error(format string, args ...any) {
	if l.enabled(LevelNormal) {
		l.output(l.errLog, format, args)
	}
}
