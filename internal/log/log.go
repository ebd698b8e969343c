// Package log is tapkit's process-wide structured logger.
//
// Lines look like
//
//	2026-01-02T15:04:05.000 DEBUG [kernel] Phase changed phase=ready run=3f2a
//
// Logging is off until Init or InitWriter is called; the CLI does so for
// --debug or TAPKIT_DEBUG.
package log

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Level represents log severity.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

func (l Level) String() string {
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

// ParseLevel maps a level name to a Level. Unknown names yield LevelDebug.
func ParseLevel(s string) Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "info":
		return LevelInfo
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelDebug
	}
}

// Category groups related log messages.
type Category string

const (
	CatKernel  Category = "kernel"  // Orchestrator phases and run lifecycle
	CatPreset  Category = "preset"  // Preset resolution and application
	CatPlugin  Category = "plugin"  // Plugin registration, application and option checks
	CatHook    Category = "hook"    // Hook scheduling and execution
	CatConfig  Category = "config"  // Tool and project configuration
	CatCache   Category = "cache"   // Cache operations
	CatScript  Category = "script"  // Interpreted script plugins
	CatWatcher Category = "watcher" // File watcher events
	CatCLI     Category = "cli"     // Command layer
)

const timeLayout = "2006-01-02T15:04:05.000"

type logger struct {
	mu     sync.Mutex
	out    io.Writer
	closer io.Closer
	min    Level
}

var (
	stateMu sync.RWMutex
	current *logger
)

// Init directs logging to the file at path, appending. The returned func
// closes the file and turns logging off.
func Init(path string) (func(), error) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644) //nolint:gosec // G304: path is the user-chosen debug log
	if err != nil {
		return nil, fmt.Errorf("open debug log: %w", err)
	}
	l := &logger{out: f, closer: f, min: LevelDebug}
	install(l)
	return func() {
		stateMu.Lock()
		if current == l {
			current = nil
		}
		stateMu.Unlock()
		_ = f.Close()
	}, nil
}

// InitWriter directs logging to w at debug level. A nil w turns logging off.
func InitWriter(w io.Writer) {
	if w == nil {
		install(nil)
		return
	}
	install(&logger{out: w, min: LevelDebug})
}

func install(l *logger) {
	stateMu.Lock()
	prev := current
	current = l
	stateMu.Unlock()
	if prev != nil && prev.closer != nil && prev != l {
		_ = prev.closer.Close()
	}
}

// SetMinLevel drops entries below level.
func SetMinLevel(level Level) {
	stateMu.RLock()
	l := current
	stateMu.RUnlock()
	if l == nil {
		return
	}
	l.mu.Lock()
	l.min = level
	l.mu.Unlock()
}

// Enabled reports whether an entry at level would be written.
func Enabled(level Level) bool {
	stateMu.RLock()
	l := current
	stateMu.RUnlock()
	if l == nil {
		return false
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return level >= l.min
}

// Debug logs at debug level.
func Debug(cat Category, msg string, fields ...any) {
	write(LevelDebug, cat, msg, fields)
}

// Info logs at info level.
func Info(cat Category, msg string, fields ...any) {
	write(LevelInfo, cat, msg, fields)
}

// Warn logs at warning level.
func Warn(cat Category, msg string, fields ...any) {
	write(LevelWarn, cat, msg, fields)
}

// Error logs at error level.
func Error(cat Category, msg string, fields ...any) {
	write(LevelError, cat, msg, fields)
}

// ErrorErr logs at error level with err as the "error" field.
func ErrorErr(cat Category, msg string, err error, fields ...any) {
	var text any = "<nil>"
	if err != nil {
		text = err.Error()
	}
	write(LevelError, cat, msg, append(fields, "error", text))
}

func write(level Level, cat Category, msg string, fields []any) {
	stateMu.RLock()
	l := current
	stateMu.RUnlock()
	if l == nil {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if level < l.min {
		return
	}
	_, _ = io.WriteString(l.out, format(time.Now(), level, cat, msg, fields))
}

func format(at time.Time, level Level, cat Category, msg string, fields []any) string {
	var b strings.Builder
	b.WriteString(at.Format(timeLayout))
	b.WriteByte(' ')
	b.WriteString(level.String())
	b.WriteString(" [")
	b.WriteString(string(cat))
	b.WriteString("] ")
	b.WriteString(msg)

	for i := 0; i < len(fields); i += 2 {
		b.WriteByte(' ')
		b.WriteString(fmt.Sprint(fields[i]))
		b.WriteByte('=')
		if i+1 == len(fields) {
			b.WriteString("<missing>")
			break
		}
		b.WriteString(value(fields[i+1]))
	}
	b.WriteByte('\n')
	return b.String()
}

// value renders v, quoting it when it would break key=value parsing.
func value(v any) string {
	s := fmt.Sprint(v)
	if s == "" || strings.ContainsAny(s, " \t\n\"=") {
		return strconv.Quote(s)
	}
	return s
}
