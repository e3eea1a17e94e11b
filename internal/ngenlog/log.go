// Package ngenlog is a minimal structured logger: leveled, Fields-style
// chaining in the shape of github.com/rs/zerolog. No pack repo actually
// imports zerolog, and giving the core's lowest-level packages (ir in
// particular) a real third-party logging dependency risks exactly the
// kind of accidental import-web the teacher's single package-level
// `VerboseMode` + `fmt.Fprintf(os.Stderr, ...)` gate never had to worry
// about — see DESIGN.md. This package keeps the zerolog-shaped call
// surface (`.With(key, val).Debug(msg)`) while staying stdlib-only.
package ngenlog

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

// Level orders log severity from most to least verbose.
type Level int

const (
	LevelTrace Level = iota
	LevelDebug
	LevelInfo
	LevelWarn
	LevelError
	LevelDisabled
)

func (l Level) String() string {
	switch l {
	case LevelTrace:
		return "trace"
	case LevelDebug:
		return "debug"
	case LevelInfo:
		return "info"
	case LevelWarn:
		return "warn"
	case LevelError:
		return "error"
	default:
		return "disabled"
	}
}

type field struct {
	key string
	val any
}

// Logger writes leveled, field-tagged lines to a single sink, filtered
// by a minimum Level, the generalized form of the teacher's VerboseMode
// gate.
type Logger struct {
	mu     sync.Mutex
	out    io.Writer
	level  Level
	fields []field
}

// New creates a Logger writing to w, suppressing anything below level.
func New(w io.Writer, level Level) *Logger {
	return &Logger{out: w, level: level}
}

// Default is the logger every pass/encoder/output writer/UThread
// scheduler call site uses unless a caller swaps it out. Production
// embedders can point it at any io.Writer via SetOutput, or call New
// for an independent instance instead.
var Default = New(os.Stderr, LevelInfo)

// SetOutput redirects where l writes.
func (l *Logger) SetOutput(w io.Writer) {
	l.mu.Lock()
	l.out = w
	l.mu.Unlock()
}

// SetLevel changes l's minimum logged severity.
func (l *Logger) SetLevel(level Level) {
	l.mu.Lock()
	l.level = level
	l.mu.Unlock()
}

// With returns a child Logger carrying an additional key/value field
// alongside any the receiver already carries, the zerolog-shaped
// chaining this package borrows its call surface from.
func (l *Logger) With(key string, val any) *Logger {
	fields := make([]field, len(l.fields), len(l.fields)+1)
	copy(fields, l.fields)
	fields = append(fields, field{key, val})
	return &Logger{out: l.out, level: l.level, fields: fields}
}

func (l *Logger) log(level Level, msg string) {
	if level < l.level {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintf(l.out, "%s level=%s msg=%q", time.Now().UTC().Format(time.RFC3339Nano), level, msg)
	for _, f := range l.fields {
		fmt.Fprintf(l.out, " %s=%v", f.key, f.val)
	}
	fmt.Fprintln(l.out)
}

func (l *Logger) Trace(msg string) { l.log(LevelTrace, msg) }
func (l *Logger) Debug(msg string) { l.log(LevelDebug, msg) }
func (l *Logger) Info(msg string)  { l.log(LevelInfo, msg) }
func (l *Logger) Warn(msg string)  { l.log(LevelWarn, msg) }
func (l *Logger) Error(msg string) { l.log(LevelError, msg) }

// Tracef, Debugf, Infof, Warnf and Errorf are fmt.Sprintf-formatted
// shorthands, covering the common "one-off formatted message" case
// without forcing every call site through With.
func (l *Logger) Tracef(format string, args ...any) { l.log(LevelTrace, fmt.Sprintf(format, args...)) }
func (l *Logger) Debugf(format string, args ...any) { l.log(LevelDebug, fmt.Sprintf(format, args...)) }
func (l *Logger) Infof(format string, args ...any)  { l.log(LevelInfo, fmt.Sprintf(format, args...)) }
func (l *Logger) Warnf(format string, args ...any)  { l.log(LevelWarn, fmt.Sprintf(format, args...)) }
func (l *Logger) Errorf(format string, args ...any) { l.log(LevelError, fmt.Sprintf(format, args...)) }
