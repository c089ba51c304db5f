// Package xlog is a minimal leveled logger for diagnostics that are not
// part of the required stderr error format of spec.md §7 (the VM's
// malformed-opcode and empty discard_break warnings; the -d/--debug
// disassembly is written straight to stdout, not through this logger).
// No logging library appears
// anywhere in the example pack (see DESIGN.md), so this stays on the
// standard library rather than adopting one ungrounded in the corpus.
package xlog

import (
	"fmt"
	"io"
)

// Level is a logging verbosity threshold.
type Level int

const (
	LevelError Level = iota
	LevelWarn
	LevelDebug
)

func (l Level) String() string {
	switch l {
	case LevelError:
		return "error"
	case LevelWarn:
		return "warn"
	case LevelDebug:
		return "debug"
	default:
		return "unknown"
	}
}

// Logger writes leveled lines to an underlying io.Writer, dropping any
// message above its configured threshold.
type Logger struct {
	w         io.Writer
	threshold Level
}

// New returns a Logger that writes to w, emitting only messages at or below
// threshold.
func New(w io.Writer, threshold Level) *Logger {
	return &Logger{w: w, threshold: threshold}
}

func (l *Logger) log(level Level, format string, args ...interface{}) {
	if l == nil || l.w == nil || level > l.threshold {
		return
	}
	fmt.Fprintf(l.w, "["+level.String()+"] "+format+"\n", args...)
}

func (l *Logger) Errorf(format string, args ...interface{}) { l.log(LevelError, format, args...) }
func (l *Logger) Warnf(format string, args ...interface{})  { l.log(LevelWarn, format, args...) }
func (l *Logger) Debugf(format string, args ...interface{}) { l.log(LevelDebug, format, args...) }
