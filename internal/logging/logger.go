// Package logging provides the small leveled wrapper around the standard
// library logger used throughout this module, the same way
// apps/cli/internal/lsp/server.go wraps log.New with a fixed prefix. Output
// never goes to stdout/stdin: those are reserved for the framed JSON-RPC
// wire protocol spoken with subprocess language servers.
package logging

import (
	"fmt"
	"io"
	"log"
	"strings"
)

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

// Logger wraps *log.Logger with a level filter and a fixed component
// prefix, mirroring the teacher's "[LSP] " prefix convention.
type Logger struct {
	std   *log.Logger
	min   Level
	scope string
}

// New creates a Logger writing to w, tagging every line with scope (e.g.
// "gopls" or "router").
func New(w io.Writer, scope string, min Level) *Logger {
	return &Logger{
		std:   log.New(w, "", log.LstdFlags),
		min:   min,
		scope: scope,
	}
}

// With returns a child logger sharing the same writer and level, scoped to
// a sub-component name (e.g. router.With("gopls")).
func (l *Logger) With(scope string) *Logger {
	return &Logger{std: l.std, min: l.min, scope: l.scope + "." + scope}
}

func (l *Logger) log(level Level, format string, args ...any) {
	if level < l.min {
		return
	}
	msg := fmt.Sprintf(format, args...)
	l.std.Printf("[%s] [%s] %s", level, l.scope, msg)
}

func (l *Logger) Debugf(format string, args ...any) { l.log(LevelDebug, format, args...) }
func (l *Logger) Infof(format string, args ...any)  { l.log(LevelInfo, format, args...) }
func (l *Logger) Warnf(format string, args ...any)  { l.log(LevelWarn, format, args...) }
func (l *Logger) Errorf(format string, args ...any) { l.log(LevelError, format, args...) }

// StderrClassifier maps a raw line from a language server subprocess's
// stderr to a Level. Adapters supply the predicate so known-chatty
// substrings (e.g. gopls's "Querying module" progress spam) never get
// escalated above Info.
type StderrClassifier func(line string) Level

// DefaultStderrClassifier treats anything mentioning "panic" or "fatal" as
// an error line, "error" or "warn" as a warning, and everything else as debug noise --
// most LSP servers are extremely chatty on stderr during normal operation.
func DefaultStderrClassifier(line string) Level {
	lower := strings.ToLower(line)
	for _, needle := range []string{"panic", "fatal"} {
		if strings.Contains(lower, needle) {
			return LevelError
		}
	}
	if strings.Contains(lower, "error") || strings.Contains(lower, "warn") {
		return LevelWarn
	}
	return LevelDebug
}
