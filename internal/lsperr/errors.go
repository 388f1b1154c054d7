// Package lsperr defines the error taxonomy returned by the symbol service
// and its supporting components. Every error the public API can return is
// one of the concrete kinds here, so callers can branch with errors.As
// instead of matching on strings.
package lsperr

import "fmt"

// Kind identifies one row of the error taxonomy.
type Kind string

const (
	KindPathEscape       Kind = "path_escape"
	KindPathIgnored      Kind = "path_ignored"
	KindReadOnly         Kind = "read_only"
	KindSymbolNotFound   Kind = "symbol_not_found"
	KindAmbiguousSymbol  Kind = "ambiguous_symbol"
	KindLinesNotRead     Kind = "lines_not_read"
	KindMissingToolchain Kind = "missing_toolchain"
	KindServerInitFailed Kind = "server_init_failed"
	KindServerUnavailable Kind = "server_unavailable"
	KindTimeout          Kind = "timeout"
	KindCancelled        Kind = "cancelled"
	KindProtocol         Kind = "protocol"
)

// Error is the concrete type behind every Kind. Argument carries whatever
// value (path, name path, language name) is most useful for the caller to
// report back to a user.
type Error struct {
	Kind     Kind
	Argument string
	Message  string
	Cause    error
}

func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Argument != "" {
		return fmt.Sprintf("%s: %s", e.Kind, e.Argument)
	}
	return string(e.Kind)
}

func (e *Error) Unwrap() error { return e.Cause }

// Is lets errors.Is(err, lsperr.KindSymbolNotFound) work directly against a
// Kind value, without requiring callers to construct a throwaway *Error.
func (e *Error) Is(target error) bool {
	k, ok := target.(Kind)
	return ok && e.Kind == k
}

// Error makes Kind itself usable as a sentinel with errors.Is.
func (k Kind) Error() string { return string(k) }

func newErr(kind Kind, argument, format string, args ...any) *Error {
	return &Error{Kind: kind, Argument: argument, Message: fmt.Sprintf(format, args...)}
}

func PathEscape(path string) error {
	return newErr(KindPathEscape, path, "path escapes project root: %s", path)
}

func PathIgnored(path string) error {
	return newErr(KindPathIgnored, path, "path is ignored: %s", path)
}

func ReadOnly(path string) error {
	return newErr(KindReadOnly, path, "project is read-only, cannot modify: %s", path)
}

func SymbolNotFound(namePath string) error {
	return newErr(KindSymbolNotFound, namePath, "no symbol matches name path: %s", namePath)
}

func AmbiguousSymbol(namePath string, count int) error {
	return newErr(KindAmbiguousSymbol, namePath, "name path %q matches %d symbols, expected exactly one", namePath, count)
}

func LinesNotRead(path string) error {
	return newErr(KindLinesNotRead, path, "lines have not been read yet for: %s", path)
}

func MissingToolchain(language string, cause error) *Error {
	err := newErr(KindMissingToolchain, language, "no language server toolchain available for %s", language)
	err.Cause = cause
	return err
}

func ServerInitFailed(language string, cause error) *Error {
	err := newErr(KindServerInitFailed, language, "language server for %s failed to initialize", language)
	err.Cause = cause
	return err
}

func ServerUnavailable(language string) error {
	return newErr(KindServerUnavailable, language, "no running language server for: %s", language)
}

func Timeout(operation string) error {
	return newErr(KindTimeout, operation, "operation timed out: %s", operation)
}

func Cancelled(operation string) error {
	return newErr(KindCancelled, operation, "operation was cancelled: %s", operation)
}

func Protocol(detail string, cause error) *Error {
	err := newErr(KindProtocol, "", "protocol error: %s", detail)
	err.Cause = cause
	return err
}
