// Package errs defines the error taxonomy shared by the transfer engine.
//
// Every failure surfaced by the engine can be matched with errors.As against
// one of the types below; callers add context with fmt.Errorf("...: %w", err).
package errs

import (
	"errors"
	"fmt"
	"strings"
)

// ErrQueueFull is returned when a transfer cannot be queued because every
// worker is busy and the queue is at capacity.
var ErrQueueFull = errors.New("transfer queue is full")

// TransportError reports a failure reaching the store (DNS, refused
// connection, timeout, cancelled request).
type TransportError struct {
	Endpoint string
	Err      error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport error contacting %s: %v", e.Endpoint, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// QueryFailedError reports a non-200 answer from the store.
type QueryFailedError struct {
	StatusCode int
	Body       string
}

func (e *QueryFailedError) Error() string {
	return fmt.Sprintf("query failed with status code: %d, body: %s", e.StatusCode, strings.TrimSpace(e.Body))
}

// ColumnNotFoundError reports a requested column absent from a file header.
type ColumnNotFoundError struct {
	Column    string
	Available []string
}

func (e *ColumnNotFoundError) Error() string {
	return fmt.Sprintf("column not found: %s. Available columns: [%s]", e.Column, strings.Join(e.Available, ", "))
}

// FormatError reports an invalid delimiter configuration or an unparsable file.
type FormatError struct {
	Line int // 0 when not tied to a line
	Msg  string
	Err  error
}

func (e *FormatError) Error() string {
	var b strings.Builder
	b.WriteString("format error")
	if e.Line > 0 {
		fmt.Fprintf(&b, " on line %d", e.Line)
	}
	if e.Msg != "" {
		b.WriteString(": ")
		b.WriteString(e.Msg)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *FormatError) Unwrap() error { return e.Err }

// IOError reports a file open/read/write failure.
type IOError struct {
	Op   string
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }

// Formatf builds a FormatError without an underlying cause.
func Formatf(format string, args ...any) error {
	return &FormatError{Msg: fmt.Sprintf(format, args...)}
}
