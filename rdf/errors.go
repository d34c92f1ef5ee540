package rdf

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
)

// ErrorCode represents a programmatic error code for error handling.
type ErrorCode string

const (
	// ErrCodeUnsupportedFormat indicates an unsupported format.
	ErrCodeUnsupportedFormat ErrorCode = "UNSUPPORTED_FORMAT"
	// ErrCodeLineTooLong indicates a line exceeded the configured limit.
	ErrCodeLineTooLong ErrorCode = "LINE_TOO_LONG"
	// ErrCodeParseError indicates a general parse error.
	ErrCodeParseError ErrorCode = "PARSE_ERROR"
	// ErrCodeIOError indicates an I/O error.
	ErrCodeIOError ErrorCode = "IO_ERROR"
	// ErrCodeContextCanceled indicates the context was canceled.
	ErrCodeContextCanceled ErrorCode = "CONTEXT_CANCELED"
)

var (
	// ErrUnsupportedFormat indicates an unsupported format.
	ErrUnsupportedFormat = errors.New("unsupported RDF format")
	// ErrLineTooLong indicates a line exceeded the configured limit.
	ErrLineTooLong = errors.New("rdf: line exceeds configured limit")
	// ErrInvalidStatement is returned by encoders for quads missing a field.
	ErrInvalidStatement = errors.New("rdf: statement has missing or misplaced terms")
)

// Code returns the error code for an error, or ErrCodeParseError if unknown.
// Returns empty string for nil errors or io.EOF (which is not an error condition).
func Code(err error) ErrorCode {
	if err == nil || err == io.EOF {
		return ""
	}

	switch {
	case errors.Is(err, ErrUnsupportedFormat):
		return ErrCodeUnsupportedFormat
	case errors.Is(err, ErrLineTooLong):
		return ErrCodeLineTooLong
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return ErrCodeContextCanceled
	}

	var parseErr *ParseError
	if errors.As(err, &parseErr) {
		return ErrCodeParseError
	}
	var ioErr *IOError
	if errors.As(err, &ioErr) {
		return ErrCodeIOError
	}
	return ErrCodeParseError
}

// ParseError provides structured context for parse failures.
type ParseError struct {
	Format    Format // Format of the input
	Statement string // Offending line or input excerpt
	Line      int    // 1-based line number (0 if unknown)
	Column    int    // 1-based column number (0 if unknown)
	Err       error  // Underlying error
}

func (e *ParseError) Error() string {
	var msg strings.Builder
	msg.WriteString(string(e.Format))
	if e.Line > 0 {
		if e.Column > 0 {
			fmt.Fprintf(&msg, ":%d:%d", e.Line, e.Column)
		} else {
			fmt.Fprintf(&msg, ":%d", e.Line)
		}
	}
	msg.WriteString(": ")
	msg.WriteString(e.Err.Error())
	if excerpt := e.excerpt(); excerpt != "" {
		msg.WriteString("\n  ")
		msg.WriteString(excerpt)
	}
	return msg.String()
}

func (e *ParseError) Unwrap() error { return e.Err }

// excerpt shows at most 80 bytes of the statement, centered on the column.
func (e *ParseError) excerpt() string {
	const contextLen = 40
	if e.Statement == "" {
		return ""
	}
	if e.Column <= 0 {
		if len(e.Statement) > 2*contextLen {
			return e.Statement[:2*contextLen] + "..."
		}
		return e.Statement
	}
	at := e.Column - 1
	if at > len(e.Statement) {
		at = len(e.Statement)
	}
	start, end := at-contextLen, at+contextLen
	if start < 0 {
		start = 0
	}
	if end > len(e.Statement) {
		end = len(e.Statement)
	}
	excerpt := e.Statement[start:end]
	caret := at - start
	if start > 0 {
		excerpt = "..." + excerpt
		caret += 3
	}
	if end < len(e.Statement) {
		excerpt += "..."
	}
	return excerpt + "\n  " + strings.Repeat(" ", caret) + "^"
}

// IOError wraps a failure of the underlying reader or writer.
type IOError struct {
	Op  string
	Err error
}

func (e *IOError) Error() string { return "rdf: " + e.Op + ": " + e.Err.Error() }

func (e *IOError) Unwrap() error { return e.Err }
