// Package lcerr defines the failure taxonomy for line-canon.
//
// Every configuration or decoding error raised by the charset registry,
// byte sources, transcoder, or line reader maps to exactly one FailureClass.
// The class is a stable key: tests and callers assert on it rather than on
// message text. Comparison mismatches are not errors and never appear here.
package lcerr

import (
	"errors"
	"fmt"
)

// FailureClass is a stable failure category.
type FailureClass string

const (
	MissingCharset     FailureClass = "MISSING_CHARSET"
	UnsupportedCharset FailureClass = "UNSUPPORTED_CHARSET"
	InvalidRow         FailureClass = "INVALID_ROW"
	SourceUnavailable  FailureClass = "SOURCE_UNAVAILABLE"
	DecodeIO           FailureClass = "DECODE_IO"
	ReadAfterClose     FailureClass = "READ_AFTER_CLOSE"
	InvalidSuite       FailureClass = "INVALID_SUITE"
	InvalidEvidence    FailureClass = "INVALID_EVIDENCE"
	CLIUsage           FailureClass = "CLI_USAGE"
	InternalIO         FailureClass = "INTERNAL_IO"
	InternalError      FailureClass = "INTERNAL_ERROR"
)

// ExitCode returns the process exit code for this failure class.
func (fc FailureClass) ExitCode() int {
	switch fc {
	case InternalIO, InternalError:
		return 10
	default:
		return 2
	}
}

// Error is the structured error type for all line-canon failures.
//
// Offset is the zero-based row or line index the failure refers to, or -1.
type Error struct {
	Class   FailureClass
	Offset  int
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *Error) Error() string {
	var s string
	if e.Offset >= 0 {
		s = fmt.Sprintf("lcerr: %s at index %d: %s", e.Class, e.Offset, e.Message)
	} else {
		s = fmt.Sprintf("lcerr: %s: %s", e.Class, e.Message)
	}
	if e.Cause != nil {
		s += ": " + e.Cause.Error()
	}
	return s
}

// Unwrap returns the underlying cause, if any.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target is an *Error of the same class. It lets callers
// match with errors.Is(err, lcerr.New(lcerr.DecodeIO, -1, "")).
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Class == e.Class
}

// New creates a new Error with the given class and message.
func New(class FailureClass, offset int, message string) *Error {
	return &Error{Class: class, Offset: offset, Message: message}
}

// Wrap creates a new Error wrapping an existing error.
func Wrap(class FailureClass, offset int, message string, cause error) *Error {
	return &Error{Class: class, Offset: offset, Message: message, Cause: cause}
}

// ClassOf returns the class of the first *Error in err's chain.
func ClassOf(err error) (FailureClass, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Class, true
	}
	return "", false
}

// CloseInto runs closeFn and folds its error into *errp. An error already
// stored in *errp wins and the close error is discarded; otherwise the close
// error becomes the result. Intended for deferred use:
//
//	defer lcerr.CloseInto(&err, rc.Close)
func CloseInto(errp *error, closeFn func() error) {
	cerr := closeFn()
	if cerr == nil || *errp != nil {
		return
	}
	*errp = cerr
}
