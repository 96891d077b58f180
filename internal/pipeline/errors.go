package pipeline

import (
	"errors"
	"fmt"
)

// ErrorKind is the client-visible failure class of a scan.
type ErrorKind string

const (
	// KindInvalidInput: malformed or missing image or user reference.
	// Nothing was processed.
	KindInvalidInput ErrorKind = "invalid_input"
	// KindUserNotFound: the user reference is well formed but unknown.
	KindUserNotFound ErrorKind = "user_not_found"
	// KindRecognition: the OCR engine failed or returned no usable text.
	KindRecognition ErrorKind = "recognition_failed"
	// KindStorage: a store call failed. When it happens after computation
	// the Result is still returned alongside the error.
	KindStorage ErrorKind = "storage_error"
	// KindInternal classifies errors that did not come from the pipeline.
	KindInternal ErrorKind = "internal_error"
)

// Error is returned by Pipeline.Run.
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}
	return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func newError(kind ErrorKind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// KindOf classifies err. A nil error has no kind.
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}
	var perr *Error
	if errors.As(err, &perr) {
		return perr.Kind
	}
	return KindInternal
}

// MessageOf returns the client-facing message for err.
func MessageOf(err error) string {
	var perr *Error
	if errors.As(err, &perr) {
		return perr.Message
	}
	if err == nil {
		return ""
	}
	return "Error processing scan"
}
