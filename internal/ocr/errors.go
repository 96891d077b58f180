package ocr

import (
	"errors"
	"fmt"
)

// Reason classifies a recognition failure.
type Reason string

const (
	ReasonUnavailable Reason = "unavailable"
	ReasonTimeout     Reason = "timeout"
	ReasonUnreadable  Reason = "unreadable"
	ReasonEmpty       Reason = "empty"
	ReasonCanceled    Reason = "canceled"
)

// ErrUnreadable is wrapped by engines that cannot decode the image.
var ErrUnreadable = errors.New("unreadable image")

// RecognitionError is the only error the Recognizer returns.
type RecognitionError struct {
	Engine string
	Reason Reason
	Err    error
}

func (e *RecognitionError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("ocr %s: %s", e.Engine, e.Reason)
	}
	return fmt.Sprintf("ocr %s: %s: %v", e.Engine, e.Reason, e.Err)
}

func (e *RecognitionError) Unwrap() error { return e.Err }

// IsRecognitionError reports whether err is or wraps a RecognitionError.
func IsRecognitionError(err error) bool {
	var re *RecognitionError
	return errors.As(err, &re)
}
