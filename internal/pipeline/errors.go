package pipeline

import (
	"errors"
	"fmt"
)

// ErrorClassifier allows errors to declare their classification for logging
// and outcome reporting.
type ErrorClassifier interface {
	ErrorKind() string
}

// ErrorKind returns the classification of err, or "internal" when err does
// not declare one.
func ErrorKind(err error) string {
	if err == nil {
		return ""
	}
	var classifier ErrorClassifier
	if errors.As(err, &classifier) {
		return classifier.ErrorKind()
	}
	return "internal"
}

type kindError struct {
	kind string
	msg  string
}

func (e *kindError) Error() string     { return e.msg }
func (e *kindError) ErrorKind() string { return e.kind }

// ErrCorruptedSession reports a ready session whose files are gone. The
// session is reset when this is returned.
var ErrCorruptedSession error = &kindError{kind: "corrupted_session", msg: "session references missing files"}

// DeliveryError wraps a failed video delivery. Delivery is not retried.
type DeliveryError struct {
	Err error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("deliver video: %v", e.Err)
}

func (e *DeliveryError) Unwrap() error {
	return e.Err
}

// ErrorKind classifies the failure for callers that map errors to user messages.
func (e *DeliveryError) ErrorKind() string {
	return "delivery"
}
