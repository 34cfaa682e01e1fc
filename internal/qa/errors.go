package qa

import (
	"errors"
	"fmt"
)

// Machine-readable error codes. Components return coded errors instead of
// raising past their boundary; the service converts whatever survives into
// in-band answer text so the response shape never changes.
const (
	EINVALID       = "invalid"
	ELOAD          = "load_failed"
	ERATELIMIT     = "rate_limited"
	EUNAVAILABLE   = "unavailable"
	EINDEXNOTBUILT = "index_not_built"
	EEMPTYCORPUS   = "empty_corpus"
	EINTERNAL      = "internal"
)

// Error carries a code for branching plus a human-readable message.
type Error struct {
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Errorf builds a coded error.
func Errorf(code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// WrapError builds a coded error around a cause.
func WrapError(code string, err error, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), Err: err}
}

// ErrorCode returns the code of err, or EINTERNAL for non-domain errors.
// Returns "" for nil.
func ErrorCode(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return EINTERNAL
}
