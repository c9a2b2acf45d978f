package types

import (
	"errors"
	"fmt"
)

// ErrorKind partitions sentinel failures by how the cycle loop must react.
type ErrorKind string

const (
	// ErrConfig marks an invalid or missing startup parameter. Fatal: the
	// process exits before the loop starts.
	ErrConfig ErrorKind = "config"
	// ErrData marks a malformed or failed upstream response. Recoverable: the
	// cycle is skipped after logging.
	ErrData ErrorKind = "data"
	// ErrExecution marks invalid unwind sizing. Recoverable: the cycle is
	// skipped after logging, not retried.
	ErrExecution ErrorKind = "execution"
	// ErrIo marks a local resource failure (audit file, socket). Logged; stops
	// nothing except the dashboard server at bind time.
	ErrIo ErrorKind = "io"
)

// AegisError carries the failure kind, the operation or upstream that failed and
// the raw cause, so every failure path can be diagnosed without rerunning.
type AegisError struct {
	Kind ErrorKind
	Op   string
	Err  error
}

func (e *AegisError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s error: %s: %v", e.Kind, e.Op, e.Err)
	}
	return fmt.Sprintf("%s error: %s", e.Kind, e.Op)
}

func (e *AegisError) Unwrap() error { return e.Err }

// NewError wraps cause as an AegisError of the given kind.
func NewError(kind ErrorKind, op string, cause error) *AegisError {
	return &AegisError{Kind: kind, Op: op, Err: cause}
}

// Errorf builds an AegisError from a formatted message.
func Errorf(kind ErrorKind, op string, format string, args ...any) *AegisError {
	return &AegisError{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

// KindOf reports the ErrorKind of err, or "" if err is not an AegisError.
func KindOf(err error) ErrorKind {
	var ae *AegisError
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return ""
}
