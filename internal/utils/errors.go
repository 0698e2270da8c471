// Package utils holds small shared helpers: structured logging setup,
// error wrapping, string truncation, and latency tracking.
package utils

import "fmt"

// AppError wraps an operation name, a human-facing message, and the
// underlying error. Source clients and the playbook loader use it so
// callers can log one line and still errors.Unwrap to the cause.
type AppError struct {
	Op  string
	Msg string
	Err error
}

func (e *AppError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Msg)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Msg, e.Err)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// NewAppError constructs an AppError.
func NewAppError(op, msg string, err error) error {
	return &AppError{Op: op, Msg: msg, Err: err}
}
