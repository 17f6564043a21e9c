package cli

import (
	"errors"
	"fmt"
)

// Process exit codes.
const (
	ExitSuccess      = 0
	ExitFailure      = 1 // the command ran and found a problem: invalid schema, failed scenario, bad frame
	ExitCommandError = 2 // the command could not run: bad flags, missing files, unreachable server
)

// ExitError carries the process exit code out of a RunE.
type ExitError struct {
	Code    int
	Message string
	Err     error
}

func (e *ExitError) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return e.Message + ": " + e.Err.Error()
}

func (e *ExitError) Unwrap() error { return e.Err }

// NewExitError returns an ExitError without a cause.
func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

// WrapExitError attaches an exit code and context to err.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// exitErrorf is NewExitError with formatting.
func exitErrorf(code int, format string, args ...any) *ExitError {
	return NewExitError(code, fmt.Sprintf(format, args...))
}

// GetExitCode maps err to a process exit code. Errors that carry no code,
// such as cobra's flag errors, count as ExitFailure.
func GetExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}
