package core

import (
	"errors"
	"fmt"

	"github.com/mikey-austin/zonectl/pkg/zones"
)

// Exit codes.
const (
	ExitOK          = 0
	ExitRuntime     = 1
	ExitUsage       = 2
	ExitUnavailable = 3
	ExitNotFound    = 4
	ExitUnsupported = 5
)

// CLIError carries a user-visible message and exit code.
type CLIError struct {
	Code int
	Msg  string
	Err  error
}

func (e *CLIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *CLIError) Unwrap() error {
	return e.Err
}

// WrapError creates a CLIError with an underlying error.
func WrapError(code int, msg string, err error) *CLIError {
	return &CLIError{Code: code, Msg: msg, Err: err}
}

// ErrorForReplyCode maps protocol error codes to CLI exit codes.
func ErrorForReplyCode(code string, message string) *CLIError {
	switch code {
	case zones.CodeNotFound:
		return &CLIError{Code: ExitNotFound, Msg: message}
	case zones.CodeUnsupported:
		return &CLIError{Code: ExitUnsupported, Msg: message}
	case zones.CodeUnavailable:
		return &CLIError{Code: ExitUnavailable, Msg: message}
	case zones.CodeInvalid:
		return &CLIError{Code: ExitUsage, Msg: message}
	default:
		return &CLIError{Code: ExitRuntime, Msg: message}
	}
}

// ReplyCodeForError maps an error to a protocol error code.
func ReplyCodeForError(err error) string {
	var cliErr *CLIError
	if !errors.As(err, &cliErr) {
		return zones.CodeInternal
	}
	switch cliErr.Code {
	case ExitUsage:
		return zones.CodeInvalid
	case ExitNotFound:
		return zones.CodeNotFound
	case ExitUnsupported:
		return zones.CodeUnsupported
	case ExitUnavailable:
		return zones.CodeUnavailable
	default:
		return zones.CodeInternal
	}
}

// ExitCode returns the CLI exit code from error.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	var cliErr *CLIError
	if errors.As(err, &cliErr) {
		return cliErr.Code
	}
	return ExitRuntime
}
