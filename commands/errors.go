package commands

import (
	"errors"
	"fmt"
)

var (
	// ErrCommandNotFound is returned when no command matches the invoked name.
	ErrCommandNotFound = errors.New("command not found")
	// ErrCommandDisabled is returned by checks that turn commands off.
	ErrCommandDisabled = errors.New("command disabled")
	// ErrNoPrivateMessage is returned when a guild-only command is used in
	// a direct message.
	ErrNoPrivateMessage = errors.New("command cannot be used in private messages")

	// ErrCheckFailure is the parent of every authorization failure.
	ErrCheckFailure       = errors.New("check failed")
	ErrNotOwner           = fmt.Errorf("%w: owner only", ErrCheckFailure)
	ErrPrivateMessageOnly = fmt.Errorf("%w: private messages only", ErrCheckFailure)
	ErrMissingPermissions = fmt.Errorf("%w: missing permissions", ErrCheckFailure)
)

// UserInputError reports arguments that could not be parsed or are missing.
type UserInputError struct {
	Reason string
}

func (e *UserInputError) Error() string {
	return "bad argument: " + e.Reason
}

// BadArgument returns a *UserInputError.
func BadArgument(format string, args ...any) error {
	return &UserInputError{Reason: fmt.Sprintf(format, args...)}
}

// UserError is an expected failure whose Message is shown to the user as is
// and which is not logged as an error.
type UserError struct {
	Err     error
	Message string
}

func (e *UserError) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return e.Err.Error() + ": " + e.Message
}

func (e *UserError) Unwrap() error { return e.Err }

// Reply wraps err so that msg is what the user sees.
func Reply(err error, msg string) error {
	return &UserError{Err: err, Message: msg}
}

type handledError struct{ err error }

func (e *handledError) Error() string { return e.err.Error() }
func (e *handledError) Unwrap() error { return e.err }

// Handled marks err as already reported to the user. The dispatcher only
// logs handled errors.
func Handled(err error) error {
	if err == nil {
		return nil
	}
	return &handledError{err: err}
}

// IsHandled reports whether err was marked with Handled.
func IsHandled(err error) bool {
	var h *handledError
	return errors.As(err, &h)
}
