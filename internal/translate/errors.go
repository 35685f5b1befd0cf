package translate

import (
	"errors"
	"fmt"
)

// ErrorKind is the terminal failure class of a run.
type ErrorKind string

const (
	KindConfiguration  ErrorKind = "configuration"
	KindNotFound       ErrorKind = "not_found"
	KindRateLimit      ErrorKind = "rate_limit"
	KindAuthentication ErrorKind = "authentication"
	KindPersistence    ErrorKind = "persistence"
	KindAlreadyRunning ErrorKind = "already_running"
	KindCanceled       ErrorKind = "canceled"
)

var ErrAlreadyRunning = errors.New("translation already in progress")

// Error is returned for every failed run. Message is safe to show to the user.
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil && e.Message == "" {
		return e.Err.Error()
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the kind carried by err, or "" for other errors.
func KindOf(err error) ErrorKind {
	var runErr *Error
	if errors.As(err, &runErr) {
		return runErr.Kind
	}
	return ""
}

// UserMessage is the text surfaced to the panel or CLI for a failed run.
func UserMessage(err error) string {
	var runErr *Error
	if errors.As(err, &runErr) && runErr.Message != "" {
		return runErr.Message
	}
	if err == nil {
		return ""
	}
	return err.Error()
}

func newError(kind ErrorKind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}
