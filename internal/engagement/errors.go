package engagement

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// Sentinels for errors.Is. ErrForbidden is also a server error.
var (
	ErrValidation = errors.New("validation error")
	ErrNetwork    = errors.New("network error")
	ErrServer     = errors.New("server error")
	ErrForbidden  = errors.New("forbidden")
)

type Kind int

const (
	KindValidation Kind = iota + 1
	KindNetwork
	KindServer
	KindForbidden
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNetwork:
		return "network"
	case KindServer:
		return "server"
	case KindForbidden:
		return "forbidden"
	default:
		return "unknown"
	}
}

// Error is returned by Remote implementations.
type Error struct {
	Kind    Kind
	Op      string
	Status  int
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.Status != 0 {
		return fmt.Sprintf("%s: %s error (%d): %s", e.Op, e.Kind, e.Status, msg)
	}
	return fmt.Sprintf("%s: %s error: %s", e.Op, e.Kind, msg)
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool {
	switch target {
	case ErrValidation:
		return e.Kind == KindValidation
	case ErrNetwork:
		return e.Kind == KindNetwork
	case ErrServer:
		return e.Kind == KindServer || e.Kind == KindForbidden
	case ErrForbidden:
		return e.Kind == KindForbidden
	}
	return false
}

func validationError(op, msg string) *Error {
	return &Error{Kind: KindValidation, Op: op, Message: msg}
}

func networkError(op string, err error) *Error {
	return &Error{Kind: KindNetwork, Op: op, Err: err}
}

func statusError(op string, status int, msg string) *Error {
	kind := KindServer
	if status == http.StatusForbidden {
		kind = KindForbidden
	}
	if msg == "" {
		msg = http.StatusText(status)
	}
	return &Error{Kind: kind, Op: op, Status: status, Message: msg}
}

// Retryable reports whether repeating the operation could succeed.
func Retryable(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		switch e.Kind {
		case KindNetwork:
			return true
		case KindServer:
			return e.Status == 0 || e.Status >= 500 || e.Status == http.StatusTooManyRequests
		}
		return false
	}
	return errors.Is(err, context.DeadlineExceeded)
}

// failure normalizes err into the shape handed to the view layer
func failure(err error) Result {
	msg := "something went wrong, please try again"
	switch {
	case errors.Is(err, ErrValidation):
		var e *Error
		if errors.As(err, &e) && e.Message != "" {
			msg = e.Message
		}
	case errors.Is(err, ErrForbidden):
		msg = "you are not allowed to do that"
	case errors.Is(err, ErrNetwork), errors.Is(err, context.DeadlineExceeded):
		msg = "network problem, your change was not saved"
	}
	return Result{Success: false, Message: msg, Retryable: Retryable(err)}
}
