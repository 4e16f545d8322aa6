package auth

import (
	"errors"
	"fmt"
)

// Error kinds surfaced by session operations. Check with errors.Is.
var (
	// ErrInvalidCredentials means the server rejected a login or registration.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrNetworkUnavailable means an exchange could not reach the server,
	// including transport timeouts.
	ErrNetworkUnavailable = errors.New("network unavailable")

	// ErrServerError means the server was reached but reported a failure or
	// answered with something unusable.
	ErrServerError = errors.New("server error")

	// ErrRefreshDenied means no refresh token is held or the server refused it.
	ErrRefreshDenied = errors.New("refresh denied")

	// ErrStoreWriteFailed means the credential store rejected a write.
	ErrStoreWriteFailed = errors.New("credential store write failed")

	// ErrValidation means input was rejected locally before any exchange.
	ErrValidation = errors.New("validation failed")

	// ErrSuperseded means a response arrived for an attempt that is no longer
	// current (a newer attempt, a logout, or cancellation) and was discarded.
	ErrSuperseded = errors.New("attempt superseded")

	// ErrMalformedIdentity means a persisted identity record could not be used.
	ErrMalformedIdentity = errors.New("malformed identity record")
)

// ExchangeError carries the server's human-readable message alongside the
// error kind of a failed login, register or refresh exchange.
type ExchangeError struct {
	// Kind is one of the sentinel errors above.
	Kind error

	// Status is the HTTP status returned by the server, 0 when none was received.
	Status int

	// Message is suitable for inline display; may be empty.
	Message string

	// Err is the underlying transport or decoding error, if any.
	Err error
}

func (e *ExchangeError) Error() string {
	switch {
	case e.Message != "" && e.Status != 0:
		return fmt.Sprintf("%v (status %d): %s", e.Kind, e.Status, e.Message)
	case e.Message != "":
		return fmt.Sprintf("%v: %s", e.Kind, e.Message)
	case e.Err != nil:
		return fmt.Sprintf("%v: %v", e.Kind, e.Err)
	case e.Status != 0:
		return fmt.Sprintf("%v (status %d)", e.Kind, e.Status)
	default:
		return e.Kind.Error()
	}
}

// Unwrap exposes both the kind and the underlying cause to errors.Is/As.
func (e *ExchangeError) Unwrap() []error {
	if e.Err != nil {
		return []error{e.Kind, e.Err}
	}
	return []error{e.Kind}
}

// DisplayMessage returns the message to show inline for err: the server's own
// message when one was provided, otherwise a generic text per error kind.
func DisplayMessage(err error) string {
	var xe *ExchangeError
	if errors.As(err, &xe) && xe.Message != "" {
		return xe.Message
	}
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve.Error()
	}

	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidCredentials):
		return "Invalid email or password"
	case errors.Is(err, ErrNetworkUnavailable):
		return "Unable to reach the server"
	case errors.Is(err, ErrRefreshDenied):
		return "Session expired"
	case errors.Is(err, ErrStoreWriteFailed):
		return "Unable to save the session on this device"
	default:
		return "Something went wrong, please try again"
	}
}
