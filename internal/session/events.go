package session

import (
	"context"
	"errors"
	"time"

	"github.com/nerrad567/catalog-session/internal/auth"
)

// Op names a session operation.
type Op string

// Session operations reported to a Recorder.
const (
	OpRestore  Op = "restore"
	OpLogin    Op = "login"
	OpRegister Op = "register"
	OpRefresh  Op = "refresh"
	OpLogout   Op = "logout"
)

// Outcome is the coarse result of an operation, derived from its error.
type Outcome string

// Outcomes.
const (
	OutcomeSuccess            Outcome = "success"
	OutcomeInvalidCredentials Outcome = "invalid_credentials"
	OutcomeNetworkUnavailable Outcome = "network_unavailable"
	OutcomeServerError        Outcome = "server_error"
	OutcomeRefreshDenied      Outcome = "refresh_denied"
	OutcomeStoreWriteFailed   Outcome = "store_write_failed"
	OutcomeValidation         Outcome = "validation"
	OutcomeSuperseded         Outcome = "superseded"
	OutcomeError              Outcome = "error"
)

// Event describes one completed session operation. It never carries tokens
// or passwords.
type Event struct {
	Op       Op
	Outcome  Outcome
	UserID   string
	Role     auth.Role
	Duration time.Duration
	Err      error
	At       time.Time
}

// Recorder receives an Event after every operation. Implementations must
// not call back into the Manager.
type Recorder interface {
	Record(ctx context.Context, ev Event)
}

// OutcomeOf classifies err into an Outcome.
func OutcomeOf(err error) Outcome {
	switch {
	case err == nil:
		return OutcomeSuccess
	case errors.Is(err, auth.ErrSuperseded):
		return OutcomeSuperseded
	case errors.Is(err, auth.ErrValidation):
		return OutcomeValidation
	case errors.Is(err, auth.ErrInvalidCredentials):
		return OutcomeInvalidCredentials
	case errors.Is(err, auth.ErrNetworkUnavailable):
		return OutcomeNetworkUnavailable
	case errors.Is(err, auth.ErrRefreshDenied):
		return OutcomeRefreshDenied
	case errors.Is(err, auth.ErrStoreWriteFailed):
		return OutcomeStoreWriteFailed
	case errors.Is(err, auth.ErrServerError):
		return OutcomeServerError
	default:
		return OutcomeError
	}
}
