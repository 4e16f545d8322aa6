package console

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/nerrad567/catalog-session/internal/auth"
)

// Error represents a structured error response.
type Error struct {
	Status  int               `json:"status"`
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
}

// Common error codes.
const (
	ErrCodeBadRequest         = "bad_request"
	ErrCodeUnauthorized       = "unauthorised"
	ErrCodeValidation         = "validation_error"
	ErrCodeInvalidCredentials = "invalid_credentials"
	ErrCodeNetworkUnavailable = "network_unavailable"
	ErrCodeServerError        = "server_error"
	ErrCodeSuperseded         = "superseded"
	ErrCodeStoreWriteFailed   = "store_write_failed"
	ErrCodeInternal           = "internal_error"
)

// writeJSON writes a JSON response with the given status code and payload.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		//nolint:errcheck // Best-effort write to response; connection may be closed
		json.NewEncoder(w).Encode(v)
	}
}

// writeError writes a structured error response.
func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, Error{
		Status:  status,
		Code:    code,
		Message: message,
	})
}

// writeBadRequest writes a 400 error response.
func writeBadRequest(w http.ResponseWriter, message string) {
	writeError(w, http.StatusBadRequest, ErrCodeBadRequest, message)
}

// writeInternalError writes a 500 error response.
func writeInternalError(w http.ResponseWriter, message string) {
	writeError(w, http.StatusInternalServerError, ErrCodeInternal, message)
}

// writeSessionError maps a session operation error onto a status and code.
// The message is what the login and register forms show inline.
func writeSessionError(w http.ResponseWriter, err error) {
	resp := Error{Message: auth.DisplayMessage(err)}

	var ve *auth.ValidationError
	switch {
	case errors.As(err, &ve):
		resp.Status, resp.Code, resp.Fields = http.StatusBadRequest, ErrCodeValidation, ve.Fields
	case errors.Is(err, auth.ErrInvalidCredentials):
		resp.Status, resp.Code = http.StatusUnauthorized, ErrCodeInvalidCredentials
	case errors.Is(err, auth.ErrNetworkUnavailable):
		resp.Status, resp.Code = http.StatusServiceUnavailable, ErrCodeNetworkUnavailable
	case errors.Is(err, auth.ErrServerError):
		resp.Status, resp.Code = http.StatusBadGateway, ErrCodeServerError
	case errors.Is(err, auth.ErrSuperseded):
		resp.Status, resp.Code = http.StatusConflict, ErrCodeSuperseded
	case errors.Is(err, auth.ErrStoreWriteFailed):
		resp.Status, resp.Code = http.StatusInternalServerError, ErrCodeStoreWriteFailed
	default:
		resp.Status, resp.Code = http.StatusInternalServerError, ErrCodeInternal
	}

	writeJSON(w, resp.Status, resp)
}
