package credstore

import (
	"context"
	"errors"
)

// Persisted key names.
const (
	KeyAccessToken  = "auth_token"
	KeyRefreshToken = "refresh_token"
	KeyIdentity     = "user"
)

// Keys lists the credential keys in write order. Clearing uses the same order.
var Keys = []string{KeyAccessToken, KeyRefreshToken, KeyIdentity}

var (
	// ErrUnavailable means the storage medium could not be reached.
	ErrUnavailable = errors.New("credstore: store unavailable")

	// ErrWriteFailed means the medium rejected a write or remove.
	ErrWriteFailed = errors.New("credstore: write failed")
)

// Store is a durable key→string mapping scoped to one namespace.
type Store interface {
	// Set writes value under key, replacing any previous value.
	Set(ctx context.Context, key, value string) error

	// Get returns the value under key. ok is false when the key is absent.
	Get(ctx context.Context, key string) (value string, ok bool, err error)

	// Remove clears key. Removing an absent key is not an error.
	Remove(ctx context.Context, key string) error
}
