package authapi

import (
	"context"
	"net/http"
)

// TokenSource supplies the access token for outgoing requests and renews it
// on demand. *session.Manager satisfies it.
type TokenSource interface {
	AccessToken() (string, bool)
	Refresh(ctx context.Context) error
}

// BearerTransport is an http.RoundTripper that sets the Authorization header
// from a TokenSource. A 401 response triggers one refresh and one retry; a
// failed refresh returns the original 401 response untouched.
type BearerTransport struct {
	Source TokenSource

	// Base is the underlying transport; http.DefaultTransport when nil.
	Base http.RoundTripper
}

// RoundTrip implements http.RoundTripper.
func (t *BearerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	token, ok := t.Source.AccessToken()
	if !ok {
		return t.base().RoundTrip(req)
	}

	resp, err := t.base().RoundTrip(withBearer(req, token))
	if err != nil || resp.StatusCode != http.StatusUnauthorized {
		return resp, err
	}

	// The body has been consumed; without GetBody the request cannot be replayed.
	if req.Body != nil && req.GetBody == nil {
		return resp, nil
	}
	if err := t.Source.Refresh(req.Context()); err != nil {
		return resp, nil //nolint:nilerr // the caller sees the 401 it would have got anyway
	}
	renewed, ok := t.Source.AccessToken()
	if !ok || renewed == token {
		return resp, nil
	}

	retry := withBearer(req, renewed)
	if req.GetBody != nil {
		body, err := req.GetBody()
		if err != nil {
			return resp, nil //nolint:nilerr // fall back to the original response
		}
		retry.Body = body
	}
	resp.Body.Close() //nolint:errcheck // Discarding the rejected response
	return t.base().RoundTrip(retry)
}

func (t *BearerTransport) base() http.RoundTripper {
	if t.Base != nil {
		return t.Base
	}
	return http.DefaultTransport
}

// withBearer clones req with the Authorization header set. RoundTrippers
// must not modify the caller's request.
func withBearer(req *http.Request, token string) *http.Request {
	out := req.Clone(req.Context())
	out.Header.Set("Authorization", "Bearer "+token)
	return out
}
