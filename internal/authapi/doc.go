// Package authapi is the transport collaborator for the catalog server's
// authentication exchanges.
//
// It speaks the three JSON exchanges the session layer needs:
//
//	POST {base}/auth/login          {"email","password"}       -> {"token","refreshToken","user"}
//	POST {base}/auth/register       {"name","email","password"} -> {"token","refreshToken","user"}
//	POST {base}/auth/refresh-token  {"refreshToken"}            -> {"token"}
//
// Every failure is returned as an *auth.ExchangeError whose kind is one of
// the auth sentinels, so callers branch with errors.Is:
//
//   - transport errors and timeouts: auth.ErrNetworkUnavailable
//   - 4xx on login or register: auth.ErrInvalidCredentials
//   - 4xx on refresh: auth.ErrRefreshDenied
//   - 5xx, an undecodable body or an incomplete bundle: auth.ErrServerError
//
// The server's own "message" field is carried on the error for inline display.
//
// BearerTransport attaches the current access token to outgoing CRUD
// requests and retries once after a successful refresh when a request is
// rejected with 401.
package authapi
