package authapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/nerrad567/catalog-session/internal/auth"
)

// Exchange paths relative to the configured base URL.
const (
	PathLogin    = "/auth/login"
	PathRegister = "/auth/register"
	PathRefresh  = "/auth/refresh-token"
)

const (
	// defaultTimeout applies when Config.Timeout is zero.
	defaultTimeout = 10 * time.Second

	// maxResponseSize caps how much of a response body is read.
	maxResponseSize = 1 << 20
)

// Config configures a Client.
type Config struct {
	// BaseURL is the API root, e.g. "https://catalog.example.com/api".
	BaseURL string

	// Timeout bounds each exchange. A timed-out exchange is reported as
	// auth.ErrNetworkUnavailable.
	Timeout time.Duration

	// HTTPClient overrides the underlying client. Its Timeout is left as is.
	HTTPClient *http.Client
}

// Client performs the login, register and refresh exchanges against the
// catalog server.
//
// Thread Safety: safe for concurrent use.
type Client struct {
	baseURL string
	http    *http.Client
}

// New creates a Client.
func New(cfg Config) (*Client, error) {
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		return nil, fmt.Errorf("authapi: base URL is required")
	}

	hc := cfg.HTTPClient
	if hc == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		hc = &http.Client{Timeout: timeout}
	}

	return &Client{baseURL: base, http: hc}, nil
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type registerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// authResponse is the body of a successful login or register.
type authResponse struct {
	Token        string        `json:"token"`
	RefreshToken string        `json:"refreshToken"`
	User         auth.Identity `json:"user"`
}

type refreshResponse struct {
	Token string `json:"token"`
}

// errorResponse is the failure envelope; only message is used.
type errorResponse struct {
	Message string `json:"message"`
	Error   string `json:"error"`
}

// Login exchanges email and password for a credential bundle.
func (c *Client) Login(ctx context.Context, email, password string) (auth.Bundle, error) {
	var resp authResponse
	if err := c.post(ctx, PathLogin, loginRequest{Email: email, Password: password}, &resp, credentialFailure); err != nil {
		return auth.Bundle{}, fmt.Errorf("login: %w", err)
	}
	b, err := resp.bundle()
	if err != nil {
		return auth.Bundle{}, fmt.Errorf("login: %w", err)
	}
	return b, nil
}

// Register creates an account and returns its credential bundle.
func (c *Client) Register(ctx context.Context, name, email, password string) (auth.Bundle, error) {
	var resp authResponse
	req := registerRequest{Name: name, Email: email, Password: password}
	if err := c.post(ctx, PathRegister, req, &resp, credentialFailure); err != nil {
		return auth.Bundle{}, fmt.Errorf("register: %w", err)
	}
	b, err := resp.bundle()
	if err != nil {
		return auth.Bundle{}, fmt.Errorf("register: %w", err)
	}
	return b, nil
}

// Refresh exchanges a refresh token for a new access token.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (string, error) {
	var resp refreshResponse
	if err := c.post(ctx, PathRefresh, refreshRequest{RefreshToken: refreshToken}, &resp, refreshFailure); err != nil {
		return "", fmt.Errorf("refresh: %w", err)
	}
	if resp.Token == "" {
		return "", fmt.Errorf("refresh: %w", &auth.ExchangeError{Kind: auth.ErrServerError, Status: http.StatusOK, Message: "response carried no token"})
	}
	return resp.Token, nil
}

func (r authResponse) bundle() (auth.Bundle, error) {
	b := auth.Bundle{AccessToken: r.Token, RefreshToken: r.RefreshToken, Identity: r.User}
	if !b.Complete() {
		return auth.Bundle{}, &auth.ExchangeError{Kind: auth.ErrServerError, Status: http.StatusOK, Message: "response carried an incomplete credential bundle"}
	}
	return b, nil
}

// failureKind maps a non-2xx status to an error kind.
type failureKind func(status int) error

// credentialFailure maps login/register rejections. Other statuses, such as
// a 404 from a wrong base URL or a 429, are server-side problems.
func credentialFailure(status int) error {
	switch status {
	case http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden,
		http.StatusConflict, http.StatusUnprocessableEntity:
		return auth.ErrInvalidCredentials
	default:
		return auth.ErrServerError
	}
}

// refreshFailure maps refresh rejections.
func refreshFailure(status int) error {
	switch status {
	case http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden:
		return auth.ErrRefreshDenied
	default:
		return auth.ErrServerError
	}
}

// post sends body as JSON and decodes a 2xx response into out.
func (c *Client) post(ctx context.Context, path string, body, out any, kind failureKind) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encoding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return &auth.ExchangeError{Kind: auth.ErrNetworkUnavailable, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return &auth.ExchangeError{Kind: auth.ErrNetworkUnavailable, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return &auth.ExchangeError{Kind: auth.ErrNetworkUnavailable, Status: resp.StatusCode, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &auth.ExchangeError{
			Kind:    kind(resp.StatusCode),
			Status:  resp.StatusCode,
			Message: failureMessage(data),
		}
	}

	if err := json.Unmarshal(data, out); err != nil {
		return &auth.ExchangeError{Kind: auth.ErrServerError, Status: resp.StatusCode, Err: fmt.Errorf("decoding response: %w", err)}
	}
	return nil
}

// failureMessage extracts the human-readable message from a failure body.
func failureMessage(data []byte) string {
	var env errorResponse
	if err := json.Unmarshal(data, &env); err != nil {
		return ""
	}
	if env.Message != "" {
		return env.Message
	}
	return env.Error
}

// IsTimeout reports whether err came from an exchange that timed out.
func IsTimeout(err error) bool {
	var te interface{ Timeout() bool }
	return errors.As(err, &te) && te.Timeout()
}
