// Package authapitest provides an in-process catalog authentication server
// for tests and local development.
//
// The server implements the login, register and refresh exchanges with the
// same wire format as the real API. Access tokens are HS256 JWTs; refresh
// tokens are opaque uuids. Responses can be overridden, delayed or held per
// path to exercise failure and ordering behaviour.
//
//	srv := authapitest.New()
//	defer srv.Close()
//	srv.AddUser("Ada", "ada@example.com", "secret", auth.RoleAdmin)
//	client, _ := authapi.New(authapi.Config{BaseURL: srv.URL})
package authapitest

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/nerrad567/catalog-session/internal/auth"
	"github.com/nerrad567/catalog-session/internal/authapi"
)

// DefaultSecret signs access tokens when no secret is configured.
const DefaultSecret = "authapitest-signing-secret"

// accessTokenTTL is the lifetime stamped on issued access tokens.
const accessTokenTTL = 15 * time.Minute

// ErrTokenInvalid is returned by ParseToken for tokens this server did not issue.
var ErrTokenInvalid = errors.New("token invalid")

// Claims are the access token claims issued by the server.
type Claims struct {
	jwt.RegisteredClaims
	Role auth.Role `json:"role"`
}

// Response is a canned reply returned instead of normal handling.
type Response struct {
	Status int
	Body   string
}

type account struct {
	identity auth.Identity
	password string
}

// Server is a fake catalog authentication API.
//
// Thread Safety: all methods are safe for concurrent use.
type Server struct {
	*httptest.Server

	secret []byte

	mu       sync.Mutex
	accounts map[string]*account // by email
	refresh  map[string]string   // refresh token -> user id
	canned   map[string][]Response
	delays   map[string]time.Duration
	holds    map[string]chan struct{}
	requests map[string]int
}

// New starts a Server signing with DefaultSecret.
func New() *Server {
	return NewWithSecret(DefaultSecret)
}

// NewWithSecret starts a Server signing access tokens with secret.
func NewWithSecret(secret string) *Server {
	s := &Server{
		secret:   []byte(secret),
		accounts: make(map[string]*account),
		refresh:  make(map[string]string),
		canned:   make(map[string][]Response),
		delays:   make(map[string]time.Duration),
		holds:    make(map[string]chan struct{}),
		requests: make(map[string]int),
	}
	s.Server = httptest.NewServer(s.routes())
	return s
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(s.track)
	r.Post(authapi.PathLogin, s.handleLogin)
	r.Post(authapi.PathRegister, s.handleRegister)
	r.Post(authapi.PathRefresh, s.handleRefresh)
	return r
}

// AddUser registers an account and returns its identity.
func (s *Server) AddUser(name, email, password string, role auth.Role) auth.Identity {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addLocked(name, email, password, role)
}

func (s *Server) addLocked(name, email, password string, role auth.Role) auth.Identity {
	id := auth.Identity{ID: uuid.NewString(), Name: name, Email: strings.ToLower(email), Role: role}
	s.accounts[id.Email] = &account{identity: id, password: password}
	return id
}

// Enqueue makes the next request to path return resp instead of being
// handled. Multiple calls queue in order.
func (s *Server) Enqueue(path string, resp Response) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.canned[path] = append(s.canned[path], resp)
}

// Fail is shorthand for Enqueue with a {"message"} body.
func (s *Server) Fail(path string, status int, message string) {
	body, _ := json.Marshal(map[string]string{"message": message}) //nolint:errcheck // map of strings always encodes
	s.Enqueue(path, Response{Status: status, Body: string(body)})
}

// SetDelay delays every response on path by d. Zero removes the delay.
func (s *Server) SetDelay(path string, d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if d <= 0 {
		delete(s.delays, path)
		return
	}
	s.delays[path] = d
}

// Hold blocks requests on path until the returned release func is called.
// Requests that arrive while held wait; release is idempotent.
func (s *Server) Hold(path string) (release func()) {
	ch := make(chan struct{})
	s.mu.Lock()
	s.holds[path] = ch
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			if s.holds[path] == ch {
				delete(s.holds, path)
			}
			s.mu.Unlock()
			close(ch)
		})
	}
}

// Requests returns how many requests reached path.
func (s *Server) Requests(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requests[path]
}

// RevokeRefresh invalidates a previously issued refresh token.
func (s *Server) RevokeRefresh(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.refresh, token)
}

// ParseToken validates an access token issued by this server.
func (s *Server) ParseToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(_ *jwt.Token) (any, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTokenInvalid, err)
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.Subject == "" {
		return nil, ErrTokenInvalid
	}
	return claims, nil
}

// track counts requests, applies holds and delays, and serves canned responses.
func (s *Server) track(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Path

		s.mu.Lock()
		s.requests[path]++
		hold := s.holds[path]
		delay := s.delays[path]
		var canned *Response
		if q := s.canned[path]; len(q) > 0 {
			canned = &q[0]
			s.canned[path] = q[1:]
		}
		s.mu.Unlock()

		if hold != nil {
			select {
			case <-hold:
			case <-r.Context().Done():
				return
			}
		}
		if delay > 0 {
			select {
			case <-time.After(delay):
			case <-r.Context().Done():
				return
			}
		}

		if canned != nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(canned.Status)
			w.Write([]byte(canned.Body)) //nolint:errcheck // best-effort write to client
			return
		}
		next.ServeHTTP(w, r)
	})
}

type credentialsBody struct {
	Name         string `json:"name"`
	Email        string `json:"email"`
	Password     string `json:"password"`
	RefreshToken string `json:"refreshToken"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var body credentialsBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}

	s.mu.Lock()
	acct, ok := s.accounts[strings.ToLower(body.Email)]
	s.mu.Unlock()
	if !ok || acct.password != body.Password {
		writeMessage(w, http.StatusUnauthorized, "Invalid email or password")
		return
	}
	s.issue(w, http.StatusOK, acct.identity)
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var body credentialsBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if body.Name == "" || body.Email == "" || body.Password == "" {
		writeMessage(w, http.StatusBadRequest, "name, email and password are required")
		return
	}

	s.mu.Lock()
	if _, exists := s.accounts[strings.ToLower(body.Email)]; exists {
		s.mu.Unlock()
		writeMessage(w, http.StatusConflict, "Email already registered")
		return
	}
	id := s.addLocked(body.Name, body.Email, body.Password, auth.RoleUser)
	s.mu.Unlock()

	s.issue(w, http.StatusCreated, id)
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var body credentialsBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.RefreshToken == "" {
		writeMessage(w, http.StatusBadRequest, "refresh token is required")
		return
	}

	s.mu.Lock()
	userID, ok := s.refresh[body.RefreshToken]
	var identity auth.Identity
	for _, a := range s.accounts {
		if a.identity.ID == userID {
			identity = a.identity
			break
		}
	}
	s.mu.Unlock()
	if !ok || identity.ID == "" {
		writeMessage(w, http.StatusUnauthorized, "Invalid refresh token")
		return
	}

	token, err := s.sign(identity)
	if err != nil {
		writeMessage(w, http.StatusInternalServerError, "signing failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"token": token})
}

// issue writes a full credential bundle for id.
func (s *Server) issue(w http.ResponseWriter, status int, id auth.Identity) {
	token, err := s.sign(id)
	if err != nil {
		writeMessage(w, http.StatusInternalServerError, "signing failed")
		return
	}
	refresh := uuid.NewString()

	s.mu.Lock()
	s.refresh[refresh] = id.ID
	s.mu.Unlock()

	writeJSON(w, status, map[string]any{
		"token":        token,
		"refreshToken": refresh,
		"user":         id,
	})
}

func (s *Server) sign(id auth.Identity) (string, error) {
	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(accessTokenTTL)),
			ID:        uuid.NewString(),
		},
		Role: id.Role,
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("signing access token: %w", err)
	}
	return signed, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // best-effort write to client
}

func writeMessage(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"message": message})
}
