package console

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/nerrad567/catalog-session/internal/audit"
	"github.com/nerrad567/catalog-session/internal/auth"
	"github.com/nerrad567/catalog-session/internal/navigation"
)

// afterSignIn is where login and register send the user.
const afterSignIn = navigation.PathDashboard

// loginRequest is the body of POST /auth/login.
type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// registerRequest is the body of POST /auth/register.
type registerRequest struct {
	Name            string `json:"name"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword"`
}

// sessionView describes the signed-in user, or anonymous.
type sessionView struct {
	Authenticated bool              `json:"authenticated"`
	Identity      *auth.Identity    `json:"identity,omitempty"`
	IsAdmin       bool              `json:"is_admin"`
	Permissions   []auth.Permission `json:"permissions"`
}

// viewResponse is returned by every gated view.
type viewResponse struct {
	View     string           `json:"view"`
	Path     string           `json:"path"`
	Session  sessionView      `json:"session"`
	Activity *audit.ListResult `json:"activity,omitempty"`
}

// signInResponse is returned by a successful login or register.
type signInResponse struct {
	Identity *auth.Identity `json:"identity"`
	Redirect string         `json:"redirect"`
}

func newSessionView(identity *auth.Identity) sessionView {
	v := sessionView{Permissions: []auth.Permission{}}
	if identity == nil {
		return v
	}
	v.Authenticated = true
	v.Identity = identity
	v.IsAdmin = identity.IsAdmin()
	v.Permissions = auth.Permissions(identity.Role)
	return v
}

// handleSession returns the current session without any gate.
func (s *Server) handleSession(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, newSessionView(s.session.CurrentIdentity()))
}

// handleView serves a gated view and records it as the current location.
func (s *Server) handleView(name string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.nav.Navigate(r.URL.Path)
		writeJSON(w, http.StatusOK, viewResponse{
			View:    name,
			Path:    s.nav.Current(),
			Session: newSessionView(s.session.CurrentIdentity()),
		})
	}
}

// handleUsers serves the admin view with recent session activity.
func (s *Server) handleUsers(w http.ResponseWriter, r *http.Request) {
	s.nav.Navigate(r.URL.Path)
	resp := viewResponse{
		View:    "users",
		Path:    s.nav.Current(),
		Session: newSessionView(s.session.CurrentIdentity()),
	}

	if s.audit != nil {
		q := r.URL.Query()
		filter := audit.Filter{
			Action:  q.Get("action"),
			Outcome: q.Get("outcome"),
			UserID:  q.Get("user_id"),
		}
		if v := q.Get("limit"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				writeBadRequest(w, "limit must be a number")
				return
			}
			filter.Limit = n
		}
		if v := q.Get("offset"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				writeBadRequest(w, "offset must be a number")
				return
			}
			filter.Offset = n
		}
		for param, dst := range map[string]*time.Time{"since": &filter.Since, "until": &filter.Until} {
			v := q.Get(param)
			if v == "" {
				continue
			}
			t, err := time.Parse(time.RFC3339, v)
			if err != nil {
				writeBadRequest(w, param+" must be an RFC 3339 timestamp")
				return
			}
			*dst = t
		}

		activity, err := s.audit.List(r.Context(), filter)
		if err != nil {
			s.logger.Error("listing session activity", "error", err)
			writeInternalError(w, "unable to load session activity")
			return
		}
		resp.Activity = activity
	}

	writeJSON(w, http.StatusOK, resp)
}

// handleLogin signs in with email and password.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	identity, err := s.session.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeSessionError(w, err)
		return
	}

	s.nav.Navigate(afterSignIn)
	writeJSON(w, http.StatusOK, signInResponse{Identity: identity, Redirect: s.nav.Current()})
}

// handleRegister creates an account and signs in.
func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	if err := auth.ValidatePasswordConfirmation(req.Password, req.ConfirmPassword); err != nil {
		writeSessionError(w, err)
		return
	}

	identity, err := s.session.Register(r.Context(), req.Name, req.Email, req.Password)
	if err != nil {
		writeSessionError(w, err)
		return
	}

	s.nav.Navigate(afterSignIn)
	writeJSON(w, http.StatusCreated, signInResponse{Identity: identity, Redirect: s.nav.Current()})
}

// handleLogout signs out. It always succeeds.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	s.session.Logout(r.Context())
	writeJSON(w, http.StatusOK, map[string]string{"redirect": s.nav.Current()})
}
