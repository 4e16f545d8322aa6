package console

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/catalog-session/internal/navigation"
)

// defaultWebSocketPath serves the identity feed when none is configured.
const defaultWebSocketPath = "/ws/identity"

// healthCheckTimeout bounds all component checks of one /health request.
const healthCheckTimeout = 3 * time.Second

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	r.Get("/health", s.handleHealth)
	r.Get("/api/session", s.handleSession)
	r.Post("/auth/logout", s.handleLogout)

	wsPath := s.cfg.WebSocket.Path
	if wsPath == "" {
		wsPath = defaultWebSocketPath
	}
	r.Get(wsPath, s.handleWebSocket)

	if s.catalog != nil {
		r.With(s.requireSession).Handle(CatalogProxyPrefix+"/*", s.catalog)
	}

	// Gated views. Aliases never reach their handler.
	r.With(s.gate(navigation.PathRoot)).Get(navigation.PathRoot, http.NotFound)
	r.With(s.gate(navigation.PathAuth)).Get(navigation.PathAuth, http.NotFound)

	r.With(s.gate(navigation.PathLogin)).Get(navigation.PathLogin, s.handleView("login"))
	r.With(s.gate(navigation.PathLogin)).Post(navigation.PathLogin, s.handleLogin)
	r.With(s.gate(navigation.PathRegister)).Get(navigation.PathRegister, s.handleView("register"))
	r.With(s.gate(navigation.PathRegister)).Post(navigation.PathRegister, s.handleRegister)
	r.With(s.gate(navigation.PathUnauthorized)).Get(navigation.PathUnauthorized, s.handleView("unauthorized"))

	r.With(s.gate(navigation.PathDashboard)).Get(navigation.PathDashboard, s.handleView("dashboard"))
	r.With(s.gate(navigation.PathProfile)).Get(navigation.PathProfile, s.handleView("profile"))
	r.With(s.gate(navigation.PathUsers)).Get(navigation.PathUsers, s.handleUsers)

	r.NotFound(s.handleUnknown)

	return r
}

// gate returns the navigator's guard for path. A path missing from the
// route table falls back like any unknown path.
func (s *Server) gate(path string) func(http.Handler) http.Handler {
	route, ok := s.nav.Lookup(path)
	if !ok {
		return func(http.Handler) http.Handler { return http.HandlerFunc(s.handleUnknown) }
	}
	return s.nav.Guard(route)
}

// handleUnknown sends any path outside the route table to the fallback.
func (s *Server) handleUnknown(w http.ResponseWriter, r *http.Request) {
	d := s.nav.Resolve(r.URL.Path)
	if d.Allowed {
		http.NotFound(w, r)
		return
	}
	http.Redirect(w, r, d.Redirect, http.StatusSeeOther)
}

// handleHealth runs every registered component check. Any failure turns the
// response into 503 with status "degraded".
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	status, code := "ok", http.StatusOK
	components := make(map[string]string, len(s.checks))
	for name, check := range s.checks {
		if err := check.HealthCheck(ctx); err != nil {
			components[name] = err.Error()
			status, code = "degraded", http.StatusServiceUnavailable
			continue
		}
		components[name] = "ok"
	}

	writeJSON(w, code, map[string]any{
		"status":     status,
		"version":    s.version,
		"components": components,
	})
}
