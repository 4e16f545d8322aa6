package console

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nerrad567/catalog-session/internal/audit"
	"github.com/nerrad567/catalog-session/internal/auth"
	"github.com/nerrad567/catalog-session/internal/authapi"
	"github.com/nerrad567/catalog-session/internal/authapi/authapitest"
	"github.com/nerrad567/catalog-session/internal/credstore"
	"github.com/nerrad567/catalog-session/internal/infrastructure/config"
	"github.com/nerrad567/catalog-session/internal/infrastructure/database"
	"github.com/nerrad567/catalog-session/internal/infrastructure/logging"
	"github.com/nerrad567/catalog-session/internal/navigation"
	"github.com/nerrad567/catalog-session/internal/session"
	_ "github.com/nerrad567/catalog-session/migrations"
)

type harness struct {
	api    *authapitest.Server
	mgr    *session.Manager
	nav    *navigation.Navigator
	srv    *Server
	http   *httptest.Server
	client *http.Client
}

// newHarness wires a console over a real Manager talking to a fake catalog API.
func newHarness(t *testing.T) *harness {
	t.Helper()
	ctx := context.Background()

	api := authapitest.New()
	t.Cleanup(api.Close)
	api.AddUser("Ada", "ada@example.com", "secret1", auth.RoleAdmin)
	api.AddUser("Bob", "bob@example.com", "secret2", auth.RoleUser)

	exchanger, err := authapi.New(authapi.Config{BaseURL: api.URL})
	if err != nil {
		t.Fatalf("authapi.New() error = %v", err)
	}

	db, err := database.Open(database.Config{Path: filepath.Join(t.TempDir(), "console.db"), WALMode: true, BusyTimeout: 5})
	if err != nil {
		t.Fatalf("database.Open() error = %v", err)
	}
	t.Cleanup(func() { db.Close() }) //nolint:errcheck // Test cleanup
	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	repo := audit.NewSQLiteRepository(db.DB)

	log := logging.Discard()
	mgr, err := session.NewManager(session.Deps{
		Store:     credstore.NewMemoryStore(),
		Exchanger: exchanger,
		Logger:    log,
		Recorder:  audit.NewRecorder(audit.RecorderDeps{Repo: repo, Logger: log}),
	})
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}
	if err := mgr.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	nav := navigation.New(mgr, nil, navigation.Config{Logger: log})
	mgr.SetRedirector(nav)

	srv, err := New(Deps{
		Config: config.ConsoleConfig{
			Host:      "127.0.0.1",
			WebSocket: config.WebSocketConfig{Path: "/ws/identity"},
		},
		Logger:    log,
		Session:   mgr,
		Navigator: nav,
		Audit:     repo,
		Version:   "test",
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	hubCtx, cancel := context.WithCancel(ctx)
	t.Cleanup(cancel)
	go srv.hub.Run(hubCtx)

	ts := httptest.NewServer(srv.buildRouter())
	t.Cleanup(ts.Close)

	return &harness{
		api:  api,
		mgr:  mgr,
		nav:  nav,
		srv:  srv,
		http: ts,
		client: &http.Client{
			CheckRedirect: func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse },
		},
	}
}

func (h *harness) do(t *testing.T, method, path, body string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, h.http.URL+path, strings.NewReader(body))
	if err != nil {
		t.Fatalf("NewRequest() error = %v", err)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := h.client.Do(req)
	if err != nil {
		t.Fatalf("%s %s error = %v", method, path, err)
	}
	t.Cleanup(func() { resp.Body.Close() }) //nolint:errcheck // Test cleanup
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	return v
}

func (h *harness) login(t *testing.T, email, password string) {
	t.Helper()
	resp := h.do(t, http.MethodPost, "/auth/login", `{"email":"`+email+`","password":"`+password+`"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("POST /auth/login status = %d, want 200", resp.StatusCode)
	}
}

func TestNew_RequiresDeps(t *testing.T) {
	mgr, err := session.NewManager(session.Deps{Store: credstore.NewMemoryStore(), Exchanger: &authapi.Client{}})
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}
	nav := navigation.New(mgr, nil, navigation.Config{})

	tests := []struct {
		name string
		deps Deps
	}{
		{"no logger", Deps{Session: mgr, Navigator: nav}},
		{"no session", Deps{Logger: logging.Discard(), Navigator: nav}},
		{"no navigator", Deps{Logger: logging.Discard(), Session: mgr}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New(tt.deps); err == nil {
				t.Error("New() error = nil, want error")
			}
		})
	}
}

func TestAnonymousRedirects(t *testing.T) {
	h := newHarness(t)

	tests := []struct {
		path string
		want string
	}{
		{"/", "/auth/login"},
		{"/auth", "/auth/login"},
		{"/dashboard", "/auth/login"},
		{"/profile", "/auth/login"},
		{"/users", "/auth/login"},
		{"/no/such/page", "/auth/login"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			resp := h.do(t, http.MethodGet, tt.path, "")
			if resp.StatusCode != http.StatusSeeOther {
				t.Fatalf("GET %s status = %d, want 303", tt.path, resp.StatusCode)
			}
			if got := resp.Header.Get("Location"); got != tt.want {
				t.Errorf("GET %s Location = %q, want %q", tt.path, got, tt.want)
			}
		})
	}
}

func TestPublicViews(t *testing.T) {
	h := newHarness(t)

	for _, path := range []string{"/auth/login", "/auth/register", "/unauthorized"} {
		resp := h.do(t, http.MethodGet, path, "")
		if resp.StatusCode != http.StatusOK {
			t.Errorf("GET %s status = %d, want 200", path, resp.StatusCode)
			continue
		}
		v := decode[viewResponse](t, resp)
		if v.Session.Authenticated {
			t.Errorf("GET %s session authenticated before login", path)
		}
	}
}

func TestLogin_UserReachesDashboardNotUsers(t *testing.T) {
	h := newHarness(t)

	resp := h.do(t, http.MethodPost, "/auth/login", `{"email":"bob@example.com","password":"secret2"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("POST /auth/login status = %d, want 200", resp.StatusCode)
	}
	signIn := decode[signInResponse](t, resp)
	if signIn.Identity == nil || signIn.Identity.Role != auth.RoleUser {
		t.Fatalf("login identity = %+v, want USER", signIn.Identity)
	}
	if signIn.Redirect != "/dashboard" {
		t.Errorf("redirect = %q, want /dashboard", signIn.Redirect)
	}

	dash := h.do(t, http.MethodGet, "/dashboard", "")
	if dash.StatusCode != http.StatusOK {
		t.Fatalf("GET /dashboard status = %d, want 200", dash.StatusCode)
	}
	view := decode[viewResponse](t, dash)
	if view.View != "dashboard" || view.Session.IsAdmin {
		t.Errorf("dashboard view = %+v", view)
	}
	if len(view.Session.Permissions) != 4 {
		t.Errorf("permissions = %v, want the four catalog permissions", view.Session.Permissions)
	}

	users := h.do(t, http.MethodGet, "/users", "")
	if users.StatusCode != http.StatusSeeOther || users.Header.Get("Location") != "/unauthorized" {
		t.Errorf("GET /users = %d %q, want 303 /unauthorized", users.StatusCode, users.Header.Get("Location"))
	}
}

func TestLogin_AdminSeesActivity(t *testing.T) {
	h := newHarness(t)
	h.login(t, "ada@example.com", "secret1")

	resp := h.do(t, http.MethodGet, "/users?action=login", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("GET /users status = %d, want 200", resp.StatusCode)
	}
	view := decode[viewResponse](t, resp)
	if !view.Session.IsAdmin {
		t.Error("users view session is not admin")
	}
	if view.Activity == nil || view.Activity.Total != 1 {
		t.Fatalf("activity = %+v, want one login entry", view.Activity)
	}
	if got := view.Activity.Logs[0]; got.Outcome != "success" || got.Role != "ADMIN" {
		t.Errorf("activity entry = %+v", got)
	}

	if bad := h.do(t, http.MethodGet, "/users?limit=ten", ""); bad.StatusCode != http.StatusBadRequest {
		t.Errorf("GET /users?limit=ten status = %d, want 400", bad.StatusCode)
	}
	if bad := h.do(t, http.MethodGet, "/users?since=yesterday", ""); bad.StatusCode != http.StatusBadRequest {
		t.Errorf("GET /users?since=yesterday status = %d, want 400", bad.StatusCode)
	}

	future := time.Now().Add(time.Hour).UTC().Format(time.RFC3339)
	later := h.do(t, http.MethodGet, "/users?action=login&since="+future, "")
	if later.StatusCode != http.StatusOK {
		t.Fatalf("GET /users?since=future status = %d, want 200", later.StatusCode)
	}
	if v := decode[viewResponse](t, later); v.Activity == nil || v.Activity.Total != 0 {
		t.Errorf("activity since the future = %+v, want none", v.Activity)
	}
}

func TestLogin_Errors(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		setup    func(*authapitest.Server)
		wantCode int
		wantErr  string
	}{
		{"bad json", `{`, nil, http.StatusBadRequest, ErrCodeBadRequest},
		{"empty fields", `{"email":"","password":""}`, nil, http.StatusBadRequest, ErrCodeValidation},
		{"wrong password", `{"email":"ada@example.com","password":"nope"}`, nil, http.StatusUnauthorized, ErrCodeInvalidCredentials},
		{"server failure", `{"email":"ada@example.com","password":"secret1"}`, func(s *authapitest.Server) {
			s.Fail(authapi.PathLogin, http.StatusInternalServerError, "database down")
		}, http.StatusBadGateway, ErrCodeServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			if tt.setup != nil {
				tt.setup(h.api)
			}

			resp := h.do(t, http.MethodPost, "/auth/login", tt.body)
			if resp.StatusCode != tt.wantCode {
				t.Fatalf("status = %d, want %d", resp.StatusCode, tt.wantCode)
			}
			e := decode[Error](t, resp)
			if e.Code != tt.wantErr {
				t.Errorf("code = %q, want %q", e.Code, tt.wantErr)
			}
			if e.Message == "" {
				t.Error("message is empty")
			}
			if h.mgr.IsAuthenticated() {
				t.Error("session authenticated after failed login")
			}
		})
	}
}

func TestRegister(t *testing.T) {
	h := newHarness(t)

	mismatch := h.do(t, http.MethodPost, "/auth/register",
		`{"name":"Cleo","email":"cleo@example.com","password":"secret3","confirmPassword":"secret4"}`)
	if mismatch.StatusCode != http.StatusBadRequest {
		t.Fatalf("mismatched confirm status = %d, want 400", mismatch.StatusCode)
	}
	if e := decode[Error](t, mismatch); e.Fields["confirm_password"] == "" {
		t.Errorf("fields = %v, want confirm_password", e.Fields)
	}
	if h.api.Requests(authapi.PathRegister) != 0 {
		t.Error("register exchange ran despite confirmation mismatch")
	}

	resp := h.do(t, http.MethodPost, "/auth/register",
		`{"name":"Cleo","email":"cleo@example.com","password":"secret3","confirmPassword":"secret3"}`)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("register status = %d, want 201", resp.StatusCode)
	}
	signIn := decode[signInResponse](t, resp)
	if signIn.Identity == nil || signIn.Identity.Name != "Cleo" || signIn.Identity.Role != auth.RoleUser {
		t.Errorf("register identity = %+v", signIn.Identity)
	}

	dup := h.do(t, http.MethodPost, "/auth/register",
		`{"name":"Cleo","email":"cleo@example.com","password":"secret3","confirmPassword":"secret3"}`)
	if dup.StatusCode != http.StatusUnauthorized {
		t.Errorf("duplicate register status = %d, want 401", dup.StatusCode)
	}
	if e := decode[Error](t, dup); e.Message != "Email already registered" {
		t.Errorf("duplicate register message = %q", e.Message)
	}
}

func TestLogout(t *testing.T) {
	h := newHarness(t)
	h.login(t, "ada@example.com", "secret1")

	resp := h.do(t, http.MethodPost, "/auth/logout", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("POST /auth/logout status = %d, want 200", resp.StatusCode)
	}
	if got := decode[map[string]string](t, resp)["redirect"]; got != "/auth/login" {
		t.Errorf("logout redirect = %q, want /auth/login", got)
	}
	if h.nav.Current() != "/auth/login" {
		t.Errorf("navigator Current() = %q, want /auth/login", h.nav.Current())
	}

	dash := h.do(t, http.MethodGet, "/dashboard", "")
	if dash.StatusCode != http.StatusSeeOther {
		t.Errorf("GET /dashboard after logout status = %d, want 303", dash.StatusCode)
	}
}

func TestSessionEndpoint(t *testing.T) {
	h := newHarness(t)

	if v := decode[sessionView](t, h.do(t, http.MethodGet, "/api/session", "")); v.Authenticated {
		t.Error("anonymous /api/session reports authenticated")
	}

	h.login(t, "ada@example.com", "secret1")
	v := decode[sessionView](t, h.do(t, http.MethodGet, "/api/session", ""))
	if !v.Authenticated || !v.IsAdmin || v.Identity.Email != "ada@example.com" {
		t.Errorf("/api/session = %+v", v)
	}
}

func TestMiddleware(t *testing.T) {
	h := newHarness(t)

	resp := h.do(t, http.MethodGet, "/health", "")
	if resp.Header.Get("X-Request-ID") == "" {
		t.Error("X-Request-ID not set")
	}

	req, _ := http.NewRequest(http.MethodGet, h.http.URL+"/health", nil) //nolint:errcheck // constant URL
	req.Header.Set("X-Request-ID", "req-123")
	req.Header.Set("Origin", "http://localhost:4200")
	got, err := h.client.Do(req)
	if err != nil {
		t.Fatalf("GET /health error = %v", err)
	}
	defer got.Body.Close()
	if got.Header.Get("X-Request-ID") != "req-123" {
		t.Errorf("X-Request-ID = %q, want req-123", got.Header.Get("X-Request-ID"))
	}
	if got.Header.Get("Access-Control-Allow-Origin") != "http://localhost:4200" {
		t.Errorf("Access-Control-Allow-Origin = %q", got.Header.Get("Access-Control-Allow-Origin"))
	}

	big := h.do(t, http.MethodPost, "/auth/login", `{"email":"`+strings.Repeat("a", maxRequestBodySize)+`"}`)
	if big.StatusCode != http.StatusBadRequest {
		t.Errorf("oversized body status = %d, want 400", big.StatusCode)
	}
}

// healthFunc adapts a function to HealthChecker.
type healthFunc func(ctx context.Context) error

func (f healthFunc) HealthCheck(ctx context.Context) error { return f(ctx) }

func TestHealth_Components(t *testing.T) {
	h := newHarness(t)

	tests := []struct {
		name       string
		checks     map[string]HealthChecker
		wantCode   int
		wantStatus string
	}{
		{"no checks", nil, http.StatusOK, "ok"},
		{
			"all healthy",
			map[string]HealthChecker{"database": healthFunc(func(context.Context) error { return nil })},
			http.StatusOK, "ok",
		},
		{
			"broker down",
			map[string]HealthChecker{
				"database": healthFunc(func(context.Context) error { return nil }),
				"mqtt":     healthFunc(func(context.Context) error { return errors.New("mqtt: client not connected") }),
			},
			http.StatusServiceUnavailable, "degraded",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h.srv.checks = tt.checks
			rec := httptest.NewRecorder()
			h.srv.handleHealth(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

			if rec.Code != tt.wantCode {
				t.Errorf("status code = %d, want %d", rec.Code, tt.wantCode)
			}
			var body struct {
				Status     string            `json:"status"`
				Version    string            `json:"version"`
				Components map[string]string `json:"components"`
			}
			if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
				t.Fatalf("decoding body: %v", err)
			}
			if body.Status != tt.wantStatus {
				t.Errorf("status = %q, want %q", body.Status, tt.wantStatus)
			}
			if body.Version != "test" {
				t.Errorf("version = %q, want test", body.Version)
			}
			if len(body.Components) != len(tt.checks) {
				t.Errorf("components = %v, want %d entries", body.Components, len(tt.checks))
			}
			if tt.wantStatus == "degraded" && body.Components["mqtt"] == "ok" {
				t.Errorf("components[mqtt] = ok, want the failure message")
			}
		})
	}
}

func TestIdentityFeed(t *testing.T) {
	h := newHarness(t)

	url := "ws" + strings.TrimPrefix(h.http.URL, "http") + "/ws/identity"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer conn.Close()

	read := func() sessionView {
		t.Helper()
		conn.SetReadDeadline(time.Now().Add(2 * time.Second)) //nolint:errcheck // deadline only
		var msg struct {
			Type    string      `json:"type"`
			Payload sessionView `json:"payload"`
		}
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatalf("ReadJSON() error = %v", err)
		}
		if msg.Type != WSTypeIdentity {
			t.Fatalf("message type = %q, want identity", msg.Type)
		}
		return msg.Payload
	}

	if first := read(); first.Authenticated {
		t.Error("first feed message is authenticated, want anonymous replay")
	}

	h.login(t, "bob@example.com", "secret2")
	if v := read(); !v.Authenticated || v.Identity.Name != "Bob" {
		t.Errorf("feed after login = %+v", v)
	}

	h.do(t, http.MethodPost, "/auth/logout", "")
	if v := read(); v.Authenticated {
		t.Error("feed after logout still authenticated")
	}

	if err := conn.WriteJSON(WSMessage{Type: WSTypePing, ID: "p1"}); err != nil {
		t.Fatalf("WriteJSON() error = %v", err)
	}
	conn.SetReadDeadline(time.Now().Add(2 * time.Second)) //nolint:errcheck // deadline only
	var pong WSMessage
	if err := conn.ReadJSON(&pong); err != nil {
		t.Fatalf("ReadJSON() error = %v", err)
	}
	if pong.Type != WSTypePong || pong.ID != "p1" {
		t.Errorf("pong = %+v", pong)
	}
}

func TestIdentityFeed_SlowClientKeepsLatest(t *testing.T) {
	hub := NewHub(config.WebSocketConfig{}, session.NewState(), logging.Discard())
	client := newWSClient(hub, nil)

	bob := &auth.Identity{ID: "2", Name: "Bob", Role: auth.RoleUser}
	for i := 0; i < wsSendBufferSize*2; i++ {
		client.sendIdentity(bob)
	}
	client.sendIdentity(nil)

	if n := len(client.identity); n != 1 {
		t.Fatalf("queued identity messages = %d, want 1", n)
	}
	var msg struct {
		Type    string      `json:"type"`
		Payload sessionView `json:"payload"`
	}
	if err := json.Unmarshal(<-client.identity, &msg); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if msg.Type != WSTypeIdentity || msg.Payload.Authenticated {
		t.Errorf("queued message = %+v, want the anonymous identity", msg)
	}
}

func TestStartAndClose(t *testing.T) {
	h := newHarness(t)

	if err := h.srv.HealthCheck(context.Background()); err == nil {
		t.Error("HealthCheck() before Start error = nil")
	}
	if err := h.srv.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if h.srv.Addr() == "" {
		t.Fatal("Addr() empty after Start")
	}

	resp, err := http.Get("http://" + h.srv.Addr() + "/health")
	if err != nil {
		t.Fatalf("GET /health error = %v", err)
	}
	resp.Body.Close() //nolint:errcheck // status only
	if resp.StatusCode != http.StatusOK {
		t.Errorf("GET /health status = %d, want 200", resp.StatusCode)
	}

	if err := h.srv.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck() error = %v", err)
	}
	if err := h.srv.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}
