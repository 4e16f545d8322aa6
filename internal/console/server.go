package console

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/nerrad567/catalog-session/internal/audit"
	"github.com/nerrad567/catalog-session/internal/auth"
	"github.com/nerrad567/catalog-session/internal/infrastructure/config"
	"github.com/nerrad567/catalog-session/internal/infrastructure/logging"
	"github.com/nerrad567/catalog-session/internal/navigation"
	"github.com/nerrad567/catalog-session/internal/session"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// Session is the subset of *session.Manager the console drives.
type Session interface {
	Login(ctx context.Context, email, password string) (*auth.Identity, error)
	Register(ctx context.Context, name, email, password string) (*auth.Identity, error)
	Logout(ctx context.Context)
	CurrentIdentity() *auth.Identity
	State() *session.State
}

// Deps holds the dependencies required by the console server.
type Deps struct {
	Config    config.ConsoleConfig
	Logger    *logging.Logger
	Session   Session
	Navigator *navigation.Navigator

	// Audit feeds the admin activity list. Optional.
	Audit audit.Repository

	// Catalog is mounted under CatalogProxyPrefix for signed-in users. Optional.
	Catalog http.Handler

	// Checks are run by /health, keyed by component name. Optional.
	Checks map[string]HealthChecker

	Version string
}

// HealthChecker is implemented by the database, MQTT and InfluxDB clients.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Server is the console HTTP server.
//
// It manages the HTTP listener, routes, middleware, and the identity feed hub.
// The server is created with New() and started with Start().
type Server struct {
	cfg     config.ConsoleConfig
	logger  *logging.Logger
	session Session
	nav     *navigation.Navigator
	audit   audit.Repository
	catalog http.Handler
	checks  map[string]HealthChecker
	version string
	hub     *Hub
	server  *http.Server
	addr    string
	cancel  context.CancelFunc
}

// New creates a new console server with the given dependencies.
//
// The server is not started until Start() is called.
//
// Parameters:
//   - deps: Required dependencies (config, logger, session, navigator)
//
// Returns:
//   - *Server: Configured server ready to start
//   - error: If required dependencies are missing
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Session == nil {
		return nil, fmt.Errorf("session is required")
	}
	if deps.Navigator == nil {
		return nil, fmt.Errorf("navigator is required")
	}

	logger := deps.Logger.With("component", "console")
	return &Server{
		cfg:     deps.Config,
		logger:  logger,
		session: deps.Session,
		nav:     deps.Navigator,
		audit:   deps.Audit,
		catalog: deps.Catalog,
		checks:  deps.Checks,
		version: deps.Version,
		hub:     NewHub(deps.Config.WebSocket, deps.Session.State(), logger),
	}, nil
}

// Start binds the listener and serves in a background goroutine.
//
// Parameters:
//   - ctx: Cancelling it disconnects websocket clients; use Close to stop serving
//
// Returns:
//   - error: If the listener cannot be bound (port in use, etc.)
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port))
	if err != nil {
		return fmt.Errorf("binding console listener: %w", err)
	}

	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)
	go s.hub.Run(srvCtx)

	s.addr = ln.Addr().String()
	s.server = &http.Server{
		Handler:           s.buildRouter(),
		ReadTimeout:       s.cfg.Timeouts.ReadTimeout(),
		ReadHeaderTimeout: s.cfg.Timeouts.ReadTimeout(),
		WriteTimeout:      s.cfg.Timeouts.WriteTimeout(),
		IdleTimeout:       s.cfg.Timeouts.IdleTimeout(),
	}

	s.logger.Info("console server starting", "address", s.addr)
	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("console server error", "error", err)
		}
	}()

	return nil
}

// Addr returns the bound listener address, empty before Start.
func (s *Server) Addr() string {
	return s.addr
}

// Close gracefully shuts down the console server.
//
// It waits up to 10 seconds for in-flight requests to complete,
// then forcefully closes remaining connections.
//
// Returns:
//   - error: If shutdown encounters an error
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}

	if s.cancel != nil {
		s.cancel()
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("console server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down console server: %w", err)
	}
	return nil
}

// HealthCheck verifies the console server is running.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//
// Returns:
//   - error: nil if healthy, error describing the issue otherwise
func (s *Server) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("console health check: %w", ctx.Err())
	default:
	}

	if s.server == nil {
		return fmt.Errorf("console server not started")
	}

	return nil
}
