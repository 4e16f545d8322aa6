package session

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/nerrad567/catalog-session/internal/auth"
	"github.com/nerrad567/catalog-session/internal/credstore"
	"github.com/nerrad567/catalog-session/internal/infrastructure/logging"
)

// DefaultPublicEntry is where logout lands when Deps.PublicEntry is empty.
const DefaultPublicEntry = "/auth/login"

// Exchanger performs the server exchanges. *authapi.Client satisfies it.
type Exchanger interface {
	Login(ctx context.Context, email, password string) (auth.Bundle, error)
	Register(ctx context.Context, name, email, password string) (auth.Bundle, error)
	Refresh(ctx context.Context, refreshToken string) (string, error)
}

// Redirector moves the navigation layer to a path. *navigation.Navigator
// satisfies it.
type Redirector interface {
	Redirect(path string)
}

// Deps holds the dependencies required by the Manager.
type Deps struct {
	Store     credstore.Store
	Exchanger Exchanger
	Logger    *logging.Logger

	// Redirector is told to land on PublicEntry after logout. Optional.
	Redirector Redirector

	// Recorder receives an Event per operation. Optional.
	Recorder Recorder

	// State is the broadcast to publish to. A new one is created when nil.
	State *State

	PublicEntry string
}

// Manager is the single writer of the credential store and the session
// State. Construct one per process with NewManager, call Start once, and
// share it by reference.
//
// Network exchanges run without holding any lock. Only the apply step
// (store writes followed by publish) is serialised, so reads never wait on
// the network. A response is applied only if its attempt is still current:
//   - login and register carry a sequence number; a newer attempt or a
//     logout supersedes older ones
//   - refresh carries the session epoch; any login, register or logout in
//     between makes the response stale
//
// Stale responses are discarded with auth.ErrSuperseded.
//
// Thread Safety: all methods are safe for concurrent use.
type Manager struct {
	store       credstore.Store
	exchanger   Exchanger
	logger      *logging.Logger
	redirector  Redirector
	recorder    Recorder
	state       *State
	publicEntry string

	// mu serialises the apply step and guards seq and epoch.
	mu    sync.Mutex
	seq   uint64
	epoch uint64

	// bundle is written with both mu and tokMu held. tokMu lets observers
	// running inside a publish still read the access token.
	tokMu  sync.RWMutex
	bundle auth.Bundle

	refreshes singleflight.Group
}

// NewManager creates a Manager in the anonymous state. Call Start to seed
// it from the store.
func NewManager(deps Deps) (*Manager, error) {
	if deps.Store == nil {
		return nil, errors.New("session: store is required")
	}
	if deps.Exchanger == nil {
		return nil, errors.New("session: exchanger is required")
	}

	logger := deps.Logger
	if logger == nil {
		logger = logging.Default()
	}
	state := deps.State
	if state == nil {
		state = NewState()
	}
	entry := deps.PublicEntry
	if entry == "" {
		entry = DefaultPublicEntry
	}

	return &Manager{
		store:       deps.Store,
		exchanger:   deps.Exchanger,
		logger:      logger.With("component", "session"),
		redirector:  deps.Redirector,
		recorder:    deps.Recorder,
		state:       state,
		publicEntry: entry,
	}, nil
}

// State returns the broadcast the Manager publishes to.
func (m *Manager) State() *State {
	return m.state
}

// SetRedirector sets the navigation target for logout. It exists because the
// navigator is usually built from the Manager's State after NewManager.
func (m *Manager) SetRedirector(r Redirector) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.redirector = r
}

// Start seeds the session from the store. All three keys must be present and
// the identity record well formed; otherwise the session starts anonymous
// and whatever partial keys remain are cleared.
//
// An unreadable store leaves the session anonymous and returns an error
// wrapping credstore.ErrUnavailable.
func (m *Manager) Start(ctx context.Context) error {
	start := time.Now()

	m.mu.Lock()
	defer m.mu.Unlock()

	values := make(map[string]string, len(credstore.Keys))
	for _, key := range credstore.Keys {
		v, ok, err := m.store.Get(ctx, key)
		if err != nil {
			m.logger.Error("reading stored session", "key", key, "error", err)
			m.record(ctx, OpRestore, nil, start, err)
			return fmt.Errorf("restoring session: %w", err)
		}
		if ok && v != "" {
			values[key] = v
		}
	}

	if len(values) == 0 {
		m.logger.Info("no stored session")
		m.record(ctx, OpRestore, nil, start, nil)
		return nil
	}

	b, err := bundleFromValues(values)
	if err != nil {
		m.logger.Warn("discarding incomplete stored session", "keys", len(values), "error", err)
		m.clearLocked(ctx)
		m.record(ctx, OpRestore, nil, start, nil)
		return nil
	}

	m.tokMu.Lock()
	m.bundle = b
	m.tokMu.Unlock()
	m.epoch++

	identity := b.Identity
	m.state.publish(&identity)
	m.logger.Info("session restored", "user_id", identity.ID, "role", identity.Role)
	m.record(ctx, OpRestore, &identity, start, nil)
	return nil
}

func bundleFromValues(values map[string]string) (auth.Bundle, error) {
	for _, key := range credstore.Keys {
		if _, ok := values[key]; !ok {
			return auth.Bundle{}, fmt.Errorf("missing %s", key)
		}
	}
	identity, err := auth.UnmarshalIdentity(values[credstore.KeyIdentity])
	if err != nil {
		return auth.Bundle{}, fmt.Errorf("%w: %w", auth.ErrMalformedIdentity, err)
	}
	return auth.Bundle{
		AccessToken:  values[credstore.KeyAccessToken],
		RefreshToken: values[credstore.KeyRefreshToken],
		Identity:     identity,
	}, nil
}

// Login exchanges credentials for a session. On success the bundle is
// persisted and the identity published before Login returns. On any failure
// neither the store nor the State changes.
func (m *Manager) Login(ctx context.Context, email, password string) (*auth.Identity, error) {
	if err := auth.ValidateLogin(email, password); err != nil {
		m.record(ctx, OpLogin, nil, time.Now(), err)
		return nil, fmt.Errorf("login: %w", err)
	}
	return m.establish(ctx, OpLogin, func(ctx context.Context) (auth.Bundle, error) {
		return m.exchanger.Login(ctx, email, password)
	})
}

// Register creates an account and establishes its session, exactly like
// Login. Input is validated locally first; invalid input returns
// auth.ErrValidation without contacting the server.
func (m *Manager) Register(ctx context.Context, name, email, password string) (*auth.Identity, error) {
	if err := auth.ValidateRegistration(name, email, password); err != nil {
		m.record(ctx, OpRegister, nil, time.Now(), err)
		return nil, fmt.Errorf("register: %w", err)
	}
	return m.establish(ctx, OpRegister, func(ctx context.Context) (auth.Bundle, error) {
		return m.exchanger.Register(ctx, name, email, password)
	})
}

// establish runs a login-like exchange and applies its bundle if the attempt
// is still the latest.
func (m *Manager) establish(ctx context.Context, op Op, exchange func(context.Context) (auth.Bundle, error)) (*auth.Identity, error) {
	start := time.Now()

	m.mu.Lock()
	m.seq++
	attempt := m.seq
	m.mu.Unlock()

	b, err := exchange(ctx)
	if err == nil && !b.Complete() {
		err = &auth.ExchangeError{Kind: auth.ErrServerError, Message: "incomplete credential bundle"}
	}
	if err != nil {
		m.logger.Warn("exchange failed", "op", op, "outcome", OutcomeOf(err), "error", err)
		m.record(ctx, op, nil, start, err)
		return nil, err
	}

	m.mu.Lock()
	if err := m.staleLocked(ctx, attempt); err != nil {
		m.mu.Unlock()
		m.logger.Info("discarding stale response", "op", op, "user_id", b.Identity.ID)
		m.record(ctx, op, &b.Identity, start, err)
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if err := m.persistLocked(ctx, b); err != nil {
		m.mu.Unlock()
		m.logger.Error("persisting session", "op", op, "user_id", b.Identity.ID, "error", err)
		m.record(ctx, op, &b.Identity, start, err)
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	m.tokMu.Lock()
	m.bundle = b
	m.tokMu.Unlock()
	m.epoch++

	identity := b.Identity
	m.state.publish(&identity)
	m.mu.Unlock()

	m.logger.Info("session established", "op", op, "user_id", identity.ID, "role", identity.Role)
	m.record(ctx, op, &identity, start, nil)
	return &identity, nil
}

// staleLocked reports ErrSuperseded if attempt is no longer current.
func (m *Manager) staleLocked(ctx context.Context, attempt uint64) error {
	if attempt != m.seq {
		return fmt.Errorf("%w: a newer attempt or logout took precedence", auth.ErrSuperseded)
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", auth.ErrSuperseded, err)
	}
	return nil
}

// persistLocked writes b in key order. If a write fails, keys already
// written in this call are put back to their previous values, or removed
// when there were none, and ErrStoreWriteFailed is returned.
func (m *Manager) persistLocked(ctx context.Context, b auth.Bundle) error {
	encoded, err := auth.MarshalIdentity(b.Identity)
	if err != nil {
		return fmt.Errorf("%w: encoding identity: %w", auth.ErrStoreWriteFailed, err)
	}

	m.tokMu.RLock()
	prev := m.bundle
	m.tokMu.RUnlock()
	prevValues := map[string]string{}
	if prev.Complete() {
		prevEncoded, err := auth.MarshalIdentity(prev.Identity)
		if err == nil {
			prevValues = map[string]string{
				credstore.KeyAccessToken:  prev.AccessToken,
				credstore.KeyRefreshToken: prev.RefreshToken,
				credstore.KeyIdentity:     prevEncoded,
			}
		}
	}

	values := map[string]string{
		credstore.KeyAccessToken:  b.AccessToken,
		credstore.KeyRefreshToken: b.RefreshToken,
		credstore.KeyIdentity:     encoded,
	}

	var written []string
	for _, key := range credstore.Keys {
		if err := m.store.Set(ctx, key, values[key]); err != nil {
			m.rollbackLocked(written, prevValues)
			return fmt.Errorf("%w: %w", auth.ErrStoreWriteFailed, err)
		}
		written = append(written, key)
	}
	return nil
}

// rollbackLocked undoes a partial persist. Best effort: failures are logged.
func (m *Manager) rollbackLocked(written []string, prev map[string]string) {
	// The caller's context may be what failed the write.
	ctx := context.Background()
	for _, key := range written {
		var err error
		if v, ok := prev[key]; ok {
			err = m.store.Set(ctx, key, v)
		} else {
			err = m.store.Remove(ctx, key)
		}
		if err != nil {
			m.logger.Error("rolling back credential key", "key", key, "error", err)
		}
	}
}

// Refresh renews the access token using the held refresh token. Concurrent
// calls share one exchange. With no refresh token it fails with
// auth.ErrRefreshDenied without contacting the server.
//
// Success overwrites only the access token and publishes nothing, since the
// identity is unchanged. Failure leaves the current token in place; deciding
// whether to log out is up to the caller.
func (m *Manager) Refresh(ctx context.Context) error {
	// The token and the epoch it belongs to are read together; every bundle
	// write happens under mu.
	m.mu.Lock()
	refreshToken := m.bundle.RefreshToken
	epoch := m.epoch
	m.mu.Unlock()

	if refreshToken == "" {
		err := fmt.Errorf("refresh: %w: no refresh token held", auth.ErrRefreshDenied)
		m.record(ctx, OpRefresh, nil, time.Now(), err)
		return err
	}

	// The shared exchange must outlive any one caller; the transport timeout
	// still bounds it.
	flightCtx := context.WithoutCancel(ctx)
	ch := m.refreshes.DoChan(strconv.FormatUint(epoch, 10), func() (any, error) {
		return nil, m.refresh(flightCtx, epoch, refreshToken)
	})

	select {
	case res := <-ch:
		return res.Err
	case <-ctx.Done():
		return fmt.Errorf("refresh: %w: %w", auth.ErrSuperseded, ctx.Err())
	}
}

func (m *Manager) refresh(ctx context.Context, epoch uint64, refreshToken string) error {
	start := time.Now()
	identity := m.CurrentIdentity()

	token, err := m.exchanger.Refresh(ctx, refreshToken)
	if err == nil && token == "" {
		err = &auth.ExchangeError{Kind: auth.ErrServerError, Message: "empty access token"}
	}
	if err != nil {
		m.logger.Warn("refresh failed", "outcome", OutcomeOf(err), "error", err)
		m.record(ctx, OpRefresh, identity, start, err)
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if epoch != m.epoch {
		err := fmt.Errorf("refresh: %w: session changed during refresh", auth.ErrSuperseded)
		m.logger.Info("discarding stale refresh")
		m.record(ctx, OpRefresh, identity, start, err)
		return err
	}

	if err := m.store.Set(ctx, credstore.KeyAccessToken, token); err != nil {
		err = fmt.Errorf("refresh: %w: %w", auth.ErrStoreWriteFailed, err)
		m.logger.Error("persisting refreshed token", "error", err)
		m.record(ctx, OpRefresh, identity, start, err)
		return err
	}

	m.tokMu.Lock()
	m.bundle.AccessToken = token
	m.tokMu.Unlock()

	m.logger.Debug("access token refreshed")
	m.record(ctx, OpRefresh, identity, start, nil)
	return nil
}

// Logout clears the stored session, publishes anonymous and redirects to the
// public entry point. It always succeeds: each key that fails to clear is
// retried once and then abandoned with a logged error.
func (m *Manager) Logout(ctx context.Context) {
	start := time.Now()
	// Clearing must not be cut short by the caller going away.
	ctx = context.WithoutCancel(ctx)

	m.mu.Lock()
	previous := m.state.Current()
	m.seq++
	m.epoch++
	m.clearLocked(ctx)

	m.tokMu.Lock()
	m.bundle = auth.Bundle{}
	m.tokMu.Unlock()

	m.state.publish(nil)
	redirector := m.redirector
	m.mu.Unlock()

	if previous != nil {
		m.logger.Info("logged out", "user_id", previous.ID)
	}
	m.record(ctx, OpLogout, previous, start, nil)

	if redirector != nil {
		redirector.Redirect(m.publicEntry)
	}
}

// clearLocked removes every credential key, retrying each failed key once.
func (m *Manager) clearLocked(ctx context.Context) {
	for _, key := range credstore.Keys {
		err := m.store.Remove(ctx, key)
		if err == nil {
			continue
		}
		if err = m.store.Remove(ctx, key); err != nil {
			m.logger.Error("abandoning credential key", "key", key, "error", err)
		}
	}
}

// CurrentIdentity returns a copy of the current identity, or nil.
func (m *Manager) CurrentIdentity() *auth.Identity {
	return m.state.Current()
}

// IsAuthenticated reports whether a session is established.
func (m *Manager) IsAuthenticated() bool {
	return m.state.Current() != nil
}

// HasRole reports whether the current identity holds role. It is false when
// anonymous, for every role including the empty one.
func (m *Manager) HasRole(role auth.Role) bool {
	current, ok := m.state.Role()
	return ok && role != "" && current == role
}

// IsAdmin reports whether the current identity holds auth.RoleAdmin.
func (m *Manager) IsAdmin() bool {
	return m.HasRole(auth.RoleAdmin)
}

// Can reports whether the current identity's role grants perm.
func (m *Manager) Can(perm auth.Permission) bool {
	current, ok := m.state.Role()
	return ok && auth.HasPermission(current, perm)
}

// AccessToken returns the access token for outgoing requests.
func (m *Manager) AccessToken() (string, bool) {
	m.tokMu.RLock()
	defer m.tokMu.RUnlock()
	return m.bundle.AccessToken, m.bundle.AccessToken != ""
}

func (m *Manager) record(ctx context.Context, op Op, identity *auth.Identity, start time.Time, err error) {
	if m.recorder == nil {
		return
	}
	ev := Event{
		Op:       op,
		Outcome:  OutcomeOf(err),
		Duration: time.Since(start),
		Err:      err,
		At:       start,
	}
	if identity != nil {
		ev.UserID = identity.ID
		ev.Role = identity.Role
	}
	// Cancelled and superseded attempts are still recorded.
	m.recorder.Record(context.WithoutCancel(ctx), ev)
}
