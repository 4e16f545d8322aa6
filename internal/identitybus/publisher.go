package identitybus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/nerrad567/catalog-session/internal/auth"
	"github.com/nerrad567/catalog-session/internal/infrastructure/logging"
	"github.com/nerrad567/catalog-session/internal/infrastructure/mqtt"
	"github.com/nerrad567/catalog-session/internal/session"
)

// commandQoS is the QoS for the logout command subscription.
const commandQoS = 1

// Broker is the subset of *mqtt.Client the publisher needs.
type Broker interface {
	PublishRetained(topic string, payload []byte) error
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	Unsubscribe(topic string) error
}

// Session is the subset of *session.Manager the publisher needs.
type Session interface {
	State() *session.State
	Logout(ctx context.Context)
}

// Deps holds the dependencies required by the Publisher.
type Deps struct {
	Broker   Broker
	Session  Session
	Topics   mqtt.Topics
	ClientID string
	Logger   *logging.Logger
}

// Summary is the retained identity message. Anonymous publishes only
// Authenticated=false.
type Summary struct {
	Authenticated bool      `json:"authenticated"`
	ID            string    `json:"id,omitempty"`
	Name          string    `json:"name,omitempty"`
	Email         string    `json:"email,omitempty"`
	Role          auth.Role `json:"role,omitempty"`
	ClientID      string    `json:"client_id"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// logoutCommand is the optional body of a logout command.
type logoutCommand struct {
	Reason string `json:"reason"`
}

// Publisher keeps the broker's retained identity in step with session.State.
//
// Thread Safety: Start, Republish and Close are safe for concurrent use.
type Publisher struct {
	broker   Broker
	session  Session
	topics   mqtt.Topics
	clientID string
	logger   *logging.Logger

	// pending holds at most the newest unpublished identity.
	pending chan *auth.Identity

	mu          sync.Mutex
	started     bool
	unsubscribe func()
	cancel      context.CancelFunc
	done        chan struct{}
}

// New creates a Publisher. Call Start to begin publishing.
func New(deps Deps) (*Publisher, error) {
	if deps.Broker == nil {
		return nil, errors.New("identitybus: broker is required")
	}
	if deps.Session == nil {
		return nil, errors.New("identitybus: session is required")
	}
	if deps.ClientID == "" {
		return nil, errors.New("identitybus: client ID is required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = logging.Default()
	}

	return &Publisher{
		broker:   deps.Broker,
		session:  deps.Session,
		topics:   deps.Topics,
		clientID: deps.ClientID,
		logger:   logger.With("component", "identitybus"),
		pending:  make(chan *auth.Identity, 1),
	}, nil
}

// Start subscribes to the logout command topic and to the session state.
// The current identity is published immediately. Publishing stops when ctx
// is cancelled or Close is called.
func (p *Publisher) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.started {
		return errors.New("identitybus: already started")
	}

	cmdTopic := p.topics.SessionLogoutCommand(p.clientID)
	if err := p.broker.Subscribe(cmdTopic, commandQoS, p.handleLogout); err != nil {
		return fmt.Errorf("subscribing to %s: %w", cmdTopic, err)
	}

	loopCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.done = make(chan struct{})
	go p.loop(loopCtx)

	p.unsubscribe = p.session.State().Subscribe(p.enqueue)
	p.started = true

	p.logger.Info("identity bus started", "topic", p.topics.SessionIdentity(p.clientID))
	return nil
}

// Republish queues the current identity again. Wire it to the broker's
// reconnect callback.
func (p *Publisher) Republish() {
	p.enqueue(p.session.State().Current())
}

// Close stops observing the session and waits for the publish loop to exit.
func (p *Publisher) Close() error {
	p.mu.Lock()
	if !p.started {
		p.mu.Unlock()
		return nil
	}
	p.started = false
	unsubscribe, cancel, done := p.unsubscribe, p.cancel, p.done
	p.mu.Unlock()

	unsubscribe()
	cancel()
	<-done

	cmdTopic := p.topics.SessionLogoutCommand(p.clientID)
	if err := p.broker.Unsubscribe(cmdTopic); err != nil && !errors.Is(err, mqtt.ErrNotConnected) {
		return fmt.Errorf("unsubscribing from %s: %w", cmdTopic, err)
	}
	return nil
}

// enqueue replaces any unpublished identity with identity. It never blocks.
func (p *Publisher) enqueue(identity *auth.Identity) {
	for {
		select {
		case p.pending <- identity:
			return
		default:
		}
		select {
		case <-p.pending:
		default:
		}
	}
}

func (p *Publisher) loop(ctx context.Context) {
	defer close(p.done)

	for {
		select {
		case <-ctx.Done():
			return
		case identity := <-p.pending:
			p.publish(identity)
		}
	}
}

func (p *Publisher) publish(identity *auth.Identity) {
	payload, err := json.Marshal(p.summarise(identity))
	if err != nil {
		p.logger.Error("encoding identity summary", "error", err)
		return
	}

	topic := p.topics.SessionIdentity(p.clientID)
	if err := p.broker.PublishRetained(topic, payload); err != nil {
		p.logger.Warn("publishing identity summary", "topic", topic, "error", err)
		return
	}
	p.logger.Debug("identity summary published", "authenticated", identity != nil)
}

func (p *Publisher) summarise(identity *auth.Identity) Summary {
	s := Summary{ClientID: p.clientID, UpdatedAt: time.Now().UTC()}
	if identity == nil {
		return s
	}
	s.Authenticated = true
	s.ID = identity.ID
	s.Name = identity.Name
	s.Email = identity.Email
	s.Role = identity.Role
	return s
}

// handleLogout signs the user out. An empty or non-JSON body is accepted.
func (p *Publisher) handleLogout(topic string, payload []byte) error {
	var cmd logoutCommand
	if len(payload) > 0 {
		_ = json.Unmarshal(payload, &cmd) //nolint:errcheck // reason is informational
	}

	p.logger.Info("remote logout requested", "topic", topic, "reason", cmd.Reason)
	p.session.Logout(context.Background())
	return nil
}
