package session

import (
	"sync"

	"github.com/nerrad567/catalog-session/internal/auth"
)

// Observer receives identity changes. A nil identity means anonymous. The
// value is a copy owned by the observer.
//
// Observers run synchronously on the publishing goroutine. They may
// subscribe and unsubscribe, but must not call back into the Manager's
// mutating operations.
type Observer func(identity *auth.Identity)

// RoleObserver receives the role derived from each identity change. ok is
// false when the session is anonymous.
type RoleObserver func(role auth.Role, ok bool)

type subscription struct {
	fn Observer

	// calls serialises the replay and deliveries to fn, so fn sees values
	// one at a time and in publish order.
	calls  sync.Mutex
	active bool // guarded by State.mu
}

// State is the observable current identity: a stored last value plus an
// ordered observer list. New subscribers are handed the current value
// before any later change (replay-latest).
//
// Only the Manager publishes. Everything else reads or subscribes.
//
// Thread Safety: all methods are safe for concurrent use.
type State struct {
	// publishing serialises publish rounds.
	publishing sync.Mutex

	mu      sync.RWMutex
	current *auth.Identity
	subs    []*subscription
}

// NewState returns an anonymous State.
func NewState() *State {
	return &State{}
}

// Current returns a copy of the current identity, or nil when anonymous.
func (s *State) Current() *auth.Identity {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return clone(s.current)
}

// Role returns the current identity's role. It is derived on every call.
func (s *State) Role() (auth.Role, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		return "", false
	}
	return s.current.Role, true
}

// Subscribe registers fn and immediately calls it with the current value.
// Later changes are delivered in publish order, after every observer that
// subscribed earlier. The returned func unsubscribes; it may be called from
// inside fn and more than once.
//
// Subscribe may be called from inside another observer. The new observer
// is replayed the value being delivered and joins from the next round.
func (s *State) Subscribe(fn Observer) (unsubscribe func()) {
	sub := &subscription{fn: fn, active: true}

	// fn is replayed before any round can reach it.
	sub.calls.Lock()
	s.mu.Lock()
	s.subs = append(s.subs, sub)
	current := clone(s.current)
	s.mu.Unlock()

	fn(current)
	sub.calls.Unlock()

	return func() { s.remove(sub) }
}

// SubscribeRole is Subscribe projected onto the role label.
func (s *State) SubscribeRole(fn RoleObserver) (unsubscribe func()) {
	return s.Subscribe(func(identity *auth.Identity) {
		if identity == nil {
			fn("", false)
			return
		}
		fn(identity.Role, true)
	})
}

// publish replaces the current value and notifies every observer before
// returning. The caller must not hold any lock an observer might take.
//
// Observers registered after the value is swapped are not in this round;
// their replay already carries it.
func (s *State) publish(identity *auth.Identity) {
	s.publishing.Lock()
	defer s.publishing.Unlock()

	s.mu.Lock()
	s.current = clone(identity)
	subs := append([]*subscription(nil), s.subs...)
	s.mu.Unlock()

	for _, sub := range subs {
		s.deliver(sub, identity)
	}
}

func (s *State) deliver(sub *subscription, identity *auth.Identity) {
	sub.calls.Lock()
	defer sub.calls.Unlock()

	s.mu.RLock()
	active := sub.active
	s.mu.RUnlock()
	if active {
		sub.fn(clone(identity))
	}
}

func (s *State) remove(sub *subscription) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sub.active = false
	for i, candidate := range s.subs {
		if candidate == sub {
			s.subs = append(s.subs[:i], s.subs[i+1:]...)
			return
		}
	}
}

func clone(identity *auth.Identity) *auth.Identity {
	if identity == nil {
		return nil
	}
	c := *identity
	return &c
}
