package navigation

import (
	"fmt"

	"github.com/nerrad567/catalog-session/internal/auth"
)

// Default destinations.
const (
	DefaultPublicEntry  = "/auth/login"
	DefaultUnauthorized = "/unauthorized"
)

// Session is the read-only view of the session that gates consult.
// *session.Manager satisfies it.
type Session interface {
	IsAuthenticated() bool
	HasRole(role auth.Role) bool
}

// Decision is the outcome of a gate: either allowed, or denied with the path
// to send the user to instead.
type Decision struct {
	Allowed  bool
	Redirect string
}

// Allow is the permitting decision.
func Allow() Decision { return Decision{Allowed: true} }

// DenyTo denies and redirects to path.
func DenyTo(path string) Decision { return Decision{Redirect: path} }

// Gate is one boundary check. Gates only read session state.
type Gate interface {
	Evaluate(route Route) Decision
}

// AuthGate permits a navigation only when a session is established.
type AuthGate struct {
	Session     Session
	PublicEntry string
}

// Evaluate implements Gate.
func (g AuthGate) Evaluate(Route) Decision {
	if g.Session.IsAuthenticated() {
		return Allow()
	}
	return DenyTo(orDefault(g.PublicEntry, DefaultPublicEntry))
}

// MissingRolesPolicy decides how the role gate treats a route that declares
// no role set at all.
type MissingRolesPolicy int

const (
	// FailClosed denies routes without a role declaration.
	FailClosed MissingRolesPolicy = iota

	// FailOpen treats a missing declaration as "authenticated is enough".
	FailOpen
)

// ParseMissingRolesPolicy maps the config values "deny" and "allow".
func ParseMissingRolesPolicy(s string) (MissingRolesPolicy, error) {
	switch s {
	case "", "deny":
		return FailClosed, nil
	case "allow":
		return FailOpen, nil
	default:
		return FailClosed, fmt.Errorf("unknown missing roles policy %q", s)
	}
}

func (p MissingRolesPolicy) String() string {
	if p == FailOpen {
		return "allow"
	}
	return "deny"
}

// RoleGate permits a navigation only when the current identity holds at least
// one of the route's declared roles. An empty declared set never permits.
// Denials go to Unauthorized, never to the public entry point.
type RoleGate struct {
	Session      Session
	Unauthorized string
	MissingRoles MissingRolesPolicy
}

// Evaluate implements Gate.
func (g RoleGate) Evaluate(route Route) Decision {
	deny := DenyTo(orDefault(g.Unauthorized, DefaultUnauthorized))

	if !route.RolesDeclared {
		if g.MissingRoles == FailOpen {
			return Allow()
		}
		return deny
	}

	for _, r := range route.Roles {
		if g.Session.HasRole(r) {
			return Allow()
		}
	}
	return deny
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
