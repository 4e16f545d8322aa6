package navigation

import (
	"net/http"
	"sort"
	"sync"

	"github.com/nerrad567/catalog-session/internal/infrastructure/logging"
)

// maxRedirects bounds alias and denial chains when navigating.
const maxRedirects = 4

// Config configures a Navigator.
type Config struct {
	// PublicEntry is where unauthenticated users and logout land.
	PublicEntry string

	// Unauthorized is where authenticated users without the role land.
	Unauthorized string

	// Fallback is where unknown paths go. Defaults to PublicEntry.
	Fallback string

	MissingRoles MissingRolesPolicy

	Logger *logging.Logger
}

// Navigator holds the route table, runs the gates for each navigation and
// tracks the current location. It satisfies session.Redirector.
//
// Gates are evaluated on every navigation; no decision is cached.
//
// Thread Safety: all methods are safe for concurrent use.
type Navigator struct {
	routes   map[string]Route
	authGate AuthGate
	roleGate RoleGate
	fallback string
	logger   *logging.Logger

	mu      sync.RWMutex
	current string
}

// New creates a Navigator over routes. A nil routes slice uses DefaultRoutes.
func New(sess Session, routes []Route, cfg Config) *Navigator {
	if routes == nil {
		routes = DefaultRoutes()
	}
	publicEntry := orDefault(cfg.PublicEntry, DefaultPublicEntry)
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}

	table := make(map[string]Route, len(routes))
	for _, r := range routes {
		r.Path = cleanPath(r.Path)
		table[r.Path] = r
	}

	return &Navigator{
		routes:   table,
		authGate: AuthGate{Session: sess, PublicEntry: publicEntry},
		roleGate: RoleGate{
			Session:      sess,
			Unauthorized: orDefault(cfg.Unauthorized, DefaultUnauthorized),
			MissingRoles: cfg.MissingRoles,
		},
		fallback: orDefault(cfg.Fallback, publicEntry),
		logger:   logger.With("component", "navigation"),
		current:  publicEntry,
	}
}

// Routes returns the route table ordered by path.
func (n *Navigator) Routes() []Route {
	out := make([]Route, 0, len(n.routes))
	for _, r := range n.routes {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

// Lookup returns the route registered at path.
func (n *Navigator) Lookup(path string) (Route, bool) {
	r, ok := n.routes[cleanPath(path)]
	return r, ok
}

// Evaluate runs the route's gates in order. The role gate is only consulted
// once the authentication gate has permitted.
func (n *Navigator) Evaluate(route Route) Decision {
	if route.RedirectTo != "" {
		return DenyTo(route.RedirectTo)
	}
	if route.Authenticated || route.RoleGated {
		if d := n.authGate.Evaluate(route); !d.Allowed {
			return d
		}
	}
	if route.RoleGated {
		if d := n.roleGate.Evaluate(route); !d.Allowed {
			return d
		}
	}
	return Allow()
}

// Resolve looks up path and evaluates it. Unknown paths are denied with a
// redirect to the fallback.
func (n *Navigator) Resolve(path string) Decision {
	route, ok := n.Lookup(path)
	if !ok {
		return DenyTo(n.fallback)
	}
	return n.Evaluate(route)
}

// Navigate attempts to move to path, following redirects, and returns the
// decision for the original path. The current location becomes wherever the
// attempt finally lands.
func (n *Navigator) Navigate(path string) Decision {
	first := n.Resolve(path)

	target, d := cleanPath(path), first
	for i := 0; !d.Allowed && i < maxRedirects; i++ {
		n.logger.Debug("navigation denied", "path", target, "redirect", d.Redirect)
		target = cleanPath(d.Redirect)
		d = n.Resolve(target)
	}
	if !d.Allowed {
		n.logger.Warn("redirect chain did not settle", "path", path, "last", target)
		target = n.authGate.PublicEntry
	}

	n.mu.Lock()
	n.current = target
	n.mu.Unlock()
	return first
}

// Redirect moves to path. It implements session.Redirector.
func (n *Navigator) Redirect(path string) {
	n.Navigate(path)
}

// Current returns the current location.
func (n *Navigator) Current() string {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.current
}

// Guard returns middleware that evaluates route on each request and answers
// a denial with 303 See Other to the redirect target.
func (n *Navigator) Guard(route Route) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if d := n.Evaluate(route); !d.Allowed {
				http.Redirect(w, r, d.Redirect, http.StatusSeeOther)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
