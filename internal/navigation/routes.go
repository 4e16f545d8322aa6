package navigation

import (
	"strings"

	"github.com/nerrad567/catalog-session/internal/auth"
)

// Route is one entry in the route table.
type Route struct {
	Path string

	// RedirectTo makes the route an alias; no gates run.
	RedirectTo string

	// Authenticated attaches the authentication gate.
	Authenticated bool

	// RoleGated attaches the role gate, which always runs after the
	// authentication gate.
	RoleGated bool

	// Roles is the declared required-role set. RolesDeclared separates an
	// empty declaration (never permits) from none at all (MissingRolesPolicy).
	Roles         []auth.Role
	RolesDeclared bool
}

// Public returns an ungated route.
func Public(path string) Route {
	return Route{Path: path}
}

// Protected returns a route behind the authentication gate.
func Protected(path string) Route {
	return Route{Path: path, Authenticated: true}
}

// RequireRoles returns a route behind the authentication and role gates.
func RequireRoles(path string, roles ...auth.Role) Route {
	return Route{Path: path, Authenticated: true, RoleGated: true, Roles: roles, RolesDeclared: true}
}

// Alias returns a route that redirects to target.
func Alias(path, target string) Route {
	return Route{Path: path, RedirectTo: target}
}

// Application paths.
const (
	PathRoot         = "/"
	PathAuth         = "/auth"
	PathLogin        = "/auth/login"
	PathRegister     = "/auth/register"
	PathDashboard    = "/dashboard"
	PathProfile      = "/profile"
	PathUsers        = "/users"
	PathUnauthorized = "/unauthorized"
)

// DefaultRoutes is the catalog client's route table.
func DefaultRoutes() []Route {
	return []Route{
		Alias(PathRoot, PathLogin),
		Alias(PathAuth, PathLogin),
		Public(PathLogin),
		Public(PathRegister),
		Public(PathUnauthorized),
		Protected(PathDashboard),
		Protected(PathProfile),
		RequireRoles(PathUsers, auth.RoleAdmin),
	}
}

// cleanPath normalises trailing slashes so "/dashboard/" matches "/dashboard".
func cleanPath(p string) string {
	if p == "" {
		return PathRoot
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	if len(p) > 1 {
		p = strings.TrimRight(p, "/")
		if p == "" {
			p = PathRoot
		}
	}
	return p
}
