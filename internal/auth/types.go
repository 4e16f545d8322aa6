package auth

import "encoding/json"

// Role is the single authorisation label carried by an Identity.
type Role string

const (
	// RoleAdmin may manage users in addition to the catalog.
	RoleAdmin Role = "ADMIN"

	// RoleUser is the default, non-privileged role.
	RoleUser Role = "USER"
)

// ValidRoles is the closed set of roles the server may assign.
var ValidRoles = []Role{RoleAdmin, RoleUser}

// IsValidRole returns true if r is one of ValidRoles.
func IsValidRole(r Role) bool {
	for _, v := range ValidRoles {
		if r == v {
			return true
		}
	}
	return false
}

// Identity is the authenticated user's durable attributes as issued by the
// server. It is never patched: a new login yields a new Identity.
type Identity struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  Role   `json:"role"`
}

// IsAdmin reports whether the identity holds RoleAdmin.
func (i Identity) IsAdmin() bool {
	return i.Role == RoleAdmin
}

// Can reports whether the identity's role grants perm.
func (i Identity) Can(perm Permission) bool {
	return HasPermission(i.Role, perm)
}

// MarshalIdentity encodes an identity in the persisted flat-record format.
func MarshalIdentity(id Identity) (string, error) {
	b, err := json.Marshal(id)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// UnmarshalIdentity decodes a persisted identity. A record without an id is
// treated as malformed.
func UnmarshalIdentity(s string) (Identity, error) {
	var id Identity
	if err := json.Unmarshal([]byte(s), &id); err != nil {
		return Identity{}, err
	}
	if id.ID == "" {
		return Identity{}, ErrMalformedIdentity
	}
	return id, nil
}

// Bundle is the unit of session truth: both tokens and the identity they
// belong to.
type Bundle struct {
	AccessToken  string
	RefreshToken string
	Identity     Identity
}

// Complete reports whether every part of the bundle is present.
func (b Bundle) Complete() bool {
	return b.AccessToken != "" && b.RefreshToken != "" && b.Identity.ID != ""
}
