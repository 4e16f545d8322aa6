package auth

// Permission represents a named capability screens check before rendering
// controls.
type Permission string

// Permission constants.
const (
	PermCategoryRead   Permission = "category:read"
	PermCategoryManage Permission = "category:manage"
	PermProductRead    Permission = "product:read"
	PermProductManage  Permission = "product:manage"
	PermUserRead       Permission = "user:read"
	PermUserManage     Permission = "user:manage"
)

// rolePermissions maps each role to its granted permissions.
// This is the single source of truth for what screens may show.
var rolePermissions = map[Role][]Permission{
	RoleUser: {
		PermCategoryRead,
		PermCategoryManage,
		PermProductRead,
		PermProductManage,
	},
	RoleAdmin: {
		PermCategoryRead,
		PermCategoryManage,
		PermProductRead,
		PermProductManage,
		PermUserRead,
		PermUserManage,
	},
}

// HasPermission returns true if the given role has the specified permission.
// Unknown and empty roles have no permissions.
func HasPermission(role Role, perm Permission) bool {
	for _, p := range rolePermissions[role] {
		if p == perm {
			return true
		}
	}
	return false
}

// Permissions returns a copy of the permissions granted to role.
func Permissions(role Role) []Permission {
	return append([]Permission(nil), rolePermissions[role]...)
}
