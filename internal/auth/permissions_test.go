package auth

import "testing"

func TestHasPermission_Admin(t *testing.T) {
	all := []Permission{
		PermCategoryRead, PermCategoryManage,
		PermProductRead, PermProductManage,
		PermUserRead, PermUserManage,
	}

	for _, perm := range all {
		if !HasPermission(RoleAdmin, perm) {
			t.Errorf("admin should have %s", perm)
		}
	}
}

func TestHasPermission_User(t *testing.T) {
	should := []Permission{
		PermCategoryRead, PermCategoryManage,
		PermProductRead, PermProductManage,
	}
	shouldNot := []Permission{
		PermUserRead, PermUserManage,
	}

	for _, perm := range should {
		if !HasPermission(RoleUser, perm) {
			t.Errorf("user should have %s", perm)
		}
	}
	for _, perm := range shouldNot {
		if HasPermission(RoleUser, perm) {
			t.Errorf("user should NOT have %s", perm)
		}
	}
}

func TestHasPermission_UnknownRole(t *testing.T) {
	for _, role := range []Role{"", "admin", "OWNER"} {
		if HasPermission(role, PermCategoryRead) {
			t.Errorf("role %q should have no permissions", role)
		}
	}
}

func TestIsValidRole(t *testing.T) {
	tests := []struct {
		role Role
		want bool
	}{
		{RoleAdmin, true},
		{RoleUser, true},
		{"admin", false},
		{"", false},
	}

	for _, tt := range tests {
		if got := IsValidRole(tt.role); got != tt.want {
			t.Errorf("IsValidRole(%q) = %v, want %v", tt.role, got, tt.want)
		}
	}
}

func TestPermissions_ReturnsCopy(t *testing.T) {
	perms := Permissions(RoleUser)
	if len(perms) != 4 {
		t.Fatalf("Permissions(USER) = %v, want 4 entries", perms)
	}
	perms[0] = PermUserManage
	if HasPermission(RoleUser, PermUserManage) {
		t.Error("mutating Permissions() result changed the role table")
	}
	if got := Permissions(Role("")); len(got) != 0 {
		t.Errorf("Permissions(\"\") = %v, want none", got)
	}
}
