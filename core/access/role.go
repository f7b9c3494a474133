// Package access decides who may reach a protected surface.
//
// A Gate turns a credential into a Session (identity + role), then matches the session's role against the
// roles a surface allows. Every failure along the way resolves to a denial; nothing is cached between requests.
package access

import "strings"

type Role string

// Roles
const (
	RoleUnauthenticated Role = "unauthenticated"
	RoleStudent         Role = "student"
	RoleAdmin           Role = "admin"
	RoleSuperAdmin      Role = "super_admin"
)

// Homes
const (
	StudentHome    = "/dashboard"
	AdminHome      = "/admin-dashboard"
	SuperAdminHome = "/super-admin-dashboard"
	LoginPage      = "/login"
)

// AdminRoles may reach the admin surfaces. Every call returns a new slice.
func AdminRoles() []Role { return []Role{RoleAdmin, RoleSuperAdmin} }

// AssignableRoles are the roles a user account may be given. Every call returns a new slice.
func AssignableRoles() []Role { return []Role{RoleStudent, RoleAdmin, RoleSuperAdmin} }

// ParseRole maps a stored role name to a Role. The boolean is false for unknown names.
func ParseRole(s string) (Role, bool) {
	if r := Role(strings.ToLower(strings.TrimSpace(s))); r.in(AssignableRoles()) {
		return r, true
	}
	return RoleUnauthenticated, false
}

// Home is the landing surface of the role. Anything that is not an admin lands on the student dashboard.
func (r Role) Home() string {
	switch r {
	case RoleSuperAdmin:
		return SuperAdminHome
	case RoleAdmin:
		return AdminHome
	default:
		return StudentHome
	}
}

func (r Role) IsAdmin() bool { return r == RoleAdmin || r == RoleSuperAdmin }

func (r Role) String() string { return string(r) }

func (r Role) in(roles []Role) bool {
	for _, role := range roles {
		if role == r {
			return true
		}
	}
	return false
}
