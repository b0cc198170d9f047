// Package auth provides JWT token management and the portal role model.
package auth

// Role is the access level carried in a token. ADMIN is a superset of
// EMPLOYEE for every lifecycle operation.
type Role string

const (
	RoleUser     Role = "USER"
	RoleEmployee Role = "EMPLOYEE"
	RoleAdmin    Role = "ADMIN"
)

// Valid reports whether the role is one of the known access levels.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleEmployee, RoleAdmin:
		return true
	}
	return false
}

// IsStaff reports whether the role may perform verification and payment
// confirmation operations.
func (r Role) IsStaff() bool {
	return r == RoleEmployee || r == RoleAdmin
}
