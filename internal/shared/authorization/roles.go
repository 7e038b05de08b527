// Package authorization defines the role vocabulary shared between JWT
// claims, the casbin policy seed, and the HTTP middleware.
package authorization

// UserRole identifies the access level of an account.
type UserRole string

const (
	RoleUser  UserRole = "user"
	RoleAdmin UserRole = "admin"
)

// IsValid reports whether the role is part of the closed vocabulary.
func (r UserRole) IsValid() bool {
	return r == RoleUser || r == RoleAdmin
}

// String returns the role name.
func (r UserRole) String() string {
	return string(r)
}
