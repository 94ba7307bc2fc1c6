package domain

type UserRole string

const (
	UserRoleMember UserRole = "member"
	UserRoleAdmin  UserRole = "admin"
)

// User is the minimal principal record the marketplace owns. Authentication
// lives elsewhere; admins are the audience for lifecycle fan-out.
type User struct {
	ID    string
	Email string
	Role  UserRole
}
