package domain

import "time"

const (
	RoleAdmin  = "admin"
	RoleEditor = "editor"
)

// ValidRole reports whether role is one the service understands.
func ValidRole(role string) bool {
	return role == RoleAdmin || role == RoleEditor
}

type AdminUser struct {
	ID           string
	Username     string
	PasswordHash string // argon2id PHC, or a legacy SHA-256 hex digest
	Role         string
	IsActive     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
