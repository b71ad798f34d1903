package models

import "time"

type UserRole string

const (
	UserRoleFree  UserRole = "free"
	UserRolePro   UserRole = "pro"
	UserRoleAdmin UserRole = "admin"
)

type UserStatus string

const (
	UserStatusActive    UserStatus = "active"
	UserStatusSuspended UserStatus = "suspended"
)

type User struct {
	ID           string
	Email        string
	PasswordHash []byte
	DisplayName  string
	Role         UserRole
	Status       UserStatus
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// RefreshToken is the persisted row backing server-side revocation. The
// signed token itself is stateless; deleting the row invalidates it even
// while the signature is still valid.
type RefreshToken struct {
	Token     string
	UserID    string
	ExpiresAt time.Time
	CreatedAt time.Time
}
