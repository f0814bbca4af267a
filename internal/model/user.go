package model

import (
	"time"

	"github.com/iliyamo/cruise-services/internal/authz"
)

// User represents an account as stored in the `users` table. The role
// column may hold a legacy label (crew, staff); repositories resolve it
// through authz.RoleMapping before a User reaches the service layer.
//
// Fields:
//
//	ID           – primary key identifier of the user.
//	Email        – unique, lower-cased email address.
//	PasswordHash – bcrypt hashed password.
//	FirstName    – given name, required before booking.
//	LastName     – family name, required before booking.
//	Phone        – optional contact number.
//	Role         – canonical role.
//	IsActive     – disabled accounts cannot authenticate.
//	LastLoginAt  – last successful login (nullable).
//	CreatedAt    – timestamp of creation.
//	UpdatedAt    – timestamp of last update.
type User struct {
	ID           uint64     `json:"id"`
	Email        string     `json:"email"`
	PasswordHash string     `json:"-"`
	FirstName    string     `json:"first_name"`
	LastName     string     `json:"last_name"`
	Phone        string     `json:"phone,omitempty"`
	Role         authz.Role `json:"role"`
	IsActive     bool       `json:"is_active"`
	LastLoginAt  *time.Time `json:"last_login_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// Identity converts the user into the authorization view of the caller.
func (u User) Identity() authz.Identity {
	return authz.Identity{
		UserID:    u.ID,
		Email:     u.Email,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Role:      u.Role,
	}
}

// RefreshToken models an entry in the `refresh_tokens` table. Only the
// SHA-256 hash of the token handed to the client is stored.
type RefreshToken struct {
	ID        uint64
	UserID    uint64
	TokenHash string
	ExpiresAt time.Time
	RevokedAt *time.Time
	CreatedAt time.Time
}
