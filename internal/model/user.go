package model

import "time"

// User is an account that can sign in to the tooling tracker.  Role is
// one of "user", "admin" or "root".
//
// Fields:
//
//	ID           – primary key identifier.
//	Username     – unique login name, also written to events as USER.
//	PasswordHash – bcrypt hash.
//	Role         – access role.
//	IsActive     – disabled accounts cannot sign in.
type User struct {
	ID           uint64    // users.id
	Username     string    // users.username
	PasswordHash string    // users.password_hash
	Role         string    // users.role
	IsActive     bool      // users.is_active
	CreatedAt    time.Time // users.created_at
	UpdatedAt    time.Time // users.updated_at
}

// Access roles.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
	RoleRoot  = "root"
)

// RefreshToken models a row in refresh_tokens.  Only the SHA-256 hash of
// the token handed to the client is stored.
type RefreshToken struct {
	ID        uint64     // refresh_tokens.id
	UserID    uint64     // refresh_tokens.user_id
	TokenHash string     // refresh_tokens.token_hash
	ExpiresAt time.Time  // refresh_tokens.expires_at
	RevokedAt *time.Time // refresh_tokens.revoked_at (nullable)
	CreatedAt time.Time  // refresh_tokens.created_at
}
