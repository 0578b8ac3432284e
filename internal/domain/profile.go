package domain

import "time"

// Role enumerates application roles.
type Role string

const (
	RoleUser  Role = "user"
	RoleAgent Role = "agent"
	RoleAdmin Role = "admin"
)

// Profile is the application-facing identity of an account. Its ID matches
// the auth account ID; a profile is provisioned lazily on first login when
// missing.
type Profile struct {
	ID        string
	Email     string
	FullName  string
	Role      Role
	AvatarURL *string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Account holds authentication credentials for a user.
type Account struct {
	ID             string
	Email          string
	PasswordHash   string
	EmailConfirmed bool
	CreatedAt      time.Time
}
