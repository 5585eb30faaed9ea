// Package models defines server-side data models persisted in the database.
package models

import "time"

// User owns two independent secrets: the login password hash and the master
// password hash. VaultSalt is generated once at registration and never
// rewritten; changing it would orphan everything encrypted under the vault key.
type User struct {
	ID                  string
	Email               string
	UserName            string
	PasswordHash        string
	MasterPasswordHash  string
	VaultSalt           []byte
	TOTPSecret          *string // Fernet ciphertext
	TOTPEnabled         bool
	FailedLoginAttempts int
	LockedUntil         *time.Time
	LastLoginAt         *time.Time
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// Locked reports whether the account is inside a lockout window at now.
func (u *User) Locked(now time.Time) bool {
	return u.LockedUntil != nil && now.Before(*u.LockedUntil)
}
