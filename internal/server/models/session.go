package models

import "time"

// Session is a server-stored refresh token. Refreshing deletes the row and
// issues a new one.
type Session struct {
	ID        string
	UserID    string
	Token     string
	IPAddress string
	UserAgent string
	ExpiresAt time.Time
	CreatedAt time.Time
}
