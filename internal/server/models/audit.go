package models

import "time"

// AuditLog is one security-relevant event.
type AuditLog struct {
	ID        string         `json:"id"`
	UserID    *string        `json:"user_id,omitempty"`
	Action    string         `json:"action"`
	Resource  string         `json:"resource"`
	Success   bool           `json:"success"`
	IPAddress string         `json:"ip_address,omitempty"`
	Details   map[string]any `json:"details,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}
