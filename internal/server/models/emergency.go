package models

import "time"

// EmergencyStatus is a state of the emergency access protocol.
type EmergencyStatus string

const (
	EmergencyPending   EmergencyStatus = "pending"
	EmergencyActive    EmergencyStatus = "active"
	EmergencyRequested EmergencyStatus = "requested"
	EmergencyGranted   EmergencyStatus = "granted"
	EmergencyRejected  EmergencyStatus = "rejected"
)

// AccessLevel is what a granted contact may do with the vault.
type AccessLevel string

const (
	AccessView     AccessLevel = "view"
	AccessTakeover AccessLevel = "takeover"
)

// EmergencyAccess is a time-delayed grant from a vault owner (grantor) to a
// trusted contact (grantee).
type EmergencyAccess struct {
	ID          string          `json:"id"`
	GrantorID   string          `json:"grantor_id"`
	GranteeID   string          `json:"grantee_id"`
	Status      EmergencyStatus `json:"status"`
	AccessLevel AccessLevel     `json:"access_level"`
	WaitHours   int             `json:"wait_hours"`
	RequestedAt *time.Time      `json:"requested_at,omitempty"`
	AvailableAt *time.Time      `json:"available_at,omitempty"`
	GrantedAt   *time.Time      `json:"granted_at,omitempty"`
	RejectedAt  *time.Time      `json:"rejected_at,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}
