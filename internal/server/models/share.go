package models

import "time"

// ShareStatus is the lifecycle state of a share. Revoked is terminal.
type ShareStatus string

const (
	SharePending  ShareStatus = "pending"
	ShareAccepted ShareStatus = "accepted"
	ShareRejected ShareStatus = "rejected"
	ShareRevoked  ShareStatus = "revoked"
)

// Capabilities are the three independent permissions a share carries.
type Capabilities struct {
	CanView  bool `json:"can_view"`
	CanEdit  bool `json:"can_edit"`
	CanShare bool `json:"can_share"`
}

// Covers reports whether c grants at least everything in other.
func (c Capabilities) Covers(other Capabilities) bool {
	return (c.CanView || !other.CanView) &&
		(c.CanEdit || !other.CanEdit) &&
		(c.CanShare || !other.CanShare)
}

// Share links a vault record to a grantee. OwnerID is the record owner,
// SharedByID the user who created the share (the owner or a re-sharing grantee).
type Share struct {
	ID           string      `json:"id"`
	PasswordID   string      `json:"password_id"`
	PasswordName string      `json:"password_name,omitempty"`
	OwnerID      string      `json:"owner_id"`
	SharedByID   string      `json:"shared_by_id"`
	SharedWithID string      `json:"shared_with_id"`
	Status       ShareStatus `json:"status"`
	Capabilities
	CreatedAt  time.Time  `json:"created_at"`
	AcceptedAt *time.Time `json:"accepted_at,omitempty"`
	RevokedAt  *time.Time `json:"revoked_at,omitempty"`
}

// Active reports whether the share still counts toward the one-per-pair limit.
func (s *Share) Active() bool {
	return s.Status != ShareRevoked
}
