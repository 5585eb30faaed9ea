package models

import "time"

// Item is the decrypted view of a vault record returned to its owner or to
// an accepted grantee.
type Item struct {
	ID           string            `json:"id"`
	UserID       string            `json:"user_id"`
	Name         string            `json:"name"`
	Type         ItemType          `json:"type"`
	Folder       string            `json:"folder,omitempty"`
	Notes        string            `json:"notes,omitempty"`
	Tags         []string          `json:"tags"`
	CustomFields map[string]string `json:"custom_fields"`
	Favorite     bool              `json:"is_favorite"`
	AutoRotate   bool              `json:"auto_rotate"`
	RotationDays *int              `json:"rotation_days,omitempty"`
	Secret       Secret            `json:"secret"`

	Strength       *string    `json:"password_strength,omitempty"`
	Score          *int       `json:"password_score,omitempty"`
	IsCompromised  bool       `json:"is_compromised"`
	BreachCount    int        `json:"breach_count"`
	LastRotatedAt  *time.Time `json:"last_rotated_at,omitempty"`
	NextRotationAt *time.Time `json:"next_rotation_at,omitempty"`
	IsShared       bool       `json:"is_shared"`
	LastUsedAt     *time.Time `json:"last_used_at,omitempty"`
	UsageCount     int        `json:"usage_count"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// PasswordRecord is the flattened row stored in the passwords table. Only
// ciphertext reaches the sensitive columns; Details holds the non-primary
// variant fields as a JSON object whose sensitive values are ciphertext too.
type PasswordRecord struct {
	ID                string
	UserID            string
	Name              string
	Type              ItemType
	Folder            *string
	Username          *string
	URL               *string
	EncryptedPassword *string
	Details           []byte
	Notes             *string
	Tags              string
	CustomFields      string
	PasswordStrength  *string
	PasswordScore     *int
	IsCompromised     bool
	BreachCount       int
	AutoRotate        bool
	RotationDays      *int
	LastRotatedAt     *time.Time
	NextRotationAt    *time.Time
	IsShared          bool
	IsFavorite        bool
	LastUsedAt        *time.Time
	UsageCount        int
	IsDeleted         bool
	DeletedAt         *time.Time
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// PasswordListItem is the summary row returned by List; it never carries
// ciphertext.
type PasswordListItem struct {
	ID               string    `json:"id"`
	Name             string    `json:"name"`
	Type             ItemType  `json:"type"`
	Folder           *string   `json:"folder,omitempty"`
	Username         *string   `json:"username,omitempty"`
	URL              *string   `json:"url,omitempty"`
	PasswordStrength *string   `json:"password_strength,omitempty"`
	IsCompromised    bool      `json:"is_compromised"`
	IsShared         bool      `json:"is_shared"`
	IsFavorite       bool      `json:"is_favorite"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// PasswordFilter narrows List. Zero values mean "no filter".
type PasswordFilter struct {
	Search   string
	Folder   string
	Type     ItemType
	Favorite *bool
	Skip     int
	Limit    int
}

// PasswordHistory is an immutable snapshot of a replaced primary secret.
type PasswordHistory struct {
	ID                string
	PasswordID        string
	EncryptedPassword string
	PasswordStrength  *string
	PasswordScore     *int
	CreatedAt         time.Time
}
