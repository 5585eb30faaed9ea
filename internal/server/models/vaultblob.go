package models

import "time"

// VaultBlob points at the client-encrypted vault stored in object storage.
// The server never sees its plaintext.
type VaultBlob struct {
	UserID       string
	StorageKey   string
	Version      int64
	UploadStatus string
	UpdatedAt    time.Time
}

// BlobUploadTask tells the client where to PUT the next vault version.
type BlobUploadTask struct {
	Version int64  `json:"version"`
	URL     string `json:"url"`
}
