// Package common contains shared constants and sentinel errors used across
// PassPort components.
package common

// APIKeyHeaderName is the HTTP header carrying a PassPort API key.
const APIKeyHeaderName = "X-API-Key"

// VaultSaltSize is the size, in bytes, of the per-user vault salt.
const VaultSaltSize = 32
