// Package cryptox holds PassPort's cryptographic plumbing: vault key
// derivation, the server-side field encryptor, the client-side vault cipher
// and the one-way hashes used for login secrets and API keys.
//
// Two trust domains are kept apart by type: a FieldEncryptor is built from the
// server-held field key, a VaultCipher only from a VaultKey derived from a
// user's master password. Neither constructor accepts the other's key type.
package cryptox

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"

	"github.com/dmitrijs2005/passport/internal/common"
	"golang.org/x/crypto/pbkdf2"
)

const (
	// VaultKDFIterations is the PBKDF2 iteration count for vault keys.
	VaultKDFIterations = 100_000
	// VaultKeySize is the size of a derived vault key in bytes.
	VaultKeySize = 32
)

// VaultKey is a key derived from a master password and vault salt.
type VaultKey struct {
	raw []byte
}

// NewVaultSalt returns a fresh 32-byte salt from crypto/rand. It is generated
// once, at registration, and must never change afterwards.
func NewVaultSalt() ([]byte, error) {
	salt := make([]byte, common.VaultSaltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("vault salt: %w", err)
	}
	return salt, nil
}

// DeriveVaultKey runs PBKDF2-HMAC-SHA256 over the master password. The same
// password and salt always produce the same key.
func DeriveVaultKey(masterPassword string, salt []byte) VaultKey {
	return VaultKey{raw: pbkdf2.Key([]byte(masterPassword), salt, VaultKDFIterations, VaultKeySize, sha256.New)}
}

// Bytes returns a copy of the raw key material.
func (k VaultKey) Bytes() []byte {
	out := make([]byte, len(k.raw))
	copy(out, k.raw)
	return out
}

// String returns the url-safe base64 form, which is also a valid Fernet key.
func (k VaultKey) String() string {
	return base64.URLEncoding.EncodeToString(k.raw)
}

// Wipe zeroes the key material.
func (k VaultKey) Wipe() {
	common.WipeByteArray(k.raw)
}
