package cryptox

import (
	"encoding/json"
	"fmt"

	"github.com/dmitrijs2005/passport/internal/common"
	"github.com/fernet/fernet-go"
)

// VaultCipher seals the zero-knowledge vault blob with a key derived from the
// user's master password. The server never holds a VaultCipher for stored
// data; the CLI and clients use it locally.
type VaultCipher struct {
	key *fernet.Key
}

// NewVaultCipher binds a cipher to a derived vault key.
func NewVaultCipher(k VaultKey) (*VaultCipher, error) {
	fk, err := fernet.DecodeKey(k.String())
	if err != nil {
		return nil, fmt.Errorf("vault key: %w", err)
	}
	return &VaultCipher{key: fk}, nil
}

// SealJSON serializes v to JSON and encrypts it.
func (c *VaultCipher) SealJSON(v any) ([]byte, error) {
	plaintext, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	defer common.WipeByteArray(plaintext)
	return fernet.EncryptAndSign(plaintext, c.key)
}

// OpenJSON verifies and decrypts token, then unmarshals the JSON into v.
func (c *VaultCipher) OpenJSON(token []byte, v any) error {
	plaintext := fernet.VerifyAndDecrypt(token, noExpiry, []*fernet.Key{c.key})
	if plaintext == nil {
		return common.ErrIntegrity
	}
	defer common.WipeByteArray(plaintext)
	return json.Unmarshal(plaintext, v)
}
