package cryptox

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"io"

	"github.com/dmitrijs2005/passport/internal/common"
	"github.com/fernet/fernet-go"
	"golang.org/x/crypto/hkdf"
)

// noExpiry disables the Fernet token age check; stored fields never expire.
const noExpiry = -1

const fieldKeyInfo = "passport field encryption v1"

// ErrNoFieldKey is returned when neither a field key nor a master key is configured.
var ErrNoFieldKey = errors.New("no field encryption key configured")

// FieldEncryptor encrypts individual sensitive record fields at rest with the
// server-held field key. Tokens are Fernet: versioned, random IV per call,
// HMAC-verified on decrypt.
type FieldEncryptor struct {
	keys []*fernet.Key
}

// NewFieldEncryptor builds an encryptor from one or more url-safe base64
// Fernet keys. The first key encrypts; all keys are tried on decrypt, which
// allows rotating the field key without rewriting stored rows first.
func NewFieldEncryptor(encodedKeys ...string) (*FieldEncryptor, error) {
	if len(encodedKeys) == 0 {
		return nil, ErrNoFieldKey
	}
	keys, err := fernet.DecodeKeys(encodedKeys...)
	if err != nil {
		return nil, fmt.Errorf("field key: %w", err)
	}
	return &FieldEncryptor{keys: keys}, nil
}

// FieldKeyFromMaster derives a Fernet field key from the MASTER_KEY secret
// with HKDF-SHA256.
func FieldKeyFromMaster(masterKey string) (string, error) {
	if masterKey == "" {
		return "", ErrNoFieldKey
	}
	var k fernet.Key
	r := hkdf.New(sha256.New, []byte(masterKey), nil, []byte(fieldKeyInfo))
	if _, err := io.ReadFull(r, k[:]); err != nil {
		return "", fmt.Errorf("hkdf: %w", err)
	}
	return k.Encode(), nil
}

// GenerateFieldKey returns a new random Fernet key.
func GenerateFieldKey() (string, error) {
	var k fernet.Key
	if err := k.Generate(); err != nil {
		return "", err
	}
	return k.Encode(), nil
}

// Encrypt returns the Fernet token for plaintext. An empty plaintext is not
// encrypted: the result is nil so the column stays NULL.
func (e *FieldEncryptor) Encrypt(plaintext string) (*string, error) {
	if plaintext == "" {
		return nil, nil
	}
	tok, err := fernet.EncryptAndSign([]byte(plaintext), e.keys[0])
	if err != nil {
		return nil, fmt.Errorf("encrypt field: %w", err)
	}
	s := string(tok)
	return &s, nil
}

// Decrypt reverses Encrypt. A nil token decrypts to "". A token that fails
// verification yields common.ErrIntegrity.
func (e *FieldEncryptor) Decrypt(token *string) (string, error) {
	if token == nil {
		return "", nil
	}
	msg := fernet.VerifyAndDecrypt([]byte(*token), noExpiry, e.keys)
	if msg == nil {
		return "", common.ErrIntegrity
	}
	return string(msg), nil
}
