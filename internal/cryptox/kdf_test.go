package cryptox

import (
	"bytes"
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeriveVaultKey_Deterministic(t *testing.T) {
	salt, err := NewVaultSalt()
	require.NoError(t, err)
	require.Len(t, salt, 32)

	key1 := DeriveVaultKey("CorrectHorse1!", salt)
	key2 := DeriveVaultKey("CorrectHorse1!", salt)

	// одинаковые входы -> одинаковый вывод
	if !bytes.Equal(key1.Bytes(), key2.Bytes()) {
		t.Errorf("expected same result for same inputs, got different")
	}
	assert.Equal(t, key1.String(), key2.String())

	raw, err := base64.URLEncoding.DecodeString(key1.String())
	require.NoError(t, err)
	assert.Len(t, raw, VaultKeySize)
}

func TestDeriveVaultKey_DifferentInputs(t *testing.T) {
	salt1 := bytes.Repeat([]byte{1}, 32)
	salt2 := bytes.Repeat([]byte{2}, 32)

	assert.NotEqual(t, DeriveVaultKey("pw", salt1).String(), DeriveVaultKey("pw", salt2).String())
	assert.NotEqual(t, DeriveVaultKey("pw1", salt1).String(), DeriveVaultKey("pw2", salt1).String())
}

func TestNewVaultSalt_Unique(t *testing.T) {
	a, err := NewVaultSalt()
	require.NoError(t, err)
	b, err := NewVaultSalt()
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestVaultKey_BytesIsCopy(t *testing.T) {
	k := DeriveVaultKey("pw", []byte("salt"))
	b := k.Bytes()
	b[0] ^= 0xff
	assert.NotEqual(t, b, k.Bytes())
}
