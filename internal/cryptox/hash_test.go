package cryptox

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashSecret(t *testing.T) {
	h, err := HashSecret("CorrectHorse1!")
	require.NoError(t, err)
	assert.NotEqual(t, "CorrectHorse1!", h)

	assert.True(t, CheckSecret(h, "CorrectHorse1!"))
	assert.False(t, CheckSecret(h, "correcthorse1!"))
	assert.False(t, CheckSecret("garbage", "CorrectHorse1!"))
}

var fastArgon = ArgonParams{Memory: 1024, Time: 1, Parallelism: 1, SaltLen: 8, KeyLen: 16}

func TestAPIKeyHash(t *testing.T) {
	h, err := HashAPIKey(fastArgon, "pp_abcd_secret")
	require.NoError(t, err)

	ok, err := VerifyAPIKey("pp_abcd_secret", h)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = VerifyAPIKey("pp_abcd_other", h)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestVerifyAPIKey_InvalidHash(t *testing.T) {
	for _, enc := range []string{"", "bcrypt$x", "argon2id$m=1", "argon2id$bad$AA$AA", "argon2id$m=1,t=1,p=1$!!$AA"} {
		_, err := VerifyAPIKey("k", enc)
		assert.ErrorIs(t, err, ErrInvalidHash, enc)
	}
}
