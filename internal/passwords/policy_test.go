package passwords

import (
	"testing"

	"github.com/dmitrijs2005/passport/internal/common"
	"github.com/stretchr/testify/assert"
)

func TestCheckPolicy(t *testing.T) {
	assert.NoError(t, CheckPolicy("CorrectHorse1!"))

	err := CheckPolicy("short1!A")
	assert.ErrorIs(t, err, common.ErrorValidation)
	assert.ErrorContains(t, err, "at least 12 characters")

	err = CheckPolicy("alllowercaseletters")
	assert.ErrorIs(t, err, common.ErrorValidation)
	assert.ErrorContains(t, err, "an uppercase letter, a digit, a symbol")
}
