package passwords

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/dmitrijs2005/passport/internal/common"
)

// PolicyMinLength is the minimum length for account and master passwords.
const PolicyMinLength = 12

// CheckPolicy validates an account or master password: at least
// PolicyMinLength characters with lowercase, uppercase, digit and symbol.
// Vault item secrets are never subject to it.
func CheckPolicy(password string) error {
	var missing []string
	if len([]rune(password)) < PolicyMinLength {
		missing = append(missing, fmt.Sprintf("at least %d characters", PolicyMinLength))
	}
	if !strings.ContainsFunc(password, unicode.IsLower) {
		missing = append(missing, "a lowercase letter")
	}
	if !strings.ContainsFunc(password, unicode.IsUpper) {
		missing = append(missing, "an uppercase letter")
	}
	if !strings.ContainsFunc(password, unicode.IsDigit) {
		missing = append(missing, "a digit")
	}
	if !strings.ContainsAny(password, Symbols) {
		missing = append(missing, "a symbol")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: password needs %s", common.ErrorValidation, strings.Join(missing, ", "))
	}
	return nil
}
