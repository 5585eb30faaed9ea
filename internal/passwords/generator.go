package passwords

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"

	"github.com/dmitrijs2005/passport/internal/common"
)

const (
	MinLength = 8
	MaxLength = 128

	lowercase = "abcdefghijklmnopqrstuvwxyz"
	uppercase = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	digits    = "0123456789"

	// Ambiguous characters dropped when ExcludeAmbiguous is set.
	Ambiguous = "il1ILoO0"
)

// ErrNoCharacterClasses is returned when every class flag is false.
var ErrNoCharacterClasses = fmt.Errorf("%w: at least one character class must be enabled", common.ErrorValidation)

// Options configures Generate.
type Options struct {
	Length           int  `json:"length"`
	Uppercase        bool `json:"use_uppercase"`
	Lowercase        bool `json:"use_lowercase"`
	Digits           bool `json:"use_digits"`
	Symbols          bool `json:"use_symbols"`
	ExcludeAmbiguous bool `json:"exclude_ambiguous"`
}

// DefaultOptions returns a 16 character, all classes configuration.
func DefaultOptions() Options {
	return Options{Length: 16, Uppercase: true, Lowercase: true, Digits: true, Symbols: true}
}

// Generate returns a random password with at least one character from every
// enabled class. The guaranteed characters are shuffled together with the
// rest, so their positions are not predictable.
func Generate(opts Options) (string, error) {
	if opts.Length < MinLength || opts.Length > MaxLength {
		return "", fmt.Errorf("%w: length must be between %d and %d", common.ErrorValidation, MinLength, MaxLength)
	}

	classes := enabledClasses(opts)
	if len(classes) == 0 {
		return "", ErrNoCharacterClasses
	}

	out := make([]byte, 0, opts.Length)
	for _, class := range classes {
		c, err := pick(class)
		if err != nil {
			return "", err
		}
		out = append(out, c)
	}

	all := strings.Join(classes, "")
	for len(out) < opts.Length {
		c, err := pick(all)
		if err != nil {
			return "", err
		}
		out = append(out, c)
	}

	if err := shuffle(out); err != nil {
		return "", err
	}
	return string(out), nil
}

func enabledClasses(opts Options) []string {
	var classes []string
	add := func(on bool, alphabet string) {
		if !on {
			return
		}
		if opts.ExcludeAmbiguous {
			alphabet = stripAmbiguous(alphabet)
		}
		classes = append(classes, alphabet)
	}
	add(opts.Uppercase, uppercase)
	add(opts.Lowercase, lowercase)
	add(opts.Digits, digits)
	add(opts.Symbols, Symbols)
	return classes
}

func stripAmbiguous(alphabet string) string {
	return strings.Map(func(r rune) rune {
		if strings.ContainsRune(Ambiguous, r) {
			return -1
		}
		return r
	}, alphabet)
}

func randIndex(n int) (int, error) {
	v, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		return 0, err
	}
	return int(v.Int64()), nil
}

func pick(alphabet string) (byte, error) {
	i, err := randIndex(len(alphabet))
	if err != nil {
		return 0, err
	}
	return alphabet[i], nil
}

// shuffle is a Fisher-Yates shuffle driven by crypto/rand.
func shuffle(b []byte) error {
	for i := len(b) - 1; i > 0; i-- {
		j, err := randIndex(i + 1)
		if err != nil {
			return err
		}
		b[i], b[j] = b[j], b[i]
	}
	return nil
}
