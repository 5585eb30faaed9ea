// Package passwords scores candidate passwords and generates new ones.
// Both functions are pure apart from the generator's use of crypto/rand.
package passwords

import (
	"strconv"
	"strings"
	"unicode"
)

// Symbols is the fixed symbol alphabet used by both the analyzer and the generator.
const Symbols = "!@#$%^&*()_+-=[]{}|;:,.<>?"

// Strength is the coarse label derived from a score.
type Strength string

const (
	Weak   Strength = "weak"
	Fair   Strength = "fair"
	Good   Strength = "good"
	Strong Strength = "strong"
)

const (
	MinScore = 0
	MaxScore = 10
)

const (
	FeedbackTooShort   = "Password is too short (minimum 8 characters)"
	FeedbackLowercase  = "Add lowercase letters"
	FeedbackUppercase  = "Add uppercase letters"
	FeedbackDigits     = "Add numbers"
	FeedbackSymbols    = "Add special characters"
	FeedbackSequential = "Avoid sequential numbers"
	FeedbackCommon     = "This is a commonly used password"
)

var commonPasswords = map[string]struct{}{
	"password": {},
	"123456":   {},
	"qwerty":   {},
	"admin":    {},
	"letmein":  {},
}

// Analysis is the result of Analyze.
type Analysis struct {
	Score    int      `json:"score"`
	Strength Strength `json:"strength"`
	Feedback []string `json:"feedback"`
}

// Analyze scores password on a 0..10 scale. Every place that stores or
// reports a strength must call this function so the numbers agree.
func Analyze(password string) Analysis {
	score := 0
	feedback := make([]string, 0, 4)

	switch n := len([]rune(password)); {
	case n < 8:
		feedback = append(feedback, FeedbackTooShort)
	case n < 12:
		score++
	case n < 16:
		score += 2
	default:
		score += 3
	}

	var lower, upper, digit, symbol bool
	for _, r := range password {
		switch {
		case unicode.IsLower(r):
			lower = true
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsDigit(r):
			digit = true
		case strings.ContainsRune(Symbols, r):
			symbol = true
		}
	}
	for _, c := range []struct {
		present bool
		hint    string
	}{
		{lower, FeedbackLowercase},
		{upper, FeedbackUppercase},
		{digit, FeedbackDigits},
		{symbol, FeedbackSymbols},
	} {
		if c.present {
			score++
		} else {
			feedback = append(feedback, c.hint)
		}
	}

	if hasThreeDigitRun(password) {
		score--
		feedback = append(feedback, FeedbackSequential)
	}

	// A blocklisted password is weak no matter what else it contains.
	if _, ok := commonPasswords[strings.ToLower(password)]; ok {
		score = 0
		feedback = append(feedback, FeedbackCommon)
	}

	score = max(MinScore, min(MaxScore, score))
	return Analysis{Score: score, Strength: label(score), Feedback: feedback}
}

func label(score int) Strength {
	switch {
	case score <= 2:
		return Weak
	case score <= 4:
		return Fair
	case score <= 6:
		return Good
	default:
		return Strong
	}
}

// hasThreeDigitRun reports whether password contains three consecutive ASCII
// digits whose value lies in [100, 999). This is a heuristic, not true
// sequence detection: "739" matches, "012" and "999" do not.
func hasThreeDigitRun(password string) bool {
	for i := 0; i+3 <= len(password); i++ {
		sub := password[i : i+3]
		if !isASCIIDigits(sub) {
			continue
		}
		n, err := strconv.Atoi(sub)
		if err == nil && n >= 100 && n < 999 {
			return true
		}
	}
	return false
}

func isASCIIDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
