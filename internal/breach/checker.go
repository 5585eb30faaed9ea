// Package breach checks passwords against a k-anonymity breach range API
// (Have I Been Pwned compatible). Only the first five hex characters of the
// SHA-1 hash ever leave the process.
package breach

import (
	"bufio"
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/dmitrijs2005/passport/internal/logging"
)

const (
	DefaultBaseURL = "https://api.pwnedpasswords.com"
	DefaultTimeout = 10 * time.Second
	userAgent      = "PassPort"
	prefixLen      = 5
)

// Status distinguishes a confirmed miss from a check that never completed.
type Status string

const (
	StatusCompromised Status = "compromised"
	StatusNotFound    Status = "not_found"
	StatusUnknown     Status = "unknown"
)

const (
	MessageNotFound = "This password has not been found in any known data breaches."
	MessageUnknown  = "Unable to check breach status at this time."
)

// Result is returned by Check.
type Result struct {
	IsCompromised bool   `json:"is_compromised"`
	BreachCount   int    `json:"breach_count"`
	Status        Status `json:"status"`
	Message       string `json:"message"`
}

// Completed reports whether the remote lookup actually happened.
func (r Result) Completed() bool {
	return r.Status != StatusUnknown
}

// Checker queries the breach range endpoint.
type Checker struct {
	baseURL string
	apiKey  string
	client  *http.Client
	logger  logging.Logger
}

// NewChecker returns a Checker for baseURL. apiKey is sent as hibp-api-key
// when non-empty; the free range endpoint ignores it.
func NewChecker(baseURL, apiKey string, timeout time.Duration, l logging.Logger) *Checker {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Checker{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client:  &http.Client{Timeout: timeout},
		logger:  l.With("module", "breach_checker"),
	}
}

// HashParts returns the upper-case SHA-1 prefix and suffix of password.
func HashParts(password string) (prefix, suffix string) {
	sum := sha1.Sum([]byte(password))
	h := strings.ToUpper(hex.EncodeToString(sum[:]))
	return h[:prefixLen], h[prefixLen:]
}

// Check never returns an error: when the service cannot be reached the
// result carries StatusUnknown and a message saying so.
func (c *Checker) Check(ctx context.Context, password string) Result {
	prefix, suffix := HashParts(password)

	count, err := c.lookup(ctx, prefix, suffix)
	if err != nil {
		c.logger.Warn(ctx, "breach check failed", "error", err.Error())
		return Result{Status: StatusUnknown, Message: MessageUnknown}
	}

	if count > 0 {
		return Result{
			IsCompromised: true,
			BreachCount:   count,
			Status:        StatusCompromised,
			Message:       fmt.Sprintf("This password has been seen %d times in data breaches. Please change it immediately.", count),
		}
	}
	return Result{Status: StatusNotFound, Message: MessageNotFound}
}

func (c *Checker) lookup(ctx context.Context, prefix, suffix string) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/range/"+prefix, nil)
	if err != nil {
		return 0, err
	}
	req.Header.Set("User-Agent", userAgent)
	if c.apiKey != "" {
		req.Header.Set("hibp-api-key", c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("unexpected status %s", resp.Status)
	}

	sc := bufio.NewScanner(resp.Body)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		candidate, rawCount, ok := strings.Cut(line, ":")
		if !ok || !strings.EqualFold(candidate, suffix) {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSpace(rawCount))
		if err != nil {
			return 0, fmt.Errorf("bad count %q: %w", rawCount, err)
		}
		return n, nil
	}
	if err := sc.Err(); err != nil {
		return 0, err
	}
	return 0, nil
}
