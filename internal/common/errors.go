// Package common defines shared constants and sentinel errors used across
// PassPort layers. Callers should use errors.Is to match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")

	// Service-level errors (generic/internal flow control).
	ErrorInternal     = errors.New("internal error")
	ErrorUnauthorized = errors.New("unauthorized")
	ErrorForbidden    = errors.New("forbidden")

	// Validation errors.
	ErrorValidation = errors.New("validation error")

	// ErrConflict is returned when an active share or emergency grant
	// already exists for the same pair of parties.
	ErrConflict = errors.New("conflict")

	// ErrInvalidStateTransition is returned when a share or emergency grant
	// is not in a state that allows the requested operation.
	ErrInvalidStateTransition = errors.New("invalid state transition")

	// ErrIntegrity is returned when a ciphertext fails authentication.
	ErrIntegrity = errors.New("ciphertext integrity check failed")

	// ErrExternalService is returned when a remote dependency could not be
	// reached or answered with an error.
	ErrExternalService = errors.New("external service failure")

	// Auth errors (invalid or malformed token).
	ErrInvalidToken = errors.New("invalid token")

	// Token lifecycle errors.
	ErrTokenExpired        = errors.New("token expired")
	ErrRefreshTokenExpired = errors.New("refresh token expired")

	// ErrAccountLocked is kept internal to the service layer; callers see
	// ErrorUnauthorized.
	ErrAccountLocked = errors.New("account locked")
)
