// Package common defines sentinel errors shared by the client and server
// layers of farebook. Callers should use errors.Is to match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrNotFound = errors.New("not found")

	// Sync engine errors surfaced to the UI.
	ErrNoConnectivity = errors.New("no connectivity")

	// Service-level errors.
	ErrInternal      = errors.New("internal error")
	ErrUnauthorized  = errors.New("unauthorized")
	ErrInvalidAction = errors.New("invalid action")
	ErrValidation    = errors.New("validation error")

	// Auth errors (invalid, malformed or expired token).
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")
)
