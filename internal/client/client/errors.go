package client

import "errors"

var (
	// ErrUnavailable covers transport failures and 5xx replies.
	ErrUnavailable  = errors.New("server unavailable")
	ErrUnauthorized = errors.New("unauthorized")
	// ErrNotFound is returned when the remote store has no row for the entry id.
	ErrNotFound = errors.New("remote entry not found")
	// ErrRemote wraps any other {"success": false} reply.
	ErrRemote = errors.New("remote error")
)
