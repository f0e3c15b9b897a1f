package domain

import "errors"

// Store-level sentinels shared by every repository implementation.
var (
	ErrNotFound    = errors.New("not found")
	ErrConflict    = errors.New("conflict")
	ErrUnavailable = errors.New("store unavailable")

	// ErrNotDelivered accompanies ErrUnavailable when the store never
	// received the command, so repeating it cannot apply it twice.
	ErrNotDelivered = errors.New("command not delivered")
)
