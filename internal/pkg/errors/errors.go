package errors

import "errors"

var (
	// ErrNotFound is a generic sentinel for missing resources.
	ErrNotFound = errors.New("not found")
	// ErrUnauthorized is a generic sentinel for auth failures.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrInvalidArgument is a generic sentinel for invalid input.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrInsufficientCoins is returned when a debit would make a balance negative.
	ErrInsufficientCoins = errors.New("insufficient coins")
	// ErrNotConfigured marks a provider whose credentials are absent.
	ErrNotConfigured = errors.New("not configured")
)
