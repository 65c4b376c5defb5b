package repository

import "errors"

var (
	// ErrInvalidAmount is returned when a non-positive amount is submitted.
	ErrInvalidAmount = errors.New("amount must be positive")

	// ErrInsufficientBalance is returned when a spend would overdraw the
	// user's derived balance. Nothing is appended.
	ErrInsufficientBalance = errors.New("insufficient WINGO balance")

	ErrUnknownUser  = errors.New("user does not exist")
	ErrUnknownEvent = errors.New("event does not exist")

	// ErrDuplicateRequest is returned when a request carries an idempotency
	// key that has already been claimed.
	ErrDuplicateRequest = errors.New("request already processed")
)
