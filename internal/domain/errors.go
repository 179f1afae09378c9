package domain

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidInput    = errors.New("invalid input")
	ErrTokenInvalid    = errors.New("token invalid")
	ErrTokenExpired    = errors.New("token expired")
	ErrTokenUsed       = errors.New("token already used")
	ErrSlotTaken       = errors.New("slot taken")
	ErrSameDayCutoff   = errors.New("same-day changes are past the cutoff")
	ErrBookingNotFound = errors.New("booking not found")
	ErrEmailFailed     = errors.New("notification dispatch failed")
)

// InputError carries the offending field so transports can report it.
// It matches ErrInvalidInput under errors.Is.
type InputError struct {
	Field  string
	Reason string
}

func (e *InputError) Error() string {
	return fmt.Sprintf("invalid input: %s: %s", e.Field, e.Reason)
}

func (e *InputError) Unwrap() error {
	return ErrInvalidInput
}

func NewInputError(field, reason string) error {
	return &InputError{Field: field, Reason: reason}
}
