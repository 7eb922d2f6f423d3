package middleware

import (
	"errors"
	"regexp"
)

// MaxAccountIDLength is the maximum length of an account identifier.
const MaxAccountIDLength = 128

// Account id validation errors.
var (
	ErrAccountIDMissing = errors.New("account id is required")
	ErrAccountIDTooLong = errors.New("account id exceeds maximum length")
	ErrAccountIDInvalid = errors.New("account id contains invalid characters")
)

// Redis keys and log lines embed the id, so braces, spaces and control characters are out.
var validAccountIDPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._@:-]*$`)

// ValidateAccountID checks an account identifier supplied by the caller.
func ValidateAccountID(id string) error {
	if id == "" {
		return ErrAccountIDMissing
	}
	if len(id) > MaxAccountIDLength {
		return ErrAccountIDTooLong
	}
	if !validAccountIDPattern.MatchString(id) {
		return ErrAccountIDInvalid
	}
	return nil
}
