// Package apperr defines the error kinds returned across service boundaries.
//
// Services wrap one of the sentinels with context using %w, callers classify
// with errors.Is.
package apperr

import (
	"errors"
	"fmt"
)

var (
	ErrValidation       = errors.New("validation error")
	ErrInvalidOrExpired = errors.New("invalid or expired OTP")
	ErrNotFound         = errors.New("not found")
	ErrForbidden        = errors.New("forbidden")
	ErrUnavailable      = errors.New("service unavailable")
	ErrUnauthenticated  = errors.New("unauthenticated")
)

// Validation returns an ErrValidation carrying msg.
func Validation(msg string) error {
	return fmt.Errorf("%w: %s", ErrValidation, msg)
}

// Unavailable marks an infrastructure failure (store or mail transport).
func Unavailable(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrUnavailable, op, err)
}

// Kind returns the sentinel err wraps, or nil for unclassified errors.
func Kind(err error) error {
	for _, k := range []error{ErrValidation, ErrInvalidOrExpired, ErrNotFound, ErrForbidden, ErrUnavailable, ErrUnauthenticated} {
		if errors.Is(err, k) {
			return k
		}
	}
	return nil
}
