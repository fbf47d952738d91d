package xerrors

import (
	"errors"
	"fmt"
)

// Common reusable application errors. Business-rule failures never travel
// through these: they are returned as structured outcomes by the coupon
// service. Only infrastructure faults surface here.
var (
	ErrNotFound     = errors.New("resource not found")
	ErrUnauthorized = errors.New("unauthorized access")
	ErrForbidden    = errors.New("forbidden")
	ErrInvalidInput = errors.New("invalid input")
	ErrConflict     = errors.New("conflict: resource already exists")
	ErrInternal     = errors.New("internal server error")

	// ErrStorageConflict marks a transient write conflict (serialization
	// failure or deadlock). The redemption ledger retries it internally;
	// it is only surfaced once the retry budget is exhausted.
	ErrStorageConflict = errors.New("storage write conflict")
)

// Wrap adds context to an error (similar to fmt.Errorf("%w")).
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Is allows checking whether an error is a specific sentinel error.
func Is(err, target error) bool {
	return errors.Is(err, target)
}
