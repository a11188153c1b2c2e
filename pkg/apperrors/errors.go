package apperrors

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrConflict        = errors.New("conflict")
	ErrInvalidInput    = errors.New("invalid input")
	ErrQuotaExceeded   = errors.New("quota exceeded")
	ErrUnauthenticated = errors.New("authentication required")
)

// QuotaExceededError is returned when a user has no idea-creation allowance left.
// It matches ErrQuotaExceeded with errors.Is.
type QuotaExceededError struct {
	Current int
	Max     int
}

func (e *QuotaExceededError) Error() string {
	return fmt.Sprintf("quota exceeded: %d of %d ideas used", e.Current, e.Max)
}

// Is makes errors.Is(err, ErrQuotaExceeded) hold for any QuotaExceededError.
func (e *QuotaExceededError) Is(target error) bool {
	return target == ErrQuotaExceeded
}

// AsQuotaExceeded extracts a QuotaExceededError from err.
func AsQuotaExceeded(err error) (*QuotaExceededError, bool) {
	var qe *QuotaExceededError
	if errors.As(err, &qe) {
		return qe, true
	}
	return nil, false
}
