package model

import (
	"errors"
	"fmt"
)

var (
	ErrEligibility      = errors.New("meet and greet with this walker is not completed")
	ErrDuplicateBooking = errors.New("you already have a booking for this walk")
	ErrCapacityExceeded = errors.New("walk block is fully booked")
	ErrStaleBooking     = errors.New("booking is no longer pending")
	ErrNotFound         = errors.New("not found")
	ErrWalkBlockInPast  = errors.New("walk block has already started")
	ErrForbidden        = errors.New("forbidden")
	ErrInvalidInput     = errors.New("invalid input")
	ErrRateLimited      = errors.New("too many booking requests")
)

// StorageError wraps an unexpected persistence failure. Operations failing
// with it committed nothing and are safe to retry.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage: %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// NewStorageError wraps err unless it is nil or already part of the taxonomy.
func NewStorageError(op string, err error) error {
	if err == nil || IsDomainError(err) {
		return err
	}
	var se *StorageError
	if errors.As(err, &se) {
		return err
	}
	return &StorageError{Op: op, Err: err}
}

// NotFoundf builds an ErrNotFound naming the missing entity.
func NotFoundf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrNotFound, fmt.Sprintf(format, args...))
}

// IsDomainError reports whether err belongs to the booking error taxonomy.
func IsDomainError(err error) bool {
	for _, target := range []error{
		ErrEligibility, ErrDuplicateBooking, ErrCapacityExceeded, ErrStaleBooking,
		ErrNotFound, ErrWalkBlockInPast, ErrForbidden, ErrInvalidInput, ErrRateLimited,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// IsStorageError reports whether err is an unexpected persistence failure.
func IsStorageError(err error) bool {
	var se *StorageError
	return errors.As(err, &se)
}
