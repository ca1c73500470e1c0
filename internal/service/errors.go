package service

import "errors"

var (
	// ErrVoucherExists is returned when creating a voucher whose code is taken
	ErrVoucherExists = errors.New("voucher code already exists")

	// ErrVoucherNotFound is returned when a voucher cannot be found
	ErrVoucherNotFound = errors.New("voucher not found")

	// ErrInvalidRequest is returned when request data is invalid or incomplete
	ErrInvalidRequest = errors.New("invalid request")

	// ErrRedemptionConflict is returned when a redemption keeps hitting
	// transient lock/serialization failures after the bounded retries
	ErrRedemptionConflict = errors.New("redemption conflict")
)

// ValidationError reports a semantic problem with voucher input that the
// struct tags cannot express (discount bounds, date ordering, quota bounds).
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Reason
}

func validationErrorf(reason string) error {
	return &ValidationError{Reason: reason}
}
