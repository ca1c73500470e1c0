package voucher

import "errors"

// Rejection reasons produced by Evaluate. Every rejection path maps to one of
// these so handlers can report a specific reason to the caller.
var (
	// ErrNotFound is returned when no voucher exists for the requested code.
	ErrNotFound = errors.New("voucher not found")

	// ErrInactive is returned when the voucher has been deactivated.
	ErrInactive = errors.New("voucher is inactive")

	// ErrCustomerMismatch is returned when the voucher is restricted to a
	// different customer than the one requesting redemption.
	ErrCustomerMismatch = errors.New("voucher is restricted to a specific customer")

	// ErrCustomerIDRequired is returned when the voucher is customer-restricted
	// and the request carries no customer identity.
	ErrCustomerIDRequired = errors.New("customer id is required for this voucher")

	// ErrExpired is returned when the voucher's expiration date has passed.
	ErrExpired = errors.New("voucher has expired")

	// ErrNotYetActive is returned when the voucher's start date is in the future.
	ErrNotYetActive = errors.New("voucher is not yet active")

	// ErrRedemptionLimitReached is returned when redeemed_count has reached
	// max_redemptions.
	ErrRedemptionLimitReached = errors.New("voucher has reached maximum redemption")

	// ErrDailyQuotaExceeded is returned when today's redemptions have reached
	// the daily quota.
	ErrDailyQuotaExceeded = errors.New("daily quota exceeded")
)
