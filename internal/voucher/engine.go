// Package voucher holds the pure redemption validation engine. It performs no
// I/O: callers supply a voucher snapshot, the requesting customer, the current
// time and today's redemption count, and get back an accept/reject decision.
package voucher

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/voucherworks/voucher-service/internal/model"
)

var oneHundred = decimal.NewFromInt(100)

// Evaluate decides whether a voucher may be redeemed. Checks run in a fixed
// order and the first failure wins, so callers always get a deterministic
// reason. A nil return means the redemption is accepted.
func Evaluate(v *model.Voucher, customerID *string, now time.Time, todaysRedemptions int) error {
	if v == nil {
		return ErrNotFound
	}
	if !v.IsActive {
		return ErrInactive
	}
	if v.CustomerID != nil {
		if customerID == nil || *customerID == "" {
			return ErrCustomerIDRequired
		}
		if *customerID != *v.CustomerID {
			return ErrCustomerMismatch
		}
	}
	if now.After(v.ExpirationDate) {
		return ErrExpired
	}
	if now.Before(v.StartDate) {
		return ErrNotYetActive
	}
	if v.RedeemedCount >= v.MaxRedemptions {
		return ErrRedemptionLimitReached
	}
	if todaysRedemptions >= v.DailyQuota {
		return ErrDailyQuotaExceeded
	}
	return nil
}

// ComputeDiscount computes the discount a redemption grants.
//
// FIXED_AMOUNT vouchers return the configured magnitude verbatim. PERCENTAGE
// vouchers return the raw percentage descriptor, and additionally a computed
// amount (transactionAmount * percent / 100, capped at the voucher's amount
// limit) when a transaction amount is supplied. The cap never applies to
// FIXED_AMOUNT discounts.
func ComputeDiscount(v *model.Voucher, transactionAmount *decimal.Decimal) model.DiscountResponse {
	d := v.DiscountDescriptor()
	switch v.DiscountType {
	case model.DiscountFixedAmount:
		amt := v.DiscountAmount
		d.ComputedAmount = &amt
	case model.DiscountPercentage:
		if transactionAmount == nil {
			break
		}
		computed := transactionAmount.Mul(v.DiscountAmount).Div(oneHundred)
		if d.AmountLimit != nil && computed.GreaterThan(*d.AmountLimit) {
			computed = *d.AmountLimit
		}
		d.ComputedAmount = &computed
	}
	return d
}

// DayWindow returns the half-open UTC calendar-day window containing now,
// used to count redemptions against the daily quota.
func DayWindow(now time.Time) (start, end time.Time) {
	start = now.UTC().Truncate(24 * time.Hour)
	return start, start.Add(24 * time.Hour)
}
