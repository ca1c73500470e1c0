package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Discount types supported by vouchers.
const (
	DiscountFixedAmount = "FIXED_AMOUNT"
	DiscountPercentage  = "PERCENTAGE"
)

// Voucher represents a voucher row. The redemption coordinator is the only
// writer of RedeemedCount; administrative updates never touch it.
type Voucher struct {
	ID                uuid.UUID
	Code              string
	Name              string
	IsActive          bool
	DiscountType      string
	DiscountAmount    decimal.Decimal
	MaxDiscountAmount decimal.Decimal // cap on computed PERCENTAGE discounts, zero = no cap
	MaxRedemptions    int
	DailyQuota        int
	StartDate         time.Time
	ExpirationDate    time.Time
	CustomerID        *string
	RedeemedCount     int
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// Redemption is one successful voucher use. Rows are append-only and removed
// only by cascade when the voucher is deleted.
type Redemption struct {
	ID             int64
	VoucherID      uuid.UUID
	CustomerID     *string
	DiscountAmount decimal.Decimal
	Metadata       json.RawMessage
	RedeemedAt     time.Time
	CreatedAt      time.Time
}

// RedemptionRecord is a redemption joined with its voucher identity, as
// returned by the history listing.
type RedemptionRecord struct {
	Redemption
	VoucherCode string
	VoucherName string
}

// RedemptionFilter narrows the redemption history listing.
type RedemptionFilter struct {
	VoucherID  *uuid.UUID
	CustomerID *string
}

// APIToken is an opaque bearer token used to authenticate API callers.
type APIToken struct {
	ID         uuid.UUID
	Token      string
	Name       string
	IsActive   bool
	ExpiresAt  *time.Time
	LastUsedAt *time.Time
	CreatedAt  time.Time
}

// DiscountDescriptor returns the API representation of the voucher's discount
// without a computed amount.
func (v *Voucher) DiscountDescriptor() DiscountResponse {
	d := DiscountResponse{Type: v.DiscountType}
	switch v.DiscountType {
	case DiscountFixedAmount:
		amt := v.DiscountAmount
		d.AmountOff = &amt
	case DiscountPercentage:
		pct := v.DiscountAmount
		d.PercentOff = &pct
		if v.MaxDiscountAmount.IsPositive() {
			lim := v.MaxDiscountAmount
			d.AmountLimit = &lim
		}
	}
	return d
}

// ToResponse converts the voucher row into its API representation.
func (v *Voucher) ToResponse() VoucherResponse {
	return VoucherResponse{
		ID:       v.ID,
		Name:     v.Name,
		Code:     v.Code,
		Discount: v.DiscountDescriptor(),
		Redemption: RedemptionLimitsResponse{
			Quantity:      v.MaxRedemptions,
			DailyQuota:    v.DailyQuota,
			RedeemedCount: v.RedeemedCount,
		},
		StartDate:      v.StartDate,
		ExpirationDate: v.ExpirationDate,
		IsActive:       v.IsActive,
		CustomerID:     v.CustomerID,
		CreatedAt:      v.CreatedAt,
		UpdatedAt:      v.UpdatedAt,
	}
}

// ToResponse converts a joined redemption row into its API representation.
func (r *RedemptionRecord) ToResponse() RedemptionResponse {
	return RedemptionResponse{
		ID:             r.ID,
		VoucherID:      r.VoucherID,
		CustomerID:     r.CustomerID,
		DiscountAmount: r.DiscountAmount,
		RedeemedAt:     r.RedeemedAt,
		Metadata:       r.Metadata,
		Voucher: RedemptionVoucherInfo{
			Code: r.VoucherCode,
			Name: r.VoucherName,
		},
	}
}
