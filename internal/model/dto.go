package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DiscountRequest describes a voucher discount on create/update.
// Exactly one of AmountOff/PercentOff is meaningful depending on Type.
type DiscountRequest struct {
	Type        string           `json:"type" validate:"required,oneof=FIXED_AMOUNT PERCENTAGE"`
	AmountOff   *decimal.Decimal `json:"amount_off,omitempty"`
	PercentOff  *decimal.Decimal `json:"percent_off,omitempty"`
	AmountLimit *decimal.Decimal `json:"amount_limit,omitempty"`
}

// RedemptionLimitsRequest carries the redemption bounds on create.
type RedemptionLimitsRequest struct {
	Quantity   *int `json:"quantity" validate:"required,gte=1"`
	DailyQuota *int `json:"daily_quota" validate:"required,gte=1"`
}

// CreateVoucherRequest is the DTO for creating a voucher.
type CreateVoucherRequest struct {
	Name           string                   `json:"name" validate:"required,notblank,max=255"`
	Code           string                   `json:"code" validate:"required,notblank,max=255"`
	Discount       *DiscountRequest         `json:"discount" validate:"required"`
	Redemption     *RedemptionLimitsRequest `json:"redemption" validate:"required"`
	StartDate      time.Time                `json:"start_date" validate:"required"`
	ExpirationDate time.Time                `json:"expiration_date" validate:"required"`
	IsActive       *bool                    `json:"is_active"`
	CustomerID     *string                  `json:"customer_id"`
}

// UpdateRedemptionLimitsRequest carries partial redemption bound updates.
type UpdateRedemptionLimitsRequest struct {
	Quantity   *int `json:"quantity" validate:"omitempty,gte=1"`
	DailyQuota *int `json:"daily_quota" validate:"omitempty,gte=1"`
}

// UpdateVoucherRequest is the DTO for partially updating a voucher.
// Nil fields are left unchanged. A present Discount replaces the whole
// descriptor. An empty CustomerID string clears the restriction.
type UpdateVoucherRequest struct {
	Name           *string                        `json:"name" validate:"omitempty,notblank,max=255"`
	Discount       *DiscountRequest               `json:"discount"`
	Redemption     *UpdateRedemptionLimitsRequest `json:"redemption"`
	StartDate      *time.Time                     `json:"start_date"`
	ExpirationDate *time.Time                     `json:"expiration_date"`
	IsActive       *bool                          `json:"is_active"`
	CustomerID     *string                        `json:"customer_id"`
}

// RedeemVoucherRequest is the DTO for redeeming a voucher by code.
type RedeemVoucherRequest struct {
	CustomerID        *string          `json:"customer_id" validate:"omitempty,max=255"`
	TransactionAmount *decimal.Decimal `json:"transaction_amount"`
	Metadata          json.RawMessage  `json:"metadata"`
}

// ValidateVoucherRequest is the DTO for the read-only validate call.
type ValidateVoucherRequest struct {
	Code              string           `json:"code" validate:"required,notblank,max=255"`
	CustomerID        *string          `json:"customer_id" validate:"omitempty,max=255"`
	TransactionAmount *decimal.Decimal `json:"transaction_amount"`
}

// DiscountResponse is the discount descriptor returned by the API.
// ComputedAmount is set only when a transaction amount was supplied.
type DiscountResponse struct {
	Type           string           `json:"type"`
	AmountOff      *decimal.Decimal `json:"amount_off,omitempty"`
	PercentOff     *decimal.Decimal `json:"percent_off,omitempty"`
	AmountLimit    *decimal.Decimal `json:"amount_limit,omitempty"`
	ComputedAmount *decimal.Decimal `json:"computed_amount,omitempty"`
}

// RedemptionLimitsResponse reports the voucher's redemption bounds and usage.
type RedemptionLimitsResponse struct {
	Quantity      int `json:"quantity"`
	DailyQuota    int `json:"daily_quota"`
	RedeemedCount int `json:"redeemed_count"`
}

// VoucherResponse is the API representation of a voucher.
type VoucherResponse struct {
	ID             uuid.UUID                `json:"id"`
	Name           string                   `json:"name"`
	Code           string                   `json:"code"`
	Discount       DiscountResponse         `json:"discount"`
	Redemption     RedemptionLimitsResponse `json:"redemption"`
	StartDate      time.Time                `json:"start_date"`
	ExpirationDate time.Time                `json:"expiration_date"`
	IsActive       bool                     `json:"is_active"`
	CustomerID     *string                  `json:"customer_id,omitempty"`
	CreatedAt      time.Time                `json:"created_at"`
	UpdatedAt      time.Time                `json:"updated_at"`
}

// VoucherValidityResponse is a voucher plus a non-mutating validity verdict.
type VoucherValidityResponse struct {
	VoucherResponse
	IsValid         bool   `json:"is_valid"`
	ValidationError string `json:"validation_error,omitempty"`
}

// ListVouchersResponse is the paginated voucher listing.
type ListVouchersResponse struct {
	Data  []VoucherResponse `json:"data"`
	Total int               `json:"total"`
	Page  int               `json:"page"`
	Limit int               `json:"limit"`
}

// RedemptionVoucherInfo identifies the voucher a redemption belongs to.
type RedemptionVoucherInfo struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

// RedemptionResponse is the API representation of a redemption record.
type RedemptionResponse struct {
	ID             int64                 `json:"id"`
	VoucherID      uuid.UUID             `json:"voucher_id"`
	CustomerID     *string               `json:"customer_id,omitempty"`
	DiscountAmount decimal.Decimal       `json:"discount_amount"`
	RedeemedAt     time.Time             `json:"redeemed_at"`
	Metadata       json.RawMessage       `json:"metadata,omitempty"`
	Voucher        RedemptionVoucherInfo `json:"voucher"`
}

// ListRedemptionsResponse is the paginated redemption history.
type ListRedemptionsResponse struct {
	Data       []RedemptionResponse `json:"data"`
	Total      int                  `json:"total"`
	Page       int                  `json:"page"`
	TotalPages int                  `json:"total_pages"`
	Limit      int                  `json:"limit"`
}

// RedemptionSummary is the redemption portion of a successful redeem response.
type RedemptionSummary struct {
	ID         int64     `json:"id"`
	RedeemedAt time.Time `json:"redeemed_at"`
}

// RedeemVoucherResponse is returned on a successful redemption.
type RedeemVoucherResponse struct {
	Message    string            `json:"message"`
	Discount   DiscountResponse  `json:"discount"`
	Redemption RedemptionSummary `json:"redemption"`
}

// ValidateVoucherResponse is returned by the read-only validate call.
type ValidateVoucherResponse struct {
	Valid    bool             `json:"valid"`
	Discount DiscountResponse `json:"discount"`
}
