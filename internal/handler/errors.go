package handler

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/voucherworks/voucher-service/internal/service"
	"github.com/voucherworks/voucher-service/internal/voucher"
)

// fieldNames maps struct field names to their JSON counterparts for
// validation error messages.
var fieldNames = map[string]string{
	"Name":           "name",
	"Code":           "code",
	"Type":           "discount type",
	"Discount":       "discount",
	"Redemption":     "redemption",
	"Quantity":       "quantity",
	"DailyQuota":     "daily_quota",
	"StartDate":      "start_date",
	"ExpirationDate": "expiration_date",
	"CustomerID":     "customer_id",
}

// formatValidationError converts validator errors into caller-facing messages.
func formatValidationError(err error) string {
	var ve validator.ValidationErrors
	if errors.As(err, &ve) {
		for _, fe := range ve {
			field, ok := fieldNames[fe.Field()]
			if !ok {
				field = fe.Field()
			}
			switch fe.Tag() {
			case "required":
				return "invalid request: " + field + " is required"
			case "notblank":
				return "invalid request: " + field + " cannot be whitespace only"
			case "max":
				return "invalid request: " + field + " exceeds maximum length of 255"
			case "gte":
				return "invalid request: " + field + " must be at least 1"
			}
			return "invalid request: " + field + " is invalid"
		}
	}
	return "invalid request"
}

// rejectionStatus maps a redemption rejection to its HTTP status and the
// caller-facing reason string. Returns 0 for errors that are not part of the
// rejection taxonomy.
func rejectionStatus(err error) (int, string) {
	switch {
	case errors.Is(err, voucher.ErrNotFound):
		return fiber.StatusNotFound, "Voucher not found"
	case errors.Is(err, voucher.ErrInactive):
		return fiber.StatusBadRequest, "Voucher is inactive"
	case errors.Is(err, voucher.ErrCustomerMismatch):
		return fiber.StatusForbidden, "This voucher is restricted to a specific customer"
	case errors.Is(err, voucher.ErrCustomerIDRequired):
		return fiber.StatusBadRequest, "Customer ID is required for this voucher"
	case errors.Is(err, voucher.ErrExpired):
		return fiber.StatusBadRequest, "Voucher has expired"
	case errors.Is(err, voucher.ErrNotYetActive):
		return fiber.StatusBadRequest, "Voucher is not yet active"
	case errors.Is(err, voucher.ErrRedemptionLimitReached):
		return fiber.StatusBadRequest, "Voucher has reached maximum redemption"
	case errors.Is(err, voucher.ErrDailyQuotaExceeded):
		return fiber.StatusBadRequest, "Daily quota exceeded"
	case errors.Is(err, service.ErrRedemptionConflict):
		return fiber.StatusConflict, "Voucher is being redeemed concurrently, please retry"
	}
	return 0, ""
}
