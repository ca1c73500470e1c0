package handler

import (
	"context"
	"encoding/json"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/voucherworks/voucher-service/internal/model"
	"github.com/voucherworks/voucher-service/internal/service"
)

// RedeemServiceInterface defines the redemption business logic consumed by
// the handler.
type RedeemServiceInterface interface {
	Redeem(ctx context.Context, code string, customerID *string, transactionAmount *decimal.Decimal, metadata json.RawMessage) (*service.RedeemResult, error)
	Validate(ctx context.Context, code string, customerID *string, transactionAmount *decimal.Decimal) (*model.DiscountResponse, error)
}

// RedeemHandler handles HTTP requests for voucher redemption and validation.
type RedeemHandler struct {
	service   RedeemServiceInterface
	validator *validator.Validate
}

// NewRedeemHandler creates a new RedeemHandler with the given service and validator.
func NewRedeemHandler(svc RedeemServiceInterface, v *validator.Validate) *RedeemHandler {
	return &RedeemHandler{service: svc, validator: v}
}

// RedeemVoucher handles POST /api/vouchers/:code/redeem.
func (h *RedeemHandler) RedeemVoucher(c *fiber.Ctx) error {
	code := c.Params("code")
	if code == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request: code is required"})
	}

	var req model.RedeemVoucherRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
		}
		if err := h.validator.Struct(req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": formatValidationError(err)})
		}
	}

	result, err := h.service.Redeem(c.Context(), code, req.CustomerID, req.TransactionAmount, req.Metadata)
	if err != nil {
		if status, reason := rejectionStatus(err); status != 0 {
			return c.Status(status).JSON(fiber.Map{"error": reason})
		}
		log.Error().
			Err(err).
			Str("request_id", c.GetRespHeader("X-Request-ID")).
			Str("method", c.Method()).
			Str("path", c.Path()).
			Str("voucher_code", code).
			Msg("failed to redeem voucher")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal server error"})
	}

	log.Info().
		Str("request_id", c.GetRespHeader("X-Request-ID")).
		Str("voucher_code", code).
		Int64("redemption_id", result.Redemption.ID).
		Msg("voucher redeemed successfully")

	return c.JSON(model.RedeemVoucherResponse{
		Message:  "Voucher redeemed successfully",
		Discount: result.Discount,
		Redemption: model.RedemptionSummary{
			ID:         result.Redemption.ID,
			RedeemedAt: result.Redemption.RedeemedAt,
		},
	})
}

// ValidateVoucher handles POST /api/vouchers/validate. Read-only: the voucher
// is evaluated but nothing is mutated.
func (h *RedeemHandler) ValidateVoucher(c *fiber.Ctx) error {
	var req model.ValidateVoucherRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}
	if err := h.validator.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": formatValidationError(err)})
	}

	discount, err := h.service.Validate(c.Context(), req.Code, req.CustomerID, req.TransactionAmount)
	if err != nil {
		if status, reason := rejectionStatus(err); status != 0 {
			return c.Status(status).JSON(fiber.Map{"error": reason})
		}
		log.Error().
			Err(err).
			Str("request_id", c.GetRespHeader("X-Request-ID")).
			Str("voucher_code", req.Code).
			Msg("failed to validate voucher")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal server error"})
	}

	return c.JSON(model.ValidateVoucherResponse{Valid: true, Discount: *discount})
}
