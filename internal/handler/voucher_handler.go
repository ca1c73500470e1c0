package handler

import (
	"context"
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/voucherworks/voucher-service/internal/model"
	"github.com/voucherworks/voucher-service/internal/service"
)

// VoucherServiceInterface defines the administrative voucher logic consumed
// by the handler.
type VoucherServiceInterface interface {
	Create(ctx context.Context, req *model.CreateVoucherRequest) (*model.VoucherResponse, error)
	GetByCode(ctx context.Context, code string, customerID *string) (*model.VoucherValidityResponse, error)
	List(ctx context.Context, customerID *string, page, limit int) (*model.ListVouchersResponse, error)
	Update(ctx context.Context, code string, req *model.UpdateVoucherRequest) (*model.VoucherResponse, error)
	Delete(ctx context.Context, code string) error
	ListRedemptions(ctx context.Context, filter model.RedemptionFilter, page, limit int) (*model.ListRedemptionsResponse, error)
}

// VoucherHandler handles HTTP requests for administrative voucher operations.
type VoucherHandler struct {
	service   VoucherServiceInterface
	validator *validator.Validate
}

// NewVoucherHandler creates a new VoucherHandler with the given service and validator.
func NewVoucherHandler(svc VoucherServiceInterface, v *validator.Validate) *VoucherHandler {
	return &VoucherHandler{service: svc, validator: v}
}

// CreateVoucher handles POST /api/vouchers.
func (h *VoucherHandler) CreateVoucher(c *fiber.Ctx) error {
	var req model.CreateVoucherRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}
	if err := h.validator.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": formatValidationError(err)})
	}

	resp, err := h.service.Create(c.Context(), &req)
	if err != nil {
		var vErr *service.ValidationError
		if errors.As(err, &vErr) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": vErr.Reason})
		}
		if errors.Is(err, service.ErrVoucherExists) {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "A voucher with this code already exists"})
		}
		if errors.Is(err, service.ErrInvalidRequest) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request"})
		}
		log.Error().Err(err).Str("voucher_code", req.Code).Msg("failed to create voucher")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal server error"})
	}

	return c.Status(fiber.StatusCreated).JSON(resp)
}

// GetVoucher handles GET /api/vouchers/:code. Returns the voucher together
// with a non-mutating validity verdict for the optional customer_id query.
func (h *VoucherHandler) GetVoucher(c *fiber.Ctx) error {
	code := c.Params("code")
	if code == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request: code is required"})
	}

	resp, err := h.service.GetByCode(c.Context(), code, queryString(c, "customer_id"))
	if err != nil {
		if errors.Is(err, service.ErrVoucherNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Voucher not found"})
		}
		log.Error().Err(err).Str("voucher_code", code).Msg("failed to get voucher")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal server error"})
	}

	return c.JSON(resp)
}

// ListVouchers handles GET /api/vouchers.
func (h *VoucherHandler) ListVouchers(c *fiber.Ctx) error {
	page := c.QueryInt("page", 1)
	limit := c.QueryInt("limit", 10)

	resp, err := h.service.List(c.Context(), queryString(c, "customer_id"), page, limit)
	if err != nil {
		log.Error().Err(err).Msg("failed to list vouchers")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal server error"})
	}

	return c.JSON(resp)
}

// UpdateVoucher handles PUT /api/vouchers/:code.
func (h *VoucherHandler) UpdateVoucher(c *fiber.Ctx) error {
	code := c.Params("code")
	if code == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request: code is required"})
	}

	var req model.UpdateVoucherRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}
	if err := h.validator.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": formatValidationError(err)})
	}

	resp, err := h.service.Update(c.Context(), code, &req)
	if err != nil {
		var vErr *service.ValidationError
		if errors.As(err, &vErr) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": vErr.Reason})
		}
		if errors.Is(err, service.ErrVoucherNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Voucher not found"})
		}
		log.Error().Err(err).Str("voucher_code", code).Msg("failed to update voucher")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal server error"})
	}

	return c.JSON(resp)
}

// DeleteVoucher handles DELETE /api/vouchers/:code.
func (h *VoucherHandler) DeleteVoucher(c *fiber.Ctx) error {
	code := c.Params("code")
	if code == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request: code is required"})
	}

	if err := h.service.Delete(c.Context(), code); err != nil {
		if errors.Is(err, service.ErrVoucherNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Voucher not found"})
		}
		log.Error().Err(err).Str("voucher_code", code).Msg("failed to delete voucher")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal server error"})
	}

	return c.JSON(fiber.Map{"message": "Voucher deleted successfully"})
}

// ListRedemptions handles GET /api/redemptions.
func (h *VoucherHandler) ListRedemptions(c *fiber.Ctx) error {
	filter := model.RedemptionFilter{CustomerID: queryString(c, "customer_id")}
	if raw := c.Query("voucher_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request: voucher_id must be a UUID"})
		}
		filter.VoucherID = &id
	}

	resp, err := h.service.ListRedemptions(c.Context(), filter, c.QueryInt("page", 1), c.QueryInt("limit", 10))
	if err != nil {
		log.Error().Err(err).Msg("failed to list redemptions")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal server error"})
	}

	return c.JSON(resp)
}

// queryString returns the query parameter as a *string, nil when absent.
func queryString(c *fiber.Ctx, key string) *string {
	v := c.Query(key)
	if v == "" {
		return nil
	}
	return &v
}
