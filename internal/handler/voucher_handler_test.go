package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voucherworks/voucher-service/internal/model"
	"github.com/voucherworks/voucher-service/internal/service"
	appvalidator "github.com/voucherworks/voucher-service/internal/validator"
)

// mockVoucherService is a mock implementation of VoucherServiceInterface.
type mockVoucherService struct {
	createFn          func(ctx context.Context, req *model.CreateVoucherRequest) (*model.VoucherResponse, error)
	getByCodeFn       func(ctx context.Context, code string, customerID *string) (*model.VoucherValidityResponse, error)
	listFn            func(ctx context.Context, customerID *string, page, limit int) (*model.ListVouchersResponse, error)
	updateFn          func(ctx context.Context, code string, req *model.UpdateVoucherRequest) (*model.VoucherResponse, error)
	deleteFn          func(ctx context.Context, code string) error
	listRedemptionsFn func(ctx context.Context, filter model.RedemptionFilter, page, limit int) (*model.ListRedemptionsResponse, error)
}

func (m *mockVoucherService) Create(ctx context.Context, req *model.CreateVoucherRequest) (*model.VoucherResponse, error) {
	if m.createFn != nil {
		return m.createFn(ctx, req)
	}
	return nil, nil
}

func (m *mockVoucherService) GetByCode(ctx context.Context, code string, customerID *string) (*model.VoucherValidityResponse, error) {
	if m.getByCodeFn != nil {
		return m.getByCodeFn(ctx, code, customerID)
	}
	return nil, nil
}

func (m *mockVoucherService) List(ctx context.Context, customerID *string, page, limit int) (*model.ListVouchersResponse, error) {
	if m.listFn != nil {
		return m.listFn(ctx, customerID, page, limit)
	}
	return &model.ListVouchersResponse{}, nil
}

func (m *mockVoucherService) Update(ctx context.Context, code string, req *model.UpdateVoucherRequest) (*model.VoucherResponse, error) {
	if m.updateFn != nil {
		return m.updateFn(ctx, code, req)
	}
	return nil, nil
}

func (m *mockVoucherService) Delete(ctx context.Context, code string) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, code)
	}
	return nil
}

func (m *mockVoucherService) ListRedemptions(ctx context.Context, filter model.RedemptionFilter, page, limit int) (*model.ListRedemptionsResponse, error) {
	if m.listRedemptionsFn != nil {
		return m.listRedemptionsFn(ctx, filter, page, limit)
	}
	return &model.ListRedemptionsResponse{}, nil
}

func setupVoucherApp(mockSvc *mockVoucherService) *fiber.App {
	app := fiber.New()
	h := NewVoucherHandler(mockSvc, appvalidator.New())
	app.Post("/api/vouchers", h.CreateVoucher)
	app.Get("/api/vouchers", h.ListVouchers)
	app.Get("/api/vouchers/:code", h.GetVoucher)
	app.Put("/api/vouchers/:code", h.UpdateVoucher)
	app.Delete("/api/vouchers/:code", h.DeleteVoucher)
	app.Get("/api/redemptions", h.ListRedemptions)
	return app
}

func sampleVoucherResponse() *model.VoucherResponse {
	pct := decimal.NewFromInt(20)
	return &model.VoucherResponse{
		ID:   uuid.New(),
		Name: "Summer promotion",
		Code: "SUMMER20",
		Discount: model.DiscountResponse{
			Type:       model.DiscountPercentage,
			PercentOff: &pct,
		},
		Redemption: model.RedemptionLimitsResponse{
			Quantity:   100,
			DailyQuota: 10,
		},
		StartDate:      time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
		ExpirationDate: time.Date(2024, 9, 1, 0, 0, 0, 0, time.UTC),
		IsActive:       true,
	}
}

const createVoucherBody = `{
	"name": "Summer promotion",
	"code": "SUMMER20",
	"discount": {"type": "PERCENTAGE", "percent_off": "20"},
	"redemption": {"quantity": 100, "daily_quota": 10},
	"start_date": "2024-06-01T00:00:00Z",
	"expiration_date": "2024-09-01T00:00:00Z"
}`

func TestCreateVoucher_Success(t *testing.T) {
	var gotReq *model.CreateVoucherRequest
	mockSvc := &mockVoucherService{
		createFn: func(ctx context.Context, req *model.CreateVoucherRequest) (*model.VoucherResponse, error) {
			gotReq = req
			return sampleVoucherResponse(), nil
		},
	}
	app := setupVoucherApp(mockSvc)

	req := httptest.NewRequest(http.MethodPost, "/api/vouchers", bytes.NewBufferString(createVoucherBody))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusCreated, resp.StatusCode)
	require.NotNil(t, gotReq)
	assert.Equal(t, "SUMMER20", gotReq.Code)
	require.NotNil(t, gotReq.Redemption.Quantity)
	assert.Equal(t, 100, *gotReq.Redemption.Quantity)

	var result model.VoucherResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	assert.Equal(t, "SUMMER20", result.Code)
}

func TestCreateVoucher_MissingCode(t *testing.T) {
	app := setupVoucherApp(&mockVoucherService{})

	body := `{"name": "Promo", "discount": {"type": "PERCENTAGE", "percent_off": "20"},
		"redemption": {"quantity": 10, "daily_quota": 5},
		"start_date": "2024-06-01T00:00:00Z", "expiration_date": "2024-09-01T00:00:00Z"}`
	req := httptest.NewRequest(http.MethodPost, "/api/vouchers", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	var result map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	assert.Equal(t, "invalid request: code is required", result["error"], "Exact error message required")
}

func TestCreateVoucher_BlankCode(t *testing.T) {
	app := setupVoucherApp(&mockVoucherService{})

	body := `{"name": "Promo", "code": "   ",
		"discount": {"type": "PERCENTAGE", "percent_off": "20"},
		"redemption": {"quantity": 10, "daily_quota": 5},
		"start_date": "2024-06-01T00:00:00Z", "expiration_date": "2024-09-01T00:00:00Z"}`
	req := httptest.NewRequest(http.MethodPost, "/api/vouchers", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	var result map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	assert.Equal(t, "invalid request: code cannot be whitespace only", result["error"])
}

func TestCreateVoucher_DuplicateCode(t *testing.T) {
	mockSvc := &mockVoucherService{
		createFn: func(ctx context.Context, req *model.CreateVoucherRequest) (*model.VoucherResponse, error) {
			return nil, service.ErrVoucherExists
		},
	}
	app := setupVoucherApp(mockSvc)

	req := httptest.NewRequest(http.MethodPost, "/api/vouchers", bytes.NewBufferString(createVoucherBody))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusConflict, resp.StatusCode)

	var result map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	assert.Equal(t, "A voucher with this code already exists", result["error"])
}

func TestCreateVoucher_SemanticValidationError(t *testing.T) {
	mockSvc := &mockVoucherService{
		createFn: func(ctx context.Context, req *model.CreateVoucherRequest) (*model.VoucherResponse, error) {
			return nil, &service.ValidationError{Reason: "daily quota cannot be greater than total quantity"}
		},
	}
	app := setupVoucherApp(mockSvc)

	req := httptest.NewRequest(http.MethodPost, "/api/vouchers", bytes.NewBufferString(createVoucherBody))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	var result map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	assert.Equal(t, "daily quota cannot be greater than total quantity", result["error"])
}

func TestGetVoucher_Success(t *testing.T) {
	var gotCustomer *string
	mockSvc := &mockVoucherService{
		getByCodeFn: func(ctx context.Context, code string, customerID *string) (*model.VoucherValidityResponse, error) {
			gotCustomer = customerID
			return &model.VoucherValidityResponse{
				VoucherResponse: *sampleVoucherResponse(),
				IsValid:         true,
			}, nil
		},
	}
	app := setupVoucherApp(mockSvc)

	req := httptest.NewRequest(http.MethodGet, "/api/vouchers/SUMMER20?customer_id=cust-1", nil)

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.NotNil(t, gotCustomer)
	assert.Equal(t, "cust-1", *gotCustomer)

	var result model.VoucherValidityResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	assert.True(t, result.IsValid)
	assert.Equal(t, "SUMMER20", result.Code)
}

func TestGetVoucher_InvalidVerdict(t *testing.T) {
	mockSvc := &mockVoucherService{
		getByCodeFn: func(ctx context.Context, code string, customerID *string) (*model.VoucherValidityResponse, error) {
			return &model.VoucherValidityResponse{
				VoucherResponse: *sampleVoucherResponse(),
				IsValid:         false,
				ValidationError: "voucher has expired",
			}, nil
		},
	}
	app := setupVoucherApp(mockSvc)

	req := httptest.NewRequest(http.MethodGet, "/api/vouchers/SUMMER20", nil)

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode, "an invalid voucher is still a successful lookup")

	var result model.VoucherValidityResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	assert.False(t, result.IsValid)
	assert.Equal(t, "voucher has expired", result.ValidationError)
}

func TestGetVoucher_NotFound(t *testing.T) {
	mockSvc := &mockVoucherService{
		getByCodeFn: func(ctx context.Context, code string, customerID *string) (*model.VoucherValidityResponse, error) {
			return nil, service.ErrVoucherNotFound
		},
	}
	app := setupVoucherApp(mockSvc)

	req := httptest.NewRequest(http.MethodGet, "/api/vouchers/NONEXISTENT", nil)

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)

	var result map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	assert.Equal(t, "Voucher not found", result["error"])
}

func TestListVouchers_PassesPaging(t *testing.T) {
	var gotPage, gotLimit int
	mockSvc := &mockVoucherService{
		listFn: func(ctx context.Context, customerID *string, page, limit int) (*model.ListVouchersResponse, error) {
			gotPage, gotLimit = page, limit
			return &model.ListVouchersResponse{Data: []model.VoucherResponse{}, Page: page, Limit: limit}, nil
		},
	}
	app := setupVoucherApp(mockSvc)

	req := httptest.NewRequest(http.MethodGet, "/api/vouchers?page=2&limit=5", nil)

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, 2, gotPage)
	assert.Equal(t, 5, gotLimit)
}

func TestUpdateVoucher_Success(t *testing.T) {
	var gotCode string
	var gotReq *model.UpdateVoucherRequest
	mockSvc := &mockVoucherService{
		updateFn: func(ctx context.Context, code string, req *model.UpdateVoucherRequest) (*model.VoucherResponse, error) {
			gotCode = code
			gotReq = req
			return sampleVoucherResponse(), nil
		},
	}
	app := setupVoucherApp(mockSvc)

	body := `{"is_active": false}`
	req := httptest.NewRequest(http.MethodPut, "/api/vouchers/SUMMER20", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "SUMMER20", gotCode)
	require.NotNil(t, gotReq.IsActive)
	assert.False(t, *gotReq.IsActive)
	assert.Nil(t, gotReq.Name, "absent fields stay nil")
}

func TestUpdateVoucher_NotFound(t *testing.T) {
	mockSvc := &mockVoucherService{
		updateFn: func(ctx context.Context, code string, req *model.UpdateVoucherRequest) (*model.VoucherResponse, error) {
			return nil, service.ErrVoucherNotFound
		},
	}
	app := setupVoucherApp(mockSvc)

	req := httptest.NewRequest(http.MethodPut, "/api/vouchers/NONEXISTENT", bytes.NewBufferString(`{}`))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestDeleteVoucher_Success(t *testing.T) {
	mockSvc := &mockVoucherService{
		deleteFn: func(ctx context.Context, code string) error { return nil },
	}
	app := setupVoucherApp(mockSvc)

	req := httptest.NewRequest(http.MethodDelete, "/api/vouchers/SUMMER20", nil)

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	var result map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	assert.Equal(t, "Voucher deleted successfully", result["message"])
}

func TestDeleteVoucher_NotFound(t *testing.T) {
	mockSvc := &mockVoucherService{
		deleteFn: func(ctx context.Context, code string) error { return service.ErrVoucherNotFound },
	}
	app := setupVoucherApp(mockSvc)

	req := httptest.NewRequest(http.MethodDelete, "/api/vouchers/NONEXISTENT", nil)

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestDeleteVoucher_InternalError(t *testing.T) {
	mockSvc := &mockVoucherService{
		deleteFn: func(ctx context.Context, code string) error { return errors.New("connection refused") },
	}
	app := setupVoucherApp(mockSvc)

	req := httptest.NewRequest(http.MethodDelete, "/api/vouchers/SUMMER20", nil)

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusInternalServerError, resp.StatusCode)
}

func TestListRedemptions_Filters(t *testing.T) {
	voucherID := uuid.New()
	var gotFilter model.RedemptionFilter
	mockSvc := &mockVoucherService{
		listRedemptionsFn: func(ctx context.Context, filter model.RedemptionFilter, page, limit int) (*model.ListRedemptionsResponse, error) {
			gotFilter = filter
			return &model.ListRedemptionsResponse{Data: []model.RedemptionResponse{}}, nil
		},
	}
	app := setupVoucherApp(mockSvc)

	req := httptest.NewRequest(http.MethodGet, "/api/redemptions?voucher_id="+voucherID.String()+"&customer_id=cust-1", nil)

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.NotNil(t, gotFilter.VoucherID)
	assert.Equal(t, voucherID, *gotFilter.VoucherID)
	require.NotNil(t, gotFilter.CustomerID)
	assert.Equal(t, "cust-1", *gotFilter.CustomerID)
}

func TestListRedemptions_BadVoucherID(t *testing.T) {
	app := setupVoucherApp(&mockVoucherService{})

	req := httptest.NewRequest(http.MethodGet, "/api/redemptions?voucher_id=not-a-uuid", nil)

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	var result map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	assert.Equal(t, "invalid request: voucher_id must be a UUID", result["error"])
}
