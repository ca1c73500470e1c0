package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/voucherworks/voucher-service/internal/model"
	"github.com/voucherworks/voucher-service/internal/voucher"
	"github.com/voucherworks/voucher-service/pkg/database"
)

// VoucherRepositoryInterface defines the voucher data access used by the
// administrative service.
type VoucherRepositoryInterface interface {
	Insert(ctx context.Context, v *model.Voucher) error
	GetByCode(ctx context.Context, code string) (*model.Voucher, error)
	Update(ctx context.Context, v *model.Voucher) error
	Delete(ctx context.Context, code string) (bool, error)
	List(ctx context.Context, customerID *string, limit, offset int) ([]model.Voucher, int, error)
}

// RedemptionHistoryInterface defines the ledger access used by the
// administrative service.
type RedemptionHistoryInterface interface {
	CountInWindow(ctx context.Context, q database.TxQuerier, voucherID uuid.UUID, start, end time.Time) (int, error)
	List(ctx context.Context, filter model.RedemptionFilter, limit, offset int) ([]model.RedemptionRecord, int, error)
}

// VoucherService provides administrative CRUD and inspection for vouchers.
type VoucherService struct {
	db          database.TxQuerier
	vouchers    VoucherRepositoryInterface
	redemptions RedemptionHistoryInterface
	now         func() time.Time
}

// NewVoucherService creates a new VoucherService.
func NewVoucherService(db database.TxQuerier, vouchers VoucherRepositoryInterface, redemptions RedemptionHistoryInterface) *VoucherService {
	return &VoucherService{
		db:          db,
		vouchers:    vouchers,
		redemptions: redemptions,
		now:         time.Now,
	}
}

// NewVoucherServiceWithClock creates a VoucherService with a custom clock.
// Primarily used for testing.
func NewVoucherServiceWithClock(db database.TxQuerier, vouchers VoucherRepositoryInterface, redemptions RedemptionHistoryInterface, now func() time.Time) *VoucherService {
	return &VoucherService{
		db:          db,
		vouchers:    vouchers,
		redemptions: redemptions,
		now:         now,
	}
}

// Create creates a new voucher with redeemed_count = 0.
// Returns ErrVoucherExists if the code is taken and a *ValidationError for
// semantic problems with the input.
func (s *VoucherService) Create(ctx context.Context, req *model.CreateVoucherRequest) (*model.VoucherResponse, error) {
	if req == nil || req.Discount == nil || req.Redemption == nil {
		return nil, ErrInvalidRequest
	}

	v := &model.Voucher{
		ID:             uuid.New(),
		Code:           req.Code,
		Name:           req.Name,
		IsActive:       true,
		MaxRedemptions: derefInt(req.Redemption.Quantity),
		DailyQuota:     derefInt(req.Redemption.DailyQuota),
		StartDate:      req.StartDate,
		ExpirationDate: req.ExpirationDate,
		CustomerID:     normalizeCustomerID(req.CustomerID),
	}
	if req.IsActive != nil {
		v.IsActive = *req.IsActive
	}
	if err := applyDiscount(v, req.Discount); err != nil {
		return nil, err
	}
	if err := checkVoucherBounds(v); err != nil {
		return nil, err
	}

	if err := s.vouchers.Insert(ctx, v); err != nil {
		return nil, err
	}

	resp := v.ToResponse()
	return &resp, nil
}

// GetByCode retrieves a voucher with a non-mutating validity verdict for the
// given customer. The verdict uses the same checks as redemption.
func (s *VoucherService) GetByCode(ctx context.Context, code string, customerID *string) (*model.VoucherValidityResponse, error) {
	v, err := s.vouchers.GetByCode(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("get voucher: %w", err)
	}
	if v == nil {
		return nil, ErrVoucherNotFound
	}

	now := s.now()
	dayStart, dayEnd := voucher.DayWindow(now)
	todays, err := s.redemptions.CountInWindow(ctx, s.db, v.ID, dayStart, dayEnd)
	if err != nil {
		return nil, fmt.Errorf("count todays redemptions: %w", err)
	}

	resp := &model.VoucherValidityResponse{VoucherResponse: v.ToResponse()}
	if verdictErr := voucher.Evaluate(v, customerID, now, todays); verdictErr != nil {
		resp.ValidationError = verdictErr.Error()
	} else {
		resp.IsValid = true
	}
	return resp, nil
}

// List returns a page of active vouchers.
func (s *VoucherService) List(ctx context.Context, customerID *string, page, limit int) (*model.ListVouchersResponse, error) {
	page, limit = normalizePage(page, limit)

	vouchers, total, err := s.vouchers.List(ctx, normalizeCustomerID(customerID), limit, (page-1)*limit)
	if err != nil {
		return nil, fmt.Errorf("list vouchers: %w", err)
	}

	data := make([]model.VoucherResponse, 0, len(vouchers))
	for i := range vouchers {
		data = append(data, vouchers[i].ToResponse())
	}
	return &model.ListVouchersResponse{Data: data, Total: total, Page: page, Limit: limit}, nil
}

// Update applies a partial update to a voucher. Fields absent from the
// request keep their current value; redeemed_count is never touched. The
// merged voucher is re-validated under the same rules as creation.
func (s *VoucherService) Update(ctx context.Context, code string, req *model.UpdateVoucherRequest) (*model.VoucherResponse, error) {
	if req == nil {
		return nil, ErrInvalidRequest
	}

	v, err := s.vouchers.GetByCode(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("get voucher: %w", err)
	}
	if v == nil {
		return nil, ErrVoucherNotFound
	}

	if req.Name != nil {
		v.Name = *req.Name
	}
	if req.IsActive != nil {
		v.IsActive = *req.IsActive
	}
	if req.StartDate != nil {
		v.StartDate = *req.StartDate
	}
	if req.ExpirationDate != nil {
		v.ExpirationDate = *req.ExpirationDate
	}
	if req.CustomerID != nil {
		v.CustomerID = normalizeCustomerID(req.CustomerID)
	}
	if req.Discount != nil {
		if err := applyDiscount(v, req.Discount); err != nil {
			return nil, err
		}
	}
	if req.Redemption != nil {
		if req.Redemption.Quantity != nil {
			v.MaxRedemptions = *req.Redemption.Quantity
		}
		if req.Redemption.DailyQuota != nil {
			v.DailyQuota = *req.Redemption.DailyQuota
		}
	}
	if err := checkVoucherBounds(v); err != nil {
		return nil, err
	}

	if err := s.vouchers.Update(ctx, v); err != nil {
		return nil, err
	}

	resp := v.ToResponse()
	return &resp, nil
}

// Delete hard-deletes a voucher; ledger rows cascade.
func (s *VoucherService) Delete(ctx context.Context, code string) error {
	deleted, err := s.vouchers.Delete(ctx, code)
	if err != nil {
		return fmt.Errorf("delete voucher: %w", err)
	}
	if !deleted {
		return ErrVoucherNotFound
	}
	return nil
}

// ListRedemptions returns a page of redemption history.
func (s *VoucherService) ListRedemptions(ctx context.Context, filter model.RedemptionFilter, page, limit int) (*model.ListRedemptionsResponse, error) {
	page, limit = normalizePage(page, limit)

	records, total, err := s.redemptions.List(ctx, filter, limit, (page-1)*limit)
	if err != nil {
		return nil, fmt.Errorf("list redemptions: %w", err)
	}

	data := make([]model.RedemptionResponse, 0, len(records))
	for i := range records {
		data = append(data, records[i].ToResponse())
	}
	totalPages := (total + limit - 1) / limit
	return &model.ListRedemptionsResponse{
		Data:       data,
		Total:      total,
		Page:       page,
		TotalPages: totalPages,
		Limit:      limit,
	}, nil
}

// applyDiscount validates a discount descriptor and writes it onto the
// voucher. The cap is stored for PERCENTAGE only.
func applyDiscount(v *model.Voucher, d *model.DiscountRequest) error {
	switch d.Type {
	case model.DiscountFixedAmount:
		if d.AmountOff == nil || !d.AmountOff.IsPositive() {
			return validationErrorf("invalid amount off value")
		}
		v.DiscountType = model.DiscountFixedAmount
		v.DiscountAmount = *d.AmountOff
		v.MaxDiscountAmount = decimal.Zero
	case model.DiscountPercentage:
		if d.PercentOff == nil || !d.PercentOff.IsPositive() || d.PercentOff.GreaterThan(decimal.NewFromInt(100)) {
			return validationErrorf("invalid percentage off value")
		}
		v.DiscountType = model.DiscountPercentage
		v.DiscountAmount = *d.PercentOff
		v.MaxDiscountAmount = decimal.Zero
		if d.AmountLimit != nil {
			if d.AmountLimit.IsNegative() {
				return validationErrorf("invalid amount limit value")
			}
			v.MaxDiscountAmount = *d.AmountLimit
		}
	default:
		return validationErrorf("invalid discount type")
	}
	return nil
}

// checkVoucherBounds enforces the cross-field constraints shared by create
// and update.
func checkVoucherBounds(v *model.Voucher) error {
	if v.MaxRedemptions < 1 {
		return validationErrorf("invalid redemption quantity")
	}
	if v.DailyQuota < 1 {
		return validationErrorf("invalid daily quota")
	}
	if v.DailyQuota > v.MaxRedemptions {
		return validationErrorf("daily quota cannot be greater than total quantity")
	}
	if !v.ExpirationDate.After(v.StartDate) {
		return validationErrorf("expiration date must be after start date")
	}
	if v.MaxRedemptions < v.RedeemedCount {
		return validationErrorf("max redemptions cannot be lower than redeemed count")
	}
	return nil
}

func normalizePage(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 10
	}
	return page, limit
}

// normalizeCustomerID maps empty strings to nil so an empty customer_id
// clears the restriction.
func normalizeCustomerID(id *string) *string {
	if id == nil || *id == "" {
		return nil
	}
	return id
}

func derefInt(p *int) int {
	if p == nil {
		return 0
	}
	return *p
}
