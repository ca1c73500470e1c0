package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"

	"github.com/voucherworks/voucher-service/internal/model"
	"github.com/voucherworks/voucher-service/internal/voucher"
	"github.com/voucherworks/voucher-service/pkg/database"
)

// LockedVoucherRepository defines the voucher data access needed by the
// redemption coordinator.
type LockedVoucherRepository interface {
	GetByCode(ctx context.Context, code string) (*model.Voucher, error)
	GetByCodeForUpdate(ctx context.Context, tx database.TxQuerier, code string) (*model.Voucher, error)
	IncrementRedeemedCount(ctx context.Context, tx database.TxQuerier, id uuid.UUID) error
}

// RedemptionLedger defines the ledger access needed by the coordinator.
type RedemptionLedger interface {
	Insert(ctx context.Context, tx database.TxQuerier, red *model.Redemption) error
	CountInWindow(ctx context.Context, q database.TxQuerier, voucherID uuid.UUID, start, end time.Time) (int, error)
}

// DB combines transaction creation with plain querying. *pgxpool.Pool
// satisfies it.
type DB interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	database.TxQuerier
}

// RedeemResult is the outcome of a successful redemption.
type RedeemResult struct {
	Discount   model.DiscountResponse
	Redemption *model.Redemption
}

// RedeemService coordinates the redemption transaction: locked read, quota
// count, validation, counter increment and ledger insert, all in one
// transaction per attempt.
type RedeemService struct {
	db            DB
	vouchers      LockedVoucherRepository
	redemptions   RedemptionLedger
	maxRetries    uint64
	retryInterval time.Duration
	now           func() time.Time
}

// NewRedeemService creates a RedeemService with production retry settings.
func NewRedeemService(db DB, vouchers LockedVoucherRepository, redemptions RedemptionLedger) *RedeemService {
	return &RedeemService{
		db:            db,
		vouchers:      vouchers,
		redemptions:   redemptions,
		maxRetries:    3,
		retryInterval: 50 * time.Millisecond,
		now:           time.Now,
	}
}

// NewRedeemServiceWithOptions creates a RedeemService with custom retry
// settings and clock. Primarily used for testing.
func NewRedeemServiceWithOptions(db DB, vouchers LockedVoucherRepository, redemptions RedemptionLedger, maxRetries uint64, retryInterval time.Duration, now func() time.Time) *RedeemService {
	return &RedeemService{
		db:            db,
		vouchers:      vouchers,
		redemptions:   redemptions,
		maxRetries:    maxRetries,
		retryInterval: retryInterval,
		now:           now,
	}
}

// Redeem atomically redeems the voucher identified by code.
//
// Validation rejections come back as the voucher package's sentinel errors and
// leave no trace in the database. Transient lock/serialization failures from
// the store (deadlock, lock timeout, serialization) are retried a bounded
// number of times with backoff; if they persist the call fails with
// ErrRedemptionConflict.
func (s *RedeemService) Redeem(ctx context.Context, code string, customerID *string, transactionAmount *decimal.Decimal, metadata json.RawMessage) (*RedeemResult, error) {
	var result *RedeemResult

	attempt := func() error {
		res, err := s.redeemOnce(ctx, code, customerID, transactionAmount, metadata)
		if err != nil {
			if isRetryable(err) {
				return err
			}
			return backoff.Permanent(err)
		}
		result = res
		return nil
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = s.retryInterval
	err := backoff.Retry(attempt, backoff.WithContext(backoff.WithMaxRetries(policy, s.maxRetries), ctx))
	if err != nil {
		if isRetryable(err) {
			return nil, fmt.Errorf("%w: %v", ErrRedemptionConflict, err)
		}
		return nil, err
	}
	return result, nil
}

// redeemOnce runs one redemption transaction. Any error path rolls the whole
// transaction back, so a rejected attempt leaves redeemed_count and the
// ledger untouched.
func (s *RedeemService) redeemOnce(ctx context.Context, code string, customerID *string, transactionAmount *decimal.Decimal, metadata json.RawMessage) (*RedeemResult, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }() // Safe: no-op if committed

	// 1. Lock the voucher row. Concurrent redemptions of the same code queue
	// here until the holder commits or rolls back.
	v, err := s.vouchers.GetByCodeForUpdate(ctx, tx, code)
	if err != nil {
		if errors.Is(err, voucher.ErrNotFound) {
			return nil, voucher.ErrNotFound
		}
		return nil, fmt.Errorf("get voucher for update: %w", err)
	}

	now := s.now()

	// 2. Count today's redemptions inside the same transaction so the daily
	// quota sees rows the lock holder itself already committed.
	dayStart, dayEnd := voucher.DayWindow(now)
	todays, err := s.redemptions.CountInWindow(ctx, tx, v.ID, dayStart, dayEnd)
	if err != nil {
		return nil, fmt.Errorf("count todays redemptions: %w", err)
	}

	// 3. Validate against the locked snapshot.
	if err := voucher.Evaluate(v, customerID, now, todays); err != nil {
		return nil, err
	}

	// 4. Accept: increment the counter and append the ledger row.
	discount := voucher.ComputeDiscount(v, transactionAmount)

	if err := s.vouchers.IncrementRedeemedCount(ctx, tx, v.ID); err != nil {
		return nil, fmt.Errorf("increment redeemed count: %w", err)
	}

	red := &model.Redemption{
		VoucherID:      v.ID,
		CustomerID:     customerID,
		DiscountAmount: appliedAmount(v, discount),
		Metadata:       metadata,
		RedeemedAt:     now,
	}
	if err := s.redemptions.Insert(ctx, tx, red); err != nil {
		return nil, fmt.Errorf("insert redemption: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit redemption: %w", err)
	}

	return &RedeemResult{Discount: discount, Redemption: red}, nil
}

// Validate evaluates a voucher without redeeming it. Read-only: no lock, no
// mutation.
func (s *RedeemService) Validate(ctx context.Context, code string, customerID *string, transactionAmount *decimal.Decimal) (*model.DiscountResponse, error) {
	v, err := s.vouchers.GetByCode(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("get voucher: %w", err)
	}
	if v == nil {
		return nil, voucher.ErrNotFound
	}

	now := s.now()
	dayStart, dayEnd := voucher.DayWindow(now)
	todays, err := s.redemptions.CountInWindow(ctx, s.db, v.ID, dayStart, dayEnd)
	if err != nil {
		return nil, fmt.Errorf("count todays redemptions: %w", err)
	}

	if err := voucher.Evaluate(v, customerID, now, todays); err != nil {
		return nil, err
	}

	discount := voucher.ComputeDiscount(v, transactionAmount)
	return &discount, nil
}

// appliedAmount picks the discount value recorded on the ledger row: the
// computed amount when one exists, otherwise the raw magnitude.
func appliedAmount(v *model.Voucher, d model.DiscountResponse) decimal.Decimal {
	if d.ComputedAmount != nil {
		return *d.ComputedAmount
	}
	return v.DiscountAmount
}

// isRetryable reports whether the error is a transient concurrency failure
// from PostgreSQL: serialization failure, deadlock, or lock timeout.
func isRetryable(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "40001", "40P01", "55P03":
			return true
		}
	}
	return false
}
