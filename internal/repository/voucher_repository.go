package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/voucherworks/voucher-service/internal/model"
	"github.com/voucherworks/voucher-service/internal/service"
	"github.com/voucherworks/voucher-service/internal/voucher"
	"github.com/voucherworks/voucher-service/pkg/database"
)

const voucherColumns = `id, code, name, is_active, discount_type, discount_amount,
	max_discount_amount, max_redemptions, daily_quota, start_date, expiration_date,
	customer_id, redeemed_count, created_at, updated_at`

// VoucherPoolInterface defines the database operations needed by VoucherRepository.
// This allows for easier testing with mocks.
type VoucherPoolInterface interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// VoucherRepository provides data access for vouchers using pgx.
type VoucherRepository struct {
	pool VoucherPoolInterface
}

// NewVoucherRepository creates a new VoucherRepository with the given pool.
func NewVoucherRepository(pool *pgxpool.Pool) *VoucherRepository {
	return &VoucherRepository{pool: pool}
}

// NewVoucherRepositoryWithPool creates a new VoucherRepository with a custom
// pool interface. This is primarily used for testing.
func NewVoucherRepositoryWithPool(pool VoucherPoolInterface) *VoucherRepository {
	return &VoucherRepository{pool: pool}
}

func scanVoucher(row pgx.Row) (*model.Voucher, error) {
	var v model.Voucher
	err := row.Scan(
		&v.ID,
		&v.Code,
		&v.Name,
		&v.IsActive,
		&v.DiscountType,
		&v.DiscountAmount,
		&v.MaxDiscountAmount,
		&v.MaxRedemptions,
		&v.DailyQuota,
		&v.StartDate,
		&v.ExpirationDate,
		&v.CustomerID,
		&v.RedeemedCount,
		&v.CreatedAt,
		&v.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// Insert inserts a new voucher. The row starts with redeemed_count = 0.
// Returns service.ErrVoucherExists if the code is already taken.
func (r *VoucherRepository) Insert(ctx context.Context, v *model.Voucher) error {
	query := `INSERT INTO vouchers
		(id, code, name, is_active, discount_type, discount_amount, max_discount_amount,
		 max_redemptions, daily_quota, start_date, expiration_date, customer_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING created_at, updated_at`

	err := r.pool.QueryRow(ctx, query,
		v.ID, v.Code, v.Name, v.IsActive, v.DiscountType, v.DiscountAmount,
		v.MaxDiscountAmount, v.MaxRedemptions, v.DailyQuota, v.StartDate,
		v.ExpirationDate, v.CustomerID,
	).Scan(&v.CreatedAt, &v.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return service.ErrVoucherExists
		}
		return fmt.Errorf("insert voucher: %w", err)
	}
	return nil
}

// GetByCode retrieves a voucher by its code.
// Returns nil, nil if the voucher is not found (service layer handles this).
func (r *VoucherRepository) GetByCode(ctx context.Context, code string) (*model.Voucher, error) {
	query := `SELECT ` + voucherColumns + ` FROM vouchers WHERE code = $1`

	v, err := scanVoucher(r.pool.QueryRow(ctx, query, code))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil // Not found - let service handle
		}
		return nil, fmt.Errorf("get voucher by code %s: %w", code, err)
	}
	return v, nil
}

// GetByCodeForUpdate retrieves a voucher with an exclusive row lock
// (SELECT FOR UPDATE). The lock is held until the transaction completes,
// serializing concurrent redemptions of the same code.
// Returns voucher.ErrNotFound if the voucher doesn't exist.
func (r *VoucherRepository) GetByCodeForUpdate(ctx context.Context, tx database.TxQuerier, code string) (*model.Voucher, error) {
	query := `SELECT ` + voucherColumns + ` FROM vouchers WHERE code = $1 FOR UPDATE`

	v, err := scanVoucher(tx.QueryRow(ctx, query, code))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, voucher.ErrNotFound
		}
		return nil, fmt.Errorf("get voucher for update %s: %w", code, err)
	}
	return v, nil
}

// IncrementRedeemedCount increments redeemed_count by exactly 1.
// Must be called within a transaction after locking the row.
func (r *VoucherRepository) IncrementRedeemedCount(ctx context.Context, tx database.TxQuerier, id uuid.UUID) error {
	query := `UPDATE vouchers SET redeemed_count = redeemed_count + 1, updated_at = now() WHERE id = $1`

	_, err := tx.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("increment redeemed count for %s: %w", id, err)
	}
	return nil
}

// Update replaces the administrative attributes of a voucher. It never
// touches redeemed_count; that column belongs to the redemption transaction.
func (r *VoucherRepository) Update(ctx context.Context, v *model.Voucher) error {
	query := `UPDATE vouchers SET
		name = $2, is_active = $3, discount_type = $4, discount_amount = $5,
		max_discount_amount = $6, max_redemptions = $7, daily_quota = $8,
		start_date = $9, expiration_date = $10, customer_id = $11, updated_at = now()
		WHERE id = $1
		RETURNING updated_at`

	err := r.pool.QueryRow(ctx, query,
		v.ID, v.Name, v.IsActive, v.DiscountType, v.DiscountAmount,
		v.MaxDiscountAmount, v.MaxRedemptions, v.DailyQuota, v.StartDate,
		v.ExpirationDate, v.CustomerID,
	).Scan(&v.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return service.ErrVoucherNotFound
		}
		return fmt.Errorf("update voucher %s: %w", v.Code, err)
	}
	return nil
}

// Delete hard-deletes a voucher by code. Redemption rows cascade via the
// foreign key. Returns false when no row matched.
func (r *VoucherRepository) Delete(ctx context.Context, code string) (bool, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM vouchers WHERE code = $1`, code)
	if err != nil {
		return false, fmt.Errorf("delete voucher %s: %w", code, err)
	}
	return tag.RowsAffected() > 0, nil
}

// List returns a page of active vouchers ordered by creation time descending,
// optionally filtered to a customer restriction, plus the total match count.
func (r *VoucherRepository) List(ctx context.Context, customerID *string, limit, offset int) ([]model.Voucher, int, error) {
	listQuery := `SELECT ` + voucherColumns + ` FROM vouchers WHERE is_active = TRUE`
	countQuery := `SELECT COUNT(*) FROM vouchers WHERE is_active = TRUE`
	args := []any{}
	if customerID != nil {
		listQuery += ` AND customer_id = $1`
		countQuery += ` AND customer_id = $1`
		args = append(args, *customerID)
	}
	listQuery += fmt.Sprintf(` ORDER BY created_at DESC LIMIT %d OFFSET %d`, limit, offset)

	var total int
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count vouchers: %w", err)
	}

	rows, err := r.pool.Query(ctx, listQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list vouchers: %w", err)
	}
	defer rows.Close()

	vouchers := []model.Voucher{}
	for rows.Next() {
		v, err := scanVoucher(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan voucher row: %w", err)
		}
		vouchers = append(vouchers, *v)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate voucher rows: %w", err)
	}

	return vouchers, total, nil
}

// DeactivateExpired bulk-flips active vouchers past their expiration date to
// inactive and returns how many rows changed. Idempotent; no locking needed
// since redemption validation checks expiration on its own.
func (r *VoucherRepository) DeactivateExpired(ctx context.Context, now time.Time) (int64, error) {
	query := `UPDATE vouchers SET is_active = FALSE, updated_at = now()
		WHERE is_active = TRUE AND expiration_date < $1`

	tag, err := r.pool.Exec(ctx, query, now)
	if err != nil {
		return 0, fmt.Errorf("deactivate expired vouchers: %w", err)
	}
	return tag.RowsAffected(), nil
}
