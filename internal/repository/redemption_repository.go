package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/voucherworks/voucher-service/internal/model"
	"github.com/voucherworks/voucher-service/pkg/database"
)

// RedemptionPoolInterface defines the database operations needed by
// RedemptionRepository outside a transaction.
type RedemptionPoolInterface interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// RedemptionRepository provides data access for the append-only redemption
// ledger using pgx.
type RedemptionRepository struct {
	pool RedemptionPoolInterface
}

// NewRedemptionRepository creates a new RedemptionRepository with the given pool.
func NewRedemptionRepository(pool *pgxpool.Pool) *RedemptionRepository {
	return &RedemptionRepository{pool: pool}
}

// NewRedemptionRepositoryWithPool creates a new RedemptionRepository with a
// custom pool interface. This is primarily used for testing.
func NewRedemptionRepositoryWithPool(pool RedemptionPoolInterface) *RedemptionRepository {
	return &RedemptionRepository{pool: pool}
}

// Insert appends a redemption row within the caller's transaction and fills
// in the generated id and created_at.
func (r *RedemptionRepository) Insert(ctx context.Context, tx database.TxQuerier, red *model.Redemption) error {
	query := `INSERT INTO voucher_redemptions
		(voucher_id, customer_id, discount_amount, metadata, redeemed_at)
		VALUES ($1, $2, $3, NULLIF($4, '')::jsonb, $5)
		RETURNING id, created_at`

	err := tx.QueryRow(ctx, query,
		red.VoucherID, red.CustomerID, red.DiscountAmount, string(red.Metadata), red.RedeemedAt,
	).Scan(&red.ID, &red.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert redemption: %w", err)
	}
	return nil
}

// CountInWindow counts redemptions of a voucher with redeemed_at in
// [start, end). Pass the redemption transaction as q so the count reflects
// rows the lock holder is about to commit; pass the pool for read-only calls.
func (r *RedemptionRepository) CountInWindow(ctx context.Context, q database.TxQuerier, voucherID uuid.UUID, start, end time.Time) (int, error) {
	query := `SELECT COUNT(*) FROM voucher_redemptions
		WHERE voucher_id = $1 AND redeemed_at >= $2 AND redeemed_at < $3`

	var count int
	if err := q.QueryRow(ctx, query, voucherID, start, end).Scan(&count); err != nil {
		return 0, fmt.Errorf("count redemptions in window: %w", err)
	}
	return count, nil
}

// List returns a page of redemption records joined with voucher identity,
// most recent first, plus the total match count.
func (r *RedemptionRepository) List(ctx context.Context, filter model.RedemptionFilter, limit, offset int) ([]model.RedemptionRecord, int, error) {
	where := ``
	args := []any{}
	if filter.VoucherID != nil {
		args = append(args, *filter.VoucherID)
		where += fmt.Sprintf(` AND r.voucher_id = $%d`, len(args))
	}
	if filter.CustomerID != nil {
		args = append(args, *filter.CustomerID)
		where += fmt.Sprintf(` AND r.customer_id = $%d`, len(args))
	}

	countQuery := `SELECT COUNT(*) FROM voucher_redemptions r WHERE 1=1` + where
	var total int
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count redemptions: %w", err)
	}

	listQuery := `SELECT r.id, r.voucher_id, r.customer_id, r.discount_amount,
		r.metadata, r.redeemed_at, r.created_at, v.code, v.name
		FROM voucher_redemptions r
		JOIN vouchers v ON v.id = r.voucher_id
		WHERE 1=1` + where +
		fmt.Sprintf(` ORDER BY r.redeemed_at DESC LIMIT %d OFFSET %d`, limit, offset)

	rows, err := r.pool.Query(ctx, listQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list redemptions: %w", err)
	}
	defer rows.Close()

	records := []model.RedemptionRecord{}
	for rows.Next() {
		var rec model.RedemptionRecord
		var meta []byte
		err := rows.Scan(
			&rec.ID,
			&rec.VoucherID,
			&rec.CustomerID,
			&rec.DiscountAmount,
			&meta,
			&rec.RedeemedAt,
			&rec.CreatedAt,
			&rec.VoucherCode,
			&rec.VoucherName,
		)
		if err != nil {
			return nil, 0, fmt.Errorf("scan redemption row: %w", err)
		}
		rec.Metadata = meta
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate redemption rows: %w", err)
	}

	return records, total, nil
}
