package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/voucherworks/voucher-service/internal/model"
)

// TokenPoolInterface defines the database operations needed by TokenRepository.
type TokenPoolInterface interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// TokenRepository provides data access for API tokens using pgx.
type TokenRepository struct {
	pool TokenPoolInterface
}

// NewTokenRepository creates a new TokenRepository with the given pool.
func NewTokenRepository(pool *pgxpool.Pool) *TokenRepository {
	return &TokenRepository{pool: pool}
}

// NewTokenRepositoryWithPool creates a new TokenRepository with a custom pool
// interface. This is primarily used for testing.
func NewTokenRepositoryWithPool(pool TokenPoolInterface) *TokenRepository {
	return &TokenRepository{pool: pool}
}

// FindActive looks up an active token record by its opaque value.
// Returns nil, nil when no active token matches (caller decides the outcome).
func (r *TokenRepository) FindActive(ctx context.Context, token string) (*model.APIToken, error) {
	query := `SELECT id, token, name, is_active, expires_at, last_used_at, created_at
		FROM api_tokens WHERE token = $1 AND is_active = TRUE`

	var t model.APIToken
	err := r.pool.QueryRow(ctx, query, token).Scan(
		&t.ID,
		&t.Token,
		&t.Name,
		&t.IsActive,
		&t.ExpiresAt,
		&t.LastUsedAt,
		&t.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("find api token: %w", err)
	}
	return &t, nil
}

// TouchLastUsed records that the token was just used. Best-effort bookkeeping;
// callers may log and continue on failure.
func (r *TokenRepository) TouchLastUsed(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `UPDATE api_tokens SET last_used_at = now() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("touch api token %s: %w", id, err)
	}
	return nil
}
