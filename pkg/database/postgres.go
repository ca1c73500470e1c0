package database

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

// TxQuerier is implemented by both pgxpool.Pool and pgx.Tx.
// Repository methods that must run inside a caller-supplied transaction
// accept a TxQuerier instead of the pool.
type TxQuerier interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// NewPool creates a PostgreSQL connection pool, retrying with exponential
// backoff up to maxRetries additional attempts before giving up.
func NewPool(ctx context.Context, dsn string, maxRetries uint64) (*pgxpool.Pool, error) {
	var pool *pgxpool.Pool
	attempt := 0

	connect := func() error {
		attempt++
		p, err := pgxpool.New(ctx, dsn)
		if err == nil {
			pingErr := p.Ping(ctx)
			if pingErr == nil {
				pool = p
				return nil
			}
			p.Close()
			err = fmt.Errorf("ping failed: %w", pingErr)
		}
		log.Warn().
			Err(err).
			Int("attempt", attempt).
			Msg("database connection failed, retrying")
		return err
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = time.Second
	policy.MaxInterval = 16 * time.Second

	err := backoff.Retry(connect, backoff.WithContext(backoff.WithMaxRetries(policy, maxRetries), ctx))
	if err != nil {
		return nil, fmt.Errorf("failed to connect after %d attempts: %w", attempt, err)
	}

	log.Info().Msg("database connection established")
	return pool, nil
}
