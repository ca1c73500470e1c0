// Package sweeper deactivates vouchers past their expiration date on a fixed
// interval. The sweep is advisory: redemption validation checks expiration on
// its own, so a late sweep never lets an expired voucher through.
package sweeper

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// VoucherDeactivator defines the store operation the sweeper needs.
type VoucherDeactivator interface {
	DeactivateExpired(ctx context.Context, now time.Time) (int64, error)
}

// Sweeper periodically flips expired vouchers inactive.
type Sweeper struct {
	vouchers VoucherDeactivator
	interval time.Duration
}

// New creates a Sweeper running at the given interval.
func New(vouchers VoucherDeactivator, interval time.Duration) *Sweeper {
	return &Sweeper{vouchers: vouchers, interval: interval}
}

// Run sweeps on every tick until the context is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	log.Info().Dur("interval", s.interval).Msg("expiry sweeper started")
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("expiry sweeper stopped")
			return
		case now := <-ticker.C:
			if _, err := s.Sweep(ctx, now); err != nil {
				log.Error().Err(err).Msg("expiry sweep failed")
			}
		}
	}
}

// Sweep deactivates all active vouchers whose expiration date is before now
// and returns how many were flipped. Idempotent.
func (s *Sweeper) Sweep(ctx context.Context, now time.Time) (int64, error) {
	count, err := s.vouchers.DeactivateExpired(ctx, now)
	if err != nil {
		return 0, err
	}
	if count > 0 {
		log.Info().Int64("deactivated", count).Msg("expired vouchers deactivated")
	}
	return count, nil
}
