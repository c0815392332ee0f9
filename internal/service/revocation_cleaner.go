package service

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shelfmark/backend/internal/config"
	"github.com/shelfmark/backend/internal/metrics"
)

type RevocationPurger interface {
	DeleteExpiredRevocations(ctx context.Context, now time.Time) (int64, error)
}

// RevocationCleaner drops ledger entries whose token would be rejected as
// expired anyway.
type RevocationCleaner struct {
	store    RevocationPurger
	interval time.Duration
	metrics  metrics.Recorder
	now      func() time.Time
}

func NewRevocationCleaner(store RevocationPurger, cfg config.AuthConfig, rec metrics.Recorder) (*RevocationCleaner, error) {
	interval := time.Hour
	if cfg.RevocationCleanupInterval != "" {
		parsed, err := time.ParseDuration(cfg.RevocationCleanupInterval)
		if err != nil || parsed <= 0 {
			return nil, fmt.Errorf("%w: invalid AUTH_REVOCATION_CLEANUP_INTERVAL", ErrMisconfigured)
		}
		interval = parsed
	}
	if rec == nil {
		rec = metrics.Nop{}
	}
	return &RevocationCleaner{
		store:    store,
		interval: interval,
		metrics:  rec,
		now:      time.Now,
	}, nil
}

func (c *RevocationCleaner) RunOnce(ctx context.Context) (int64, error) {
	purged, err := c.store.DeleteExpiredRevocations(ctx, c.now())
	if err != nil {
		return 0, storageError(err)
	}
	c.metrics.RecordRevocationsPurged(purged)
	return purged, nil
}

// Run purges once immediately and then on every tick until ctx is done.
func (c *RevocationCleaner) Run(ctx context.Context) {
	logger := log.Ctx(ctx).With().Str("job", "revocation_cleanup").Logger()
	logger.Info().Dur("interval", c.interval).Msg("revocation cleanup started")

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		if purged, err := c.RunOnce(ctx); err != nil {
			logger.Error().Err(err).Msg("revocation cleanup failed")
		} else if purged > 0 {
			logger.Info().Int64("purged", purged).Msg("expired revocations purged")
		}

		select {
		case <-ctx.Done():
			logger.Info().Msg("revocation cleanup stopped")
			return
		case <-ticker.C:
		}
	}
}
