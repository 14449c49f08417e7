package ledger

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/pario-ai/promptgate/pkg/store"
)

// Retention periodically deletes ledger rows older than a fixed age.
type Retention struct {
	store    store.LedgerReader
	maxAge   time.Duration
	interval time.Duration
	now      func() time.Time
	log      zerolog.Logger
}

// NewRetention returns nil when days is not positive.
func NewRetention(s store.LedgerReader, days int, log zerolog.Logger) *Retention {
	if days <= 0 {
		return nil
	}
	return &Retention{
		store:    s,
		maxAge:   time.Duration(days) * 24 * time.Hour,
		interval: time.Hour,
		now:      time.Now,
		log:      log.With().Str("component", "retention").Logger(),
	}
}

// Sweep deletes expired rows once.
func (r *Retention) Sweep(ctx context.Context) (int64, error) {
	cutoff := r.now().Add(-r.maxAge)
	n, err := r.store.Cleanup(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		r.log.Info().Int64("deleted", n).Time("cutoff", cutoff).Msg("ledger retention sweep")
	}
	return n, nil
}

// Run sweeps every interval until ctx is done.
func (r *Retention) Run(ctx context.Context) {
	if r == nil {
		return
	}
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := r.Sweep(ctx); err != nil {
				r.log.Warn().Err(err).Msg("ledger retention sweep failed")
			}
		}
	}
}
