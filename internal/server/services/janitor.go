package services

import (
	"context"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/logging"
	"github.com/dmitrijs2005/gophauth/internal/server/repositories/refreshtokens"
)

// TokenJanitor periodically deletes expired refresh tokens.
type TokenJanitor struct {
	tokens   refreshtokens.Repository
	interval time.Duration
	now      func() time.Time
	log      logging.Logger
}

func NewTokenJanitor(tokens refreshtokens.Repository, interval time.Duration, log logging.Logger) *TokenJanitor {
	return &TokenJanitor{
		tokens:   tokens,
		interval: interval,
		now:      time.Now,
		log:      log.With("module", "token_janitor"),
	}
}

// Sweep runs one pass and returns the number of deleted records.
func (j *TokenJanitor) Sweep(ctx context.Context) (int, error) {
	n, err := j.tokens.SweepExpired(ctx, j.now())
	if err != nil {
		j.log.Error(ctx, "sweep expired refresh tokens", "error", err)
		return 0, err
	}
	if n > 0 {
		j.log.Info(ctx, "expired refresh tokens swept", "count", n)
	}
	return n, nil
}

// Run sweeps every interval until ctx is done.
func (j *TokenJanitor) Run(ctx context.Context) error {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			_, _ = j.Sweep(ctx)
		}
	}
}
