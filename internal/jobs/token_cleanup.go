package jobs

import (
	"context"
	"log/slog"
	"time"
)

// TokenCleanupSpec runs the cleanup once a day.
const TokenCleanupSpec = "@daily"

// TokenPurger deletes refresh tokens that expired before cutoff.
type TokenPurger interface {
	PurgeExpired(ctx context.Context, cutoff time.Time) (int64, error)
}

// TokenCleanupJob removes refresh tokens expired for longer than retention.
type TokenCleanupJob struct {
	tokens    TokenPurger
	retention time.Duration
	log       *slog.Logger
	now       func() time.Time
}

func NewTokenCleanupJob(tokens TokenPurger, retention time.Duration, log *slog.Logger) *TokenCleanupJob {
	return &TokenCleanupJob{tokens: tokens, retention: retention, log: log, now: time.Now}
}

func (j *TokenCleanupJob) Name() string { return "token-cleanup" }

func (j *TokenCleanupJob) Run(ctx context.Context) {
	runGuarded(j.log, j.Name(), func() {
		cutoff := j.now().UTC().Add(-j.retention)
		n, err := j.tokens.PurgeExpired(ctx, cutoff)
		if err != nil {
			j.log.Error("token cleanup failed", "err", err)
			return
		}
		j.log.Info("token cleanup completed", "purged", n, "cutoff", cutoff)
	})
}
