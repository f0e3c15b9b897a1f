package main

import (
	"context"
	"time"

	"github.com/NordCoder/KUSeek/internal/obs"
	"go.uber.org/zap"
)

type sessionPruner interface {
	PruneExpired(ctx context.Context, before time.Time) (int64, error)
}

// pruneSessions deletes expired refresh sessions every interval until ctx
// is done.
func pruneSessions(ctx context.Context, repo sessionPruner, interval time.Duration, l *zap.Logger) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := repo.PruneExpired(ctx, time.Now().UTC())
			if err != nil {
				obs.WithTrace(ctx, l).Warn("session prune failed", zap.Error(err))
				continue
			}
			if n > 0 {
				l.Info("expired sessions pruned", zap.Int64("count", n))
			}
		}
	}
}
