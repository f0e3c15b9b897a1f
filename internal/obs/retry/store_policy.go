package retry

import (
	"context"
	"errors"

	"github.com/NordCoder/KUSeek/internal/domain"
	"go.uber.org/zap"
)

// StorePolicy retries a counter store call once, immediately.
func StorePolicy(name string, log *zap.Logger) Policy {
	return Policy{
		Name:     name,
		Attempts: 2,
		Retryable: func(err error) bool {
			return err != nil && !errors.Is(err, context.Canceled)
		},
		OnAttempt: func(i int, err error) {
			if log != nil {
				log.Debug("store call failed", zap.String("policy", name), zap.Int("attempt", i+1), zap.Error(err))
			}
		},
	}
}

// StoreWritePolicy is StorePolicy for calls that are not idempotent: the
// retry happens only when the first attempt never reached the store.
func StoreWritePolicy(name string, log *zap.Logger) Policy {
	p := StorePolicy(name, log)
	p.Retryable = func(err error) bool {
		return errors.Is(err, domain.ErrNotDelivered)
	}
	return p
}
