package redis

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/NordCoder/KUSeek/internal/domain"
	"github.com/NordCoder/KUSeek/internal/domain/ratelimit"
	"github.com/redis/go-redis/v9"
)

var _ ratelimit.CounterStore = (*CounterStore)(nil)

// incrWindow bumps the counter and arms its expiry on the first hit of a
// window, as one atomic step.
var incrWindow = redis.NewScript(`
local n = redis.call('INCR', KEYS[1])
if n == 1 then
  redis.call('PEXPIRE', KEYS[1], ARGV[1])
end
return n
`)

type CounterStore struct {
	rdb       redis.UniversalClient
	opTimeout time.Duration
}

func NewCounterStore(rdb redis.UniversalClient, opTimeout time.Duration) *CounterStore {
	return &CounterStore{rdb: rdb, opTimeout: opTimeout}
}

func (s *CounterStore) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.opTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.opTimeout)
}

func (s *CounterStore) IncrWindow(ctx context.Context, key string, window time.Duration) (int64, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	n, err := incrWindow.Run(ctx, s.rdb, []string{key}, window.Milliseconds()).Int64()
	if err != nil {
		return 0, storeErr("incr", key, err)
	}
	return n, nil
}

func (s *CounterStore) AddMember(ctx context.Context, set, member string) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	if err := s.rdb.SAdd(ctx, set, member).Err(); err != nil {
		return storeErr("sadd", set, err)
	}
	return nil
}

func (s *CounterStore) RemoveMember(ctx context.Context, set, member string) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	if err := s.rdb.SRem(ctx, set, member).Err(); err != nil {
		return storeErr("srem", set, err)
	}
	return nil
}

func (s *CounterStore) IsMember(ctx context.Context, set, member string) (bool, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	ok, err := s.rdb.SIsMember(ctx, set, member).Result()
	if err != nil {
		return false, storeErr("sismember", set, err)
	}
	return ok, nil
}

func (s *CounterStore) Ping(ctx context.Context) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	if err := s.rdb.Ping(ctx).Err(); err != nil {
		return storeErr("ping", "", err)
	}
	return nil
}

func storeErr(op, key string, err error) error {
	if notDelivered(err) {
		return fmt.Errorf("redis %s %s: %w: %w: %w", op, key, domain.ErrUnavailable, domain.ErrNotDelivered, err)
	}
	return fmt.Errorf("redis %s %s: %w: %w", op, key, domain.ErrUnavailable, err)
}

// notDelivered reports failures that happen before a command is written:
// a closed client or a connection that could not be dialed. Anything later
// (timeouts, resets) may have reached the server.
func notDelivered(err error) bool {
	if errors.Is(err, redis.ErrClosed) {
		return true
	}
	var op *net.OpError
	return errors.As(err, &op) && op.Op == "dial"
}
