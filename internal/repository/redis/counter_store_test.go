package redis

import (
	"context"
	"testing"
	"time"

	"github.com/NordCoder/KUSeek/internal/domain"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T) (*CounterStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewCounterStore(rdb, time.Second), mr
}

func TestIncrWindow_SetsExpiryOnFirstHitOnly(t *testing.T) {
	s, mr := newStore(t)
	ctx := context.Background()

	n, err := s.IncrWindow(ctx, "request:u1", 10*time.Second)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.Equal(t, 10*time.Second, mr.TTL("request:u1"))

	mr.FastForward(4 * time.Second)
	n, err = s.IncrWindow(ctx, "request:u1", 10*time.Second)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.Equal(t, 6*time.Second, mr.TTL("request:u1"))

	mr.FastForward(7 * time.Second)
	assert.False(t, mr.Exists("request:u1"))

	n, err = s.IncrWindow(ctx, "request:u1", 10*time.Second)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestMembership(t *testing.T) {
	s, _ := newStore(t)
	ctx := context.Background()

	ok, err := s.IsMember(ctx, "blacklist", "u1")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.AddMember(ctx, "blacklist", "u1"))
	require.NoError(t, s.AddMember(ctx, "blacklist", "u1"))
	ok, err = s.IsMember(ctx, "blacklist", "u1")
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, s.RemoveMember(ctx, "blacklist", "u1"))
	require.NoError(t, s.RemoveMember(ctx, "blacklist", "u1"))
	ok, err = s.IsMember(ctx, "blacklist", "u1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStoreDown_IsUnavailable(t *testing.T) {
	s, mr := newStore(t)
	mr.Close()
	ctx := context.Background()

	_, err := s.IncrWindow(ctx, "k", time.Second)
	assert.ErrorIs(t, err, domain.ErrUnavailable)
	_, err = s.IsMember(ctx, "blacklist", "u1")
	assert.ErrorIs(t, err, domain.ErrUnavailable)
	assert.ErrorIs(t, s.AddMember(ctx, "blacklist", "u1"), domain.ErrUnavailable)
	assert.ErrorIs(t, s.Ping(ctx), domain.ErrUnavailable)
}

func TestStoreErrors_MarkUndeliveredCommands(t *testing.T) {
	ctx := context.Background()

	t.Run("closed client", func(t *testing.T) {
		mr := miniredis.RunT(t)
		rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		s := NewCounterStore(rdb, time.Second)
		require.NoError(t, rdb.Close())

		_, err := s.IncrWindow(ctx, "k", time.Second)
		assert.ErrorIs(t, err, domain.ErrUnavailable)
		assert.ErrorIs(t, err, domain.ErrNotDelivered)
	})

	t.Run("nothing listening", func(t *testing.T) {
		mr := miniredis.RunT(t)
		addr := mr.Addr()
		mr.Close()
		rdb := redis.NewClient(&redis.Options{Addr: addr, MaxRetries: -1})
		t.Cleanup(func() { _ = rdb.Close() })
		s := NewCounterStore(rdb, time.Second)

		_, err := s.IncrWindow(ctx, "k", time.Second)
		assert.ErrorIs(t, err, domain.ErrNotDelivered)
	})

	t.Run("server error", func(t *testing.T) {
		s, mr := newStore(t)
		mr.SetError("ERR boom")

		_, err := s.IncrWindow(ctx, "k", time.Second)
		assert.ErrorIs(t, err, domain.ErrUnavailable)
		assert.NotErrorIs(t, err, domain.ErrNotDelivered)
	})
}
