//go:build integration

package integration

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

func RedisOpen(t *testing.T, addr string) *redis.Client {
	t.Helper()
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		t.Fatalf("[redis] ping: %v", err)
	}
	return rdb
}

func BanSetSize(t *testing.T, rdb *redis.Client, set string) int64 {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	n, err := rdb.SCard(ctx, set).Result()
	if err != nil {
		t.Fatalf("[redis] scard %s: %v", set, err)
	}
	return n
}

// ResetPolicy drops a policy's ban set and every counter under prefix.
func ResetPolicy(t *testing.T, rdb *redis.Client, banSet, prefix string) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	keys, err := rdb.Keys(ctx, prefix+"*").Result()
	if err != nil {
		t.Logf("[redis] keys %s*: %v", prefix, err)
	}
	if err := rdb.Del(ctx, append(keys, banSet)...).Err(); err != nil {
		t.Logf("[redis] reset %s: %v", banSet, err)
	}
}
