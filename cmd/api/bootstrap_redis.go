package main

import (
	"context"

	config "github.com/NordCoder/KUSeek/internal/config/api"
	redisrepo "github.com/NordCoder/KUSeek/internal/repository/redis"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func initRedis(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*redis.Client, error) {
	rdb, err := redisrepo.NewClient(ctx, cfg.Redis)
	if err != nil {
		return nil, err
	}
	logger.Info("redis connected", zap.String("addr", cfg.Redis.Addr), zap.Int("pool_size", cfg.Redis.PoolSize))
	return rdb, nil
}
