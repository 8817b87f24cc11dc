package database

import (
	"context"
	"fmt"

	"github.com/invigo/invigo-backend/internal/config"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// NewRedisClient connects to Redis and verifies the connection. Redis carries
// the login registry, the hot exam caches and the monitor relay channel.
func NewRedisClient(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*redis.Client, error) {
	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}

	rdb := redis.NewClient(opt)
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	log.Info().Str("addr", opt.Addr).Int("db", opt.DB).Msg("Redis connected")
	return rdb, nil
}
