package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"messenger/internal/domain"
)

const profileKeyPrefix = "messenger:profile:"

// NewRedisClient connects to redis and verifies the connection.
func NewRedisClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return rdb, nil
}

// RedisProfileCache stores profiles as JSON with a fixed TTL.
type RedisProfileCache struct {
	rdb    *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

func NewRedisProfileCache(rdb *redis.Client, ttl time.Duration, logger *zap.Logger) *RedisProfileCache {
	return &RedisProfileCache{rdb: rdb, ttl: ttl, logger: logger}
}

var _ ProfileCache = (*RedisProfileCache)(nil)

func profileKey(userID int64) string {
	return fmt.Sprintf("%s%d", profileKeyPrefix, userID)
}

func (c *RedisProfileCache) Get(ctx context.Context, userID int64) (*domain.User, bool) {
	raw, err := c.rdb.Get(ctx, profileKey(userID)).Bytes()
	if err == redis.Nil {
		return nil, false
	}
	if err != nil {
		c.logger.Warn("profile cache get", zap.Int64("user_id", userID), zap.Error(err))
		return nil, false
	}
	var u domain.User
	if err := json.Unmarshal(raw, &u); err != nil {
		c.logger.Warn("profile cache decode", zap.Int64("user_id", userID), zap.Error(err))
		return nil, false
	}
	return &u, true
}

func (c *RedisProfileCache) Set(ctx context.Context, u *domain.User) {
	raw, err := json.Marshal(u)
	if err != nil {
		c.logger.Warn("profile cache encode", zap.Int64("user_id", u.ID), zap.Error(err))
		return
	}
	if err := c.rdb.Set(ctx, profileKey(u.ID), raw, c.ttl).Err(); err != nil {
		c.logger.Warn("profile cache set", zap.Int64("user_id", u.ID), zap.Error(err))
	}
}

func (c *RedisProfileCache) Invalidate(ctx context.Context, userID int64) {
	if err := c.rdb.Del(ctx, profileKey(userID)).Err(); err != nil {
		c.logger.Warn("profile cache invalidate", zap.Int64("user_id", userID), zap.Error(err))
	}
}
