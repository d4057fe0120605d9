package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"chatrelay-backend/internal/models"
)

// RedisIndexCache keeps a JSON copy of each user's chat index.
type RedisIndexCache struct {
	redis *redis.Client
	ttl   time.Duration
}

func NewRedisIndexCache(redisClient *redis.Client, ttl time.Duration) *RedisIndexCache {
	return &RedisIndexCache{redis: redisClient, ttl: ttl}
}

func indexCacheKey(userID string) string {
	return fmt.Sprintf("chat_index:%s", userID)
}

func (c *RedisIndexCache) Get(ctx context.Context, userID string) (*models.ChatIndex, bool) {
	data, err := c.redis.Get(ctx, indexCacheKey(userID)).Bytes()
	if err != nil {
		if err != redis.Nil {
			log.Warn().Err(err).Str("user_id", userID).Msg("chat index cache read failed")
		}
		return nil, false
	}

	var ix models.ChatIndex
	if err := json.Unmarshal(data, &ix); err != nil {
		log.Warn().Err(err).Str("user_id", userID).Msg("dropping malformed chat index cache entry")
		c.Invalidate(ctx, userID)
		return nil, false
	}
	return &ix, true
}

func (c *RedisIndexCache) Set(ctx context.Context, ix *models.ChatIndex) {
	data, err := json.Marshal(ix)
	if err != nil {
		return
	}
	if err := c.redis.Set(ctx, indexCacheKey(ix.UserID), data, c.ttl).Err(); err != nil {
		log.Warn().Err(err).Str("user_id", ix.UserID).Msg("chat index cache write failed")
	}
}

func (c *RedisIndexCache) Invalidate(ctx context.Context, userID string) {
	if err := c.redis.Del(ctx, indexCacheKey(userID)).Err(); err != nil {
		log.Warn().Err(err).Str("user_id", userID).Msg("chat index cache invalidation failed")
	}
}
