package services

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"chatrelay-backend/internal/models"
)

// UpdatesChannel is the pub/sub channel carrying index events for a user.
func UpdatesChannel(userID string) string {
	return "chat_updates:" + userID
}

// RedisPublisher sends index events through Redis pub/sub so every websocket
// hub subscribed for the user receives them.
type RedisPublisher struct {
	redis *redis.Client
}

func NewRedisPublisher(redisClient *redis.Client) *RedisPublisher {
	return &RedisPublisher{redis: redisClient}
}

func (p *RedisPublisher) Publish(ctx context.Context, userID string, msg models.WSMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}
	if err := p.redis.Publish(ctx, UpdatesChannel(userID), string(data)).Err(); err != nil {
		log.Warn().Err(err).Str("user_id", userID).Str("type", msg.Type).Msg("failed to publish chat update")
	}
}
