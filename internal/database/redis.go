package database

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

// RedisClients holds one client for commands and a separate one for pub/sub
// subscriptions, which pin their connection.
type RedisClients struct {
	Cache  *redis.Client
	PubSub *redis.Client
}

func NewRedisClients(ctx context.Context, redisURL string) (*RedisClients, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse Redis URL")
	}

	cacheOpt, pubsubOpt := *opt, *opt
	cacheOpt.ClientName = "chatrelay-cache"
	pubsubOpt.ClientName = "chatrelay-pubsub"

	clients := &RedisClients{
		Cache:  redis.NewClient(&cacheOpt),
		PubSub: redis.NewClient(&pubsubOpt),
	}

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := clients.Ping(pingCtx); err != nil {
		clients.Close()
		return nil, err
	}
	return clients, nil
}

func (r *RedisClients) Ping(ctx context.Context) error {
	if err := r.Cache.Ping(ctx).Err(); err != nil {
		return errors.Wrap(err, "failed to ping Redis (cache)")
	}
	if err := r.PubSub.Ping(ctx).Err(); err != nil {
		return errors.Wrap(err, "failed to ping Redis (pubsub)")
	}
	return nil
}

// Close closes both clients and returns the first error.
func (r *RedisClients) Close() error {
	cacheErr := r.Cache.Close()
	pubsubErr := r.PubSub.Close()
	if cacheErr != nil {
		return errors.Wrap(cacheErr, "failed to close Redis cache client")
	}
	return errors.Wrap(pubsubErr, "failed to close Redis pubsub client")
}
