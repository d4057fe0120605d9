package main

import (
	"context"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"chatrelay-backend/internal/config"
	"chatrelay-backend/internal/database"
	"chatrelay-backend/internal/repository"
	"chatrelay-backend/internal/services"
)

type chatStores struct {
	transcripts services.TranscriptStore
	index       services.ChatIndexStore
	close       func()
}

// openStores connects the store selected by STORE_DRIVER. Postgres runs
// pending migrations on startup.
func openStores(ctx context.Context, cfg *config.Config) (*chatStores, error) {
	switch cfg.StoreDriver {
	case "postgres":
		pool, err := database.NewPostgresPool(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		if err := database.RunMigrations(ctx, pool, cfg.MigrationsDir); err != nil {
			pool.Close()
			return nil, err
		}
		return &chatStores{
			transcripts: repository.NewTranscriptRepo(pool),
			index:       repository.NewChatIndexRepo(pool),
			close:       pool.Close,
		}, nil

	case "mongo":
		client, err := database.NewMongoClient(ctx, cfg.MongoURL)
		if err != nil {
			return nil, err
		}
		db := client.Database(cfg.MongoDatabase)
		transcripts := repository.NewMongoTranscriptRepo(db)
		if err := transcripts.EnsureIndexes(ctx); err != nil {
			client.Disconnect(context.Background())
			return nil, errors.Wrap(err, "failed to create mongo indexes")
		}
		return &chatStores{
			transcripts: transcripts,
			index:       repository.NewMongoChatIndexRepo(db),
			close: func() {
				if err := client.Disconnect(context.Background()); err != nil {
					log.Warn().Err(err).Msg("mongo disconnect failed")
				}
			},
		}, nil

	case "memory":
		store := repository.NewMemoryStore()
		return &chatStores{transcripts: store, index: store, close: func() {}}, nil

	default:
		return nil, errors.Errorf("unsupported store driver %q", cfg.StoreDriver)
	}
}
