package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"chatrelay-backend/internal/config"
	"chatrelay-backend/internal/database"
	"chatrelay-backend/internal/handlers"
	"chatrelay-backend/internal/router"
	"chatrelay-backend/internal/services"
	"chatrelay-backend/internal/websocket"
)

func serve(ctx context.Context, cfg *config.Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Info().Str("env", cfg.Env).Str("store", cfg.StoreDriver).Str("provider", cfg.GenerativeProvider).Msg("starting chat relay")

	// ──── Storage ────
	stores, err := openStores(ctx, cfg)
	if err != nil {
		return err
	}
	defer stores.close()
	log.Info().Str("driver", cfg.StoreDriver).Msg("chat store ready")

	// ──── Redis (optional) ────
	var (
		cache     services.IndexCache
		publisher services.EventPublisher
		pubsub    *redis.Client
	)
	if cfg.RedisURL != "" {
		redisClients, err := database.NewRedisClients(ctx, cfg.RedisURL)
		if err != nil {
			return err
		}
		defer redisClients.Close()
		cache = services.NewRedisIndexCache(redisClients.Cache, time.Duration(cfg.IndexCacheTTLSecs)*time.Second)
		publisher = services.NewRedisPublisher(redisClients.Cache)
		pubsub = redisClients.PubSub
		log.Info().Msg("redis connected, index cache and update feed enabled")
	} else {
		log.Info().Msg("REDIS_URL not set, index cache disabled, update feed is in-process")
	}

	// ──── Generative backend ────
	generator, closeGenerator, err := services.NewGenerator(services.GeneratorConfig{
		Provider:       cfg.GenerativeProvider,
		GeminiAPIKey:   cfg.GeminiAPIKey,
		GeminiModel:    cfg.GeminiModel,
		OpenAIAPIKey:   cfg.OpenAIAPIKey,
		OpenAIModel:    cfg.OpenAIModel,
		ConcurrentReqs: cfg.GeminiConcurrentReqs,
	})
	if err != nil {
		return errors.Wrap(err, "failed to initialize generative backend")
	}
	defer closeGenerator()

	// ──── Services & handlers ────
	wsHub := websocket.NewHub(pubsub)
	defer wsHub.Close()
	if publisher == nil {
		publisher = wsHub
	}

	chatService := services.NewChatService(stores.transcripts, stores.index, cache, publisher)
	relay := services.NewMessageRelay(generator, chatService)

	r := router.New(
		handlers.NewGenerateHandler(relay),
		handlers.NewChatHandler(chatService),
		wsHub,
		cfg.ClientURL,
		cfg.DefaultUserID,
	)

	// No WriteTimeout: replies are streamed for as long as the backend produces them.
	server := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Str("addr", server.Addr).Msg("chat relay ready")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return errors.Wrap(err, "server error")
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func migrate(ctx context.Context, cfg *config.Config) error {
	if cfg.DatabaseURL == "" {
		return errors.New("DATABASE_URL is required to run migrations")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	pool, err := database.NewPostgresPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer pool.Close()

	if err := database.RunMigrations(ctx, pool, cfg.MigrationsDir); err != nil {
		return err
	}
	log.Info().Str("dir", cfg.MigrationsDir).Msg("database migrations applied")
	return nil
}
