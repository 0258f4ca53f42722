package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"github.com/miskyy7507/vibezone/internal/cache"
	"github.com/miskyy7507/vibezone/internal/config"
	"github.com/miskyy7507/vibezone/internal/database"
	"github.com/miskyy7507/vibezone/internal/log"
	"github.com/miskyy7507/vibezone/internal/queue"
	"github.com/miskyy7507/vibezone/internal/repository"
	"github.com/miskyy7507/vibezone/internal/service"
	"github.com/miskyy7507/vibezone/internal/storage"
	"github.com/miskyy7507/vibezone/internal/tasks"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := log.New(cfg.Environment, cfg.Logging.Level).With().Str("component", "worker").Logger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	dbPool, err := database.NewPostgresPool(ctx, cfg.Postgres)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect postgres")
	}
	defer dbPool.Close()

	mongoClient, err := database.NewMongoClient(ctx, cfg.Mongo)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect mongo")
	}
	defer mongoClient.Disconnect(context.Background())

	client, err := cache.NewRedisClient(ctx, cfg.Redis)
	if err != nil {
		logger.Fatal().Err(err).Msg("redis connection failed")
	}
	defer client.Close()

	objectStore, err := storage.NewObjectStore(cfg.Storage)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to init object store")
	}

	repos := repository.NewRepositories(dbPool, mongoClient.Database(cfg.Mongo.Database), client)
	maintenance := service.NewMaintenanceService(repos, objectStore, cfg.Uploads.OrphanGrace, logger)

	processor := tasks.NewProcessor(maintenance, logger)
	consumer := queue.NewConsumer(client, queue.ConsumerConfig{
		Stream:        cfg.Worker.Stream,
		Group:         cfg.Worker.Group,
		Consumer:      cfg.Worker.Consumer,
		ClaimInterval: cfg.Worker.ClaimInterval,
		MinIdle:       cfg.Worker.MinIdle,
		Block:         5 * time.Second,
	}, logger, processor)

	go func() {
		if err := consumer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Fatal().Err(err).Msg("consumer stopped unexpectedly")
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("shutdown signal received")
	time.Sleep(500 * time.Millisecond)
}
