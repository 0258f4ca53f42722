package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/miskyy7507/vibezone/internal/cache"
	"github.com/miskyy7507/vibezone/internal/config"
	"github.com/miskyy7507/vibezone/internal/database"
	"github.com/miskyy7507/vibezone/internal/handlers"
	"github.com/miskyy7507/vibezone/internal/jobs"
	"github.com/miskyy7507/vibezone/internal/log"
	"github.com/miskyy7507/vibezone/internal/queue"
	"github.com/miskyy7507/vibezone/internal/repository"
	"github.com/miskyy7507/vibezone/internal/server"
	"github.com/miskyy7507/vibezone/internal/service"
	"github.com/miskyy7507/vibezone/internal/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := log.New(cfg.Environment, cfg.Logging.Level)

	ctx := context.Background()

	dbPool, err := database.NewPostgresPool(ctx, cfg.Postgres)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect postgres")
	}
	if err := database.EnsureSchema(ctx, dbPool); err != nil {
		logger.Fatal().Err(err).Msg("failed to migrate postgres")
	}

	mongoClient, err := database.NewMongoClient(ctx, cfg.Mongo)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect mongo")
	}
	mongoDB := mongoClient.Database(cfg.Mongo.Database)
	if err := repository.EnsureIndexes(ctx, mongoDB); err != nil {
		logger.Fatal().Err(err).Msg("failed to create mongo indexes")
	}

	redisClient, err := cache.NewRedisClient(ctx, cfg.Redis)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect redis")
	}

	objectStore, err := storage.NewObjectStore(cfg.Storage)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to init object store")
	}
	if err := objectStore.EnsureBucket(ctx); err != nil {
		logger.Warn().Err(err).Msg("ensure bucket failed")
	}

	repos := repository.NewRepositories(dbPool, mongoDB, redisClient)
	publisher := queue.NewPublisher(redisClient, cfg.Worker.Stream)

	uploads := service.NewUploadService(objectStore, cfg.Uploads.MaxBytes, logger)
	posts := service.NewPostService(repos, uploads, logger)
	comments := service.NewCommentService(repos, logger)
	auth := service.NewAuthService(repos.Users, repos.Profiles, repos.Sessions, cfg.Security, logger)
	if err := auth.PromoteModerators(ctx); err != nil {
		logger.Error().Err(err).Msg("moderator provisioning failed")
	}
	services := handlers.Services{
		Auth:       auth,
		Posts:      posts,
		Comments:   comments,
		Profiles:   service.NewProfileService(repos.Profiles, uploads, logger),
		Moderation: service.NewModerationService(repos, posts, comments, uploads, publisher, logger),
		Uploads:    uploads,
	}

	checks := []handlers.HealthCheck{
		{Name: "postgres", Ping: dbPool.Ping},
		{Name: "mongo", Ping: func(ctx context.Context) error { return mongoClient.Ping(ctx, readpref.Primary()) }},
		{Name: "redis", Ping: func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }},
		{Name: "storage", Ping: objectStore.Ping},
	}

	handlerSet := handlers.NewHandlerSet(logger, cfg, services, checks)
	httpServer := server.NewHTTPServer(cfg, logger, handlerSet)

	scheduler := jobs.NewScheduler(publisher, cfg.Jobs, logger)
	if err := scheduler.Start(); err != nil {
		logger.Error().Err(err).Msg("scheduler start failed")
	}

	go func() {
		if err := httpServer.Start(); err != nil {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	waitForShutdown(logger, httpServer, scheduler, dbPool, mongoClient, redisClient)
}

func waitForShutdown(logger zerolog.Logger, srv *server.HTTPServer, scheduler *jobs.Scheduler, db *pgxpool.Pool, mongoClient *mongo.Client, redisClient *redis.Client) {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()
	logger.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
		if err := srv.Shutdown(context.Background()); err != nil {
			logger.Error().Err(err).Msg("forced shutdown failed")
		}
	}

	scheduler.Stop()

	db.Close()
	if err := mongoClient.Disconnect(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("mongo disconnect error")
	}
	if err := redisClient.Close(); err != nil {
		logger.Error().Err(err).Msg("redis close error")
	}

	logger.Info().Msg("server exited cleanly")
}
