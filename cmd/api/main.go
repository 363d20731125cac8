package main

import (
	"context"
	"log"
	"time"

	"filepulse/config"
	"filepulse/internal/domain/file"
	"filepulse/internal/domain/job"
	"filepulse/internal/handler"
	"filepulse/internal/queue"
	filepulse_redis "filepulse/internal/redis"
	"filepulse/internal/repository"
	"filepulse/internal/server"
	"filepulse/internal/services"
	"filepulse/internal/storage"
	"filepulse/pkg/database"
	"filepulse/pkg/logger"

	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()
	cfg := config.LoadConfig()

	mode := logger.DevelopmentMode
	if cfg.AppMode == server.ReleaseMode {
		mode = logger.ProductionMode
	}
	l := logger.New(mode)
	logger.SetGlobalLogger(l)

	// Connect to Database
	database.Connect(cfg)
	if err := database.DB.AutoMigrate(
		&file.FileRecord{},
		&job.Job{},
	); err != nil {
		log.Fatalf("Failed to apply migrations: %v", err)
	}

	filepulse_redis.Initialize(filepulse_redis.Config{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	redisClient := filepulse_redis.GetClient()

	store, err := storage.New(context.Background(), cfg)
	if err != nil {
		log.Fatalf("Failed to initialize storage: %v", err)
	}

	fileRepo := repository.NewFileRepository(database.DB)
	jobRepo := repository.NewJobRepository(database.DB)

	progressStore := filepulse_redis.NewProgressStore(redisClient, time.Duration(cfg.ProgressTTLHours)*time.Hour)
	publisher := filepulse_redis.NewPublisher(redisClient)
	parseQueue := queue.New(jobRepo)

	authService := services.NewAuthService(cfg)
	ingestService := services.NewIngestService(fileRepo, progressStore, publisher, store, parseQueue, l,
		cfg.ParseMaxAttempts, time.Duration(cfg.ParseBackoffBaseMs)*time.Millisecond)
	progressService := services.NewProgressService(fileRepo, progressStore, time.Duration(cfg.StreamIntervalMs)*time.Millisecond)
	fileService := services.NewFileService(fileRepo, progressStore, store, l)

	srv := server.New(cfg, l)
	srv.SetupRoutes(&server.Handlers{
		Auth:  handler.NewAuthHandler(authService),
		Files: handler.NewFileHandler(ingestService, progressService, fileService),
	}, authService)

	if err := srv.Start(); err != nil {
		log.Fatalf("Server exited with error: %v", err)
	}
}
