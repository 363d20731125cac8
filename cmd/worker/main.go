package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"filepulse/config"
	"filepulse/internal/domain/file"
	"filepulse/internal/domain/job"
	"filepulse/internal/queue"
	filepulse_redis "filepulse/internal/redis"
	"filepulse/internal/repository"
	"filepulse/internal/server"
	"filepulse/internal/storage"
	"filepulse/internal/worker"
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

	w := worker.New(fileRepo, progressStore, publisher, store, l)
	consumer := queue.NewConsumer(jobRepo, queue.JobTypeParse, w.HandleParseJob, l,
		time.Duration(cfg.QueuePollMs)*time.Millisecond, cfg.WorkerConcurrency)

	ctx, cancel := context.WithCancel(context.Background())

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGTERM, syscall.SIGINT)
	go func() {
		<-quit
		l.Infof("Quitting signal received.. draining in-flight jobs")
		cancel()
	}()

	l.Infof("Worker consuming %s jobs with concurrency %d", queue.JobTypeParse, cfg.WorkerConcurrency)
	consumer.Run(ctx)
	l.Infof("Worker stopped gracefully")
}
