package main

import (
	"context"
	"database/sql"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/quillboard/quillboard/internal/api"
	"github.com/quillboard/quillboard/internal/config"
	"github.com/quillboard/quillboard/internal/pkg/distlock"
	"github.com/quillboard/quillboard/internal/repository/postgres"
	"github.com/quillboard/quillboard/internal/service/spam"
	"github.com/quillboard/quillboard/internal/service/webhook"
	"github.com/quillboard/quillboard/internal/worker"

	_ "github.com/lib/pq"
)

func main() {
	log.Println("Starting Quillboard API server...")

	cfgPath := os.Getenv("CONFIG_PATH")
	cfg, err := config.LoadFromEnv(cfgPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if cfg.Database.URL == "" {
		log.Fatal("DATABASE_URL is required")
	}

	db, err := sql.Open("postgres", cfg.Database.URL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.Database.ConnMaxLifetime())

	pingCtx, cancelPing := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelPing()
	if err := db.PingContext(pingCtx); err != nil {
		log.Fatalf("Failed to ping database: %v", err)
	}
	log.Println("Connected to database")

	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := redisClient.Ping(pingCtx).Err(); err != nil {
			log.Printf("Redis unavailable (%v), falling back to PG advisory locks", err)
			redisClient = nil
		} else {
			log.Println("Connected to Redis")
		}
	}

	// Repositories
	moderationRepo := postgres.NewModerationRepo(db)
	webhookRepo := postgres.NewWebhookRepo(db)
	commentRepo := postgres.NewCommentRepo(db)

	// Core services
	spamSvc := spam.NewService(moderationRepo, cfg.Spam.Threshold)
	dispatcher := webhook.NewDispatcher(webhookRepo)
	defer dispatcher.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Retry reconciler resumes deliveries orphaned by restarts.
	lock := distlock.NewLock(redisClient, db, "webhook-reconciler", 2*worker.DefaultReconcileInterval)
	reconciler := worker.NewRetryReconcilerWithConfig(
		webhookRepo, dispatcher, lock,
		cfg.Webhooks.ReconcileInterval(), cfg.Webhooks.ReconcileBatch,
	)
	go reconciler.Start(ctx)

	handlers := api.NewHandlers(spamSvc, dispatcher, webhookRepo, commentRepo)
	server := api.NewServer(cfg.Server, handlers)

	errCh := make(chan error, 1)
	go func() {
		log.Printf("API server listening on %s", server.Addr())
		errCh <- server.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Printf("Received %s, shutting down...", sig)
	case err := <-errCh:
		log.Printf("Server error: %v", err)
	}

	cancel()
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancelShutdown()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Shutdown error: %v", err)
	}
	log.Println("Server stopped")
}
