// The reconciler binary runs the webhook retry reconciler standalone, for
// deployments that keep background work off the API replicas. It is safe to
// run alongside the in-server reconciler: the distributed lock and the
// per-event claim keep them from double-sending.
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

	"github.com/quillboard/quillboard/internal/config"
	"github.com/quillboard/quillboard/internal/pkg/distlock"
	"github.com/quillboard/quillboard/internal/repository/postgres"
	"github.com/quillboard/quillboard/internal/service/webhook"
	"github.com/quillboard/quillboard/internal/worker"

	_ "github.com/lib/pq"
)

func main() {
	log.Println("Starting Quillboard webhook reconciler...")

	cfg, err := config.LoadFromEnv(os.Getenv("CONFIG_PATH"))
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
		}
	}

	webhookRepo := postgres.NewWebhookRepo(db)
	dispatcher := webhook.NewDispatcher(webhookRepo)
	defer dispatcher.Close()

	lock := distlock.NewLock(redisClient, db, "webhook-reconciler", 2*worker.DefaultReconcileInterval)
	reconciler := worker.NewRetryReconcilerWithConfig(
		webhookRepo, dispatcher, lock,
		cfg.Webhooks.ReconcileInterval(), cfg.Webhooks.ReconcileBatch,
	)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigCh
		log.Printf("Received %s, shutting down...", sig)
		cancel()
	}()

	reconciler.Start(ctx)
	log.Println("Reconciler stopped")
}
