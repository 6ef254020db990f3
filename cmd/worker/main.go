package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"sentientplanner.app/planner/common/logger"
	"sentientplanner.app/planner/common/otel"
	"sentientplanner.app/planner/core/config"
	"sentientplanner.app/planner/core/db"
	"sentientplanner.app/planner/internal/blob"
	"sentientplanner.app/planner/internal/queue"
	"sentientplanner.app/planner/internal/store"
	"sentientplanner.app/planner/internal/worker"
)

func main() {
	fmt.Printf("%s\n", banner)
	ctx := context.Background()

	cfg, err := config.Load(config.ServiceTypeWorker)
	if err != nil {
		slog.ErrorContext(ctx, "failed to load config", "error", err)
		os.Exit(1)
	}

	telemetry, err := otel.Setup(ctx, cfg.OTel)
	if err != nil {
		os.Stderr.WriteString("failed to initialize otel: " + err.Error() + "\n")
		os.Exit(1)
	}

	logger.Setup(cfg)

	slog.InfoContext(ctx, "planner worker starting",
		"env", cfg.Env,
		"stream", cfg.Pipeline.JobStream,
		"consumer_group", cfg.Pipeline.JobGroup,
		"consumer_name", cfg.Pipeline.JobConsumer)

	database, err := db.New(ctx, cfg.DB)
	if err != nil {
		slog.ErrorContext(ctx, "failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer database.Close()
	slog.InfoContext(ctx, "database connected")

	redisOpts, err := redis.ParseURL(cfg.Pipeline.RedisURL)
	if err != nil {
		slog.ErrorContext(ctx, "failed to parse redis url", "error", err)
		os.Exit(1)
	}

	redisClient := redis.NewClient(redisOpts)
	if err := redisClient.Ping(ctx).Err(); err != nil {
		slog.ErrorContext(ctx, "failed to connect to redis", "error", err)
		os.Exit(1)
	}
	defer redisClient.Close()
	slog.InfoContext(ctx, "redis connected")

	artifacts, err := blob.NewGCSStore(ctx, blob.GCSConfig{
		Bucket:    cfg.Blob.Bucket,
		CDNDomain: cfg.Blob.CDNDomain,
	})
	if err != nil {
		slog.ErrorContext(ctx, "failed to create artifact store", "error", err)
		os.Exit(1)
	}

	consumer, err := queue.NewJobConsumer(redisClient, queue.ConsumerConfig{
		Stream:    cfg.Pipeline.JobStream,
		Group:     cfg.Pipeline.JobGroup,
		Consumer:  cfg.Pipeline.JobConsumer,
		BatchSize: 10,
		Block:     time.Second,
	})
	if err != nil {
		slog.ErrorContext(ctx, "failed to create consumer", "error", err)
		os.Exit(1)
	}

	plans := store.NewPlanStore(database, cfg.MaxTextRunes)

	w := worker.New(consumer, artifacts, plans, worker.Config{
		IdleDelay:  time.Second,
		ErrorDelay: 5 * time.Second,
	})

	reclaimer := queue.NewReclaimer(redisClient, queue.ReclaimerConfig{
		Stream:    cfg.Pipeline.JobStream,
		Group:     cfg.Pipeline.JobGroup,
		Consumer:  cfg.Pipeline.JobConsumer + "-reclaimer",
		MinIdle:   5 * time.Minute,
		Interval:  1 * time.Minute,
		BatchSize: 10,
	}, w.HandleReclaimed)

	errCh := make(chan error, 2)
	go func() {
		errCh <- w.Run(ctx)
	}()
	go func() {
		reclaimer.Run(ctx)
		errCh <- nil
	}()

	slog.InfoContext(ctx, "worker initialized and running")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.InfoContext(ctx, "shutting down worker...")

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	// Stop reclaimer first (quick)
	reclaimer.Stop()

	// Stop worker (may be processing)
	w.Stop()

	select {
	case <-shutdownCtx.Done():
		slog.WarnContext(ctx, "shutdown timeout exceeded")
	case err := <-errCh:
		if err != nil {
			slog.ErrorContext(ctx, "worker error during shutdown", "error", err)
		}
	}

	processed, errored := w.Totals()
	slog.InfoContext(ctx, "worker shutdown complete", "processed", processed, "errors", errored)

	if telemetry != nil {
		if err := telemetry.Shutdown(shutdownCtx); err != nil {
			slog.ErrorContext(shutdownCtx, "otel shutdown error", "error", err)
		}
	}
}

const banner = `
███████╗███████╗███╗   ██╗████████╗██╗███████╗███╗   ██╗████████╗
██╔════╝██╔════╝████╗  ██║╚══██╔══╝██║██╔════╝████╗  ██║╚══██╔══╝
███████╗█████╗  ██╔██╗ ██║   ██║   ██║█████╗  ██╔██╗ ██║   ██║
╚════██║██╔══╝  ██║╚██╗██║   ██║   ██║██╔══╝  ██║╚██╗██║   ██║
███████║███████╗██║ ╚████║   ██║   ██║███████╗██║ ╚████║   ██║
╚══════╝╚══════╝╚═╝  ╚═══╝   ╚═╝   ╚═╝╚══════╝╚═╝  ╚═══╝   ╚═╝
                  P L A N N E R   ·   W O R K E R
`
