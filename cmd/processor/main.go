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
	"sentientplanner.app/planner/internal/enrich"
	"sentientplanner.app/planner/internal/process"
	"sentientplanner.app/planner/internal/queue"
	"sentientplanner.app/planner/internal/secrets"
	"sentientplanner.app/planner/internal/store"
)

func main() {
	fmt.Printf("%s\n", banner)
	ctx := context.Background()

	cfg, err := config.Load(config.ServiceTypeProcessor)
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

	slog.InfoContext(ctx, "planner processor starting",
		"env", cfg.Env,
		"stream", cfg.Pipeline.ReflectionStream,
		"consumer_group", cfg.Pipeline.ReflectionGroup,
		"consumer_name", cfg.Pipeline.ReflectionConsumer)

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

	secretProvider, err := secrets.NewGCPProvider(ctx, cfg.Secrets.Name)
	if err != nil {
		slog.ErrorContext(ctx, "failed to create secret provider", "error", err)
		os.Exit(1)
	}
	defer secretProvider.Close()

	consumer, err := queue.NewReflectionConsumer(redisClient, queue.ConsumerConfig{
		Stream:    cfg.Pipeline.ReflectionStream,
		Group:     cfg.Pipeline.ReflectionGroup,
		Consumer:  cfg.Pipeline.ReflectionConsumer,
		BatchSize: 10,
		Block:     5 * time.Second,
	})
	if err != nil {
		slog.ErrorContext(ctx, "failed to create consumer", "error", err)
		os.Exit(1)
	}

	completer := enrich.NewOpenAICompleter(enrich.CompleterConfig{
		BaseURL: cfg.Inference.BaseURL,
		Model:   cfg.Inference.Model,
	})

	svc := process.NewService(
		secrets.NewCached(secretProvider),
		enrich.New(completer),
		store.NewPlanStore(database, cfg.MaxTextRunes),
		queue.NewJobDispatcher(redisClient, cfg.Pipeline.JobStream),
		slog.Default(),
	)

	runner := process.NewRunner(consumer, svc)

	reclaimer := queue.NewReclaimer(redisClient, queue.ReclaimerConfig{
		Stream:    cfg.Pipeline.ReflectionStream,
		Group:     cfg.Pipeline.ReflectionGroup,
		Consumer:  cfg.Pipeline.ReflectionConsumer + "-reclaimer",
		MinIdle:   5 * time.Minute,
		Interval:  1 * time.Minute,
		BatchSize: 10,
	}, runner.HandleReclaimed)

	errCh := make(chan error, 2)
	go func() {
		errCh <- runner.Run(ctx)
	}()
	go func() {
		reclaimer.Run(ctx)
		errCh <- nil
	}()

	slog.InfoContext(ctx, "processor initialized and running")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.InfoContext(ctx, "shutting down processor...")

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	reclaimer.Stop()
	runner.Stop()

	select {
	case <-shutdownCtx.Done():
		slog.WarnContext(ctx, "shutdown timeout exceeded")
	case err := <-errCh:
		if err != nil {
			slog.ErrorContext(ctx, "processor error during shutdown", "error", err)
		}
	}

	if telemetry != nil {
		if err := telemetry.Shutdown(shutdownCtx); err != nil {
			slog.ErrorContext(shutdownCtx, "otel shutdown error", "error", err)
		}
	}

	slog.InfoContext(ctx, "processor shutdown complete")
}

const banner = `
███████╗███████╗███╗   ██╗████████╗██╗███████╗███╗   ██╗████████╗
██╔════╝██╔════╝████╗  ██║╚══██╔══╝██║██╔════╝████╗  ██║╚══██╔══╝
███████╗█████╗  ██╔██╗ ██║   ██║   ██║█████╗  ██╔██╗ ██║   ██║
╚════██║██╔══╝  ██║╚██╗██║   ██║   ██║██╔══╝  ██║╚██╗██║   ██║
███████║███████╗██║ ╚████║   ██║   ██║███████╗██║ ╚████║   ██║
╚══════╝╚══════╝╚═╝  ╚═══╝   ╚═╝   ╚═╝╚══════╝╚═╝  ╚═══╝   ╚═╝
                P L A N N E R   ·   P R O C E S S O R
`
