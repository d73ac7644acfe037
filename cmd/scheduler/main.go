package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"intro_sales_backend/internal/events"
	"intro_sales_backend/internal/intros/repository"
	"intro_sales_backend/internal/intros/service"
	"intro_sales_backend/internal/scheduler"
	"intro_sales_backend/platform/config"
	"intro_sales_backend/platform/db"
	"intro_sales_backend/platform/logger"
	"intro_sales_backend/platform/redislock"

	"github.com/jackc/pgx/v5/pgxpool"
)

const autoFixLockPrefix = "locks:"

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.New(cfg.Env)
	log.Info("starting scheduler", "env", cfg.Env)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var pool *pgxpool.Pool
	if err := withRetry(ctx, log, "database connection", 5, 2*time.Second, func() error {
		p, err := db.NewPool(ctx, cfg)
		if err != nil {
			return err
		}
		pool = p
		return nil
	}); err != nil {
		log.Error("failed to connect to database", "error", err)
		panic("failed to connect to database: " + err.Error())
	}
	defer pool.Close()

	eventBus := events.NewInMemoryBus(log)
	events.SubscribeActivityLog(eventBus, log)
	defer eventBus.Wait()

	redisClient, err := scheduler.NewRedisClient(cfg)
	if err != nil {
		log.Error("failed to initialize redis client", "error", err)
		panic("failed to initialize redis client: " + err.Error())
	}
	defer func() { _ = redisClient.Close() }()

	svc := service.New(repository.New(pool), eventBus, cfg, log)
	svc.SetAutoFixGuard(redislock.New(redisClient, autoFixLockPrefix), cfg.GetAuditLockTTL())

	cron, err := scheduler.NewCron(cfg, cfg.GetStudioLocation(), log)
	if err != nil {
		log.Error("failed to initialize auto-fix cron", "error", err)
		panic("failed to initialize auto-fix cron: " + err.Error())
	}
	go func() {
		if err := cron.Run(ctx); err != nil {
			log.Error("auto-fix cron stopped", "error", err)
		}
	}()

	digest := scheduler.NewFollowUpDigest(svc, log, getDurationEnv("FOLLOWUP_DIGEST_INTERVAL", time.Hour))
	go digest.Run(ctx)

	worker, err := scheduler.NewWorker(cfg, svc, log)
	if err != nil {
		log.Error("failed to initialize scheduler worker", "error", err)
		panic("failed to initialize scheduler worker: " + err.Error())
	}

	worker.Run(ctx)
}

func withRetry(ctx context.Context, log *logger.Logger, name string, attempts int, baseDelay time.Duration, fn func() error) error {
	if attempts < 1 {
		return errors.New(name + ": invalid retry attempts")
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := fn(); err == nil {
			return nil
		} else {
			lastErr = err
			log.Warn("retryable operation failed", "operation", name, "attempt", attempt, "error", err)
		}

		if attempt < attempts {
			delay := time.Duration(attempt*attempt) * baseDelay
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
	}

	return errors.New(name + ": " + lastErr.Error())
}

func getDurationEnv(key string, fallback time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}

	parsed, err := time.ParseDuration(raw)
	if err != nil || parsed <= 0 {
		return fallback
	}

	return parsed
}
