package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/unity-gaming/unity_wallet/internal/config"
	"github.com/unity-gaming/unity_wallet/internal/infra"
	"github.com/unity-gaming/unity_wallet/internal/logging"
	"github.com/unity-gaming/unity_wallet/internal/server"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.LogLevel).With(slog.String("app", cfg.AppName), slog.String("env", cfg.AppEnv))

	if err := run(cfg, logger); err != nil {
		logger.Error("server exited", slog.String("error", err.Error()))
		os.Exit(1)
	}
	logger.Info("server exited cleanly")
}

func run(cfg config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var stores server.Stores

	if cfg.DatabaseURL != "" {
		db, err := infra.NewPostgresPool(ctx, cfg.DatabaseURL, cfg.AppName)
		if err != nil {
			return err
		}
		defer db.Close()
		stores.DB = db
	} else {
		logger.Warn("DATABASE_URL not set, using in-memory storage")
	}

	if cfg.RedisURL != "" {
		cache, err := infra.NewRedisClient(ctx, cfg.RedisURL, cfg.AppName)
		if err != nil {
			return err
		}
		defer closeRedis(cache, logger)
		stores.Cache = cache
	} else {
		logger.Warn("REDIS_URL not set, idempotency and rate limiting disabled")
	}

	nc, err := infra.NewNATSConn(cfg.NATSURL, cfg.AppName, logger)
	if err != nil {
		return err
	}
	if nc != nil {
		defer nc.Drain() // nolint:errcheck
		stores.NATS = nc
	}

	srv, err := server.New(cfg, stores, logger)
	if err != nil {
		return fmt.Errorf("build server: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("listening", slog.String("addr", cfg.Address()), slog.Bool("postgres", stores.DB != nil))
		return srv.Listen()
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownPeriod)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func closeRedis(cache *redis.Client, logger *slog.Logger) {
	if err := cache.Close(); err != nil {
		logger.Warn("close redis", slog.String("error", err.Error()))
	}
}
