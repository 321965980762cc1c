package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/DeafMist/manga-pulse/internal/config"
	"github.com/DeafMist/manga-pulse/internal/elasticsearch"
	"github.com/DeafMist/manga-pulse/internal/logger"
)

const (
	connectAttempts = 10
	maxConnectDelay = 30 * time.Second
)

type archivePruner interface {
	DeleteOlderThan(ctx context.Context, maxAge time.Duration, batchSize int) (int64, error)
}

func main() {
	log := logger.New("retention")
	cfg, err := config.LoadRetention()
	if err != nil {
		log.Error("load config", slog.Any("err", err))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	archive, err := elasticsearch.New(cfg.ElasticsearchAddr, elasticsearch.Indices{News: cfg.ElasticsearchIndex}, log)
	if err != nil {
		log.Error("init elasticsearch", slog.Any("err", err))
		os.Exit(1)
	}
	if !waitForArchive(ctx, log, archive) {
		if ctx.Err() != nil {
			log.Info("shutdown signal received during startup")
			return
		}
		log.Error("archive store unreachable, giving up", slog.Int("attempts", connectAttempts))
		os.Exit(1)
	}

	log.Info("archive retention running",
		slog.String("index", cfg.ElasticsearchIndex),
		slog.Duration("interval", cfg.Interval),
		slog.Duration("max_age", cfg.MaxAge),
	)

	ticker := time.NewTicker(cfg.Interval)
	defer ticker.Stop()

	prune(ctx, log, archive, cfg)
	for {
		select {
		case <-ctx.Done():
			log.Info("shutdown signal received")
			return
		case <-ticker.C:
			prune(ctx, log, archive, cfg)
		}
	}
}

// waitForArchive pings with exponential backoff until the cluster answers.
func waitForArchive(ctx context.Context, log *slog.Logger, archive *elasticsearch.Client) bool {
	delay := 2 * time.Second
	for attempt := 1; attempt <= connectAttempts; attempt++ {
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err := archive.Ping(pingCtx)
		cancel()
		if err == nil {
			return true
		}

		log.Warn("archive ping failed, retrying",
			slog.Any("err", err),
			slog.Int("attempt", attempt),
			slog.Duration("retry_in", delay),
		)
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return false
		}
		delay = min(delay*2, maxConnectDelay)
	}
	return false
}

// prune deletes archived news older than the configured age. Failures wait for the next tick.
func prune(ctx context.Context, log *slog.Logger, archive archivePruner, cfg *config.Retention) {
	runCtx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	deleted, err := archive.DeleteOlderThan(runCtx, cfg.MaxAge, cfg.BatchSize)
	if err != nil {
		log.Warn("archive prune failed", slog.Any("err", err), slog.Int64("deleted_before_error", deleted))
		return
	}
	if deleted > 0 {
		log.Info("archive pruned", slog.Int64("deleted", deleted))
		return
	}
	log.Debug("archive prune found nothing to delete")
}
