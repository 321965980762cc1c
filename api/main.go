package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/DeafMist/manga-pulse/internal/blacklist"
	"github.com/DeafMist/manga-pulse/internal/cache"
	"github.com/DeafMist/manga-pulse/internal/config"
	"github.com/DeafMist/manga-pulse/internal/elasticsearch"
	"github.com/DeafMist/manga-pulse/internal/events"
	"github.com/DeafMist/manga-pulse/internal/favorites"
	"github.com/DeafMist/manga-pulse/internal/kvstore"
	"github.com/DeafMist/manga-pulse/internal/logger"
	"github.com/DeafMist/manga-pulse/internal/news"
	"github.com/DeafMist/manga-pulse/internal/provider"
	"github.com/DeafMist/manga-pulse/internal/session"
)

func main() {
	log := logger.New("api")
	cfg, err := config.LoadAPI()
	if err != nil {
		log.Error("load config", slog.Any("err", err))
		os.Exit(1)
	}

	kv, err := kvstore.Open(cfg.LocalStorePath)
	if err != nil {
		log.Error("open local store", slog.Any("err", err), slog.String("path", cfg.LocalStorePath))
		os.Exit(1)
	}
	defer kv.Close()

	gemini, err := provider.NewGemini(provider.Config{
		APIKey:  cfg.GeminiAPIKey,
		Model:   cfg.GeminiModel,
		BaseURL: cfg.GeminiBaseURL,
		Timeout: cfg.ProviderTimeout,
	}, log)
	if err != nil {
		log.Error("init provider", slog.Any("err", err))
		os.Exit(1)
	}

	srv := &server{
		log:      log,
		cfg:      cfg,
		verifier: session.NewVerifier(cfg.AuthTokenSecret, cfg.AuthTokenIssuer),
	}

	var (
		blOpts []blacklist.Option
		remote func(string) favorites.Store
	)
	if cfg.RemoteStoreEnabled {
		esClient, err := elasticsearch.New(cfg.ElasticsearchAddr, elasticsearch.Indices{
			News:      cfg.ElasticsearchIndex,
			Users:     cfg.UsersIndex,
			Blacklist: cfg.BlacklistIndex,
		}, log)
		if err != nil {
			log.Error("init elasticsearch", slog.Any("err", err))
			os.Exit(1)
		}
		blOpts = append(blOpts, blacklist.WithShared(esClient))
		remote = favorites.Remote(esClient)
		srv.health = esClient
		srv.archive = esClient
	}

	srv.blacklist = blacklist.NewManager(kv, log, blOpts...)
	// one local tier per process: guests of this single-user backend share it
	favs := favorites.NewManager(favorites.NewLocalStore(kv), remote, log)
	srv.favorites = favs

	newsOpts := []news.Option{news.WithCandidates(cfg.Candidates)}
	if cfg.PublishingEnabled() {
		publisher := events.NewPublisher(cfg.KafkaBrokers, cfg.KafkaTopic, log)
		defer publisher.Close()
		newsOpts = append(newsOpts, news.WithPublisher(publisher))
	}
	srv.news = news.NewService(cache.New(kv, cfg.CacheTTL, log), srv.blacklist, gemini, favs, log, newsOpts...)

	httpServer := &http.Server{
		Addr:              cfg.BindAddr,
		Handler:           srv.routes(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      cfg.ProviderTimeout + 15*time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	go func() {
		log.Info("api server starting",
			slog.String("addr", cfg.BindAddr),
			slog.Bool("remote_store", cfg.RemoteStoreEnabled),
			slog.Bool("publishing", cfg.PublishingEnabled()),
		)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server stopped", slog.Any("err", err))
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("shutdown signal received")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error("server shutdown", slog.Any("err", err))
	}
}
