package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/lysyi3m/rss-relay/app/api"
	"github.com/lysyi3m/rss-relay/app/cache"
	"github.com/lysyi3m/rss-relay/app/cfg"
	"github.com/lysyi3m/rss-relay/app/database"
	"github.com/lysyi3m/rss-relay/app/dedup"
	"github.com/lysyi3m/rss-relay/app/feed"
	"github.com/lysyi3m/rss-relay/app/rewrite"
	"github.com/lysyi3m/rss-relay/app/tasks"
	"github.com/lysyi3m/rss-relay/app/telegram"
	"github.com/lysyi3m/rss-relay/app/telegraph"
	"gopkg.in/natefinch/lumberjack.v2"
)

func main() {
	appCfg, err := cfg.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}
	if appCfg == nil {
		// help was shown
		return
	}

	closeLog := setupLogging(appCfg)
	defer closeLog()

	slog.Info("Starting RSS Relay", "version", appCfg.Version, "feed_url", appCfg.FeedURL)

	ctx := context.Background()

	kv, err := openStore(ctx, appCfg)
	if err != nil {
		slog.Error("Failed to open dedup store", "driver", appCfg.StoreDriver, "error", err)
		os.Exit(1)
	}
	defer kv.Close()

	limits := appCfg.Limits
	httpClient := &http.Client{Timeout: limits.RequestTimeout}

	bot, err := tgbotapi.NewBotAPIWithClient(appCfg.TelegramBotToken, appCfg.TelegramAPIEndpoint, httpClient)
	if err != nil {
		slog.Error("Failed to initialize Telegram bot", "error", err)
		os.Exit(1)
	}
	slog.Info("Telegram bot authorized", "username", bot.Self.UserName)

	fetcher := feed.NewFetcher(httpClient, appCfg.UserAgent, limits.RequestTimeout)
	articles := feed.NewArticleLoader(fetcher, feed.NewContentExtractor(limits))
	gemini, err := rewrite.NewGeminiClient(ctx, httpClient, appCfg.GeminiBaseURL, appCfg.GeminiModel, appCfg.GeminiAPIKey)
	if err != nil {
		slog.Error("Failed to initialize generation client", "error", err)
		os.Exit(1)
	}

	cycle := tasks.NewCycle(
		appCfg.FeedURL,
		appCfg.TelegramChatID,
		limits,
		fetcher,
		feed.NewParser(),
		dedup.NewStore(kv, limits.DedupTTL),
		rewrite.NewEngine(gemini, articles, limits),
		telegram.NewFormatter(limits),
		telegram.NewDispatcher(bot, limits),
	)

	if appCfg.TelegraphEnabled() {
		cycle.WithPublisher(telegraph.NewClient(httpClient, appCfg.TelegraphEndpoint,
			appCfg.TelegraphToken, appCfg.TelegraphAuthorName, appCfg.TelegraphAuthorURL))
		slog.Info("Page publishing enabled", "endpoint", appCfg.TelegraphEndpoint)
	}

	scheduler, err := tasks.NewScheduler(cycle, appCfg.Schedule, time.Local)
	if err != nil {
		slog.Error("Failed to create scheduler", "error", err)
		os.Exit(1)
	}
	scheduler.Start()
	defer scheduler.Stop()
	slog.Info("Scheduler started", "schedule", appCfg.Schedule)

	httpServer := &http.Server{
		Addr:         ":" + appCfg.Port,
		Handler:      api.NewServer(api.NewHandler(cycle, kv, appCfg.Version)),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 10 * time.Minute, // /check-rss runs a full cycle synchronously
		IdleTimeout:  120 * time.Second,
	}

	serverErrChan := make(chan error, 1)
	go func() {
		slog.Info("Starting HTTP server", "port", appCfg.Port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		slog.Info("Received signal", "signal", sig)
	case err := <-serverErrChan:
		slog.Error("Server error", "error", err)
	}

	slog.Info("Shutting down gracefully")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}
}

func setupLogging(appCfg *cfg.Cfg) func() {
	level := slog.LevelInfo
	if appCfg.Debug {
		level = slog.LevelDebug
	}

	var out io.Writer = os.Stderr
	closer := func() {}

	if appCfg.LogFile != "" {
		rotator := &lumberjack.Logger{
			Filename:   appCfg.LogFile,
			MaxSize:    10, // MB
			MaxBackups: 5,
			MaxAge:     30, // days
			Compress:   true,
		}
		out = io.MultiWriter(os.Stderr, rotator)
		closer = func() { rotator.Close() }
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(out, &slog.HandlerOptions{Level: level})))
	return closer
}

// storeBackend is implemented by both the Redis cache and the SQLite store.
type storeBackend interface {
	dedup.KV
	api.StoreHealth
	Close() error
}

// openStore returns the key/value backend chosen by STORE_DRIVER.
func openStore(ctx context.Context, appCfg *cfg.Cfg) (storeBackend, error) {
	switch appCfg.StoreDriver {
	case "redis":
		redisCache, err := cache.NewCache(ctx, appCfg.RedisURL)
		if err != nil {
			return nil, err
		}
		return redisCache, nil

	default:
		db, err := database.NewConnection(appCfg.DBPath)
		if err != nil {
			return nil, err
		}

		version, dirty, err := database.RunMigrations(db)
		if err != nil {
			db.Close()
			return nil, err
		}
		slog.Info("Database ready", "path", appCfg.DBPath, "schema_version", version, "dirty", dirty)

		store := database.NewKVStore(db)
		if purged, err := store.PurgeExpired(ctx); err != nil {
			slog.Warn("Failed to purge expired entries", "error", err)
		} else if purged > 0 {
			slog.Info("Purged expired dedup entries", "count", purged)
		}

		return store, nil
	}
}
