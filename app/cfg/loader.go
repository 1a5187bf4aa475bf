package cfg

import (
	"cmp"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/jessevdk/go-flags"
	"github.com/joho/godotenv"
)

// Version is set at build time via -ldflags
var Version = "dev"

func GetVersion() string {
	return cmp.Or(Version, "unknown")
}

type rawCfg struct {
	// Source feed
	FeedURL string `long:"feed-url" env:"FEED_URL" description:"RSS/Atom feed to relay (required)" required:"true"`

	// Messaging
	TelegramBotToken    string `long:"telegram-token" env:"TELEGRAM_BOT_TOKEN" description:"Telegram bot token (required)" required:"true"`
	TelegramChatID      string `long:"telegram-chat-id" env:"TELEGRAM_CHAT_ID" description:"Target chat id or @channel (required)" required:"true"`
	TelegramAPIEndpoint string `long:"telegram-endpoint" env:"TELEGRAM_API_ENDPOINT" default:"https://api.telegram.org/bot%s/%s" description:"Telegram Bot API endpoint template"`

	// Generation backend
	GeminiAPIKey  string `long:"gemini-key" env:"GEMINI_API_KEY" description:"Generative backend API key (required)" required:"true"`
	GeminiModel   string `long:"gemini-model" env:"GEMINI_MODEL" default:"gemini-2.5-flash" description:"Generative model name"`
	GeminiBaseURL string `long:"gemini-base-url" env:"GEMINI_BASE_URL" default:"https://generativelanguage.googleapis.com" description:"Generative backend base URL"`

	// Dedup storage
	StoreDriver string `long:"store" env:"STORE_DRIVER" default:"sqlite" choice:"sqlite" choice:"redis" description:"Dedup store backend"`
	DBPath      string `long:"db-path" env:"DB_PATH" default:"./data/relay.db" description:"SQLite database file"`
	RedisURL    string `long:"redis-url" env:"REDIS_URL" default:"redis://localhost:6379/0" description:"Redis connection URL"`

	// Rich-content channel
	TelegraphToken      string `long:"telegraph-token" env:"TELEGRAPH_TOKEN" description:"Telegraph access token (optional, enables page publishing)"`
	TelegraphAuthorName string `long:"telegraph-author" env:"TELEGRAPH_AUTHOR_NAME" description:"Author name shown on published pages"`
	TelegraphAuthorURL  string `long:"telegraph-author-url" env:"TELEGRAPH_AUTHOR_URL" description:"Author link shown on published pages"`
	TelegraphEndpoint   string `long:"telegraph-endpoint" env:"TELEGRAPH_ENDPOINT" default:"https://api.telegra.ph/createPage" description:"Page creation endpoint"`

	// Application configuration
	Port           string `long:"port" env:"PORT" default:"8080" description:"HTTP server port"`
	Schedule       string `long:"schedule" env:"SCHEDULE" default:"*/15 * * * *" description:"Cron schedule for feed checks"`
	PipelineConfig string `long:"pipeline-config" env:"PIPELINE_CONFIG" description:"YAML file overriding pipeline limits (optional)"`

	// Application metadata
	UserAgent string `long:"user-agent" env:"USER_AGENT" default:"RSS Relay/1.0" description:"User agent string for HTTP requests"`
	Timezone  string `long:"timezone" env:"TZ" default:"UTC" description:"Timezone for timestamps and the schedule (e.g., UTC, Asia/Riyadh)"`
	Debug     bool   `long:"debug" env:"DEBUG" description:"Enable debug logging"`
	LogFile   string `long:"log-file" env:"LOG_FILE" description:"Also write logs to this rotating file"`
}

// Load parses flags and environment. It returns (nil, nil) when help was requested.
func Load() (*Cfg, error) {
	return LoadArgs(os.Args[1:])
}

func LoadArgs(args []string) (*Cfg, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		slog.Warn("Failed to load .env file", "error", err)
	}

	var raw rawCfg

	parser := flags.NewParser(&raw, flags.Default)

	if _, err := parser.ParseArgs(args); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok {
			if flagsErr.Type == flags.ErrHelp {
				return nil, nil
			}
		}
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}

	limits, err := LoadLimits(raw.PipelineConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to load pipeline limits: %w", err)
	}

	cfg := &Cfg{
		FeedURL:             raw.FeedURL,
		TelegramBotToken:    raw.TelegramBotToken,
		TelegramChatID:      raw.TelegramChatID,
		TelegramAPIEndpoint: raw.TelegramAPIEndpoint,
		GeminiAPIKey:        raw.GeminiAPIKey,
		GeminiModel:         raw.GeminiModel,
		GeminiBaseURL:       raw.GeminiBaseURL,
		StoreDriver:         raw.StoreDriver,
		DBPath:              raw.DBPath,
		RedisURL:            raw.RedisURL,
		TelegraphToken:      raw.TelegraphToken,
		TelegraphAuthorName: raw.TelegraphAuthorName,
		TelegraphAuthorURL:  raw.TelegraphAuthorURL,
		TelegraphEndpoint:   raw.TelegraphEndpoint,
		Port:                raw.Port,
		Schedule:            raw.Schedule,
		UserAgent:           raw.UserAgent,
		Timezone:            raw.Timezone,
		Debug:               raw.Debug,
		LogFile:             raw.LogFile,
		Version:             GetVersion(),
		Limits:              limits,
	}

	if err := applyTimezone(cfg.Timezone); err != nil {
		slog.Warn("Invalid timezone, using system default", "timezone", cfg.Timezone, "error", err)
	}

	return cfg, nil
}

func applyTimezone(timezone string) error {
	if timezone != "" {
		if loc, err := time.LoadLocation(timezone); err != nil {
			return err
		} else {
			time.Local = loc
		}
	}
	return nil
}
