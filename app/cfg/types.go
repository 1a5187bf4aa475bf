package cfg

import "time"

type Cfg struct {
	// Source feed
	FeedURL string

	// Messaging
	TelegramBotToken    string
	TelegramChatID      string
	TelegramAPIEndpoint string

	// Generation backend
	GeminiAPIKey  string
	GeminiModel   string
	GeminiBaseURL string

	// Dedup storage
	StoreDriver string
	DBPath      string
	RedisURL    string

	// Rich-content channel (optional)
	TelegraphToken      string
	TelegraphAuthorName string
	TelegraphAuthorURL  string
	TelegraphEndpoint   string

	// Application configuration
	Port     string
	Schedule string

	// Application metadata
	UserAgent string
	Timezone  string
	Debug     bool
	LogFile   string
	Version   string

	Limits *Limits
}

// TelegraphEnabled reports whether the secondary publishing channel is configured.
func (c *Cfg) TelegraphEnabled() bool {
	return c.TelegraphToken != ""
}

// Limits holds the pipeline tunables. It is built once at start-up and shared
// read-only by every component.
type Limits struct {
	RequestTimeout time.Duration `yaml:"request_timeout"`

	// Messaging API
	MaxMessageLength     int           `yaml:"max_message_length"`
	SafeMessageLength    int           `yaml:"safe_message_length"`
	MessageDelay         time.Duration `yaml:"message_delay"`
	MaxRequestsPerMinute int           `yaml:"max_requests_per_minute"`
	DefaultRetryAfter    time.Duration `yaml:"default_retry_after"`
	RateLimitRetries     int           `yaml:"rate_limit_retries"`
	DisablePreview       bool          `yaml:"disable_web_page_preview"`

	// Content extraction
	MinContentLength         int `yaml:"min_content_length"`
	SubstantialContentLength int `yaml:"substantial_content_length"`
	MaxContentLength         int `yaml:"max_content_length"`

	// Generation
	RetryAttempts   int           `yaml:"retry_attempts"`
	RetryBaseDelay  time.Duration `yaml:"retry_base_delay"`
	Temperature     float64       `yaml:"temperature"`
	MaxOutputTokens int           `yaml:"max_output_tokens"`
	TargetLanguage  string        `yaml:"target_language"`

	// Dedup
	DedupTTL          time.Duration `yaml:"dedup_ttl"`
	ItemLookback      int           `yaml:"item_lookback"`
	FingerprintPrefix int           `yaml:"fingerprint_prefix"`
}
