package cfg

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

func DefaultLimits() *Limits {
	return &Limits{
		RequestTimeout: 30 * time.Second,

		MaxMessageLength:     4096,
		SafeMessageLength:    3800,
		MessageDelay:         time.Second,
		MaxRequestsPerMinute: 20,
		DefaultRetryAfter:    10 * time.Second,
		RateLimitRetries:     2,
		DisablePreview:       true,

		MinContentLength:         100,
		SubstantialContentLength: 500,
		MaxContentLength:         15000,

		RetryAttempts:   3,
		RetryBaseDelay:  time.Second,
		Temperature:     0.7,
		MaxOutputTokens: 8192,
		TargetLanguage:  "Modern Standard Arabic",

		DedupTTL:          7 * 24 * time.Hour,
		ItemLookback:      1,
		FingerprintPrefix: 200,
	}
}

// LoadLimits returns the default limits overridden by the YAML file at path.
// An empty path yields the defaults.
func LoadLimits(path string) (*Limits, error) {
	limits := DefaultLimits()
	if path == "" {
		return limits, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	if err := yaml.Unmarshal(data, limits); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := limits.Validate(); err != nil {
		return nil, fmt.Errorf("invalid pipeline config %s: %w", path, err)
	}

	return limits, nil
}

func (l *Limits) Validate() error {
	if l.SafeMessageLength <= 0 || l.SafeMessageLength >= l.MaxMessageLength {
		return fmt.Errorf("safe message length must be positive and below %d", l.MaxMessageLength)
	}

	positiveFields := map[string]int{
		"retry attempts":             l.RetryAttempts,
		"max requests per minute":    l.MaxRequestsPerMinute,
		"min content length":         l.MinContentLength,
		"substantial content length": l.SubstantialContentLength,
		"max content length":         l.MaxContentLength,
		"max output tokens":          l.MaxOutputTokens,
		"item lookback":              l.ItemLookback,
	}

	for fieldName, fieldValue := range positiveFields {
		if fieldValue <= 0 {
			return fmt.Errorf("%s must be positive", fieldName)
		}
	}

	if l.RateLimitRetries < 0 {
		return fmt.Errorf("rate limit retries must be non-negative")
	}
	if l.MaxContentLength < l.MinContentLength {
		return fmt.Errorf("max content length must not be below min content length")
	}
	if l.RequestTimeout <= 0 {
		return fmt.Errorf("request timeout must be positive")
	}
	if l.DedupTTL <= 0 {
		return fmt.Errorf("dedup ttl must be positive")
	}

	return nil
}

// InterMessageDelay is the pause between two consecutive messages: the fixed
// delay or the per-minute ceiling, whichever is longer.
func (l *Limits) InterMessageDelay() time.Duration {
	perRequest := time.Minute / time.Duration(l.MaxRequestsPerMinute)
	return max(l.MessageDelay, perRequest)
}
