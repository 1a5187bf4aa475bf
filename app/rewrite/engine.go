package rewrite

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/lysyi3m/rss-relay/app/apperr"
	"github.com/lysyi3m/rss-relay/app/cfg"
	"github.com/lysyi3m/rss-relay/app/feed"
)

type Strategy string

const (
	StrategyURLContext Strategy = "url_context"
	StrategyExtraction Strategy = "extraction"
)

type Result struct {
	Text     string
	Strategy Strategy
}

type Engine struct {
	generator Generator
	articles  ArticleSource
	limits    *cfg.Limits
	sleep     SleepFunc
}

func NewEngine(generator Generator, articles ArticleSource, limits *cfg.Limits) *Engine {
	return &Engine{
		generator: generator,
		articles:  articles,
		limits:    limits,
		sleep:     Sleep,
	}
}

// Rewrite produces a translated article for item. The URL-context strategy is
// tried first; any failure there falls back to extracting the page locally.
func (e *Engine) Rewrite(ctx context.Context, item feed.Item) (*Result, error) {
	text, err := e.fromURL(ctx, item)
	if err == nil {
		return &Result{Text: text, Strategy: StrategyURLContext}, nil
	}

	slog.Warn("URL context strategy failed, falling back to extraction",
		"link", item.Link,
		"code", apperr.CodeOf(err),
		"error", err)

	text, err = e.fromExtraction(ctx, item)
	if err != nil {
		return nil, fmt.Errorf("failed to rewrite %s: %w", item.Link, err)
	}

	return &Result{Text: text, Strategy: StrategyExtraction}, nil
}

func (e *Engine) fromURL(ctx context.Context, item feed.Item) (string, error) {
	prompt := URLPrompt(item, e.limits.TargetLanguage, e.limits.SafeMessageLength)

	text, err := e.generate(ctx, prompt, true)
	if err != nil {
		return "", err
	}

	if containsSentinel(text, URLContextSentinel) {
		return "", apperr.New(apperr.KindGeneration, apperr.CodeURLContextFail, "backend could not read %s", item.Link)
	}

	return text, nil
}

func (e *Engine) fromExtraction(ctx context.Context, item feed.Item) (string, error) {
	article, err := e.articles.Load(ctx, item.Link)
	if err != nil {
		return "", err
	}

	slog.Debug("Article extracted for fallback", "link", item.Link, "length", len([]rune(article)))

	prompt := ContentPrompt(item, article, e.limits.TargetLanguage, e.limits.SafeMessageLength)

	text, err := e.generate(ctx, prompt, false)
	if err != nil {
		return "", err
	}

	if containsSentinel(text, HTMLContentSentinel) {
		return "", apperr.New(apperr.KindGeneration, apperr.CodeHTMLContentFail, "backend could not process extracted text")
	}

	return text, nil
}

func (e *Engine) generate(ctx context.Context, prompt string, urlContext bool) (string, error) {
	config := e.generationConfig()

	text, err := Retry(ctx, e.limits.RetryAttempts, e.limits.RetryBaseDelay, e.sleep,
		func(ctx context.Context) (string, error) {
			return e.generator.Generate(ctx, prompt, config, urlContext)
		})
	if err != nil {
		return "", err
	}

	return strings.TrimSpace(text), nil
}

func (e *Engine) generationConfig() GenerationConfig {
	return GenerationConfig{
		Temperature:     e.limits.Temperature,
		MaxOutputTokens: e.limits.MaxOutputTokens,
		ThinkingBudget:  0,
	}
}
