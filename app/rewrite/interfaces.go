package rewrite

import (
	"context"

	"github.com/lysyi3m/rss-relay/app/feed"
)

type Generator interface {
	Generate(ctx context.Context, prompt string, config GenerationConfig, urlContext bool) (string, error)
}

type ArticleSource interface {
	Load(ctx context.Context, articleURL string) (string, error)
}

var _ Generator = (*GeminiClient)(nil)
var _ ArticleSource = (*feed.ArticleLoader)(nil)
