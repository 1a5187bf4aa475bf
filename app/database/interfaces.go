package database

import (
	"context"
	"time"
)

type KVRepository interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	CountPrefix(ctx context.Context, prefix string) (int, error)
	GetEntry(ctx context.Context, key string) (*Entry, error)
	PurgeExpired(ctx context.Context) (int64, error)
	Health(ctx context.Context) map[string]any
}
