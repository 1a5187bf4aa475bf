package dedup

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"
)

const (
	processedPrefix = "processed_item_"
	lastCheckKey    = "last_check_time"
)

// KV is the key/value backend. Both the Redis cache and the SQLite store
// satisfy it.
type KV interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	CountPrefix(ctx context.Context, prefix string) (int, error)
}

type Record struct {
	ProcessedAt      int64  `json:"processed_at"`
	ItemID           string `json:"item_id"`
	GeneratedContent string `json:"generatedContent"`
}

type Check struct {
	IsNew       bool
	PriorOutput string
}

type Store struct {
	kv  KV
	ttl time.Duration
	now func() time.Time
}

func NewStore(kv KV, ttl time.Duration) *Store {
	return &Store{kv: kv, ttl: ttl, now: time.Now}
}

func Key(itemID string) string {
	return processedPrefix + itemID
}

// IsNew reports whether itemID has no live processed record. Storage
// failures are logged and treated as new.
func (s *Store) IsNew(ctx context.Context, itemID string) Check {
	raw, ok, err := s.kv.Get(ctx, Key(itemID))
	if err != nil {
		slog.Warn("Dedup lookup failed, treating item as new", "item_id", itemID, "error", err)
		return Check{IsNew: true}
	}
	if !ok {
		return Check{IsNew: true}
	}

	var record Record
	if err := json.Unmarshal([]byte(raw), &record); err != nil {
		// the key still exists, so the item has been handled
		slog.Warn("Failed to decode processed record", "item_id", itemID, "error", err)
		return Check{IsNew: false}
	}

	return Check{IsNew: false, PriorOutput: record.GeneratedContent}
}

// MarkProcessed stores the generated output for itemID. Failures are logged
// and swallowed.
func (s *Store) MarkProcessed(ctx context.Context, itemID, output string) {
	record := Record{
		ProcessedAt:      s.now().UnixMilli(),
		ItemID:           itemID,
		GeneratedContent: output,
	}

	data, err := json.Marshal(record)
	if err != nil {
		slog.Error("Failed to encode processed record", "item_id", itemID, "error", err)
		return
	}

	if err := s.kv.Set(ctx, Key(itemID), string(data), s.ttl); err != nil {
		slog.Error("Failed to mark item as processed", "item_id", itemID, "error", err)
		return
	}

	slog.Debug("Item marked as processed", "item_id", itemID, "ttl", s.ttl)
}

func (s *Store) ProcessedCount(ctx context.Context) (int, error) {
	count, err := s.kv.CountPrefix(ctx, processedPrefix)
	if err != nil {
		return 0, fmt.Errorf("failed to count processed items: %w", err)
	}
	return count, nil
}

func (s *Store) RecordCheck(ctx context.Context, at time.Time) {
	if err := s.kv.Set(ctx, lastCheckKey, at.UTC().Format(time.RFC3339), 0); err != nil {
		slog.Warn("Failed to record last check time", "error", err)
	}
}

// LastCheck returns the time of the most recent cycle, or nil if none was
// recorded.
func (s *Store) LastCheck(ctx context.Context) (*time.Time, error) {
	raw, ok, err := s.kv.Get(ctx, lastCheckKey)
	if err != nil {
		return nil, fmt.Errorf("failed to read last check time: %w", err)
	}
	if !ok {
		return nil, nil
	}

	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, fmt.Errorf("failed to parse last check time: %w", err)
	}

	return &t, nil
}
