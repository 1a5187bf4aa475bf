package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

type KVStore struct {
	db  *DB
	now func() time.Time
}

func NewKVStore(db *DB) *KVStore {
	return &KVStore{db: db, now: time.Now}
}

// Get returns the value stored under key. Expired entries read as missing.
func (s *KVStore) Get(ctx context.Context, key string) (string, bool, error) {
	entry, err := s.GetEntry(ctx, key)
	if err != nil {
		return "", false, err
	}
	if entry == nil {
		return "", false, nil
	}
	return entry.Value, true, nil
}

func (s *KVStore) GetEntry(ctx context.Context, key string) (*Entry, error) {
	query := `
		SELECT key, value, expires_at, updated_at
		FROM kv_entries
		WHERE key = ? AND (expires_at IS NULL OR expires_at > ?)`

	var entry Entry
	var expiresAt sql.NullInt64
	var updatedAt int64

	err := s.db.QueryRowContext(ctx, query, key, s.now().UnixMilli()).
		Scan(&entry.Key, &entry.Value, &expiresAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get entry %s: %w", key, err)
	}

	entry.UpdatedAt = time.UnixMilli(updatedAt)
	if expiresAt.Valid {
		t := time.UnixMilli(expiresAt.Int64)
		entry.ExpiresAt = &t
	}

	return &entry, nil
}

// Set upserts key. A zero or negative ttl stores the entry without expiry.
func (s *KVStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	now := s.now()

	var expiresAt sql.NullInt64
	if ttl > 0 {
		expiresAt = sql.NullInt64{Int64: now.Add(ttl).UnixMilli(), Valid: true}
	}

	query := `
		INSERT INTO kv_entries (key, value, expires_at, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			value = excluded.value,
			expires_at = excluded.expires_at,
			updated_at = excluded.updated_at`

	if _, err := s.db.ExecContext(ctx, query, key, value, expiresAt, now.UnixMilli()); err != nil {
		return fmt.Errorf("failed to set entry %s: %w", key, err)
	}

	return nil
}

func (s *KVStore) CountPrefix(ctx context.Context, prefix string) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM kv_entries
		WHERE key LIKE ? ESCAPE '\' AND (expires_at IS NULL OR expires_at > ?)`

	var count int
	err := s.db.QueryRowContext(ctx, query, escapeLike(prefix)+"%", s.now().UnixMilli()).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count entries with prefix %s: %w", prefix, err)
	}

	return count, nil
}

// PurgeExpired deletes entries whose TTL has passed.
func (s *KVStore) PurgeExpired(ctx context.Context) (int64, error) {
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM kv_entries WHERE expires_at IS NOT NULL AND expires_at <= ?`,
		s.now().UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("failed to purge expired entries: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rows, nil
}

func (s *KVStore) Health(ctx context.Context) map[string]any {
	health := map[string]any{
		"status": "healthy",
		"type":   "sqlite",
	}

	if err := s.db.PingContext(ctx); err != nil {
		health["status"] = "unhealthy"
		health["error"] = err.Error()
		return health
	}

	var count int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM kv_entries`).Scan(&count); err == nil {
		health["key_count"] = count
	}

	return health
}

func (s *KVStore) Close() error {
	return s.db.Close()
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

var _ KVRepository = (*KVStore)(nil)
