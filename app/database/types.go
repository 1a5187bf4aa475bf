package database

import (
	"time"
)

type Entry struct {
	Key       string
	Value     string
	ExpiresAt *time.Time // nil means the entry never expires
	UpdatedAt time.Time
}
