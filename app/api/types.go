package api

import (
	"context"

	"github.com/lysyi3m/rss-relay/app/tasks"
)

// StoreHealth reports the state of the dedup store backend.
type StoreHealth interface {
	Health(ctx context.Context) map[string]any
}

type Handler struct {
	cycle   tasks.CycleRunner
	store   StoreHealth
	version string
}
