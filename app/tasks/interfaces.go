package tasks

import (
	"context"
	"time"

	"github.com/lysyi3m/rss-relay/app/dedup"
	"github.com/lysyi3m/rss-relay/app/feed"
	"github.com/lysyi3m/rss-relay/app/rewrite"
	"github.com/lysyi3m/rss-relay/app/telegram"
	"github.com/lysyi3m/rss-relay/app/telegraph"
)

// TaskSchedulerInterface defines the interface for task scheduling operations.
// Used by the main application to run check cycles in the background.
// Example usage:
//
//	scheduler, err := NewScheduler(cycle, "*/15 * * * *", time.UTC)
//	scheduler.Start()
//	defer scheduler.Stop()
//	scheduler.EnqueueTask(NewCheckFeedTask(cycle, "manual"))
type TaskSchedulerInterface interface {
	Start()
	Stop()
	EnqueueTask(task TaskInterface) error
}

// CycleRunner runs one check cycle and reports operational stats. The HTTP
// trigger and the scheduler both go through it.
type CycleRunner interface {
	Run(ctx context.Context) (*CycleResult, error)
	Stats(ctx context.Context) (*Stats, error)
}

type FeedFetcher interface {
	FetchFeed(ctx context.Context, feedURL string) ([]byte, error)
}

type FeedParser interface {
	Run(data []byte) ([]feed.Item, error)
}

type DedupStore interface {
	IsNew(ctx context.Context, itemID string) dedup.Check
	MarkProcessed(ctx context.Context, itemID, output string)
	ProcessedCount(ctx context.Context) (int, error)
	RecordCheck(ctx context.Context, at time.Time)
	LastCheck(ctx context.Context) (*time.Time, error)
}

type Rewriter interface {
	Rewrite(ctx context.Context, item feed.Item) (*rewrite.Result, error)
}

type MessageFormatter interface {
	Run(raw string) []string
}

type Deliverer interface {
	Deliver(ctx context.Context, chunks []string, recipient string) []telegram.Report
}

type Publisher interface {
	Publish(ctx context.Context, title, markup string) (string, error)
}

var (
	_ TaskSchedulerInterface = (*Scheduler)(nil)
	_ CycleRunner            = (*Cycle)(nil)
	_ FeedFetcher            = (*feed.Fetcher)(nil)
	_ FeedParser             = (*feed.Parser)(nil)
	_ DedupStore             = (*dedup.Store)(nil)
	_ Rewriter               = (*rewrite.Engine)(nil)
	_ MessageFormatter       = (*telegram.Formatter)(nil)
	_ Deliverer              = (*telegram.Dispatcher)(nil)
	_ Publisher              = (*telegraph.Client)(nil)
)
