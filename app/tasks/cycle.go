package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/lysyi3m/rss-relay/app/apperr"
	"github.com/lysyi3m/rss-relay/app/cfg"
	"github.com/lysyi3m/rss-relay/app/feed"
	"github.com/lysyi3m/rss-relay/app/rewrite"
	"github.com/lysyi3m/rss-relay/app/telegram"
	"github.com/lysyi3m/rss-relay/app/telegraph"
)

type State string

const (
	StateFetching   State = "FETCHING"
	StateParsed     State = "PARSED"
	StateDuplicate  State = "DUPLICATE"
	StateGenerating State = "GENERATING"
	StateExtracting State = "EXTRACTING"
	StateGenerated  State = "GENERATED"
	StateFormatting State = "FORMATTING"
	StateDelivering State = "DELIVERING"
	StateDone       State = "DONE"
	StateError      State = "ERROR"
)

type CycleResult struct {
	ID         string            `json:"cycle_id"`
	State      State             `json:"state"`
	Trail      []State           `json:"trail"`
	ItemID     string            `json:"item_id,omitempty"`
	Title      string            `json:"title,omitempty"`
	Link       string            `json:"link,omitempty"`
	Strategy   rewrite.Strategy  `json:"strategy,omitempty"`
	Chunks     int               `json:"chunks,omitempty"`
	Deliveries []telegram.Report `json:"deliveries,omitempty"`
	PageURL    string            `json:"page_url,omitempty"`
	PageError  string            `json:"page_error,omitempty"`
	Message    string            `json:"message,omitempty"`
	Error      string            `json:"error,omitempty"`
	Code       apperr.Code       `json:"code,omitempty"`
}

func (r *CycleResult) enter(state State) {
	r.State = state
	r.Trail = append(r.Trail, state)
}

type Stats struct {
	ProcessedItems int        `json:"processed_items"`
	LastCheck      *time.Time `json:"last_check"`
	FeedURL        string     `json:"feed_url"`
}

type Cycle struct {
	feedURL   string
	recipient string
	limits    *cfg.Limits
	fetcher   FeedFetcher
	parser    FeedParser
	store     DedupStore
	rewriter  Rewriter
	formatter MessageFormatter
	deliverer Deliverer
	publisher Publisher
	now       func() time.Time
}

func NewCycle(feedURL, recipient string, limits *cfg.Limits, fetcher FeedFetcher, parser FeedParser,
	store DedupStore, rewriter Rewriter, formatter MessageFormatter, deliverer Deliverer) *Cycle {
	return &Cycle{
		feedURL:   feedURL,
		recipient: recipient,
		limits:    limits,
		fetcher:   fetcher,
		parser:    parser,
		store:     store,
		rewriter:  rewriter,
		formatter: formatter,
		deliverer: deliverer,
		now:       time.Now,
	}
}

// WithPublisher enables the secondary page publishing channel.
func (c *Cycle) WithPublisher(publisher Publisher) *Cycle {
	c.publisher = publisher
	return c
}

// Run executes one check cycle. The returned result is never nil; err is set
// exactly when the cycle ended in ERROR.
func (c *Cycle) Run(ctx context.Context) (*CycleResult, error) {
	res := &CycleResult{ID: uuid.NewString()}
	startedAt := c.now()

	defer c.store.RecordCheck(context.WithoutCancel(ctx), startedAt)

	res.enter(StateFetching)

	data, err := c.fetcher.FetchFeed(ctx, c.feedURL)
	if err != nil {
		return c.fail(res, err)
	}

	items, err := c.parser.Run(data)
	if err != nil {
		return c.fail(res, err)
	}

	res.enter(StateParsed)

	if len(items) == 0 {
		res.Message = "feed has no items"
		res.enter(StateDone)
		return res, nil
	}

	item, itemID, found := c.pickNew(ctx, items)
	if !found {
		res.ItemID = itemID
		res.Title = items[0].Title
		res.Link = items[0].Link
		res.enter(StateDuplicate)
		slog.Debug("No unseen items", "cycle_id", res.ID, "latest", itemID)
		return res, nil
	}

	res.ItemID = itemID
	res.Title = item.Title
	res.Link = item.Link

	if err := item.Validate(); err != nil {
		return c.fail(res, err)
	}

	res.enter(StateGenerating)
	slog.Info("Rewriting item", "cycle_id", res.ID, "item_id", itemID, "title", item.Title)

	rewritten, err := c.rewriter.Rewrite(ctx, item)
	if err != nil {
		return c.fail(res, err)
	}

	res.Strategy = rewritten.Strategy
	if rewritten.Strategy == rewrite.StrategyExtraction {
		res.enter(StateExtracting)
	}
	res.enter(StateGenerated)

	res.enter(StateFormatting)

	chunks := c.formatter.Run(rewritten.Text)
	if len(chunks) == 0 {
		return c.fail(res, apperr.New(apperr.KindGeneration, apperr.CodeNoContent, "generated text is empty after formatting"))
	}
	res.Chunks = len(chunks)

	res.enter(StateDelivering)

	var wg sync.WaitGroup
	if c.publisher != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.publish(ctx, res, item, rewritten.Text)
		}()
	}

	reports := c.deliverer.Deliver(ctx, chunks, c.recipient)
	wg.Wait()

	res.Deliveries = reports

	if !telegram.Succeeded(reports) {
		failed := 0
		for _, r := range reports {
			if r.Status != telegram.StatusSuccess {
				failed++
			}
		}
		return c.fail(res, apperr.New(apperr.KindDelivery, apperr.CodeDeliveryFailed,
			"%d of %d chunks not delivered", failed, len(reports)))
	}

	c.store.MarkProcessed(ctx, itemID, rewritten.Text)
	res.enter(StateDone)

	return res, nil
}

// pickNew returns the newest unseen item within the lookback window. When
// every candidate was already handled, the id of the newest one is returned.
func (c *Cycle) pickNew(ctx context.Context, items []feed.Item) (feed.Item, string, bool) {
	lookback := min(c.limits.ItemLookback, len(items))

	for _, item := range items[:lookback] {
		itemID := item.Identity(c.limits.FingerprintPrefix)
		if check := c.store.IsNew(ctx, itemID); check.IsNew {
			return item, itemID, true
		}
	}

	return feed.Item{}, items[0].Identity(c.limits.FingerprintPrefix), false
}

func (c *Cycle) publish(ctx context.Context, res *CycleResult, item feed.Item, text string) {
	markup := telegram.Normalize(text)
	title := telegraph.PageTitle(markup, item.Title)

	pageURL, err := c.publisher.Publish(ctx, title, markup)
	if err != nil {
		slog.Warn("Failed to publish page", "cycle_id", res.ID, "item_id", res.ItemID, "error", err)
		res.PageError = err.Error()
		return
	}

	slog.Info("Page published", "cycle_id", res.ID, "item_id", res.ItemID, "url", pageURL)
	res.PageURL = pageURL
}

func (c *Cycle) fail(res *CycleResult, err error) (*CycleResult, error) {
	res.enter(StateError)
	res.Error = err.Error()
	res.Code = apperr.CodeOf(err)
	return res, err
}

// Stats reports the processed-item count and the last check time.
func (c *Cycle) Stats(ctx context.Context) (*Stats, error) {
	count, err := c.store.ProcessedCount(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get processed count: %w", err)
	}

	lastCheck, err := c.store.LastCheck(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get last check time: %w", err)
	}

	return &Stats{
		ProcessedItems: count,
		LastCheck:      lastCheck,
		FeedURL:        c.feedURL,
	}, nil
}
