package rewrite

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/lysyi3m/rss-relay/app/apperr"
	"github.com/lysyi3m/rss-relay/app/cfg"
	"github.com/lysyi3m/rss-relay/app/feed"
)

type generateCall struct {
	prompt     string
	urlContext bool
}

// scriptedGenerator returns the queued replies in order.
type scriptedGenerator struct {
	replies []reply
	calls   []generateCall
}

type reply struct {
	text string
	err  error
}

func (g *scriptedGenerator) Generate(ctx context.Context, prompt string, config GenerationConfig, urlContext bool) (string, error) {
	g.calls = append(g.calls, generateCall{prompt: prompt, urlContext: urlContext})
	if len(g.replies) == 0 {
		return "", errors.New("no scripted reply")
	}
	r := g.replies[0]
	g.replies = g.replies[1:]
	return r.text, r.err
}

type fakeArticles struct {
	text  string
	err   error
	calls int
}

func (a *fakeArticles) Load(ctx context.Context, articleURL string) (string, error) {
	a.calls++
	return a.text, a.err
}

var testItem = feed.Item{
	GUID:  "g1",
	Title: "Test",
	Link:  "http://example.com/1",
}

func newTestEngine(gen Generator, articles ArticleSource) (*Engine, *[]time.Duration) {
	limits := cfg.DefaultLimits()
	limits.RetryAttempts = 3
	limits.RetryBaseDelay = time.Second

	var slept []time.Duration
	engine := NewEngine(gen, articles, limits)
	engine.sleep = func(ctx context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	}
	return engine, &slept
}

func TestRewriteURLContextSuccess(t *testing.T) {
	gen := &scriptedGenerator{replies: []reply{{text: "  <b>عنوان</b>\nنص  "}}}
	articles := &fakeArticles{}
	engine, _ := newTestEngine(gen, articles)

	result, err := engine.Rewrite(context.Background(), testItem)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if result.Strategy != StrategyURLContext {
		t.Errorf("Expected url_context strategy, got %s", result.Strategy)
	}
	if result.Text != "<b>عنوان</b>\nنص" {
		t.Errorf("Expected trimmed text, got %q", result.Text)
	}
	if !gen.calls[0].urlContext {
		t.Error("Expected URL context tool on first strategy")
	}
	if !strings.Contains(gen.calls[0].prompt, testItem.Link) {
		t.Error("Expected prompt to contain the item link")
	}
	if articles.calls != 0 {
		t.Error("Expected no extraction on URL context success")
	}
}

func TestRewriteSentinelFallsBack(t *testing.T) {
	gen := &scriptedGenerator{replies: []reply{
		{text: "Sorry: url_context_failed"},
		{text: "<b>مقال</b>"},
	}}
	articles := &fakeArticles{text: "Extracted article body"}
	engine, slept := newTestEngine(gen, articles)

	result, err := engine.Rewrite(context.Background(), testItem)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if result.Strategy != StrategyExtraction {
		t.Errorf("Expected extraction strategy, got %s", result.Strategy)
	}
	if strings.Contains(strings.ToUpper(result.Text), URLContextSentinel) {
		t.Error("Sentinel text must not be published")
	}
	if len(gen.calls) != 2 {
		t.Fatalf("Expected 2 generation calls, got %d", len(gen.calls))
	}
	if gen.calls[1].urlContext {
		t.Error("Expected no URL context tool on fallback")
	}
	if !strings.Contains(gen.calls[1].prompt, "Extracted article body") {
		t.Error("Expected fallback prompt to embed extracted text")
	}
	if len(*slept) != 0 {
		t.Errorf("Sentinel must not trigger retries, slept %v", *slept)
	}
}

func TestRewriteRetriesWithBackoff(t *testing.T) {
	apiErr := apperr.New(apperr.KindGeneration, apperr.CodeAPIError, "status 503")
	gen := &scriptedGenerator{replies: []reply{
		{err: apiErr},
		{err: apperr.New(apperr.KindGeneration, apperr.CodeNoCandidates, "empty")},
		{text: "<b>ok</b>"},
	}}
	engine, slept := newTestEngine(gen, &fakeArticles{})

	result, err := engine.Rewrite(context.Background(), testItem)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if result.Strategy != StrategyURLContext {
		t.Errorf("Expected url_context strategy after retries, got %s", result.Strategy)
	}

	want := []time.Duration{time.Second, 2 * time.Second}
	if len(*slept) != len(want) {
		t.Fatalf("Expected sleeps %v, got %v", want, *slept)
	}
	for i := range want {
		if (*slept)[i] != want[i] {
			t.Errorf("Sleep %d: expected %v, got %v", i, want[i], (*slept)[i])
		}
	}
}

func TestRewriteBothStrategiesFail(t *testing.T) {
	apiErr := apperr.New(apperr.KindGeneration, apperr.CodeAPIError, "status 500")
	gen := &scriptedGenerator{replies: []reply{{err: apiErr}, {err: apiErr}, {err: apiErr}}}
	articles := &fakeArticles{err: apperr.New(apperr.KindExtraction, apperr.CodeExtractionFailed, "too short")}
	engine, _ := newTestEngine(gen, articles)

	_, err := engine.Rewrite(context.Background(), testItem)
	if err == nil {
		t.Fatal("Expected error when both strategies fail")
	}
	if apperr.KindOf(err) != apperr.KindExtraction {
		t.Errorf("Expected fallback error to surface, got: %v", err)
	}
	if len(gen.calls) != 3 {
		t.Errorf("Expected 3 URL context attempts, got %d", len(gen.calls))
	}
}

func TestRewriteHTMLContentSentinel(t *testing.T) {
	gen := &scriptedGenerator{replies: []reply{
		{err: errors.New("connection reset")},
		{err: errors.New("connection reset")},
		{err: errors.New("connection reset")},
		{text: "HTML_CONTENT_FAILED"},
	}}
	engine, _ := newTestEngine(gen, &fakeArticles{text: "body"})

	_, err := engine.Rewrite(context.Background(), testItem)
	if apperr.CodeOf(err) != apperr.CodeHTMLContentFail {
		t.Errorf("Expected HTML_CONTENT_FAIL, got: %v", err)
	}
}

func TestRetryStopsOnContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	_, err := Retry(ctx, 5, time.Hour, Sleep, func(ctx context.Context) (string, error) {
		calls++
		return "", errors.New("fail")
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context cancellation, got: %v", err)
	}
	if calls != 1 {
		t.Errorf("Expected a single attempt before cancellation, got %d", calls)
	}
}

func TestRetryReturnsLastError(t *testing.T) {
	noSleep := func(ctx context.Context, d time.Duration) error { return nil }

	calls := 0
	_, err := Retry(context.Background(), 3, time.Millisecond, noSleep, func(ctx context.Context) (int, error) {
		calls++
		return 0, errors.New("attempt " + string(rune('0'+calls)))
	})
	if err == nil || err.Error() != "attempt 3" {
		t.Errorf("Expected last error, got: %v", err)
	}
}

func TestPromptsCarryRules(t *testing.T) {
	url := URLPrompt(testItem, "Modern Standard Arabic", 3800)
	text := ContentPrompt(testItem, "body", "Modern Standard Arabic", 3800)

	for name, prompt := range map[string]string{"url": url, "content": text} {
		for _, want := range []string{"<b>", "2 to 4 subheadings", "3 to 5 hashtags", "<code>", "3800", "&amp;"} {
			if !strings.Contains(prompt, want) {
				t.Errorf("%s prompt missing %q", name, want)
			}
		}
	}

	if !strings.Contains(url, URLContextSentinel) || strings.Contains(url, HTMLContentSentinel) {
		t.Error("URL prompt must reference only its own sentinel")
	}
	if !strings.Contains(text, HTMLContentSentinel) || strings.Contains(text, URLContextSentinel) {
		t.Error("Content prompt must reference only its own sentinel")
	}
}
