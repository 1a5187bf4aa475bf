package feed

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/lysyi3m/rss-relay/app/apperr"
	"golang.org/x/net/html/charset"
)

const maxArticleBytes = 5 << 20

type Fetcher struct {
	httpClient *http.Client
	userAgent  string
	timeout    time.Duration
}

func NewFetcher(httpClient *http.Client, userAgent string, timeout time.Duration) *Fetcher {
	return &Fetcher{
		httpClient: httpClient,
		userAgent:  userAgent,
		timeout:    timeout,
	}
}

func (f *Fetcher) FetchFeed(ctx context.Context, feedURL string) ([]byte, error) {
	resp, err := f.get(ctx, feedURL)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindFeed, apperr.CodeFetchError, err, "failed to fetch feed")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, apperr.New(apperr.KindFeed, apperr.CodeHTTPError, "HTTP error: %d %s", resp.StatusCode, http.StatusText(resp.StatusCode))
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindFeed, apperr.CodeFetchError, err, "failed to read response body")
	}

	return data, nil
}

// FetchArticle downloads an HTML page and returns it decoded to UTF-8.
func (f *Fetcher) FetchArticle(ctx context.Context, articleURL string) ([]byte, error) {
	resp, err := f.get(ctx, articleURL)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch URL: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP error: %d %s", resp.StatusCode, http.StatusText(resp.StatusCode))
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType != "" && !strings.Contains(strings.ToLower(contentType), "html") {
		return nil, fmt.Errorf("content type is not HTML: %s", contentType)
	}

	reader, err := charset.NewReader(io.LimitReader(resp.Body, maxArticleBytes), contentType)
	if err != nil {
		return nil, fmt.Errorf("failed to detect charset: %w", err)
	}

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	return data, nil
}

func (f *Fetcher) get(ctx context.Context, rawURL string) (*http.Response, error) {
	timeoutCtx, cancel := context.WithTimeout(ctx, f.timeout)

	req, err := http.NewRequestWithContext(timeoutCtx, http.MethodGet, rawURL, nil)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("User-Agent", f.userAgent)

	resp, err := f.httpClient.Do(req)
	if err != nil {
		cancel()
		return nil, err
	}

	resp.Body = &cancelOnClose{ReadCloser: resp.Body, cancel: cancel}
	return resp, nil
}

// cancelOnClose releases the request timeout once the body has been consumed.
type cancelOnClose struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (c *cancelOnClose) Close() error {
	defer c.cancel()
	return c.ReadCloser.Close()
}

// ArticleLoader fetches an article page and extracts its main text.
type ArticleLoader struct {
	fetcher   *Fetcher
	extractor *ContentExtractor
}

func NewArticleLoader(fetcher *Fetcher, extractor *ContentExtractor) *ArticleLoader {
	return &ArticleLoader{fetcher: fetcher, extractor: extractor}
}

func (l *ArticleLoader) Load(ctx context.Context, articleURL string) (string, error) {
	data, err := l.fetcher.FetchArticle(ctx, articleURL)
	if err != nil {
		return "", apperr.Wrap(apperr.KindExtraction, apperr.CodeExtractionFailed, err, "failed to fetch article content")
	}

	pageURL, _ := url.Parse(articleURL)

	content, err := l.extractor.Run(data, pageURL)
	if err != nil {
		return "", err
	}

	slog.Debug("Content extracted successfully", "url", articleURL, "content_length", len(content))
	return content, nil
}
