package feed

import (
	"errors"
	"strings"
	"testing"

	"github.com/lysyi3m/rss-relay/app/apperr"
	"github.com/lysyi3m/rss-relay/app/cfg"
)

const longParagraph = "This is the main content of the article. It contains several sentences of meaningful text that should be extracted by the content extractor without any of the surrounding page chrome getting in the way. "

func newTestExtractor() *ContentExtractor {
	return NewContentExtractor(cfg.DefaultLimits())
}

func TestContentExtractor_ArticleContainer(t *testing.T) {
	htmlContent := `
	<!DOCTYPE html>
	<html>
	<head>
		<title>Test Article</title>
		<style>body { color: red; }</style>
		<script>var tracking = "should not appear";</script>
	</head>
	<body>
		<header><h1>Site Header</h1></header>
		<nav>Navigation</nav>
		<article>
			<h1>Main Article Title</h1>
			<p>` + longParagraph + `</p>
			<p>` + longParagraph + `</p>
			<p>Advertisement</p>
			<p>` + longParagraph + `</p>
			<div class="share-buttons">Share on everything</div>
		</article>
		<aside><div>Related Links</div></aside>
		<footer><p>Copyright 2024</p></footer>
	</body>
	</html>`

	result, err := newTestExtractor().Run([]byte(htmlContent), nil)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if !strings.Contains(result, "main content of the article") {
		t.Error("Expected extracted content to contain main article text")
	}
	if !strings.Contains(result, "Main Article Title") {
		t.Error("Expected extracted content to contain the article heading")
	}

	for _, unwanted := range []string{"Advertisement", "Copyright 2024", "Navigation", "Site Header", "tracking", "Share on everything", "color: red"} {
		if strings.Contains(result, unwanted) {
			t.Errorf("Expected extracted content to exclude %q", unwanted)
		}
	}
}

func TestContentExtractor_LongestMatchWins(t *testing.T) {
	htmlContent := `
	<html><body>
		<div class="content"><p>Short teaser content block.</p></div>
		<div class="post-content"><p>` + longParagraph + longParagraph + longParagraph + `</p></div>
	</body></html>`

	result, err := newTestExtractor().Run([]byte(htmlContent), nil)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if strings.Contains(result, "Short teaser") {
		t.Error("Expected the longest content container to win")
	}
	if !strings.Contains(result, "main content") {
		t.Error("Expected the long container text")
	}
}

func TestContentExtractor_BoilerplateContainers(t *testing.T) {
	htmlContent := `
	<html><body>
		<main>
			<div class="sidebar-left">Sidebar junk that must go</div>
			<div id="comments">Reader comments that must go</div>
			<div class="menu">Menu junk</div>
			<div class="ad-slot ads">Buy now</div>
			<p>` + longParagraph + longParagraph + longParagraph + `</p>
			<p>Address of the venue stays because "address" is not an ad token.</p>
		</main>
	</body></html>`

	result, err := newTestExtractor().Run([]byte(htmlContent), nil)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	for _, unwanted := range []string{"Sidebar junk", "Reader comments", "Menu junk", "Buy now"} {
		if strings.Contains(result, unwanted) {
			t.Errorf("Expected %q to be stripped", unwanted)
		}
	}
	if !strings.Contains(result, "Address of the venue") {
		t.Error("Expected regular paragraph to survive boilerplate stripping")
	}
}

func TestContentExtractor_ParagraphFallback(t *testing.T) {
	htmlContent := `
	<html><body>
		<div>
			<p>The first paragraph has enough words to matter for the fallback stage of extraction.</p>
			<p>The second paragraph adds a bit more text so we clear the minimum length easily.</p>
		</div>
	</body></html>`

	result, err := newTestExtractor().Run([]byte(htmlContent), nil)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	expected := "The first paragraph has enough words to matter for the fallback stage of extraction.\n" +
		"The second paragraph adds a bit more text so we clear the minimum length easily."
	if result != expected {
		t.Errorf("Expected joined paragraphs, got: %q", result)
	}
}

func TestContentExtractor_StoryHeuristic(t *testing.T) {
	htmlContent := `
	<html><body>
		<div class="news-story">
			Breaking story text without paragraph tags, long enough to pass the minimum threshold for extraction easily today.
		</div>
		<p>tiny</p>
	</body></html>`

	result, err := newTestExtractor().Run([]byte(htmlContent), nil)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if !strings.HasPrefix(result, "Breaking story text") {
		t.Errorf("Expected story container text, got: %q", result)
	}
}

func TestContentExtractor_BoilerplateLines(t *testing.T) {
	htmlContent := `
	<html><body><article>
		<p>` + longParagraph + longParagraph + longParagraph + `</p>
		<p>Read more about this topic elsewhere</p>
		<p>Tags: politics, economy</p>
		<p>Share this: twitter</p>
		<p>Continue reading below</p>
		<p>Sponsored</p>
	</article></body></html>`

	result, err := newTestExtractor().Run([]byte(htmlContent), nil)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	for _, unwanted := range []string{"Read more", "Tags:", "Share this:", "Continue reading", "Sponsored"} {
		if strings.Contains(result, unwanted) {
			t.Errorf("Expected boilerplate line %q to be removed", unwanted)
		}
	}
}

func TestContentExtractor_EntitiesAndWhitespace(t *testing.T) {
	htmlContent := `<html><body><article><p>` + longParagraph + longParagraph + longParagraph +
		`</p><p>Fish &amp;   chips &lt;3 &quot;quoted&quot;</p></article></body></html>`

	result, err := newTestExtractor().Run([]byte(htmlContent), nil)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if !strings.Contains(result, `Fish & chips <3 "quoted"`) {
		t.Errorf("Expected decoded, collapsed text, got: %q", result)
	}
}

func TestContentExtractor_Truncation(t *testing.T) {
	limits := cfg.DefaultLimits()
	limits.MaxContentLength = 150
	extractor := NewContentExtractor(limits)

	htmlContent := `<html><body><article><p>` + strings.Repeat(longParagraph, 5) + `</p></article></body></html>`

	result, err := extractor.Run([]byte(htmlContent), nil)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if runeLen(result) > 150 {
		t.Errorf("Expected at most 150 characters, got %d", runeLen(result))
	}
}

func TestContentExtractor_TooShort(t *testing.T) {
	htmlContent := `<html><body><div>Short</div><p>Tiny paragraph.</p></body></html>`

	_, err := newTestExtractor().Run([]byte(htmlContent), nil)
	if err == nil {
		t.Fatal("Expected error for page without substantial content")
	}
	if !errors.Is(err, apperr.New(apperr.KindExtraction, apperr.CodeExtractionFailed, "")) {
		t.Errorf("Expected ExtractionError, got: %v", err)
	}
}

func TestContentExtractor_EmptyInput(t *testing.T) {
	_, err := newTestExtractor().Run([]byte(""), nil)
	if apperr.KindOf(err) != apperr.KindExtraction {
		t.Errorf("Expected ExtractionError for empty input, got: %v", err)
	}
}
