package feed

import (
	"bytes"
	"html"
	"log/slog"
	"net/url"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-shiori/go-readability"
	"github.com/lysyi3m/rss-relay/app/apperr"
	"github.com/lysyi3m/rss-relay/app/cfg"
	"golang.org/x/text/unicode/norm"
)

const removedElements = "script, style, nav, header, footer, aside, noscript, iframe, form, svg"

// Container selectors tried in order; within one pass the longest match wins.
var containerPasses = [][]string{
	{"article"},
	{"main"},
	{".content", ".post-content", ".entry-content", ".article-content", ".article-body", ".story-body", ".post-body", "[class*='content']"},
	{"#content", "#main-content", "#article", "#article-body", "#story", "[id*='content']"},
	{"[role='main']"},
}

const storySelectors = "[class*='story'], [class*='news'], [class*='article'], section[id*='story'], section[id*='news'], section[id*='article']"

var (
	boilerplateToken = regexp.MustCompile(`(?i)^(sidebar|menu|advertisement|ads?|related|comments?|social|share)([_-].*)?$`)
	boilerplateLine  = regexp.MustCompile(`(?i)^(advertisement|sponsored|related:|share this:|tags:|categories:|read more|continue reading|click here)`)
	blockBoundary    = regexp.MustCompile(`(?i)<\s*(br\s*/?|/p|/div|/h[1-6]|/li|/tr|/blockquote|/section|/article|/pre|/ul|/ol)\s*>`)
)

type ContentExtractor struct {
	minLength         int
	substantialLength int
	maxLength         int
}

func NewContentExtractor(limits *cfg.Limits) *ContentExtractor {
	return &ContentExtractor{
		minLength:         limits.MinContentLength,
		substantialLength: limits.SubstantialContentLength,
		maxLength:         limits.MaxContentLength,
	}
}

// Run extracts the main article text from an HTML page. pageURL may be nil.
func (e *ContentExtractor) Run(data []byte, pageURL *url.URL) (string, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return "", apperr.New(apperr.KindExtraction, apperr.CodeExtractionFailed, "HTML data is empty")
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(data))
	if err != nil {
		return "", apperr.Wrap(apperr.KindExtraction, apperr.CodeExtractionFailed, err, "failed to parse HTML")
	}

	e.stripBoilerplate(doc)

	for i, pass := range containerPasses {
		if text := e.longest(doc.Find(strings.Join(pass, ", "))); runeLen(text) > e.substantialLength {
			return e.finish(text, "container", "pass", i), nil
		}
	}

	if text := e.paragraphs(doc); runeLen(text) >= e.minLength {
		return e.finish(text, "paragraphs"), nil
	}

	if text := e.longest(doc.Find(storySelectors)); runeLen(text) >= e.minLength {
		return e.finish(text, "story"), nil
	}

	if text := e.readable(doc, pageURL); runeLen(text) >= e.minLength {
		return e.finish(text, "readability"), nil
	}

	body := doc.Find("body")
	if body.Length() == 0 {
		body = doc.Selection
	}
	text := e.toText(body.First())
	if runeLen(text) >= e.minLength {
		return e.finish(text, "document"), nil
	}

	return "", apperr.New(apperr.KindExtraction, apperr.CodeExtractionFailed,
		"extracted text is %d characters, below the %d character minimum", runeLen(text), e.minLength)
}

func (e *ContentExtractor) stripBoilerplate(doc *goquery.Document) {
	doc.Find(removedElements).Remove()

	doc.Find("[class], [id]").Each(func(_ int, s *goquery.Selection) {
		if s.Is("html, body, main, article") {
			return
		}
		if hasBoilerplateToken(s.AttrOr("class", "")) || hasBoilerplateToken(s.AttrOr("id", "")) {
			s.Remove()
		}
	})
}

func hasBoilerplateToken(attr string) bool {
	for _, token := range strings.Fields(attr) {
		if boilerplateToken.MatchString(token) {
			return true
		}
	}
	return false
}

func (e *ContentExtractor) longest(sel *goquery.Selection) string {
	best := ""
	sel.Each(func(_ int, s *goquery.Selection) {
		if text := e.toText(s); runeLen(text) > runeLen(best) {
			best = text
		}
	})
	return best
}

func (e *ContentExtractor) paragraphs(doc *goquery.Document) string {
	var parts []string
	doc.Find("p").Each(func(_ int, s *goquery.Selection) {
		if text := e.toText(s); text != "" {
			parts = append(parts, text)
		}
	})
	return strings.Join(parts, "\n")
}

func (e *ContentExtractor) readable(doc *goquery.Document, pageURL *url.URL) string {
	markup, err := doc.Html()
	if err != nil {
		return ""
	}
	if pageURL == nil {
		pageURL = &url.URL{}
	}

	article, err := readability.FromReader(strings.NewReader(markup), pageURL)
	if err != nil {
		slog.Debug("Readability extraction failed", "error", err)
		return ""
	}

	return cleanArticleText(html.EscapeString(article.TextContent))
}

func (e *ContentExtractor) toText(s *goquery.Selection) string {
	markup, err := goquery.OuterHtml(s)
	if err != nil {
		return ""
	}
	return cleanArticleText(markup)
}

func (e *ContentExtractor) finish(text string, stage string, attrs ...any) string {
	if runes := []rune(text); len(runes) > e.maxLength {
		text = strings.TrimSpace(string(runes[:e.maxLength]))
	}

	slog.Debug("Article text extracted", append([]any{"stage", stage, "length", runeLen(text)}, attrs...)...)
	return text
}

// cleanArticleText turns an HTML fragment into plain lines: tags stripped,
// entities decoded, whitespace collapsed, boilerplate and blank lines dropped.
func cleanArticleText(markup string) string {
	s := blockBoundary.ReplaceAllString(markup, "\n")
	s = markupPattern.ReplaceAllString(s, "")
	s = html.UnescapeString(s)
	s = norm.NFC.String(s)

	lines := strings.Split(s, "\n")
	kept := make([]string, 0, len(lines))
	for _, line := range lines {
		line = collapseSpaces(line)
		if line == "" || boilerplateLine.MatchString(line) {
			continue
		}
		kept = append(kept, line)
	}

	return strings.Join(kept, "\n")
}

func runeLen(s string) int {
	return utf8.RuneCountInString(s)
}
