package feed

import (
	"bytes"
	"cmp"
	"errors"
	"html"
	"regexp"
	"sort"
	"strings"

	"github.com/lysyi3m/rss-relay/app/apperr"
	"github.com/mmcdole/gofeed"
)

var (
	cdataPattern  = regexp.MustCompile(`(?s)<!\[CDATA\[(.*?)\]\]>`)
	markupPattern = regexp.MustCompile(`(?s)<[^>]*>`)
)

type Parser struct {
	gofeedParser *gofeed.Parser
}

func NewParser() *Parser {
	return &Parser{
		gofeedParser: gofeed.NewParser(),
	}
}

// Run parses RSS or Atom text into items ordered newest first. Items without
// a date sort last; items without a title are dropped. Input that contains no
// feed at all yields an empty list.
func (p *Parser) Run(data []byte) ([]Item, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, apperr.New(apperr.KindFeed, apperr.CodeEmptyFeed, "feed body is empty")
	}

	feed, err := p.gofeedParser.Parse(bytes.NewReader(data))
	if err != nil {
		if errors.Is(err, gofeed.ErrFeedTypeNotDetected) {
			return []Item{}, nil
		}
		return nil, apperr.Wrap(apperr.KindFeed, apperr.CodeParseError, err, "failed to parse feed")
	}

	items := make([]Item, 0, len(feed.Items))
	for _, item := range feed.Items {
		if item == nil {
			continue
		}
		normalized := p.normalizeItem(item)
		if normalized.Title == "" {
			continue
		}
		items = append(items, normalized)
	}

	sort.SliceStable(items, func(i, j int) bool {
		return items[i].PublishedAt.After(items[j].PublishedAt)
	})

	return items, nil
}

func (p *Parser) normalizeItem(item *gofeed.Item) Item {
	normalized := Item{
		GUID:        cleanText(item.GUID),
		Title:       collapseSpaces(cleanText(item.Title)),
		Link:        strings.TrimSpace(item.Link),
		Description: cleanText(cmp.Or(item.Description, item.Content)),
		Author:      collapseSpaces(cleanText(p.extractAuthor(item))),
	}

	if normalized.Link == "" && len(item.Links) > 0 {
		normalized.Link = strings.TrimSpace(item.Links[0])
	}

	if item.PublishedParsed != nil {
		normalized.PublishedAt = *item.PublishedParsed
	} else if item.UpdatedParsed != nil {
		normalized.PublishedAt = *item.UpdatedParsed
	}

	return normalized
}

func (p *Parser) extractAuthor(item *gofeed.Item) string {
	if item.Author != nil && strings.TrimSpace(item.Author.Name) != "" {
		return item.Author.Name
	}
	for _, author := range item.Authors {
		if author == nil {
			continue
		}
		if name := cmp.Or(strings.TrimSpace(author.Name), strings.TrimSpace(author.Email)); name != "" {
			return name
		}
	}
	if item.DublinCoreExt != nil && len(item.DublinCoreExt.Creator) > 0 {
		return item.DublinCoreExt.Creator[0]
	}
	return ""
}

// cleanText unwraps CDATA, strips nested markup, decodes entities and trims.
func cleanText(s string) string {
	s = cdataPattern.ReplaceAllString(s, "$1")
	s = markupPattern.ReplaceAllString(s, "")
	s = html.UnescapeString(s)
	s = strings.ReplaceAll(s, "\u00a0", " ")
	return strings.TrimSpace(s)
}

func collapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
