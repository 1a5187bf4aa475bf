package feed

import (
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"strings"
	"time"

	"github.com/lysyi3m/rss-relay/app/apperr"
)

// Item is one normalized feed entry. Empty strings stand for missing fields.
type Item struct {
	GUID        string
	Title       string
	Link        string
	Description string
	Author      string
	PublishedAt time.Time // zero when the feed gave no parseable date
}

// Identity is the dedup key for the item: guid, then link, then a fingerprint
// of the title and the first prefixLen runes of the description.
func (i Item) Identity(prefixLen int) string {
	if i.GUID != "" {
		return i.GUID
	}
	if i.Link != "" {
		return i.Link
	}

	description := []rune(i.Description)
	if len(description) > prefixLen {
		description = description[:prefixLen]
	}

	hash := sha256.Sum256([]byte(i.Title + "|" + string(description)))
	return "fp_" + hex.EncodeToString(hash[:16])
}

// Validate checks the fields the rewrite pipeline cannot work without.
func (i Item) Validate() error {
	if strings.TrimSpace(i.Title) == "" {
		return apperr.New(apperr.KindValidation, apperr.CodeMissingTitle, "item has no title")
	}
	if strings.TrimSpace(i.Link) == "" {
		return apperr.New(apperr.KindValidation, apperr.CodeMissingLink, "item %q has no link", i.Title)
	}

	u, err := url.Parse(i.Link)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return apperr.New(apperr.KindValidation, apperr.CodeInvalidURL, "item link %q is not an absolute http(s) URL", i.Link)
	}

	return nil
}
