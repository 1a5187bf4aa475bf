package rewrite

import (
	"fmt"
	"strings"

	"github.com/lysyi3m/rss-relay/app/feed"
)

const (
	URLContextSentinel  = "URL_CONTEXT_FAILED"
	HTMLContentSentinel = "HTML_CONTENT_FAILED"
)

const articleRules = `Output rules:
1. Start with one engaging title wrapped in <b></b> on its own line.
2. Write in %[1]s using a formal journalistic register.
3. Use only these tags: <b>, <i>, <u>, <s>, <code>, <a href="...">, <blockquote>. No other markup, no Markdown.
4. Outside of tags, escape & as &amp;, < as &lt; and > as &gt;.
5. Keep the whole article under %[2]d characters including tags.
6. Organize the body with 2 to 4 subheadings, each wrapped in <b></b> on its own line.
7. End with 3 to 5 hashtags in %[1]s, using underscores instead of spaces, each wrapped in <code></code>.
8. Output only the article. No preamble, no closing remarks, no code fences.`

func rules(language string, maxChars int) string {
	return fmt.Sprintf(articleRules, language, maxChars)
}

// URLPrompt asks the backend to read the source page itself.
func URLPrompt(item feed.Item, language string, maxChars int) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Read the news article at this URL and rewrite it as an original article in %s.\n\n", language)
	fmt.Fprintf(&b, "URL: %s\n", item.Link)
	fmt.Fprintf(&b, "Original title: %s\n", item.Title)
	if item.Description != "" {
		fmt.Fprintf(&b, "Feed summary: %s\n", item.Description)
	}
	b.WriteString("\n")
	b.WriteString(rules(language, maxChars))
	fmt.Fprintf(&b, "\n\nIf you cannot access or read the URL, reply with exactly %s and nothing else.", URLContextSentinel)

	return b.String()
}

// ContentPrompt embeds already extracted article text.
func ContentPrompt(item feed.Item, text, language string, maxChars int) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Rewrite the following news article as an original article in %s.\n\n", language)
	fmt.Fprintf(&b, "Original title: %s\n", item.Title)
	fmt.Fprintf(&b, "Source: %s\n\n", item.Link)
	b.WriteString("Article text:\n<<<\n")
	b.WriteString(text)
	b.WriteString("\n>>>\n\n")
	b.WriteString(rules(language, maxChars))
	fmt.Fprintf(&b, "\n\nIf the article text is empty or cannot be processed, reply with exactly %s and nothing else.", HTMLContentSentinel)

	return b.String()
}

func containsSentinel(text, sentinel string) bool {
	return strings.Contains(strings.ToUpper(text), sentinel)
}
