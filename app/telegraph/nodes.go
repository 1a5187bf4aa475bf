package telegraph

import (
	"html"
	"regexp"
	"strings"
	"unicode/utf8"

	xhtml "golang.org/x/net/html"
)

const maxTitleRunes = 256

// Node is either a string or an *Element.
type Node = any

type Element struct {
	Tag      string            `json:"tag"`
	Attrs    map[string]string `json:"attrs,omitempty"`
	Children []Node            `json:"children,omitempty"`
}

// inline tags and the page tag they map to
var inlineTags = map[string]string{
	"b":      "b",
	"strong": "strong",
	"i":      "i",
	"em":     "em",
	"u":      "u",
	"ins":    "u",
	"s":      "s",
	"strike": "s",
	"del":    "s",
	"code":   "code",
	"a":      "a",
}

var (
	headingBlock = regexp.MustCompile(`^<b>([^<\n]+)</b>$`)
	firstBold    = regexp.MustCompile(`<b>(.*?)</b>`)
	anyTag       = regexp.MustCompile(`<[^>]*>`)
)

// ToNodes converts messaging markup into a page node tree. Blank-line
// separated blocks become paragraphs, a block holding only one bold line
// becomes a heading, and blockquote/pre blocks keep their element.
func ToNodes(markup string) []Node {
	var nodes []Node

	for _, block := range strings.Split(strings.ReplaceAll(markup, "\r\n", "\n"), "\n\n") {
		block = strings.TrimSpace(block)
		if block == "" {
			continue
		}

		if m := headingBlock.FindStringSubmatch(block); m != nil {
			nodes = append(nodes, &Element{Tag: "h4", Children: []Node{html.UnescapeString(m[1])}})
			continue
		}

		switch {
		case strings.HasPrefix(block, "<blockquote>"):
			inner := strings.TrimSuffix(strings.TrimPrefix(block, "<blockquote>"), "</blockquote>")
			nodes = append(nodes, &Element{Tag: "blockquote", Children: parseInline(inner)})
		case strings.HasPrefix(block, "<pre>"):
			inner := strings.TrimSuffix(strings.TrimPrefix(block, "<pre>"), "</pre>")
			nodes = append(nodes, &Element{Tag: "pre", Children: []Node{html.UnescapeString(anyTag.ReplaceAllString(inner, ""))}})
		default:
			if children := parseInline(block); len(children) > 0 {
				nodes = append(nodes, &Element{Tag: "p", Children: children})
			}
		}
	}

	return nodes
}

// parseInline builds inline nodes from a fragment. Unknown tags are dropped
// and their text kept; stray closing tags are ignored.
func parseInline(fragment string) []Node {
	root := &Element{}
	stack := []*Element{root}
	top := func() *Element { return stack[len(stack)-1] }

	z := xhtml.NewTokenizer(strings.NewReader(fragment))
	for {
		tt := z.Next()
		switch tt {
		case xhtml.ErrorToken:
			// io.EOF or malformed input; either way keep what was parsed
			return root.Children

		case xhtml.TextToken:
			appendText(top(), string(z.Text()))

		case xhtml.StartTagToken, xhtml.SelfClosingTagToken:
			name, hasAttr := z.TagName()
			tag := string(name)

			if tag == "br" {
				top().Children = append(top().Children, &Element{Tag: "br"})
				continue
			}

			mapped, ok := inlineTags[tag]
			if !ok {
				continue
			}

			el := &Element{Tag: mapped}
			if tag == "a" && hasAttr {
				for {
					key, val, more := z.TagAttr()
					if string(key) == "href" {
						el.Attrs = map[string]string{"href": string(val)}
					}
					if !more {
						break
					}
				}
			}

			top().Children = append(top().Children, el)
			if tt == xhtml.StartTagToken {
				stack = append(stack, el)
			}

		case xhtml.EndTagToken:
			name, _ := z.TagName()
			mapped, ok := inlineTags[string(name)]
			if !ok {
				continue
			}
			for i := len(stack) - 1; i > 0; i-- {
				if stack[i].Tag == mapped {
					stack = stack[:i]
					break
				}
			}
		}
	}
}

// appendText adds text to el, turning single newlines into br nodes.
func appendText(el *Element, text string) {
	for i, line := range strings.Split(text, "\n") {
		if i > 0 {
			el.Children = append(el.Children, &Element{Tag: "br"})
		}
		if line != "" {
			el.Children = append(el.Children, line)
		}
	}
}

// PageTitle returns the text of the first bold span, or fallback when there
// is none, capped at the page title limit.
func PageTitle(markup, fallback string) string {
	title := fallback
	if m := firstBold.FindStringSubmatch(markup); m != nil {
		if t := strings.TrimSpace(html.UnescapeString(anyTag.ReplaceAllString(m[1], ""))); t != "" {
			title = t
		}
	}

	title = strings.TrimSpace(title)
	if utf8.RuneCountInString(title) > maxTitleRunes {
		title = string([]rune(title)[:maxTitleRunes])
	}

	return title
}
