package telegram

import (
	"html"
	"regexp"
	"slices"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/lysyi3m/rss-relay/app/cfg"
)

const ellipsis = "…"

var (
	codeFencePattern  = regexp.MustCompile("(?s)^```[a-zA-Z]*[ \t]*\n?(.*?)\n?```$")
	breakPattern      = regexp.MustCompile(`(?i)<br\s*/?>`)
	boldAliasPattern  = regexp.MustCompile(`(?i)<(/?)(?:h[1-6]|strong)(?:\s[^>]*)?>`)
	italicPattern     = regexp.MustCompile(`(?i)<(/?)em(?:\s[^>]*)?>`)
	underlinePattern  = regexp.MustCompile(`(?i)<(/?)ins(?:\s[^>]*)?>`)
	strikePattern     = regexp.MustCompile(`(?i)<(/?)(?:strike|del)(?:\s[^>]*)?>`)
	tagPattern        = regexp.MustCompile(`</?([a-zA-Z][a-zA-Z0-9-]*)[^>]*>`)
	markdownBold      = regexp.MustCompile(`\*\*([^*\n]+?)\*\*`)
	extraBlankLines   = regexp.MustCompile(`\n{3,}`)
	trailingLineSpace = regexp.MustCompile(`[ \t]+\n`)
	anyTagPattern     = regexp.MustCompile(`<[^>]*>`)
)

// Tags the messaging API accepts in HTML parse mode.
var allowedTags = map[string]bool{
	"b":          true,
	"i":          true,
	"u":          true,
	"s":          true,
	"code":       true,
	"pre":        true,
	"a":          true,
	"blockquote": true,
	"tg-spoiler": true,
}

type Formatter struct {
	limits *cfg.Limits
}

func NewFormatter(limits *cfg.Limits) *Formatter {
	return &Formatter{limits: limits}
}

// Run normalizes generated markup and splits it into deliverable chunks.
func (f *Formatter) Run(raw string) []string {
	return SplitMessageSmart(Normalize(raw), f.limits.SafeMessageLength)
}

// Normalize rewrites generated markup into the subset the messaging API
// renders.
func Normalize(raw string) string {
	text := strings.ReplaceAll(raw, "\r\n", "\n")
	text = StripCodeFence(text)

	text = breakPattern.ReplaceAllString(text, "\n")
	text = boldAliasPattern.ReplaceAllString(text, "<${1}b>")
	text = italicPattern.ReplaceAllString(text, "<${1}i>")
	text = underlinePattern.ReplaceAllString(text, "<${1}u>")
	text = strikePattern.ReplaceAllString(text, "<${1}s>")

	text = tagPattern.ReplaceAllStringFunc(text, func(tag string) string {
		name := strings.ToLower(tagPattern.FindStringSubmatch(tag)[1])
		if !allowedTags[name] {
			return ""
		}
		if name == "a" {
			return tag
		}
		if strings.HasPrefix(tag, "</") {
			return "</" + name + ">"
		}
		return "<" + name + ">"
	})

	text = markdownBold.ReplaceAllString(text, "<b>$1</b>")
	text = trailingLineSpace.ReplaceAllString(text, "\n")
	text = extraBlankLines.ReplaceAllString(text, "\n\n")

	return strings.TrimSpace(text)
}

func StripCodeFence(text string) string {
	trimmed := strings.TrimSpace(text)
	if m := codeFencePattern.FindStringSubmatch(trimmed); m != nil {
		return strings.TrimSpace(m[1])
	}
	return trimmed
}

// StripMarkup removes every tag and decodes entities, for plain-text sends.
func StripMarkup(text string) string {
	plain := breakPattern.ReplaceAllString(text, "\n")
	plain = anyTagPattern.ReplaceAllString(plain, "")
	plain = html.UnescapeString(plain)
	plain = extraBlankLines.ReplaceAllString(plain, "\n\n")
	return strings.TrimSpace(plain)
}

// SplitMessageSmart packs text into chunks of at most maxLen runes. Units are
// paragraphs, then lines, then sentences; a single sentence longer than
// maxLen is truncated with an ellipsis. Tags open at a chunk boundary are
// closed at the end of the chunk and reopened at the start of the next.
func SplitMessageSmart(text string, maxLen int) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if utf8.RuneCountInString(text) <= maxLen {
		return []string{text}
	}

	p := &packer{maxLen: maxLen}

	for _, para := range splitParagraphs(text) {
		if p.fitsAlone(para) {
			p.add(para, "\n\n")
			continue
		}

		sep := "\n\n"
		for _, line := range strings.Split(para, "\n") {
			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}
			if p.fitsAlone(line) {
				p.add(line, sep)
				sep = "\n"
				continue
			}
			for _, sentence := range splitSentences(line) {
				p.add(sentence, sep)
				sep = " "
			}
			sep = "\n"
		}
	}

	p.flush()
	return p.chunks
}

type packer struct {
	maxLen     int
	chunks     []string
	buf        strings.Builder
	bufLen     int
	hasContent bool
	open       tagStack // tags still open at the end of buf
}

// add appends unit to the current chunk, starting a new one when it would
// not fit together with the closing tags it leaves open.
func (p *packer) add(unit, sep string) {
	after := p.open.scan(unit)
	unitLen := utf8.RuneCountInString(unit)
	sepLen := utf8.RuneCountInString(sep)

	if p.hasContent && p.bufLen+sepLen+unitLen+after.closingLen() > p.maxLen {
		p.flush()
	}
	if !p.hasContent {
		sep, sepLen = "", 0
	}

	if p.bufLen+sepLen+unitLen+after.closingLen() > p.maxLen {
		p.push(p.buf.String() + truncate(unit, p.maxLen-p.bufLen, p.open))
		p.reset(after)
		return
	}

	p.buf.WriteString(sep)
	p.buf.WriteString(unit)
	p.bufLen += sepLen + unitLen
	p.hasContent = true
	p.open = after
}

// fitsAlone reports whether unit fits in a fresh chunk, counting the tags
// reopened in front of it and closed after it.
func (p *packer) fitsAlone(unit string) bool {
	return utf8.RuneCountInString(p.open.opening())+utf8.RuneCountInString(unit)+p.open.scan(unit).closingLen() <= p.maxLen
}

// flush closes the open tags, emits the chunk and reopens them in the next.
func (p *packer) flush() {
	if p.hasContent {
		p.push(p.buf.String() + p.open.closing())
	}
	p.reset(p.open)
}

func (p *packer) reset(open tagStack) {
	prefix := open.opening()
	if 2*(utf8.RuneCountInString(prefix)+open.closingLen()) > p.maxLen {
		open, prefix = nil, ""
	}

	p.open = open
	p.buf.Reset()
	p.buf.WriteString(prefix)
	p.bufLen = utf8.RuneCountInString(prefix)
	p.hasContent = false
}

func (p *packer) push(chunk string) {
	if chunk = strings.TrimSpace(chunk); chunk != "" {
		p.chunks = append(p.chunks, chunk)
	}
}

type openTag struct {
	name  string
	start string
}

// tagStack holds the whitelisted tags opened and not yet closed, outermost
// first.
type tagStack []openTag

// scan returns the stack after the tags in s. Unknown and stray closing tags
// are ignored.
func (st tagStack) scan(s string) tagStack {
	out := slices.Clone(st)

	for _, m := range tagPattern.FindAllStringSubmatch(s, -1) {
		name := strings.ToLower(m[1])
		if !allowedTags[name] {
			continue
		}

		if strings.HasPrefix(m[0], "</") {
			for i := len(out) - 1; i >= 0; i-- {
				if out[i].name == name {
					out = slices.Delete(out, i, i+1)
					break
				}
			}
			continue
		}

		if !strings.HasSuffix(m[0], "/>") {
			out = append(out, openTag{name: name, start: m[0]})
		}
	}

	return out
}

func (st tagStack) opening() string {
	var b strings.Builder
	for _, t := range st {
		b.WriteString(t.start)
	}
	return b.String()
}

func (st tagStack) closing() string {
	var b strings.Builder
	for i := len(st) - 1; i >= 0; i-- {
		b.WriteString("</" + st[i].name + ">")
	}
	return b.String()
}

func (st tagStack) closingLen() int {
	return utf8.RuneCountInString(st.closing())
}

func splitParagraphs(text string) []string {
	var paragraphs []string
	for _, para := range strings.Split(text, "\n\n") {
		if para = strings.TrimSpace(para); para != "" {
			paragraphs = append(paragraphs, para)
		}
	}
	return paragraphs
}

// splitSentences cuts after terminal punctuation followed by whitespace.
func splitSentences(line string) []string {
	var (
		sentences []string
		start     int
	)

	inTag := false
	runes := []rune(line)
	for i := 0; i < len(runes)-1; i++ {
		switch runes[i] {
		case '<':
			inTag = true
		case '>':
			inTag = false
		}
		if inTag || !isTerminal(runes[i]) || !unicode.IsSpace(runes[i+1]) {
			continue
		}
		if s := strings.TrimSpace(string(runes[start : i+1])); s != "" {
			sentences = append(sentences, s)
		}
		start = i + 1
	}

	if s := strings.TrimSpace(string(runes[start:])); s != "" {
		sentences = append(sentences, s)
	}

	return sentences
}

func isTerminal(r rune) bool {
	switch r {
	case '.', '!', '?', '؟':
		return true
	}
	return false
}

// truncate cuts s to at most maxLen runes including the ellipsis and the
// closing tags for everything left open, given the tags already open before
// s. A partial tag at the cut is dropped.
func truncate(s string, maxLen int, open tagStack) string {
	runes := []rune(s)
	limit := maxLen - utf8.RuneCountInString(ellipsis) - open.closingLen()

	for limit > 0 {
		cut := string(runes[:min(limit, len(runes))])
		if i := strings.LastIndex(cut, "<"); i > strings.LastIndex(cut, ">") {
			cut = cut[:i]
		}
		cut = strings.TrimRightFunc(cut, unicode.IsSpace)

		out := cut + ellipsis + open.scan(cut).closing()
		n := utf8.RuneCountInString(out)
		if n <= maxLen {
			return out
		}
		limit -= n - maxLen
	}

	return ""
}
