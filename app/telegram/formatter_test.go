package telegram

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/lysyi3m/rss-relay/app/cfg"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "code fence",
			input: "```html\n<b>عنوان</b>\nنص\n```",
			want:  "<b>عنوان</b>\nنص",
		},
		{
			name:  "heading and strong become bold",
			input: "<h2 class=\"x\">Title</h2>\n<strong>Key</strong>",
			want:  "<b>Title</b>\n<b>Key</b>",
		},
		{
			name:  "emphasis aliases",
			input: "<em>a</em> <ins>b</ins> <del>c</del> <strike>d</strike>",
			want:  "<i>a</i> <u>b</u> <s>c</s> <s>d</s>",
		},
		{
			name:  "line breaks",
			input: "one<br>two<br/>three",
			want:  "one\ntwo\nthree",
		},
		{
			name:  "unsupported tags dropped",
			input: "<div><p>text <span style=\"x\">here</span></p></div>",
			want:  "text here",
		},
		{
			name:  "links keep href",
			input: `<a href="https://example.com">link</a>`,
			want:  `<a href="https://example.com">link</a>`,
		},
		{
			name:  "markdown bold",
			input: "**Title**\nbody",
			want:  "<b>Title</b>\nbody",
		},
		{
			name:  "blank lines collapsed",
			input: "a\n\n\n\n\nb",
			want:  "a\n\nb",
		},
		{
			name:  "escaped text untouched",
			input: "5 &lt; 6 &amp; <code>#tag_name</code>",
			want:  "5 &lt; 6 &amp; <code>#tag_name</code>",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Normalize(tt.input); got != tt.want {
				t.Errorf("Normalize(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestStripMarkup(t *testing.T) {
	got := StripMarkup("<b>Title</b><br>5 &lt; 6 &amp; <code>#x</code>")
	if got != "Title\n5 < 6 & #x" {
		t.Errorf("Unexpected plain text: %q", got)
	}
}

func TestSplitMessageSmartFits(t *testing.T) {
	text := "<b>Title</b>\n\nShort body."
	chunks := SplitMessageSmart(text, 100)
	if len(chunks) != 1 || chunks[0] != text {
		t.Errorf("Expected single unchanged chunk, got %q", chunks)
	}

	// already compliant chunks split to themselves
	again := SplitMessageSmart(chunks[0], 100)
	if len(again) != 1 || again[0] != chunks[0] {
		t.Errorf("Expected idempotent split, got %q", again)
	}
}

func TestSplitMessageSmartParagraphs(t *testing.T) {
	text := strings.Join([]string{
		strings.Repeat("a", 40),
		strings.Repeat("b", 40),
		strings.Repeat("c", 40),
	}, "\n\n")

	chunks := SplitMessageSmart(text, 90)
	want := []string{
		strings.Repeat("a", 40) + "\n\n" + strings.Repeat("b", 40),
		strings.Repeat("c", 40),
	}

	if len(chunks) != len(want) {
		t.Fatalf("Expected %d chunks, got %d: %q", len(want), len(chunks), chunks)
	}
	for i := range want {
		if chunks[i] != want[i] {
			t.Errorf("Chunk %d: expected %q, got %q", i, want[i], chunks[i])
		}
	}
}

func TestSplitMessageSmartSentences(t *testing.T) {
	sentence := strings.Repeat("word ", 6) + "end."
	para := strings.Repeat(sentence+" ", 5)

	chunks := SplitMessageSmart(para, 80)
	if len(chunks) < 2 {
		t.Fatalf("Expected paragraph to be split, got %q", chunks)
	}
	for i, chunk := range chunks {
		if !strings.HasSuffix(chunk, "end.") {
			t.Errorf("Chunk %d should end on a sentence boundary: %q", i, chunk)
		}
	}
}

func TestSplitMessageSmartArabicPunctuation(t *testing.T) {
	line := strings.Repeat("سؤال طويل جدا؟ ", 10)
	chunks := SplitMessageSmart(line, 40)
	for i, chunk := range chunks {
		if !strings.HasSuffix(chunk, "؟") {
			t.Errorf("Chunk %d should end at the Arabic question mark: %q", i, chunk)
		}
	}
}

func TestSplitMessageSmartTruncatesOversizedUnit(t *testing.T) {
	huge := strings.Repeat("x", 200)
	chunks := SplitMessageSmart("intro\n\n"+huge+"\n\noutro", 50)

	if len(chunks) != 3 {
		t.Fatalf("Expected 3 chunks, got %d: %q", len(chunks), chunks)
	}
	if chunks[0] != "intro" || chunks[2] != "outro" {
		t.Errorf("Unexpected surrounding chunks: %q", chunks)
	}
	if !strings.HasSuffix(chunks[1], ellipsis) {
		t.Errorf("Expected ellipsis marker, got %q", chunks[1])
	}
	if n := utf8.RuneCountInString(chunks[1]); n != 50 {
		t.Errorf("Expected truncated chunk of 50 runes, got %d", n)
	}
}

func TestTruncateDropsPartialTag(t *testing.T) {
	got := truncate("abcdefgh <a href=\"https://example.com/long\">x</a>", 15, nil)
	if got != "abcdefgh…" {
		t.Errorf("Expected partial tag removed, got %q", got)
	}
}

func TestTruncateClosesOpenTags(t *testing.T) {
	open := tagStack{{name: "blockquote", start: "<blockquote>"}}

	got := truncate("<b>"+strings.Repeat("x", 100)+"</b>", 40, open)
	if utf8.RuneCountInString(got) > 40 {
		t.Errorf("Expected at most 40 runes, got %d: %q", utf8.RuneCountInString(got), got)
	}
	if !strings.HasSuffix(got, ellipsis+"</b></blockquote>") {
		t.Errorf("Expected inner and outer tags closed after the ellipsis, got %q", got)
	}
}

// checkBalanced fails when chunk has a tag closed out of order or left open.
func checkBalanced(t *testing.T, index int, chunk string) {
	t.Helper()

	var stack []string
	for _, m := range tagPattern.FindAllStringSubmatch(chunk, -1) {
		name := strings.ToLower(m[1])
		if !strings.HasPrefix(m[0], "</") {
			stack = append(stack, name)
			continue
		}
		if len(stack) == 0 || stack[len(stack)-1] != name {
			t.Errorf("Chunk %d closes <%s> without a matching open tag: %q", index, name, chunk)
			return
		}
		stack = stack[:len(stack)-1]
	}

	if len(stack) > 0 {
		t.Errorf("Chunk %d leaves %v open: %q", index, stack, chunk)
	}
}

func TestSplitMessageSmartBalancesTagsAcrossSentences(t *testing.T) {
	sentence := "هذه جملة عربية لاختبار تقسيم الرسائل الطويلة. "
	text := "<b>" + strings.TrimSpace(strings.Repeat(sentence, 40)) + "</b>"

	const maxLen = 500
	chunks := SplitMessageSmart(text, maxLen)
	if len(chunks) < 3 {
		t.Fatalf("Expected the bold paragraph to be split, got %d chunks", len(chunks))
	}

	for i, chunk := range chunks {
		checkBalanced(t, i, chunk)
		if n := utf8.RuneCountInString(chunk); n > maxLen {
			t.Errorf("Chunk %d has %d runes, limit %d", i, n, maxLen)
		}
		if !strings.HasPrefix(chunk, "<b>") || !strings.HasSuffix(chunk, "</b>") {
			t.Errorf("Chunk %d should stay bold: %q", i, chunk)
		}
	}

	squash := func(s string) string { return strings.Join(strings.Fields(StripMarkup(s)), "") }
	if squash(strings.Join(chunks, " ")) != squash(text) {
		t.Error("Chunks do not reconstruct the input text")
	}
}

func TestSplitMessageSmartBalancesBlockquoteAcrossParagraphs(t *testing.T) {
	para := strings.Repeat("ب", 60)
	text := "<b>عنوان</b>\n\n<blockquote>" + para + "\n\n" + para + "\n\n" + para + "</blockquote>\n\nخاتمة"

	const maxLen = 100
	chunks := SplitMessageSmart(text, maxLen)

	quoted := 0
	for i, chunk := range chunks {
		checkBalanced(t, i, chunk)
		if n := utf8.RuneCountInString(chunk); n > maxLen {
			t.Errorf("Chunk %d has %d runes, limit %d", i, n, maxLen)
		}
		if strings.Contains(chunk, para) {
			quoted++
			if !strings.HasPrefix(chunk, "<blockquote>") {
				t.Errorf("Chunk %d should reopen the quote: %q", i, chunk)
			}
		}
	}

	if quoted != 3 {
		t.Errorf("Expected the quote to span 3 chunks, got %d: %q", quoted, chunks)
	}
	if last := chunks[len(chunks)-1]; !strings.HasSuffix(last, "</blockquote>\n\nخاتمة") {
		t.Errorf("Expected trailing paragraph after the closed quote, got %q", last)
	}
}

func TestSplitMessageSmartTruncationClosesTags(t *testing.T) {
	chunks := SplitMessageSmart("<i>"+strings.Repeat("x", 200)+"</i>", 50)

	if len(chunks) != 1 {
		t.Fatalf("Expected 1 truncated chunk, got %q", chunks)
	}
	checkBalanced(t, 0, chunks[0])
	if utf8.RuneCountInString(chunks[0]) > 50 {
		t.Errorf("Expected at most 50 runes, got %q", chunks[0])
	}
	if !strings.HasSuffix(chunks[0], ellipsis+"</i>") {
		t.Errorf("Expected ellipsis before the closing tag, got %q", chunks[0])
	}
}

func TestSplitMessageSmartProperties(t *testing.T) {
	var b strings.Builder
	for i := range 40 {
		b.WriteString("<b>Section</b>\n")
		for range i%5 + 1 {
			b.WriteString("هذه جملة في فقرة طويلة نسبيا لاختبار التقسيم. ")
		}
		b.WriteString("\n\n")
	}
	text := b.String()

	const maxLen = 300
	chunks := SplitMessageSmart(text, maxLen)

	for i, chunk := range chunks {
		if n := utf8.RuneCountInString(chunk); n > maxLen {
			t.Errorf("Chunk %d has %d runes, limit %d", i, n, maxLen)
		}
		if strings.TrimSpace(chunk) == "" {
			t.Errorf("Chunk %d is blank", i)
		}
	}

	squash := func(s string) string { return strings.Join(strings.Fields(s), "") }
	if squash(strings.Join(chunks, " ")) != squash(text) {
		t.Error("Chunks do not reconstruct the input")
	}
}

func TestFormatterRun(t *testing.T) {
	limits := cfg.DefaultLimits()
	limits.SafeMessageLength = 60
	limits.MaxMessageLength = 64

	chunks := NewFormatter(limits).Run("```\n<h1>عنوان</h1>\n\n" + strings.Repeat("نص قصير. ", 20) + "\n```")
	if len(chunks) < 2 {
		t.Fatalf("Expected multiple chunks, got %q", chunks)
	}
	if !strings.HasPrefix(chunks[0], "<b>عنوان</b>\n\n") {
		t.Errorf("Expected normalized title first, got %q", chunks[0])
	}
	if strings.Contains(strings.Join(chunks, ""), "```") {
		t.Error("Expected code fence removed")
	}
	for i, chunk := range chunks {
		if utf8.RuneCountInString(chunk) > 60 {
			t.Errorf("Chunk %d exceeds safe length: %q", i, chunk)
		}
	}
}
