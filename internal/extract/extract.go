// Package extract turns raw HTML into the plain text that is fed to prompts.
package extract

import (
	"strings"

	"golang.org/x/net/html"
)

// maxPasses bounds the fixed-point loop in Text. Every pass that changes its
// input makes it strictly shorter, so real documents settle in one or two.
const maxPasses = 16

// Text strips markup from htmlContent: script and style elements are removed
// with their content, remaining tags are dropped, entities are decoded and
// runs of whitespace collapse to one space. It never fails; malformed markup
// yields whatever text survives, possibly "".
//
// Decoding can surface markup that was escaped in the page ("&lt;b&gt;"), so
// the extraction is repeated until the output no longer changes. The result
// is therefore a fixed point: Text(Text(s)) == Text(s).
func Text(htmlContent string) string {
	text := extractOnce(htmlContent)
	for i := 0; i < maxPasses; i++ {
		next := extractOnce(text)
		if next == text {
			break
		}
		text = next
	}
	return text
}

func extractOnce(htmlContent string) string {
	z := html.NewTokenizer(strings.NewReader(htmlContent))

	var sb strings.Builder
	dropDepth := 0

	for {
		switch z.Next() {
		case html.ErrorToken:
			// io.EOF or a tokenizer error; either way we keep what we have.
			return collapseWhitespace(sb.String())
		case html.TextToken:
			if dropDepth == 0 {
				sb.Write(z.Text())
			}
		case html.StartTagToken:
			if name, _ := z.TagName(); isDropped(name) {
				dropDepth++
			}
			sb.WriteByte(' ')
		case html.EndTagToken:
			if name, _ := z.TagName(); isDropped(name) && dropDepth > 0 {
				dropDepth--
			}
			sb.WriteByte(' ')
		default:
			// Self-closing tags, comments and doctypes separate words like any tag.
			sb.WriteByte(' ')
		}
	}
}

func isDropped(tag []byte) bool {
	switch string(tag) {
	case "script", "style":
		return true
	}
	return false
}

func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// Truncate returns the first n characters of s. Lengths are counted in runes
// so multi-byte text is never cut in the middle of a character.
func Truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if len(s) <= n {
		return s
	}
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

// Length is the character count used by every content threshold.
func Length(s string) int {
	return len([]rune(s))
}
