package keyword

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// DefaultSnippetLength is the snippet window width in runes.
const DefaultSnippetLength = 200

const ellipsis = "..."

// Snippet extracts a window of content centered on the earliest
// case-insensitive occurrence of any term. Ellipses mark a window cut short
// by the content bounds on either side. When no term occurs, the leading
// width runes are returned instead.
func Snippet(content string, terms []string, width int) string {
	if width <= 0 {
		width = DefaultSnippetLength
	}
	runes := []rune(content)
	if len(runes) == 0 {
		return ""
	}

	pos := earliestMatch(runes, terms)
	if pos < 0 {
		if len(runes) <= width {
			return collapseSpace(content)
		}
		return collapseSpace(string(runes[:width])) + ellipsis
	}

	start := max(pos-width/2, 0)
	end := min(pos+width/2, len(runes))

	var b strings.Builder
	if start > 0 {
		b.WriteString(ellipsis)
	}
	b.WriteString(collapseSpace(string(runes[start:end])))
	if end < len(runes) {
		b.WriteString(ellipsis)
	}
	return b.String()
}

// earliestMatch returns the rune offset of the first occurrence of any
// term, or -1. Lowercasing is done per rune so offsets line up with the
// original content.
func earliestMatch(runes []rune, terms []string) int {
	lowered := make([]rune, len(runes))
	for i, r := range runes {
		lowered[i] = unicode.ToLower(r)
	}
	haystack := string(lowered)

	best := -1
	for _, term := range terms {
		if term == "" {
			continue
		}
		idx := strings.Index(haystack, strings.ToLower(term))
		if idx < 0 {
			continue
		}
		pos := utf8.RuneCountInString(haystack[:idx])
		if best < 0 || pos < best {
			best = pos
		}
	}
	return best
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
