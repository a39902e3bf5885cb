package ingest

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/RLabs-Inc/claude-mcp/pkg/types"
)

// Format identifies how raw document content is encoded.
type Format string

const (
	FormatText     Format = "text"
	FormatMarkdown Format = "markdown"
	FormatHTML     Format = "html"
)

// Page is extracted document text ready for indexing.
type Page struct {
	Title   string
	Content string
}

// ParseFormat maps a user-supplied name to a Format. Empty means text.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "text", "txt":
		return FormatText, nil
	case "markdown", "md":
		return FormatMarkdown, nil
	case "html", "htm":
		return FormatHTML, nil
	default:
		return "", fmt.Errorf("%w: unknown format %q", types.ErrInvalidInput, s)
	}
}

// FormatForPath guesses the format from a file extension.
func FormatForPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".html", ".htm":
		return FormatHTML
	case ".md", ".markdown", ".mdx":
		return FormatMarkdown
	default:
		return FormatText
	}
}

// Parse extracts a Page from raw content.
func Parse(format Format, raw string) (Page, error) {
	switch format {
	case FormatHTML:
		return FromHTML(raw)
	case FormatMarkdown:
		return FromMarkdown(raw), nil
	case FormatText, "":
		return Page{Content: strings.TrimSpace(raw)}, nil
	default:
		return Page{}, fmt.Errorf("%w: unknown format %q", types.ErrInvalidInput, format)
	}
}

// FromFile reads and parses a file. When the content has no title, the
// file name without extension is used.
func FromFile(path string) (Page, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Page{}, fmt.Errorf("read %s: %w", path, err)
	}
	page, err := Parse(FormatForPath(path), string(data))
	if err != nil {
		return Page{}, err
	}
	if page.Title == "" {
		page.Title = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return page, nil
}

// FromMarkdown takes the first level-one heading as the title. The body is
// kept as written; markdown syntax is harmless to both indexes.
func FromMarkdown(raw string) Page {
	page := Page{Content: strings.TrimSpace(raw)}
	sc := bufio.NewScanner(strings.NewReader(raw))
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if title, ok := strings.CutPrefix(line, "# "); ok {
			page.Title = strings.TrimSpace(title)
			break
		}
	}
	return page
}

// Elements whose text never belongs in a document body.
const strippedSelector = "script, style, noscript, template, nav, header, footer, aside, svg, iframe"

// Content roots tried in order before falling back to body.
var contentSelectors = []string{"main", "article", "[role=main]", ".content", "body"}

var blockElements = map[string]bool{
	"address": true, "article": true, "blockquote": true, "dd": true, "div": true,
	"dl": true, "dt": true, "figcaption": true, "figure": true, "h1": true,
	"h2": true, "h3": true, "h4": true, "h5": true, "h6": true, "hr": true,
	"li": true, "main": true, "ol": true, "p": true, "pre": true, "section": true,
	"table": true, "td": true, "th": true, "tr": true, "ul": true,
}

// FromHTML extracts the title (the <title> element, else the first <h1>)
// and the visible text of the main content area. Block elements become
// line breaks.
func FromHTML(raw string) (Page, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(raw))
	if err != nil {
		return Page{}, fmt.Errorf("%w: failed to parse HTML: %w", types.ErrInvalidInput, err)
	}

	title := collapse(doc.Find("title").First().Text())
	if title == "" {
		title = collapse(doc.Find("h1").First().Text())
	}

	doc.Find(strippedSelector).Remove()

	root := doc.Selection
	for _, sel := range contentSelectors {
		if found := doc.Find(sel).First(); found.Length() > 0 {
			root = found
			break
		}
	}

	var b strings.Builder
	writeText(&b, root, false)
	return Page{Title: title, Content: normalizeLines(b.String())}, nil
}

// writeText flattens sel. Line breaks inside text nodes are layout, not
// content, except within <pre>.
func writeText(b *strings.Builder, sel *goquery.Selection, inPre bool) {
	sel.Contents().Each(func(_ int, child *goquery.Selection) {
		name := goquery.NodeName(child)
		switch name {
		case "#text":
			text := child.Text()
			if !inPre {
				text = strings.Map(func(r rune) rune {
					if r == '\n' || r == '\r' || r == '\t' {
						return ' '
					}
					return r
				}, text)
			}
			b.WriteString(text)
			return
		case "#comment":
			return
		case "br":
			b.WriteByte('\n')
			return
		}
		block := blockElements[name]
		if block {
			b.WriteByte('\n')
		}
		writeText(b, child, inPre || name == "pre")
		if block {
			b.WriteByte('\n')
		}
	})
}

func normalizeLines(s string) string {
	var lines []string
	for _, line := range strings.Split(s, "\n") {
		if line = collapse(line); line != "" {
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, "\n")
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
