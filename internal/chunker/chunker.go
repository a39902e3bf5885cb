package chunker

import (
	"strconv"
	"strings"
	"unicode"
)

const (
	// MaxTokensPerChunk is the target maximum token count per chunk
	MaxTokensPerChunk = 1000

	// TokensPerChar is the heuristic for estimating tokens (chars/4)
	TokensPerChar = 4

	// titleSeparator joins the page title and a section heading
	titleSeparator = " - "
)

// Strategy selects how a page is divided.
type Strategy int

const (
	// StrategyPage keeps the whole page as one chunk
	StrategyPage Strategy = iota
	// StrategySection creates one chunk per "##" or "###" heading section
	StrategySection
)

// Chunk is one indexable piece of a documentation page.
type Chunk struct {
	Title      string // Page title, plus the section heading for sections
	Anchor     string // Heading slug; empty for the text before the first heading
	Content    string
	StartLine  int // 1-based, inclusive
	EndLine    int
	TokenCount int
}

// Chunker divides documentation pages at heading boundaries
type Chunker struct {
	maxTokens int
}

// New creates a Chunker. maxTokens <= 0 means MaxTokensPerChunk.
func New(maxTokens int) *Chunker {
	if maxTokens <= 0 {
		maxTokens = MaxTokensPerChunk
	}
	return &Chunker{maxTokens: maxTokens}
}

// Chunk divides content according to strategy. Sections longer than the
// token limit are split further at blank lines; a single paragraph over
// the limit is kept whole. Sections holding nothing but headings are
// dropped.
func (c *Chunker) Chunk(title, content string, strategy Strategy) []Chunk {
	lines := strings.Split(content, "\n")
	if strings.TrimSpace(content) == "" {
		return nil
	}

	if strategy == StrategyPage {
		return []Chunk{newChunk(title, "", lines, 0, len(lines))}
	}

	var chunks []Chunk
	slugs := make(map[string]int)
	for _, sec := range c.sections(lines) {
		sectionTitle := title
		anchor := ""
		if sec.heading != "" {
			sectionTitle = joinTitle(title, sec.heading)
			anchor = uniqueSlug(slugs, sec.heading)
		}

		if !hasBody(lines[sec.start:sec.end]) {
			continue
		}
		for _, part := range c.splitOversized(lines, sec.start, sec.end) {
			chunks = append(chunks, newChunk(sectionTitle, anchor, lines, part[0], part[1]))
		}
	}
	return chunks
}

type section struct {
	heading    string
	start, end int // line range [start, end)
}

// sections finds "##" and "###" headings outside fenced code blocks. Level
// one headings belong to the page title and do not start a section.
func (c *Chunker) sections(lines []string) []section {
	var out []section
	current := section{}
	inFence := false

	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if isFence(trimmed) {
			inFence = !inFence
			continue
		}
		if inFence {
			continue
		}
		heading, level := parseHeading(trimmed)
		if level != 2 && level != 3 {
			continue
		}

		current.end = i
		if current.end > current.start {
			out = append(out, current)
		}
		current = section{heading: heading, start: i}
	}

	current.end = len(lines)
	if current.end > current.start {
		out = append(out, current)
	}
	return out
}

// splitOversized packs the paragraphs of [start, end) into ranges of at
// most maxTokens each. A paragraph over the limit gets a range of its own.
func (c *Chunker) splitOversized(lines []string, start, end int) [][2]int {
	if EstimateTokenCount(strings.Join(lines[start:end], "\n")) <= c.maxTokens {
		return [][2]int{{start, end}}
	}

	var parts [][2]int
	partStart, partTokens := start, 0
	for _, para := range paragraphs(lines, start, end) {
		tokens := EstimateTokenCount(strings.Join(lines[para[0]:para[1]], "\n"))
		if partTokens > 0 && partTokens+tokens > c.maxTokens {
			parts = append(parts, [2]int{partStart, para[0]})
			partStart, partTokens = para[0], 0
		}
		partTokens += tokens
	}
	return append(parts, [2]int{partStart, end})
}

// paragraphs returns the blank-line separated blocks of [start, end).
// Blank lines inside fenced code do not end a block.
func paragraphs(lines []string, start, end int) [][2]int {
	var out [][2]int
	blockStart := -1
	inFence := false
	for i := start; i < end; i++ {
		trimmed := strings.TrimSpace(lines[i])
		if isFence(trimmed) {
			inFence = !inFence
		}
		if trimmed == "" && !inFence {
			if blockStart >= 0 {
				out = append(out, [2]int{blockStart, i})
				blockStart = -1
			}
			continue
		}
		if blockStart < 0 {
			blockStart = i
		}
	}
	if blockStart >= 0 {
		out = append(out, [2]int{blockStart, end})
	}
	return out
}

func isFence(trimmed string) bool {
	return strings.HasPrefix(trimmed, "```") || strings.HasPrefix(trimmed, "~~~")
}

func newChunk(title, anchor string, lines []string, start, end int) Chunk {
	content := strings.TrimSpace(strings.Join(lines[start:end], "\n"))
	return Chunk{
		Title:      title,
		Anchor:     anchor,
		Content:    content,
		StartLine:  start + 1,
		EndLine:    end,
		TokenCount: EstimateTokenCount(content),
	}
}

// parseHeading returns the text and level of an ATX heading, or level 0.
func parseHeading(line string) (string, int) {
	level := 0
	for level < len(line) && line[level] == '#' {
		level++
	}
	if level == 0 || level > 6 || level == len(line) || line[level] != ' ' {
		return "", 0
	}
	text := strings.TrimSpace(strings.TrimRight(strings.TrimSpace(line[level:]), "#"))
	return text, level
}

// hasBody reports whether lines contain text other than headings.
func hasBody(lines []string) bool {
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if _, level := parseHeading(trimmed); trimmed != "" && level == 0 {
			return true
		}
	}
	return false
}

func joinTitle(title, heading string) string {
	if title == "" {
		return heading
	}
	return title + titleSeparator + heading
}

// Slug converts a heading to a URL fragment the way documentation sites
// generate heading ids: lower case, spaces become hyphens, punctuation is
// dropped.
func Slug(heading string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(heading) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r) || r == '-' || r == '_':
			b.WriteRune(r)
		case unicode.IsSpace(r):
			b.WriteByte('-')
		}
	}
	return b.String()
}

// uniqueSlug disambiguates repeated headings with -1, -2, ...
func uniqueSlug(seen map[string]int, heading string) string {
	slug := Slug(heading)
	n := seen[slug]
	seen[slug] = n + 1
	if n == 0 {
		return slug
	}
	return slug + "-" + strconv.Itoa(n)
}

// EstimateTokenCount estimates the number of tokens in a string
func EstimateTokenCount(text string) int {
	return len(text) / TokensPerChar
}
