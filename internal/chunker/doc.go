// Package chunker divides long documentation pages into sections for
// embedding and search.
//
// A page embedded as a whole is truncated by the embedding provider, so
// text near the end of a long page never reaches the vector index. Splitting
// at headings keeps each document within the embedding budget and lets a
// search result point at the section that matched.
//
// # Basic Usage
//
//	c := chunker.New(0)
//	for _, ch := range c.Chunk(page.Title, page.Content, chunker.StrategySection) {
//	    fmt.Printf("%s#%s: %d tokens, lines %d-%d\n",
//	        ch.Title, ch.Anchor, ch.TokenCount, ch.StartLine, ch.EndLine)
//	}
//
// # Chunking Strategy
//
// Sections start at "##" and "###" headings; "#" is the page title and
// text before the first section heading forms a lead chunk. Headings inside
// fenced code blocks are ignored. Sections larger than the token limit are
// packed paragraph by paragraph into several chunks that share the section
// title and anchor.
//
// # Chunk Sizing
//
// Token estimation uses a simple heuristic (chars/4). The default limit,
// MaxTokensPerChunk, stays well below the providers' input limits.
package chunker
