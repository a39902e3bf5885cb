package keyword

import (
	"sort"
	"strings"
	"sync"

	"github.com/RLabs-Inc/claude-mcp/pkg/types"
)

// Scoring weights. Title matches weigh more than body matches, and the
// repeat bonus is capped so score growth stays sub-linear in frequency.
const (
	TitleWeight       = 10.0
	ContentWeight     = 5.0
	KeywordWeight     = 3.0
	RepeatBonus       = 0.5
	MaxRepeatBonus    = 5.0
	DefaultKeywordCap = 20
)

// Hit is a scored keyword match.
type Hit struct {
	ID      string
	Score   float64
	Snippet string
}

type entry struct {
	doc      *types.Document
	title    string
	content  string
	keywords map[string]struct{}
}

// Index scores documents against free-text queries.
type Index struct {
	mu          sync.RWMutex
	entries     map[string]*entry
	keywordCap  int
	snippetSize int
}

// NewIndex creates an empty keyword index.
func NewIndex() *Index {
	return &Index{
		entries:     make(map[string]*entry),
		keywordCap:  DefaultKeywordCap,
		snippetSize: DefaultSnippetLength,
	}
}

// Add indexes doc, replacing any previous entry with the same ID.
func (ix *Index) Add(doc *types.Document) {
	e := newEntry(doc, ix.keywordCap)
	ix.mu.Lock()
	ix.entries[doc.ID] = e
	ix.mu.Unlock()
}

// Remove drops a document from the index.
func (ix *Index) Remove(id string) {
	ix.mu.Lock()
	delete(ix.entries, id)
	ix.mu.Unlock()
}

// Reset replaces the indexed set with docs.
func (ix *Index) Reset(docs []*types.Document) {
	entries := make(map[string]*entry, len(docs))
	for _, doc := range docs {
		entries[doc.ID] = newEntry(doc, ix.keywordCap)
	}
	ix.mu.Lock()
	ix.entries = entries
	ix.mu.Unlock()
}

// Len returns the number of indexed documents.
func (ix *Index) Len() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.entries)
}

// Keywords returns the stored keyword set of a document, sorted.
func (ix *Index) Keywords(id string) []string {
	ix.mu.RLock()
	e, ok := ix.entries[id]
	ix.mu.RUnlock()
	if !ok {
		return nil
	}
	out := make([]string, 0, len(e.keywords))
	for k := range e.keywords {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Search filters by framework and version, scores the remaining
// documents, drops zero scores and returns the top limit hits.
func (ix *Index) Search(query, framework, version string, limit int) []Hit {
	terms := QueryTerms(query)
	if len(terms) == 0 || limit <= 0 {
		return nil
	}

	type scored struct {
		e     *entry
		score float64
	}

	ix.mu.RLock()
	var candidates []scored
	for _, e := range ix.entries {
		if !e.doc.Matches(framework, version) {
			continue
		}
		if score := e.score(terms); score > 0 {
			candidates = append(candidates, scored{e: e, score: score})
		}
	}
	ix.mu.RUnlock()

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].score != candidates[j].score {
			return candidates[i].score > candidates[j].score
		}
		return candidates[i].e.doc.ID < candidates[j].e.doc.ID
	})
	if len(candidates) > limit {
		candidates = candidates[:limit]
	}

	hits := make([]Hit, len(candidates))
	for i, c := range candidates {
		hits[i] = Hit{
			ID:      c.e.doc.ID,
			Score:   c.score,
			Snippet: Snippet(c.e.doc.Content, terms, ix.snippetSize),
		}
	}
	return hits
}

// Score computes the keyword score of doc for query without indexing it.
func Score(doc *types.Document, query string) float64 {
	return newEntry(doc, DefaultKeywordCap).score(QueryTerms(query))
}

func newEntry(doc *types.Document, keywordCap int) *entry {
	kw := Keywords(doc.Content, keywordCap)
	set := make(map[string]struct{}, len(kw))
	for _, k := range kw {
		set[k] = struct{}{}
	}
	return &entry{
		doc:      doc,
		title:    strings.ToLower(doc.Title),
		content:  strings.ToLower(doc.Content),
		keywords: set,
	}
}

func (e *entry) score(terms []string) float64 {
	var score float64
	for _, term := range terms {
		if strings.Contains(e.title, term) {
			score += TitleWeight
		}
		if n := strings.Count(e.content, term); n > 0 {
			score += ContentWeight + min(float64(n-1)*RepeatBonus, MaxRepeatBonus)
		}
		if _, ok := e.keywords[term]; ok {
			score += KeywordWeight
		}
	}
	return score
}
