package types

// SearchResult is one ranked hit returned to callers.
type SearchResult struct {
	ID        string  `json:"id"`
	Framework string  `json:"framework"`
	Version   string  `json:"version"`
	Path      string  `json:"path"`
	Title     string  `json:"title"`
	URL       string  `json:"url,omitempty"`
	Snippet   string  `json:"snippet"`
	Score     float64 `json:"score"`
}

// NewSearchResult copies the display fields of doc into a result.
func NewSearchResult(doc *Document, snippet string, score float64) SearchResult {
	return SearchResult{
		ID:        doc.ID,
		Framework: doc.Framework,
		Version:   doc.Version,
		Path:      doc.Path,
		Title:     doc.Title,
		URL:       doc.URL,
		Snippet:   snippet,
		Score:     score,
	}
}
