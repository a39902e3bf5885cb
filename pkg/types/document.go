package types

import (
	"fmt"
	"strings"
	"time"
)

// Document is a single piece of extracted documentation text.
//
// A document is immutable once stored. Its Embedding is computed once and
// only ever replaced wholesale by an index rebuild.
type Document struct {
	ID        string    `json:"id"`
	Framework string    `json:"framework"`
	Version   string    `json:"version"`
	Path      string    `json:"path"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	URL       string    `json:"url,omitempty"`
	Embedding []float32 `json:"embedding,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// HasEmbedding reports whether a cached vector is attached.
func (d *Document) HasEmbedding() bool {
	return len(d.Embedding) > 0
}

// EmbeddingText is the text fed to the embedding provider for this document.
func (d *Document) EmbeddingText() string {
	return EmbeddingText(d.Title, d.Content)
}

// EmbeddingText joins a title and body the same way for indexing and rebuilds.
func EmbeddingText(title, content string) string {
	if title == "" {
		return content
	}
	return title + "\n\n" + content
}

// Matches reports whether the document passes the optional framework and
// version filters. Empty filter values match everything.
func (d *Document) Matches(framework, version string) bool {
	if framework != "" && !strings.EqualFold(d.Framework, framework) {
		return false
	}
	if version != "" && d.Version != version {
		return false
	}
	return true
}

// DocumentInput is the record supplied by content ingestion.
type DocumentInput struct {
	Framework string `json:"framework"`
	Version   string `json:"version"`
	Path      string `json:"path"`
	Title     string `json:"title"`
	Content   string `json:"content"`
	URL       string `json:"url,omitempty"`
}

// Validate checks the fields every stored document must carry.
func (in DocumentInput) Validate() error {
	switch {
	case strings.TrimSpace(in.Framework) == "":
		return fmt.Errorf("%w: framework is required", ErrInvalidInput)
	case strings.TrimSpace(in.Version) == "":
		return fmt.Errorf("%w: version is required", ErrInvalidInput)
	case strings.TrimSpace(in.Title) == "" && strings.TrimSpace(in.Content) == "":
		return fmt.Errorf("%w: title or content is required", ErrInvalidInput)
	}
	return nil
}

// Stats is the aggregate view over the document store. It is derived on
// demand and never treated as a source of truth.
type Stats struct {
	TotalDocuments int                 `json:"totalDocuments"`
	Frameworks     []string            `json:"frameworks"`
	Versions       map[string][]string `json:"versions"`
	LastUpdated    time.Time           `json:"lastUpdated"`
}
