package docstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/google/renameio"
	"github.com/google/uuid"

	"github.com/RLabs-Inc/claude-mcp/pkg/types"
)

// FileName is the document metadata file inside the index directory.
const FileName = "documents.json"

// fileFormat is the on-disk layout of FileName.
type fileFormat struct {
	Documents          []*types.Document `json:"documents"`
	Stats              types.Stats       `json:"stats"`
	IncludesEmbeddings bool              `json:"includesEmbeddings"`
	SavedAt            time.Time         `json:"savedAt"`
}

// Store owns the authoritative document records.
//
// Stored documents are never mutated in place. SetEmbedding swaps in a
// copy, so pointers handed out by Get and All stay valid for readers.
type Store struct {
	mu                sync.RWMutex
	dir               string
	docs              map[string]*types.Document
	lastUpdated       time.Time
	includeEmbeddings bool
	now               func() time.Time
	newID             func() string
}

// Option configures a Store.
type Option func(*Store)

// WithEmbeddings controls whether cached vectors are written to disk.
// Omitting them saves space at the cost of re-embedding on rebuild.
func WithEmbeddings(include bool) Option {
	return func(s *Store) { s.includeEmbeddings = include }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// New creates an empty store persisted under dir.
func New(dir string, opts ...Option) *Store {
	s := &Store{
		dir:               dir,
		docs:              make(map[string]*types.Document),
		includeEmbeddings: true,
		now:               time.Now,
		newID:             uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Path returns the metadata file location.
func (s *Store) Path() string {
	return filepath.Join(s.dir, FileName)
}

// IncludesEmbeddings reports whether Save writes vectors.
func (s *Store) IncludesEmbeddings() bool {
	return s.includeEmbeddings
}

// Load replaces the in-memory contents with the persisted file. A missing
// file leaves the store empty and is not an error.
func (s *Store) Load() error {
	data, err := os.ReadFile(s.Path())
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("%w: read %s: %w", types.ErrStorage, s.Path(), err)
	}

	var f fileFormat
	if err := json.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("%w: decode %s: %w", types.ErrStorage, s.Path(), err)
	}

	docs := make(map[string]*types.Document, len(f.Documents))
	for _, doc := range f.Documents {
		if doc == nil || doc.ID == "" {
			continue
		}
		docs[doc.ID] = doc
	}

	s.mu.Lock()
	s.docs = docs
	s.lastUpdated = f.Stats.LastUpdated
	s.mu.Unlock()
	return nil
}

// Save writes all documents and current stats atomically.
func (s *Store) Save() error {
	s.mu.RLock()
	f := fileFormat{
		Documents:          s.sortedLocked(func(*types.Document) bool { return true }),
		Stats:              s.statsLocked(),
		IncludesEmbeddings: s.includeEmbeddings,
		SavedAt:            s.now().UTC(),
	}
	s.mu.RUnlock()

	if !f.IncludesEmbeddings {
		stripped := make([]*types.Document, len(f.Documents))
		for i, doc := range f.Documents {
			cp := *doc
			cp.Embedding = nil
			stripped[i] = &cp
		}
		f.Documents = stripped
	}

	data, err := json.Marshal(f)
	if err != nil {
		return fmt.Errorf("%w: encode documents: %w", types.ErrStorage, err)
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("%w: create %s: %w", types.ErrStorage, s.dir, err)
	}
	if err := renameio.WriteFile(s.Path(), data, 0o644); err != nil {
		return fmt.Errorf("%w: write %s: %w", types.ErrStorage, s.Path(), err)
	}
	return nil
}

// Add stores a new document with a fresh ID and returns it.
func (s *Store) Add(in types.DocumentInput, embedding []float32) (*types.Document, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	doc := &types.Document{
		ID:        s.newID(),
		Framework: in.Framework,
		Version:   in.Version,
		Path:      in.Path,
		Title:     in.Title,
		Content:   in.Content,
		URL:       in.URL,
		Embedding: embedding,
		CreatedAt: now,
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.docs[doc.ID]; exists {
		return nil, fmt.Errorf("%w: duplicate document id %s", types.ErrInvalidInput, doc.ID)
	}
	s.docs[doc.ID] = doc
	s.lastUpdated = now
	return doc, nil
}

// Get returns the document with id.
func (s *Store) Get(id string) (*types.Document, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.docs[id]
	return doc, ok
}

// SetEmbedding replaces the cached vector of a document. It is used only
// when a rebuild regenerates vectors.
func (s *Store) SetEmbedding(id string, vec []float32) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.docs[id]
	if !ok {
		return false
	}
	cp := *doc
	cp.Embedding = vec
	s.docs[id] = &cp
	return true
}

// Delete removes a document. It returns false if id is unknown.
func (s *Store) Delete(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.docs[id]; !ok {
		return false
	}
	delete(s.docs, id)
	s.lastUpdated = s.now().UTC()
	return true
}

// DeleteByFrameworkVersion removes every document tagged with framework
// and version in a single pass and returns the removed IDs. Framework
// names match case-insensitively, as in search filters. Both values are
// required; an empty one removes nothing.
func (s *Store) DeleteByFrameworkVersion(framework, version string) []string {
	if framework == "" || version == "" {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var removed []string
	for id, doc := range s.docs {
		if doc.Matches(framework, version) {
			removed = append(removed, id)
			delete(s.docs, id)
		}
	}
	if len(removed) > 0 {
		s.lastUpdated = s.now().UTC()
	}
	sort.Strings(removed)
	return removed
}

// All returns every document ordered by creation time, then ID.
func (s *Store) All() []*types.Document {
	return s.Filter("", "")
}

// Filter returns documents matching the optional framework and version.
func (s *Store) Filter(framework, version string) []*types.Document {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sortedLocked(func(d *types.Document) bool { return d.Matches(framework, version) })
}

func (s *Store) sortedLocked(keep func(*types.Document) bool) []*types.Document {
	out := make([]*types.Document, 0, len(s.docs))
	for _, doc := range s.docs {
		if keep(doc) {
			out = append(out, doc)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Len returns the number of stored documents.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.docs)
}

// Stats recomputes the aggregate view by scanning every document.
func (s *Store) Stats() types.Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.statsLocked()
}

func (s *Store) statsLocked() types.Stats {
	versionSets := make(map[string]map[string]struct{})
	for _, doc := range s.docs {
		set, ok := versionSets[doc.Framework]
		if !ok {
			set = make(map[string]struct{})
			versionSets[doc.Framework] = set
		}
		set[doc.Version] = struct{}{}
	}

	stats := types.Stats{
		TotalDocuments: len(s.docs),
		Frameworks:     make([]string, 0, len(versionSets)),
		Versions:       make(map[string][]string, len(versionSets)),
		LastUpdated:    s.lastUpdated,
	}
	for fw, set := range versionSets {
		stats.Frameworks = append(stats.Frameworks, fw)
		versions := make([]string, 0, len(set))
		for v := range set {
			versions = append(versions, v)
		}
		sortVersions(versions)
		stats.Versions[fw] = versions
	}
	sort.Strings(stats.Frameworks)
	return stats
}

// sortVersions orders semantic versions by precedence, so 18.10.0 follows
// 18.9.0. Versions that do not parse sort after them, lexically.
func sortVersions(versions []string) {
	parsed := make(map[string]*semver.Version, len(versions))
	for _, v := range versions {
		if sv, err := semver.NewVersion(v); err == nil {
			parsed[v] = sv
		}
	}
	sort.Slice(versions, func(i, j int) bool {
		a, aok := parsed[versions[i]]
		b, bok := parsed[versions[j]]
		switch {
		case aok && bok:
			if c := a.Compare(b); c != 0 {
				return c < 0
			}
			return versions[i] < versions[j]
		case aok != bok:
			return aok
		default:
			return versions[i] < versions[j]
		}
	})
}
