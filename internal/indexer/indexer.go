package indexer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/RLabs-Inc/claude-mcp/internal/docstore"
	"github.com/RLabs-Inc/claude-mcp/internal/embedder"
	"github.com/RLabs-Inc/claude-mcp/internal/keyword"
	"github.com/RLabs-Inc/claude-mcp/internal/vectorindex"
	"github.com/RLabs-Inc/claude-mcp/pkg/types"
)

// Indexer owns the document store, the vector index and the keyword index
// and keeps them consistent.
//
// Every mutation (add, delete, clear, rebuild) holds mu exclusively;
// searches hold it shared, so they never observe a half-applied insert.
// Embedding calls for new documents happen before mu is taken.
type Indexer struct {
	mu       sync.RWMutex
	cfg      Config
	docs     *docstore.Store
	vectors  *vectorindex.Index
	keywords *keyword.Index
	embedder embedder.Embedder
	logger   *slog.Logger

	initMu  sync.Mutex
	ready   atomic.Bool
	readyCh chan struct{}

	rebuildLock IndexLock
	generation  atomic.Uint64
	dirty       bool
}

// Config contains configuration for the indexer
type Config struct {
	Dir               string             // Directory holding the three index files
	Vector            vectorindex.Config // Dimension 0 means the embedder's dimension
	IncludeEmbeddings bool               // Persist cached vectors in documents.json
	Workers           int                // Concurrent embedding calls (default: runtime.NumCPU())
}

// RebuildStats describes a completed rebuild.
type RebuildStats struct {
	Indexed  int
	Skipped  int
	Duration time.Duration
}

// BatchResult describes the outcome of AddDocuments.
type BatchResult struct {
	Added        []*types.Document
	KeywordOnly  int
	InvalidInput []error
}

// Health summarizes the state of the indexes for operators.
type Health struct {
	Ready          bool   `json:"ready"`
	Documents      int    `json:"documents"`
	VectorSlots    int    `json:"vectorSlots"`
	LiveVectors    int    `json:"liveVectors"`
	DeadVectors    int    `json:"deadVectors"`
	KeywordOnly    int    `json:"keywordOnly"`
	Dimension      int    `json:"dimension"`
	Provider       string `json:"provider"`
	Model          string `json:"model"`
	RebuildRunning bool   `json:"rebuildRunning"`
}

// Candidate is a document scored by one side of the search.
type Candidate struct {
	Doc     *types.Document
	Score   float64
	Snippet string
}

// New creates an Indexer. Nothing is loaded until Initialize or Start.
func New(cfg Config, emb embedder.Embedder, logger *slog.Logger) (*Indexer, error) {
	if emb == nil {
		return nil, fmt.Errorf("%w: embedder is required", types.ErrInvalidInput)
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.NumCPU()
	}
	if cfg.Vector.Dimension == 0 {
		cfg.Vector.Dimension = emb.Dimension()
	}
	defaults := vectorindex.DefaultConfig(cfg.Vector.Dimension)
	if cfg.Vector.MaxElements == 0 {
		cfg.Vector.MaxElements = defaults.MaxElements
	}
	if cfg.Vector.M == 0 {
		cfg.Vector.M = defaults.M
	}
	if cfg.Vector.EfConstruction == 0 {
		cfg.Vector.EfConstruction = defaults.EfConstruction
	}
	if cfg.Vector.EfSearch == 0 {
		cfg.Vector.EfSearch = defaults.EfSearch
	}

	vectors, err := vectorindex.New(cfg.Dir, cfg.Vector)
	if err != nil {
		return nil, fmt.Errorf("create vector index: %w", err)
	}

	return &Indexer{
		cfg:      cfg,
		docs:     docstore.New(cfg.Dir, docstore.WithEmbeddings(cfg.IncludeEmbeddings)),
		vectors:  vectors,
		keywords: keyword.NewIndex(),
		embedder: emb,
		logger:   logger,
		readyCh:  make(chan struct{}),
	}, nil
}

// Start runs Initialize in the background. The returned channel yields
// its result once.
func (idx *Indexer) Start(ctx context.Context) <-chan error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- idx.Initialize(ctx)
		close(errCh)
	}()
	return errCh
}

// Ready reports whether initialization has completed.
func (idx *Indexer) Ready() bool {
	return idx.ready.Load()
}

// WaitReady blocks until initialization completes or ctx is done.
func (idx *Indexer) WaitReady(ctx context.Context) error {
	select {
	case <-idx.readyCh:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// EnsureReady initializes lazily. It waits for an initialization already
// in flight rather than starting a second one.
func (idx *Indexer) EnsureReady(ctx context.Context) error {
	if idx.Ready() {
		return nil
	}
	if err := idx.Initialize(ctx); err != nil {
		return fmt.Errorf("%w: %w", types.ErrIndexNotInitialized, err)
	}
	return nil
}

// Initialize loads persisted state. It is idempotent: once it succeeds,
// further calls return immediately.
//
// A vector index that cannot be used (wrong dimension, inconsistent with
// its mapping, or empty while documents exist) is rebuilt from the
// document store.
func (idx *Indexer) Initialize(ctx context.Context) error {
	idx.initMu.Lock()
	defer idx.initMu.Unlock()

	if idx.ready.Load() {
		return nil
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()

	if err := idx.docs.Load(); err != nil {
		return fmt.Errorf("load documents: %w", err)
	}
	idx.keywords.Reset(idx.docs.All())

	needRebuild := false
	switch err := idx.vectors.Load(); {
	case err == nil:
		if idx.vectors.LiveCount() == 0 && idx.docs.Len() > 0 {
			idx.logger.Warn("vector index is empty but documents exist, rebuilding",
				"documents", idx.docs.Len())
			needRebuild = true
		} else if idx.reconcileLocked(ctx) {
			_ = idx.persistLocked()
		}
	case errors.Is(err, types.ErrDimensionMismatch):
		idx.logger.Warn("discarding vector index built for another dimension",
			"dimension", idx.cfg.Vector.Dimension, "error", err)
		needRebuild = idx.docs.Len() > 0
	default:
		idx.logger.Warn("vector index could not be loaded, rebuilding", "error", err)
		needRebuild = idx.docs.Len() > 0
	}

	if needRebuild {
		stats, err := idx.rebuildLocked(ctx)
		if err != nil {
			idx.logger.Error("rebuild during initialization did not fully persist", "error", err)
		}
		idx.logger.Info("vector index rebuilt",
			"indexed", stats.Indexed, "skipped", stats.Skipped, "duration", stats.Duration)
	}

	idx.generation.Add(1)
	idx.ready.Store(true)
	close(idx.readyCh)

	idx.logger.Info("index initialized",
		"documents", idx.docs.Len(),
		"vectors", idx.vectors.LiveCount(),
		"dead_slots", idx.vectors.DeadCount())
	return nil
}

// reconcileLocked repairs the difference left by a crash between writing
// documents.json and the vector files. Documents without a slot get their
// cached vector reinserted, or a fresh embedding when none was persisted.
// It reports whether anything changed.
func (idx *Indexer) reconcileLocked(ctx context.Context) bool {
	restored, removed := 0, 0
	var unembedded []*types.Document
	for _, doc := range idx.docs.All() {
		if idx.vectors.Contains(doc.ID) {
			continue
		}
		if len(doc.Embedding) != idx.cfg.Vector.Dimension {
			unembedded = append(unembedded, doc)
			continue
		}
		if _, err := idx.vectors.Insert(doc.ID, doc.Embedding); err != nil {
			idx.logger.Warn("could not restore vector for document", "id", doc.ID, "error", err)
			continue
		}
		restored++
	}

	for i, vec := range idx.embedAll(ctx, unembedded) {
		doc := unembedded[i]
		if vec == nil {
			continue
		}
		idx.docs.SetEmbedding(doc.ID, vec)
		if _, err := idx.vectors.Insert(doc.ID, vec); err != nil {
			idx.logger.Warn("could not restore vector for document", "id", doc.ID, "error", err)
			continue
		}
		restored++
	}

	for slot := 0; slot < idx.vectors.NextSlot(); slot++ {
		id, ok := idx.vectors.ID(slot)
		if !ok {
			continue
		}
		if _, exists := idx.docs.Get(id); !exists {
			idx.vectors.Remove(id)
			removed++
		}
	}

	if restored > 0 || removed > 0 {
		idx.logger.Warn("reconciled vector index with document store",
			"restored", restored, "removed", removed)
		// SetEmbedding swapped document pointers.
		idx.keywords.Reset(idx.docs.All())
		return true
	}
	return false
}

// embedAll embeds docs concurrently. A failed document yields nil at its
// position and is logged.
func (idx *Indexer) embedAll(ctx context.Context, docs []*types.Document) [][]float32 {
	out := make([][]float32, len(docs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(idx.cfg.Workers)
	for i, doc := range docs {
		g.Go(func() error {
			vec, err := idx.embed(gctx, doc.EmbeddingText())
			if err != nil {
				idx.logger.Warn("could not embed document", "id", doc.ID, "error", err)
				return nil
			}
			out[i] = vec
			return nil
		})
	}
	_ = g.Wait()
	return out
}

// AddDocument stores a document and indexes it. An embedding failure does
// not fail the call: the document is stored and searchable by keyword.
// A persistence failure is returned together with the stored document.
func (idx *Indexer) AddDocument(ctx context.Context, in types.DocumentInput) (*types.Document, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	if err := idx.EnsureReady(ctx); err != nil {
		return nil, err
	}

	vec := idx.embedDocument(ctx, in.Title, in.Content)

	idx.mu.Lock()
	defer idx.mu.Unlock()

	doc, err := idx.docs.Add(in, vec)
	if err != nil {
		return nil, err
	}
	idx.keywords.Add(doc)
	if vec != nil {
		idx.insertVectorLocked(ctx, doc)
	}
	idx.generation.Add(1)

	return doc, idx.persistLocked()
}

// AddDocuments ingests a batch. Embeddings are generated concurrently and
// the indexes are persisted once at the end. Invalid inputs are skipped
// and reported in the result.
func (idx *Indexer) AddDocuments(ctx context.Context, inputs []types.DocumentInput) (*BatchResult, error) {
	if err := idx.EnsureReady(ctx); err != nil {
		return nil, err
	}

	result := &BatchResult{}
	valid := make([]types.DocumentInput, 0, len(inputs))
	for i, in := range inputs {
		if err := in.Validate(); err != nil {
			result.InvalidInput = append(result.InvalidInput, fmt.Errorf("document %d: %w", i, err))
			continue
		}
		valid = append(valid, in)
	}

	vectors := make([][]float32, len(valid))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(idx.cfg.Workers)
	for i, in := range valid {
		g.Go(func() error {
			vectors[i] = idx.embedDocument(gctx, in.Title, in.Content)
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()

	for i, in := range valid {
		doc, err := idx.docs.Add(in, vectors[i])
		if err != nil {
			result.InvalidInput = append(result.InvalidInput, err)
			continue
		}
		idx.keywords.Add(doc)
		if vectors[i] == nil || !idx.insertVectorLocked(ctx, doc) {
			result.KeywordOnly++
		}
		result.Added = append(result.Added, doc)
	}
	idx.generation.Add(1)

	return result, idx.persistLocked()
}

// embedDocument returns nil when the provider fails; the failure is logged.
func (idx *Indexer) embedDocument(ctx context.Context, title, content string) []float32 {
	vec, err := idx.embed(ctx, types.EmbeddingText(title, content))
	if err != nil {
		idx.logger.Warn("embedding failed, document will be keyword-only",
			"title", title, "error", err)
		return nil
	}
	return vec
}

// embed calls the provider and checks the vector fits the index.
func (idx *Indexer) embed(ctx context.Context, text string) ([]float32, error) {
	emb, err := idx.embedder.GenerateEmbedding(ctx, embedder.EmbeddingRequest{Text: text})
	if err != nil {
		if errors.Is(err, types.ErrEmbedding) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", types.ErrEmbedding, err)
	}
	if len(emb.Vector) != idx.cfg.Vector.Dimension {
		return nil, fmt.Errorf("%w: provider returned %d dimensions, index expects %d",
			types.ErrDimensionMismatch, len(emb.Vector), idx.cfg.Vector.Dimension)
	}
	return emb.Vector, nil
}

// insertVectorLocked adds doc's vector, rebuilding once if the index is
// full of dead slots. It reports whether the document ended up indexed.
func (idx *Indexer) insertVectorLocked(ctx context.Context, doc *types.Document) bool {
	_, err := idx.vectors.Insert(doc.ID, doc.Embedding)
	if errors.Is(err, types.ErrIndexFull) && idx.vectors.DeadCount() > 0 {
		idx.logger.Warn("vector index full, compacting dead slots", "dead_slots", idx.vectors.DeadCount())
		// The rebuild re-inserts every stored document, doc included.
		if _, rerr := idx.rebuildLocked(ctx); rerr != nil {
			idx.logger.Error("compaction rebuild failed to persist", "error", rerr)
		}
		if idx.vectors.Contains(doc.ID) {
			return true
		}
		err = types.ErrIndexFull
	}
	if err != nil {
		idx.logger.Warn("vector insert failed, document will be keyword-only", "id", doc.ID, "error", err)
		return false
	}
	return true
}

// DeleteDocument removes a document. It returns false for an unknown id.
// The vector slot stays dead until the next rebuild.
func (idx *Indexer) DeleteDocument(ctx context.Context, id string) (bool, error) {
	if err := idx.EnsureReady(ctx); err != nil {
		return false, err
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()

	if !idx.docs.Delete(id) {
		return false, nil
	}
	idx.keywords.Remove(id)
	idx.vectors.Remove(id)
	idx.generation.Add(1)

	return true, idx.persistLocked()
}

// ClearFrameworkVersion removes every document tagged framework/version
// and returns how many were removed.
func (idx *Indexer) ClearFrameworkVersion(ctx context.Context, framework, version string) (int, error) {
	if err := idx.EnsureReady(ctx); err != nil {
		return 0, err
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()

	removed := idx.docs.DeleteByFrameworkVersion(framework, version)
	if len(removed) == 0 {
		return 0, nil
	}
	for _, id := range removed {
		idx.keywords.Remove(id)
		idx.vectors.Remove(id)
	}
	idx.generation.Add(1)

	idx.logger.Info("cleared framework version",
		"framework", framework, "version", version, "removed", len(removed))
	return len(removed), idx.persistLocked()
}

// RebuildIndex discards the vector index and re-inserts every stored
// document, regenerating embeddings that are missing. A rebuild already
// running causes ErrRebuildInProgress.
func (idx *Indexer) RebuildIndex(ctx context.Context) (RebuildStats, error) {
	if !idx.rebuildLock.TryAcquire() {
		return RebuildStats{}, types.ErrRebuildInProgress
	}
	defer idx.rebuildLock.Release()

	if err := idx.EnsureReady(ctx); err != nil {
		return RebuildStats{}, err
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()

	stats, err := idx.rebuildLocked(ctx)
	idx.logger.Info("vector index rebuilt",
		"indexed", stats.Indexed, "skipped", stats.Skipped, "duration", stats.Duration)
	return stats, err
}

func (idx *Indexer) rebuildLocked(ctx context.Context) (RebuildStats, error) {
	start := time.Now()
	docs := idx.docs.All()
	dim := idx.cfg.Vector.Dimension

	var missing []*types.Document
	for _, doc := range docs {
		if len(doc.Embedding) != dim {
			missing = append(missing, doc)
		}
	}

	regenerated := idx.embedAll(ctx, missing)
	for i, doc := range missing {
		if regenerated[i] != nil {
			idx.docs.SetEmbedding(doc.ID, regenerated[i])
		}
	}

	idx.vectors.Reset()
	var stats RebuildStats
	for _, doc := range idx.docs.All() {
		if len(doc.Embedding) != dim {
			stats.Skipped++
			continue
		}
		if _, err := idx.vectors.Insert(doc.ID, doc.Embedding); err != nil {
			idx.logger.Warn("skipping document during rebuild", "id", doc.ID, "error", err)
			stats.Skipped++
			continue
		}
		stats.Indexed++
	}
	// SetEmbedding swapped document pointers; refresh the keyword entries.
	idx.keywords.Reset(idx.docs.All())
	idx.generation.Add(1)

	stats.Duration = time.Since(start)
	return stats, errors.Join(idx.persistLocked(), ctx.Err())
}

// persistLocked writes all three files. On failure the in-memory state is
// kept and the store is marked dirty so Close retries.
func (idx *Indexer) persistLocked() error {
	err := errors.Join(idx.docs.Save(), idx.vectors.Save())
	if err != nil {
		idx.dirty = true
		idx.logger.Error("failed to persist index", "dir", idx.cfg.Dir, "error", err)
		return err
	}
	idx.dirty = false
	return nil
}

// Document returns a stored document.
func (idx *Indexer) Document(id string) (*types.Document, bool) {
	return idx.docs.Get(id)
}

// Keywords returns the stored keyword set of a document.
func (idx *Indexer) Keywords(id string) []string {
	return idx.keywords.Keywords(id)
}

// Stats recomputes aggregate statistics from the document store.
func (idx *Indexer) Stats(ctx context.Context) (types.Stats, error) {
	if err := idx.EnsureReady(ctx); err != nil {
		return types.Stats{}, err
	}
	return idx.docs.Stats(), nil
}

// Health reports index sizes, including dead slots awaiting a rebuild.
func (idx *Indexer) Health() Health {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	docs := idx.docs.Len()
	live := idx.vectors.LiveCount()
	return Health{
		Ready:          idx.Ready(),
		Documents:      docs,
		VectorSlots:    idx.vectors.Len(),
		LiveVectors:    live,
		DeadVectors:    idx.vectors.DeadCount(),
		KeywordOnly:    max(docs-live, 0),
		Dimension:      idx.cfg.Vector.Dimension,
		Provider:       idx.embedder.Provider(),
		Model:          idx.embedder.Model(),
		RebuildRunning: idx.rebuildLock.Held(),
	}
}

// Generation changes whenever indexed content changes.
func (idx *Indexer) Generation() uint64 {
	return idx.generation.Load()
}

// VectorCount returns the number of live vectors.
func (idx *Indexer) VectorCount() int {
	return idx.vectors.LiveCount()
}

// EmbedQuery embeds a search query with the same provider and truncation
// used for documents.
func (idx *Indexer) EmbedQuery(ctx context.Context, query string) ([]float32, error) {
	return idx.embed(ctx, query)
}

// SearchVectors returns up to k nearest documents, then drops those that
// fail the framework and version filters.
func (idx *Indexer) SearchVectors(vec []float32, framework, version string, k int) ([]Candidate, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	matches, err := idx.vectors.Query(vec, k)
	if err != nil {
		return nil, err
	}

	out := make([]Candidate, 0, len(matches))
	for _, m := range matches {
		doc, ok := idx.docs.Get(m.ID)
		if !ok || !doc.Matches(framework, version) {
			continue
		}
		out = append(out, Candidate{Doc: doc, Score: m.Score})
	}
	return out, nil
}

// SearchKeywords runs the keyword index with filters applied first.
func (idx *Indexer) SearchKeywords(query, framework, version string, k int) []Candidate {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	hits := idx.keywords.Search(query, framework, version, k)
	out := make([]Candidate, 0, len(hits))
	for _, h := range hits {
		doc, ok := idx.docs.Get(h.ID)
		if !ok {
			continue
		}
		out = append(out, Candidate{Doc: doc, Score: h.Score, Snippet: h.Snippet})
	}
	return out
}

// Close flushes state that failed to persist earlier and releases the
// embedder.
func (idx *Indexer) Close() error {
	idx.mu.Lock()
	var err error
	if idx.dirty {
		err = idx.persistLocked()
	}
	idx.mu.Unlock()
	return errors.Join(err, idx.embedder.Close())
}
