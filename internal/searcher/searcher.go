package searcher

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/errgroup"

	"github.com/RLabs-Inc/claude-mcp/internal/indexer"
	"github.com/RLabs-Inc/claude-mcp/internal/keyword"
	"github.com/RLabs-Inc/claude-mcp/pkg/types"
)

// SearchMode defines how search is performed
type SearchMode string

const (
	SearchModeHybrid   SearchMode = "hybrid"   // Weighted vector + keyword
	SearchModeSemantic SearchMode = "semantic" // Vector similarity only
	SearchModeKeyword  SearchMode = "keyword"  // Keyword scoring only
)

// Request limits.
const (
	MaxQueryLength = 300
	MaxLimit       = 100
	DefaultLimit   = 10
	DefaultAlpha   = 0.5
)

// Fallback reasons, logged as the "reason" attribute.
const (
	reasonNotReady     = "vector_index_not_ready"
	reasonEmpty        = "vector_index_empty"
	reasonSearchFailed = "search_failed"
)

// Index is the part of the indexer the searcher reads from.
//
// EnsureReady must load the document store and keyword index, waiting for
// an initialization already in flight. Ready then reports whether the
// vector side can serve queries.
type Index interface {
	EnsureReady(ctx context.Context) error
	Ready() bool
	VectorCount() int
	Generation() uint64
	EmbedQuery(ctx context.Context, query string) ([]float32, error)
	SearchVectors(vec []float32, framework, version string, k int) ([]indexer.Candidate, error)
	SearchKeywords(query, framework, version string, k int) []indexer.Candidate
}

// Config holds searcher tuning.
type Config struct {
	DefaultLimit    int
	DefaultAlpha    float64
	OverfetchFactor int           // Candidates fetched per side = limit * OverfetchFactor
	CacheSize       int           // 0 disables the query cache
	CacheTTL        time.Duration // Lifetime of a cached response
}

// DefaultConfig returns the configuration used when fields are left zero.
func DefaultConfig() Config {
	return Config{
		DefaultLimit:    DefaultLimit,
		DefaultAlpha:    DefaultAlpha,
		OverfetchFactor: 2,
		CacheSize:       1000,
		CacheTTL:        time.Hour,
	}
}

// SearchRequest contains parameters for a search operation
type SearchRequest struct {
	Query       string
	Framework   string
	Version     string
	Limit       int
	Mode        SearchMode
	HybridAlpha *float64 // nil means the configured default
}

// SearchResponse contains search results and metadata
type SearchResponse struct {
	Results     []types.SearchResult
	ResultCount int
	Mode        SearchMode // Mode that was requested
	Fallback    bool       // Results came from the keyword fallback
	CacheHit    bool
	Duration    time.Duration
}

// cacheEntry represents a cached search response with expiration time
type cacheEntry struct {
	response  *SearchResponse
	expiresAt time.Time
}

// Searcher runs queries against the vector and keyword indexes and merges
// their results.
type Searcher struct {
	index  Index
	cfg    Config
	logger *slog.Logger
	cache  *lru.Cache[[32]byte, *cacheEntry]
	now    func() time.Time
}

// NewSearcher creates a new Searcher instance
func NewSearcher(index Index, cfg Config, logger *slog.Logger) (*Searcher, error) {
	if index == nil {
		return nil, fmt.Errorf("%w: index is required", types.ErrInvalidInput)
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	defaults := DefaultConfig()
	if cfg.DefaultLimit <= 0 {
		cfg.DefaultLimit = defaults.DefaultLimit
	}
	if cfg.OverfetchFactor <= 0 {
		cfg.OverfetchFactor = defaults.OverfetchFactor
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = defaults.CacheTTL
	}
	if cfg.DefaultAlpha < 0 || cfg.DefaultAlpha > 1 || math.IsNaN(cfg.DefaultAlpha) {
		return nil, fmt.Errorf("%w: default alpha %v outside [0,1]", types.ErrInvalidInput, cfg.DefaultAlpha)
	}

	s := &Searcher{index: index, cfg: cfg, logger: logger, now: time.Now}
	if cfg.CacheSize > 0 {
		cache, err := lru.New[[32]byte, *cacheEntry](cfg.CacheSize)
		if err != nil {
			return nil, fmt.Errorf("failed to create LRU cache: %w", err)
		}
		s.cache = cache
	}
	return s, nil
}

// Search validates req, consults the cache and runs the requested mode.
//
// Search first waits for the index to load. If loading fails the error
// wraps types.ErrSearch and types.ErrIndexNotInitialized; an unloaded
// index is never answered with an empty result.
//
// Semantic and hybrid requests fall back to keyword search when the vector
// index is not ready or empty, and retry once with keyword search when they
// fail. Only a failure of that retry is returned, wrapping types.ErrSearch.
func (s *Searcher) Search(ctx context.Context, req SearchRequest) (*SearchResponse, error) {
	startTime := time.Now()

	if err := s.validateRequest(&req); err != nil {
		return nil, err
	}

	if err := s.index.EnsureReady(ctx); err != nil {
		s.logger.Error("index unavailable for search", "query", req.Query, "error", err)
		if !errors.Is(err, types.ErrIndexNotInitialized) {
			err = fmt.Errorf("%w: %w", types.ErrIndexNotInitialized, err)
		}
		return nil, fmt.Errorf("%w: %w", types.ErrSearch, err)
	}

	key := computeQueryHash(req, s.index.Generation())
	if cached := s.checkCache(key); cached != nil {
		cached.CacheHit = true
		cached.Duration = time.Since(startTime)
		return cached, nil
	}

	response, err := s.execute(ctx, req)
	if err != nil {
		return nil, err
	}
	response.Mode = req.Mode
	response.ResultCount = len(response.Results)

	// A fallback answer reflects a transient condition; do not pin it.
	if !response.Fallback {
		s.storeInCache(key, response)
	}

	response.Duration = time.Since(startTime)
	return response, nil
}

func (s *Searcher) execute(ctx context.Context, req SearchRequest) (*SearchResponse, error) {
	if req.Mode == SearchModeKeyword {
		s.logger.Debug("keyword search", "query", req.Query)
		results, err := s.keywordSearch(ctx, req)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", types.ErrSearch, err)
		}
		return &SearchResponse{Results: results}, nil
	}

	if reason := s.vectorUnavailable(); reason != "" {
		s.logger.Warn("falling back to keyword search",
			"reason", reason, "mode", req.Mode, "query", req.Query)
		return s.fallback(ctx, req, nil)
	}

	alpha := *req.HybridAlpha
	if req.Mode == SearchModeSemantic {
		alpha = 1
	}
	results, err := s.hybridSearch(ctx, req, alpha)
	if err != nil {
		s.logger.Warn("falling back to keyword search",
			"reason", reasonSearchFailed, "mode", req.Mode, "query", req.Query, "error", err)
		return s.fallback(ctx, req, err)
	}
	return &SearchResponse{Results: results}, nil
}

func (s *Searcher) fallback(ctx context.Context, req SearchRequest, cause error) (*SearchResponse, error) {
	results, err := s.keywordSearch(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", types.ErrSearch, errors.Join(cause, err))
	}
	return &SearchResponse{Results: results, Fallback: true}, nil
}

func (s *Searcher) vectorUnavailable() string {
	switch {
	case !s.index.Ready():
		return reasonNotReady
	case s.index.VectorCount() == 0:
		return reasonEmpty
	}
	return ""
}

// keywordSearch returns raw keyword scores.
func (s *Searcher) keywordSearch(ctx context.Context, req SearchRequest) ([]types.SearchResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	hits := s.index.SearchKeywords(req.Query, req.Framework, req.Version, req.Limit)
	results := make([]types.SearchResult, len(hits))
	for i, h := range hits {
		results[i] = types.NewSearchResult(h.Doc, h.Snippet, h.Score)
	}
	return results, nil
}

// hybridSearch queries the sides with a non-zero weight concurrently and
// merges them. alpha is the vector weight.
func (s *Searcher) hybridSearch(ctx context.Context, req SearchRequest, alpha float64) ([]types.SearchResult, error) {
	fetch := req.Limit * s.cfg.OverfetchFactor

	var vectorHits, keywordHits []indexer.Candidate
	g, gctx := errgroup.WithContext(ctx)
	if alpha > 0 {
		g.Go(func() error {
			vec, err := s.index.EmbedQuery(gctx, req.Query)
			if err != nil {
				return fmt.Errorf("failed to generate query embedding: %w", err)
			}
			vectorHits, err = s.index.SearchVectors(vec, req.Framework, req.Version, fetch)
			if err != nil {
				return fmt.Errorf("vector search: %w", err)
			}
			return nil
		})
	}
	if alpha < 1 {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			keywordHits = s.index.SearchKeywords(req.Query, req.Framework, req.Version, fetch)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	merged := merge(vectorHits, keywordHits, alpha)
	if len(merged) > req.Limit {
		merged = merged[:req.Limit]
	}

	terms := keyword.QueryTerms(req.Query)
	results := make([]types.SearchResult, len(merged))
	for i, m := range merged {
		snippet := m.snippet
		if snippet == "" {
			snippet = keyword.Snippet(m.doc.Content, terms, keyword.DefaultSnippetLength)
		}
		results[i] = types.NewSearchResult(m.doc, snippet, m.score)
	}
	return results, nil
}

// validateRequest applies defaults and rejects out-of-range values.
func (s *Searcher) validateRequest(req *SearchRequest) error {
	req.Query = strings.TrimSpace(req.Query)
	if req.Query == "" {
		return fmt.Errorf("%w: query cannot be empty", types.ErrInvalidInput)
	}
	if n := utf8.RuneCountInString(req.Query); n > MaxQueryLength {
		return fmt.Errorf("%w: query is %d characters, maximum is %d", types.ErrInvalidInput, n, MaxQueryLength)
	}

	if req.Limit == 0 {
		req.Limit = s.cfg.DefaultLimit
	}
	if req.Limit < 1 || req.Limit > MaxLimit {
		return fmt.Errorf("%w: limit %d outside [1,%d]", types.ErrInvalidInput, req.Limit, MaxLimit)
	}

	switch req.Mode {
	case "":
		req.Mode = SearchModeHybrid
	case SearchModeHybrid, SearchModeSemantic, SearchModeKeyword:
	default:
		return fmt.Errorf("%w: unsupported search mode %q", types.ErrInvalidInput, req.Mode)
	}

	alpha := s.cfg.DefaultAlpha
	if req.HybridAlpha != nil {
		alpha = *req.HybridAlpha
	}
	if alpha < 0 || alpha > 1 || math.IsNaN(alpha) {
		return fmt.Errorf("%w: hybridAlpha %v outside [0,1]", types.ErrInvalidInput, alpha)
	}
	req.HybridAlpha = &alpha

	return nil
}

// checkCache returns a copy of a live cached response, or nil.
func (s *Searcher) checkCache(key [32]byte) *SearchResponse {
	if s.cache == nil {
		return nil
	}
	entry, found := s.cache.Get(key)
	if !found {
		return nil
	}
	if s.now().After(entry.expiresAt) {
		s.cache.Remove(key)
		return nil
	}
	return copySearchResponse(entry.response)
}

// storeInCache saves search results to cache
func (s *Searcher) storeInCache(key [32]byte, response *SearchResponse) {
	if s.cache == nil {
		return
	}
	s.cache.Add(key, &cacheEntry{
		response:  copySearchResponse(response),
		expiresAt: s.now().Add(s.cfg.CacheTTL),
	})
}

// InvalidateCache drops every cached response. Mutations already change
// the index generation, so this is only needed to free memory.
func (s *Searcher) InvalidateCache() {
	if s.cache != nil {
		s.cache.Purge()
	}
}

// CacheLen returns the number of cached responses.
func (s *Searcher) CacheLen() int {
	if s.cache == nil {
		return 0
	}
	return s.cache.Len()
}

// copySearchResponse creates a deep copy of a SearchResponse.
// SearchResult holds only value fields, so copying the slice is enough.
func copySearchResponse(src *SearchResponse) *SearchResponse {
	if src == nil {
		return nil
	}
	dst := *src
	dst.Results = make([]types.SearchResult, len(src.Results))
	copy(dst.Results, src.Results)
	return &dst
}

// computeQueryHash computes a unique hash for a validated request at a
// given index generation.
func computeQueryHash(req SearchRequest, generation uint64) [32]byte {
	var data strings.Builder
	data.WriteString(req.Query)
	data.WriteString("|")
	data.WriteString(strings.ToLower(req.Framework))
	data.WriteString("|")
	data.WriteString(req.Version)
	data.WriteString("|")
	data.WriteString(strconv.Itoa(req.Limit))
	data.WriteString("|")
	data.WriteString(string(req.Mode))
	data.WriteString("|")
	if req.HybridAlpha != nil {
		data.WriteString(strconv.FormatFloat(*req.HybridAlpha, 'g', -1, 64))
	}
	data.WriteString("|")
	data.WriteString(strconv.FormatUint(generation, 10))

	return sha256.Sum256([]byte(data.String()))
}
