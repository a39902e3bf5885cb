package searcher

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RLabs-Inc/claude-mcp/internal/docstore"
	"github.com/RLabs-Inc/claude-mcp/internal/embedder"
	"github.com/RLabs-Inc/claude-mcp/internal/indexer"
	"github.com/RLabs-Inc/claude-mcp/pkg/types"
)

// fakeIndex serves canned candidates and counts calls.
type fakeIndex struct {
	initErr    error
	ready      bool
	vectors    []indexer.Candidate
	keywords   []indexer.Candidate
	embedErr   error
	vectorErr  error
	generation atomic.Uint64

	embedCalls   atomic.Int32
	keywordCalls atomic.Int32
}

func (f *fakeIndex) EnsureReady(context.Context) error { return f.initErr }

func (f *fakeIndex) Ready() bool        { return f.ready }
func (f *fakeIndex) VectorCount() int   { return len(f.vectors) }
func (f *fakeIndex) Generation() uint64 { return f.generation.Load() }

func (f *fakeIndex) EmbedQuery(ctx context.Context, query string) ([]float32, error) {
	f.embedCalls.Add(1)
	if f.embedErr != nil {
		return nil, f.embedErr
	}
	return []float32{1, 0}, ctx.Err()
}

func (f *fakeIndex) SearchVectors(_ []float32, _, _ string, k int) ([]indexer.Candidate, error) {
	if f.vectorErr != nil {
		return nil, f.vectorErr
	}
	return head(f.vectors, k), nil
}

func (f *fakeIndex) SearchKeywords(_, _, _ string, k int) []indexer.Candidate {
	f.keywordCalls.Add(1)
	return head(f.keywords, k)
}

func head(c []indexer.Candidate, k int) []indexer.Candidate {
	if len(c) > k {
		return c[:k]
	}
	return c
}

// cand is a vector-side candidate; those carry no snippet.
func cand(id string, score float64) indexer.Candidate {
	return indexer.Candidate{
		Doc:   &types.Document{ID: id, Title: id, Content: "content of " + id},
		Score: score,
	}
}

func kcand(id string, score float64) indexer.Candidate {
	c := cand(id, score)
	c.Snippet = "snippet " + id
	return c
}

func newFakeSearcher(t *testing.T, f *fakeIndex) *Searcher {
	t.Helper()
	s, err := NewSearcher(f, DefaultConfig(), nil)
	require.NoError(t, err)
	return s
}

func ids(results []types.SearchResult) []string {
	out := make([]string, len(results))
	for i, r := range results {
		out[i] = r.ID
	}
	return out
}

func alpha(v float64) *float64 { return &v }

func TestNewSearcher(t *testing.T) {
	_, err := NewSearcher(nil, DefaultConfig(), nil)
	assert.ErrorIs(t, err, types.ErrInvalidInput)

	_, err = NewSearcher(&fakeIndex{}, Config{DefaultAlpha: 2}, nil)
	assert.ErrorIs(t, err, types.ErrInvalidInput)

	s, err := NewSearcher(&fakeIndex{}, Config{}, nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultLimit, s.cfg.DefaultLimit)
	assert.Nil(t, s.cache, "cache disabled when size is zero")
}

func TestValidateRequest(t *testing.T) {
	s := newFakeSearcher(t, &fakeIndex{})

	tests := []struct {
		name    string
		req     SearchRequest
		wantErr bool
	}{
		{"defaults", SearchRequest{Query: "hooks"}, false},
		{"empty query", SearchRequest{Query: "   "}, true},
		{"query at limit", SearchRequest{Query: strings.Repeat("a", MaxQueryLength)}, false},
		{"query too long", SearchRequest{Query: strings.Repeat("a", MaxQueryLength+1)}, true},
		{"limit too large", SearchRequest{Query: "q", Limit: MaxLimit + 1}, true},
		{"negative limit", SearchRequest{Query: "q", Limit: -1}, true},
		{"unknown mode", SearchRequest{Query: "q", Mode: "fuzzy"}, true},
		{"alpha above one", SearchRequest{Query: "q", HybridAlpha: alpha(1.5)}, true},
		{"alpha below zero", SearchRequest{Query: "q", HybridAlpha: alpha(-0.1)}, true},
		{"alpha NaN", SearchRequest{Query: "q", HybridAlpha: alpha(math.NaN())}, true},
		{"alpha bounds", SearchRequest{Query: "q", HybridAlpha: alpha(0)}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := tt.req
			err := s.validateRequest(&req)
			if tt.wantErr {
				assert.ErrorIs(t, err, types.ErrInvalidInput)
				return
			}
			require.NoError(t, err)
			assert.NotZero(t, req.Limit)
			assert.NotEmpty(t, req.Mode)
			assert.NotNil(t, req.HybridAlpha)
		})
	}

	req := SearchRequest{Query: "  hooks  "}
	require.NoError(t, s.validateRequest(&req))
	assert.Equal(t, "hooks", req.Query)
	assert.Equal(t, DefaultLimit, req.Limit)
	assert.Equal(t, SearchModeHybrid, req.Mode)
	assert.Equal(t, DefaultAlpha, *req.HybridAlpha)
}

func TestMerge(t *testing.T) {
	vector := []indexer.Candidate{cand("a", 0.9), cand("b", 0.6), cand("c", 0.3)}
	keyword := []indexer.Candidate{kcand("c", 40), kcand("d", 20)}

	t.Run("alpha one is vector ranking", func(t *testing.T) {
		got := merge(vector, keyword, 1)
		require.Len(t, got, 3)
		assert.Equal(t, "a", got[0].doc.ID)
		assert.Equal(t, "b", got[1].doc.ID)
		assert.Equal(t, "c", got[2].doc.ID)
		assert.InDelta(t, 1.0, got[0].score, 1e-9)
	})

	t.Run("alpha zero is keyword ranking", func(t *testing.T) {
		got := merge(vector, keyword, 0)
		require.Len(t, got, 2)
		assert.Equal(t, "c", got[0].doc.ID)
		assert.Equal(t, "d", got[1].doc.ID)
		assert.InDelta(t, 0.5, got[1].score, 1e-9)
	})

	t.Run("missing side counts as zero", func(t *testing.T) {
		got := merge(vector, keyword, 0.5)
		scores := map[string]float64{}
		for _, m := range got {
			scores[m.doc.ID] = m.score
		}
		assert.Len(t, scores, 4)
		assert.InDelta(t, 0.5*1.0, scores["a"], 1e-9)
		assert.InDelta(t, 0.5*(0.3/0.9)+0.5*1.0, scores["c"], 1e-9)
		assert.InDelta(t, 0.5*0.5, scores["d"], 1e-9)
		assert.Equal(t, "c", got[0].doc.ID)
	})

	t.Run("keyword snippet wins", func(t *testing.T) {
		got := merge(vector, keyword, 0.5)
		for _, m := range got {
			if m.doc.ID == "c" {
				assert.Equal(t, "snippet c", m.snippet)
			}
		}
	})

	t.Run("zero scores use epsilon", func(t *testing.T) {
		got := merge([]indexer.Candidate{cand("z", 0)}, nil, 1)
		require.Len(t, got, 1)
		assert.False(t, math.IsNaN(got[0].score))
		assert.Zero(t, got[0].score)
	})

	t.Run("ties broken by id", func(t *testing.T) {
		got := merge([]indexer.Candidate{cand("y", 1), cand("x", 1)}, nil, 1)
		assert.Equal(t, "x", got[0].doc.ID)
	})
}

func TestSearch_KeywordModeSkipsEmbedding(t *testing.T) {
	f := &fakeIndex{ready: true, vectors: []indexer.Candidate{cand("a", 1)}, keywords: []indexer.Candidate{kcand("k", 7)}}
	s := newFakeSearcher(t, f)

	resp, err := s.Search(context.Background(), SearchRequest{Query: "hooks", Mode: SearchModeKeyword})
	require.NoError(t, err)
	assert.Equal(t, []string{"k"}, ids(resp.Results))
	assert.Equal(t, 7.0, resp.Results[0].Score, "keyword mode keeps raw scores")
	assert.False(t, resp.Fallback)
	assert.Zero(t, f.embedCalls.Load())
}

func TestSearch_SemanticModeSkipsKeywords(t *testing.T) {
	f := &fakeIndex{ready: true, vectors: []indexer.Candidate{cand("a", 0.8), cand("b", 0.4)}}
	s := newFakeSearcher(t, f)

	resp, err := s.Search(context.Background(), SearchRequest{Query: "hooks", Mode: SearchModeSemantic})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, ids(resp.Results))
	assert.Zero(t, f.keywordCalls.Load())
	assert.Equal(t, "content of b", resp.Results[1].Snippet,
		"vector hits without a keyword snippet get one from content")
}

func TestSearch_Fallback(t *testing.T) {
	keywords := []indexer.Candidate{kcand("k1", 9), kcand("k2", 3)}

	tests := []struct {
		name  string
		index *fakeIndex
	}{
		{"not ready", &fakeIndex{ready: false, vectors: []indexer.Candidate{cand("a", 1)}, keywords: keywords}},
		{"empty vector index", &fakeIndex{ready: true, keywords: keywords}},
		{"embedding failure", &fakeIndex{ready: true, vectors: []indexer.Candidate{cand("a", 1)}, keywords: keywords,
			embedErr: fmt.Errorf("%w: provider down", types.ErrEmbedding)}},
		{"vector search failure", &fakeIndex{ready: true, vectors: []indexer.Candidate{cand("a", 1)}, keywords: keywords,
			vectorErr: errors.New("graph corrupted")}},
	}

	for _, tt := range tests {
		for _, mode := range []SearchMode{SearchModeHybrid, SearchModeSemantic} {
			t.Run(tt.name+"/"+string(mode), func(t *testing.T) {
				s := newFakeSearcher(t, tt.index)
				resp, err := s.Search(context.Background(), SearchRequest{Query: "hooks", Mode: mode})
				require.NoError(t, err)
				assert.True(t, resp.Fallback)
				assert.Equal(t, mode, resp.Mode)
				assert.Equal(t, []string{"k1", "k2"}, ids(resp.Results))
				assert.Equal(t, 2, resp.ResultCount)
				assert.Zero(t, s.CacheLen(), "fallback responses are not cached")
			})
		}
	}
}

func TestSearch_TotalFailure(t *testing.T) {
	f := &fakeIndex{ready: true, vectors: []indexer.Candidate{cand("a", 1)},
		embedErr: fmt.Errorf("%w: provider down", types.ErrEmbedding)}
	s := newFakeSearcher(t, f)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.Search(ctx, SearchRequest{Query: "hooks", Mode: SearchModeSemantic})
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrSearch)
	assert.ErrorIs(t, err, types.ErrEmbedding)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSearch_IndexNotLoaded(t *testing.T) {
	f := &fakeIndex{
		initErr:  fmt.Errorf("%w: decode documents.json", types.ErrStorage),
		keywords: []indexer.Candidate{kcand("k1", 1)},
	}
	s := newFakeSearcher(t, f)

	for _, mode := range []SearchMode{SearchModeHybrid, SearchModeSemantic, SearchModeKeyword} {
		t.Run(string(mode), func(t *testing.T) {
			resp, err := s.Search(context.Background(), SearchRequest{Query: "hooks", Mode: mode})
			require.Error(t, err)
			assert.Nil(t, resp)
			assert.ErrorIs(t, err, types.ErrSearch)
			assert.ErrorIs(t, err, types.ErrIndexNotInitialized)
			assert.ErrorIs(t, err, types.ErrStorage)
		})
	}
	assert.Zero(t, f.keywordCalls.Load())
	assert.Zero(t, f.embedCalls.Load())
}

func TestSearch_Cache(t *testing.T) {
	f := &fakeIndex{ready: true, vectors: []indexer.Candidate{cand("a", 1)}, keywords: []indexer.Candidate{kcand("a", 2)}}
	s := newFakeSearcher(t, f)
	ctx := context.Background()
	req := SearchRequest{Query: "hooks"}

	first, err := s.Search(ctx, req)
	require.NoError(t, err)
	assert.False(t, first.CacheHit)

	second, err := s.Search(ctx, req)
	require.NoError(t, err)
	assert.True(t, second.CacheHit)
	assert.Equal(t, first.Results, second.Results)
	assert.Equal(t, int32(1), f.embedCalls.Load())

	// Mutating the returned copy does not reach the cache.
	second.Results[0].Title = "changed"
	third, err := s.Search(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, "a", third.Results[0].Title)

	// A different alpha is a different request.
	_, err = s.Search(ctx, SearchRequest{Query: "hooks", HybridAlpha: alpha(0.9)})
	require.NoError(t, err)
	assert.Equal(t, int32(2), f.embedCalls.Load())

	// Index mutation bumps the generation.
	f.generation.Add(1)
	fresh, err := s.Search(ctx, req)
	require.NoError(t, err)
	assert.False(t, fresh.CacheHit)

	// Expired entries are dropped.
	s.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	expired, err := s.Search(ctx, req)
	require.NoError(t, err)
	assert.False(t, expired.CacheHit)

	s.InvalidateCache()
	assert.Zero(t, s.CacheLen())
}

// Tests below run against a real indexer with the local embedder.

func newRealSearcher(t *testing.T, emb embedder.Embedder) (*Searcher, *indexer.Indexer) {
	t.Helper()
	idx, err := indexer.New(indexer.Config{Dir: t.TempDir(), Workers: 2}, emb, nil)
	require.NoError(t, err)
	require.NoError(t, idx.Initialize(context.Background()))
	t.Cleanup(func() { _ = idx.Close() })

	s, err := NewSearcher(idx, DefaultConfig(), nil)
	require.NoError(t, err)
	return s, idx
}

func localEmbedder(t *testing.T) embedder.Embedder {
	t.Helper()
	emb, err := embedder.NewLocalProvider(embedder.ProviderOptions{Dimension: 128})
	require.NoError(t, err)
	return emb
}

// downEmbedder always fails, leaving every document keyword-only.
type downEmbedder struct{ embedder.Embedder }

func (downEmbedder) GenerateEmbedding(context.Context, embedder.EmbeddingRequest) (*embedder.Embedding, error) {
	return nil, fmt.Errorf("%w: provider down", types.ErrEmbedding)
}

var corpus = []types.DocumentInput{
	{
		Framework: "react", Version: "18.0.0", Path: "/react/hooks",
		Title:   "React Hooks Tutorial",
		Content: "Learn how to use React hooks to share state between components.",
	},
	{
		Framework: "vue", Version: "3.0.0", Path: "/vue/components",
		Title:   "Vue Components Guide",
		Content: "A guide to the component system. Components are reusable Vue instances.",
	},
	{
		Framework: "svelte", Version: "4.0.0", Path: "/svelte/stores",
		Title:   "Svelte Stores",
		Content: "Stores are objects that hold reactive values and notify subscribers.",
	},
	{
		Framework: "react", Version: "18.0.0", Path: "/react/context",
		Title:   "Context API",
		Content: "Context passes data through the component tree without props.",
	},
}

func loadCorpus(t *testing.T, idx *indexer.Indexer) map[string]string {
	t.Helper()
	byTitle := map[string]string{}
	for _, in := range corpus {
		doc, err := idx.AddDocument(context.Background(), in)
		require.NoError(t, err)
		byTitle[doc.Title] = doc.ID
	}
	return byTitle
}

func TestSearch_FrameworkScenario(t *testing.T) {
	s, idx := newRealSearcher(t, localEmbedder(t))
	byTitle := loadCorpus(t, idx)
	ctx := context.Background()

	resp, err := s.Search(ctx, SearchRequest{Query: "components", Mode: SearchModeKeyword})
	require.NoError(t, err)
	assert.Contains(t, ids(resp.Results), byTitle["React Hooks Tutorial"])
	assert.Contains(t, ids(resp.Results), byTitle["Vue Components Guide"])

	resp, err = s.Search(ctx, SearchRequest{Query: "hooks", Mode: SearchModeKeyword})
	require.NoError(t, err)
	assert.Equal(t, []string{byTitle["React Hooks Tutorial"]}, ids(resp.Results))

	resp, err = s.Search(ctx, SearchRequest{Query: "components", Framework: "vue", Mode: SearchModeKeyword})
	require.NoError(t, err)
	assert.Equal(t, []string{byTitle["Vue Components Guide"]}, ids(resp.Results))

	for _, mode := range []SearchMode{SearchModeHybrid, SearchModeSemantic} {
		resp, err = s.Search(ctx, SearchRequest{Query: "components", Framework: "vue", Mode: mode})
		require.NoError(t, err)
		for _, r := range resp.Results {
			assert.Equal(t, "vue", r.Framework)
		}
	}
}

func TestSearch_RoundTrip(t *testing.T) {
	s, idx := newRealSearcher(t, localEmbedder(t))
	byTitle := loadCorpus(t, idx)

	resp, err := s.Search(context.Background(), SearchRequest{Query: "Svelte Stores"})
	require.NoError(t, err)
	require.NotEmpty(t, resp.Results)
	assert.False(t, resp.Fallback)
	assert.Equal(t, byTitle["Svelte Stores"], resp.Results[0].ID)
	assert.Greater(t, resp.Results[0].Score, 0.0)
	for _, r := range resp.Results[1:] {
		assert.Less(t, r.Score, resp.Results[0].Score)
	}
}

func TestSearch_MergeLaw(t *testing.T) {
	s, idx := newRealSearcher(t, localEmbedder(t))
	loadCorpus(t, idx)
	ctx := context.Background()

	for _, q := range []string{"components", "React hooks state", "reactive stores"} {
		semantic, err := s.Search(ctx, SearchRequest{Query: q, Mode: SearchModeSemantic})
		require.NoError(t, err)
		hybridOne, err := s.Search(ctx, SearchRequest{Query: q, Mode: SearchModeHybrid, HybridAlpha: alpha(1)})
		require.NoError(t, err)
		assert.Equal(t, ids(semantic.Results), ids(hybridOne.Results), q)

		kw, err := s.Search(ctx, SearchRequest{Query: q, Mode: SearchModeKeyword})
		require.NoError(t, err)
		hybridZero, err := s.Search(ctx, SearchRequest{Query: q, Mode: SearchModeHybrid, HybridAlpha: alpha(0)})
		require.NoError(t, err)
		assert.Equal(t, ids(kw.Results), ids(hybridZero.Results), q)
	}
}

func TestSearch_EmptyVectorIndexMatchesKeyword(t *testing.T) {
	s, idx := newRealSearcher(t, downEmbedder{localEmbedder(t)})
	loadCorpus(t, idx)
	require.Zero(t, idx.VectorCount())
	ctx := context.Background()

	hybrid, err := s.Search(ctx, SearchRequest{Query: "components", Mode: SearchModeHybrid})
	require.NoError(t, err)
	kw, err := s.Search(ctx, SearchRequest{Query: "components", Mode: SearchModeKeyword})
	require.NoError(t, err)

	assert.True(t, hybrid.Fallback)
	assert.NotEmpty(t, kw.Results)
	assert.Equal(t, kw.Results, hybrid.Results)
}

func TestSearch_MutationInvalidatesCache(t *testing.T) {
	s, idx := newRealSearcher(t, localEmbedder(t))
	byTitle := loadCorpus(t, idx)
	ctx := context.Background()
	req := SearchRequest{Query: "hooks", Mode: SearchModeKeyword}

	resp, err := s.Search(ctx, req)
	require.NoError(t, err)
	require.Len(t, resp.Results, 1)

	_, err = idx.DeleteDocument(ctx, byTitle["React Hooks Tutorial"])
	require.NoError(t, err)

	resp, err = s.Search(ctx, req)
	require.NoError(t, err)
	assert.False(t, resp.CacheHit)
	assert.Empty(t, resp.Results)
}

// persistedDir writes the corpus to a fresh index directory and closes
// the indexer that wrote it.
func persistedDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	idx, err := indexer.New(indexer.Config{Dir: dir, Workers: 2}, localEmbedder(t), nil)
	require.NoError(t, err)
	require.NoError(t, idx.Initialize(context.Background()))
	loadCorpus(t, idx)
	require.NoError(t, idx.Close())
	return dir
}

func TestSearch_ColdStartLoadsIndex(t *testing.T) {
	dir := persistedDir(t)

	for _, mode := range []SearchMode{SearchModeHybrid, SearchModeSemantic, SearchModeKeyword} {
		t.Run(string(mode), func(t *testing.T) {
			idx, err := indexer.New(indexer.Config{Dir: dir, Workers: 2}, localEmbedder(t), nil)
			require.NoError(t, err)
			t.Cleanup(func() { _ = idx.Close() })
			require.False(t, idx.Ready())

			s, err := NewSearcher(idx, DefaultConfig(), nil)
			require.NoError(t, err)

			resp, err := s.Search(context.Background(), SearchRequest{Query: "hooks", Framework: "react", Mode: mode})
			require.NoError(t, err)
			assert.True(t, idx.Ready())
			assert.False(t, resp.Fallback)
			require.NotEmpty(t, resp.Results)
			assert.Equal(t, "React Hooks Tutorial", resp.Results[0].Title)
		})
	}
}

func TestSearch_CorruptDocumentStore(t *testing.T) {
	dir := persistedDir(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, docstore.FileName), []byte("{not json"), 0o644))

	idx, err := indexer.New(indexer.Config{Dir: dir, Workers: 2}, localEmbedder(t), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = idx.Close() })
	s, err := NewSearcher(idx, DefaultConfig(), nil)
	require.NoError(t, err)

	for _, mode := range []SearchMode{SearchModeHybrid, SearchModeKeyword} {
		resp, err := s.Search(context.Background(), SearchRequest{Query: "hooks", Mode: mode})
		require.Error(t, err, mode)
		assert.Nil(t, resp)
		assert.ErrorIs(t, err, types.ErrSearch)
		assert.ErrorIs(t, err, types.ErrIndexNotInitialized)
		assert.False(t, idx.Ready())
	}
}

func BenchmarkSearchHybrid(b *testing.B) {
	emb, err := embedder.NewLocalProvider(embedder.ProviderOptions{Dimension: 128})
	require.NoError(b, err)
	idx, err := indexer.New(indexer.Config{Dir: b.TempDir()}, emb, nil)
	require.NoError(b, err)
	ctx := context.Background()

	inputs := make([]types.DocumentInput, 0, 500)
	for i := 0; i < 500; i++ {
		in := corpus[i%len(corpus)]
		in.Title = fmt.Sprintf("%s %d", in.Title, i)
		inputs = append(inputs, in)
	}
	_, err = idx.AddDocuments(ctx, inputs)
	require.NoError(b, err)

	s, err := NewSearcher(idx, Config{CacheSize: 0}, nil)
	require.NoError(b, err)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := s.Search(ctx, SearchRequest{Query: "reusable components"}); err != nil {
			b.Fatal(err)
		}
	}
}
