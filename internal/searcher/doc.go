// Package searcher implements hybrid documentation search combining vector
// similarity and keyword scoring.
//
// The searcher provides three search modes:
//   - Hybrid: weighted merge of vector and keyword scores (default)
//   - Semantic: vector similarity only, the same as hybrid with alpha = 1
//   - Keyword: keyword scoring only, no embedding call
//
// # Basic Usage
//
//	s, err := searcher.NewSearcher(idx, searcher.DefaultConfig(), logger)
//
//	alpha := 0.7
//	resp, err := s.Search(ctx, searcher.SearchRequest{
//	    Query:       "state management hooks",
//	    Framework:   "react",
//	    Limit:       10,
//	    Mode:        searcher.SearchModeHybrid,
//	    HybridAlpha: &alpha,
//	})
//
//	for _, r := range resp.Results {
//	    fmt.Printf("%.3f %s (%s %s)\n", r.Score, r.Title, r.Framework, r.Version)
//	}
//
// # Merging
//
// Each side fetches limit * OverfetchFactor candidates; framework and
// version filters are applied to vector hits after the graph search. Each
// side's scores are divided by that side's largest absolute score (floored
// at a small epsilon) and combined as
//
//	score = alpha*vector + (1-alpha)*keyword
//
// with a missing side counting as 0. A side with weight 0 is not queried at
// all, which keeps alpha = 1 identical to semantic ranking and alpha = 0
// identical to keyword ranking.
//
// # Fallback
//
// Every search first waits for the index to load; a load failure is
// returned wrapping types.ErrIndexNotInitialized rather than answered with
// an empty result. Semantic and hybrid requests then use keyword search
// instead when the vector index is not ready or holds no vectors, and retry once with keyword search
// when the chosen mode fails (for example, the embedding provider is down).
// Each fallback is logged at WARN with a "reason" attribute; plain keyword
// requests log at DEBUG. Only a failure of the keyword retry is returned,
// wrapping types.ErrSearch.
//
// # Caching
//
// Responses are cached in an LRU keyed by a SHA-256 of the validated request
// and the index generation. Any mutation bumps the generation, so stale
// entries are never served; they age out by TTL or eviction. Fallback
// responses are not cached.
package searcher
