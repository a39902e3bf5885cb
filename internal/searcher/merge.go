package searcher

import (
	"math"
	"sort"

	"github.com/RLabs-Inc/claude-mcp/internal/indexer"
	"github.com/RLabs-Inc/claude-mcp/pkg/types"
)

// scoreEpsilon floors the normalization divisor.
const scoreEpsilon = 1e-9

type merged struct {
	doc     *types.Document
	score   float64
	snippet string
}

// merge combines vector and keyword candidates into
//
//	alpha*vector/maxVector + (1-alpha)*keyword/maxKeyword
//
// where a side missing a document contributes 0. A side whose weight is 0
// contributes no candidates, so alpha=1 ranks exactly like the vector side
// and alpha=0 exactly like the keyword side. Ties are broken by ID.
func merge(vector, keyword []indexer.Candidate, alpha float64) []merged {
	byID := make(map[string]*merged, len(vector)+len(keyword))

	add := func(cands []indexer.Candidate, weight float64) {
		if weight <= 0 || len(cands) == 0 {
			return
		}
		top := scoreEpsilon
		for _, c := range cands {
			top = max(top, math.Abs(c.Score))
		}
		for _, c := range cands {
			m, ok := byID[c.Doc.ID]
			if !ok {
				m = &merged{doc: c.Doc}
				byID[c.Doc.ID] = m
			}
			m.score += weight * c.Score / top
			if m.snippet == "" {
				m.snippet = c.Snippet
			}
		}
	}
	add(vector, alpha)
	add(keyword, 1-alpha)

	out := make([]merged, 0, len(byID))
	for _, m := range byID {
		out = append(out, *m)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].score != out[j].score {
			return out[i].score > out[j].score
		}
		return out[i].doc.ID < out[j].doc.ID
	})
	return out
}
