package embedder

import (
	"context"
	"fmt"
	"math"
	"strings"
	"unicode"

	"github.com/cespare/xxhash/v2"
)

// LocalProvider embeds text offline with signed feature hashing over word
// unigrams and bigrams. Texts sharing vocabulary land close together in
// cosine space, which is enough for tests and air-gapped installs.
type LocalProvider struct {
	model     string
	dimension int
	maxChars  int
	cache     *Cache
}

// NewLocalProvider creates a new local embedder.
func NewLocalProvider(opts ProviderOptions) (*LocalProvider, error) {
	dim := opts.Dimension
	if dim <= 0 {
		dim = LocalDimension
	}
	model := opts.Model
	if model == "" {
		model = DefaultLocalModel
	}
	return &LocalProvider{
		model:     model,
		dimension: dim,
		maxChars:  opts.maxChars(),
		cache:     opts.Cache,
	}, nil
}

func (l *LocalProvider) GenerateEmbedding(ctx context.Context, req EmbeddingRequest) (*Embedding, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	text, err := prepareText(req.Text, l.maxChars)
	if err != nil {
		return nil, err
	}

	hash := ComputeHash(l.model, text)
	if l.cache != nil {
		if emb, ok := l.cache.Get(hash); ok {
			return emb, nil
		}
	}

	emb := &Embedding{
		Vector:    l.hashVector(text),
		Dimension: l.dimension,
		Provider:  ProviderLocal,
		Model:     l.model,
		Hash:      hash,
	}

	if l.cache != nil {
		l.cache.Set(hash, emb)
	}

	return emb, nil
}

func (l *LocalProvider) GenerateBatch(ctx context.Context, req BatchEmbeddingRequest) (*BatchEmbeddingResponse, error) {
	if err := ValidateBatchRequest(req); err != nil {
		return nil, err
	}

	embeddings := make([]*Embedding, len(req.Texts))
	for i, text := range req.Texts {
		emb, err := l.GenerateEmbedding(ctx, EmbeddingRequest{Text: text, Model: req.Model})
		if err != nil {
			return nil, fmt.Errorf("embedding text %d: %w", i, err)
		}
		embeddings[i] = emb
	}

	return &BatchEmbeddingResponse{
		Embeddings: embeddings,
		Provider:   ProviderLocal,
		Model:      l.model,
	}, nil
}

func (l *LocalProvider) hashVector(text string) []float32 {
	vec := make([]float64, l.dimension)
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})

	add := func(feature string, weight float64) {
		h := xxhash.Sum64String(feature)
		idx := h % uint64(l.dimension)
		if h>>63 == 1 {
			weight = -weight
		}
		vec[idx] += weight
	}

	for i, w := range words {
		add(w, 1.0)
		if i > 0 {
			add(words[i-1]+" "+w, 0.5)
		}
	}
	if len(words) == 0 {
		// Punctuation-only text still needs a non-zero direction.
		add(text, 1.0)
	}

	var sum float64
	for _, v := range vec {
		sum += v * v
	}
	norm := math.Sqrt(sum)

	out := make([]float32, l.dimension)
	for i, v := range vec {
		if norm > 0 {
			out[i] = float32(v / norm)
		}
	}
	return out
}

func (l *LocalProvider) Dimension() int {
	return l.dimension
}

func (l *LocalProvider) Provider() string {
	return ProviderLocal
}

func (l *LocalProvider) Model() string {
	return l.model
}

func (l *LocalProvider) Close() error {
	return nil
}
