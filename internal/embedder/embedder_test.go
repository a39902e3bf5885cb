package embedder

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RLabs-Inc/claude-mcp/pkg/types"
)

func TestComputeHash(t *testing.T) {
	a := ComputeHash("m", "hello world")
	b := ComputeHash("m", "hello world")
	c := ComputeHash("other", "hello world")
	d := ComputeHash("m", "hello world!")

	assert.Equal(t, a, b, "hash must be stable")
	assert.NotEqual(t, a, c, "model is part of the key")
	assert.NotEqual(t, a, d)
	assert.Len(t, a, 64)
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		name string
		text string
		max  int
		want string
	}{
		{"short text untouched", "hello", 10, "hello"},
		{"trims whitespace", "  hello \n", 10, "hello"},
		{"cuts long text", "abcdefghij", 4, "abcd"},
		{"counts runes not bytes", "héllo wörld", 5, "héllo"},
		{"zero disables limit", "abcdef", 0, "abcdef"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Truncate(tt.text, tt.max))
		})
	}
}

func TestValidateRequest(t *testing.T) {
	tests := []struct {
		name    string
		req     EmbeddingRequest
		wantErr error
	}{
		{name: "valid request", req: EmbeddingRequest{Text: "hello"}},
		{name: "empty text", req: EmbeddingRequest{Text: ""}, wantErr: ErrEmptyText},
		{name: "whitespace only", req: EmbeddingRequest{Text: "  \t"}, wantErr: ErrEmptyText},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateRequest(tt.req)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
			assert.ErrorIs(t, err, types.ErrEmbedding)
		})
	}
}

func TestValidateBatchRequest(t *testing.T) {
	tests := []struct {
		name    string
		req     BatchEmbeddingRequest
		wantErr bool
	}{
		{"valid batch", BatchEmbeddingRequest{Texts: []string{"a", "b"}}, false},
		{"empty batch", BatchEmbeddingRequest{}, true},
		{"empty text in batch", BatchEmbeddingRequest{Texts: []string{"a", ""}}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateBatchRequest(tt.req)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidInput)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestCache(t *testing.T) {
	t.Run("get returns a copy", func(t *testing.T) {
		cache := NewCache(10)
		cache.Set("k", &Embedding{Vector: []float32{1, 2, 3}, Dimension: 3})

		got, ok := cache.Get("k")
		require.True(t, ok)
		got.Vector[0] = 99

		again, ok := cache.Get("k")
		require.True(t, ok)
		assert.Equal(t, float32(1), again.Vector[0])
	})

	t.Run("evicts least recently used", func(t *testing.T) {
		cache := NewCache(2)
		cache.Set("a", &Embedding{})
		cache.Set("b", &Embedding{})
		cache.Get("a")
		cache.Set("c", &Embedding{})

		_, okA := cache.Get("a")
		_, okB := cache.Get("b")
		assert.True(t, okA)
		assert.False(t, okB)
		assert.Equal(t, 2, cache.Size())
	})

	t.Run("clear", func(t *testing.T) {
		cache := NewCache(0)
		cache.Set("a", &Embedding{})
		cache.Clear()
		assert.Equal(t, 0, cache.Size())
	})

	t.Run("concurrent access", func(t *testing.T) {
		cache := NewCache(100)
		var wg sync.WaitGroup
		for i := 0; i < 10; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				key := fmt.Sprintf("k%d", i)
				cache.Set(key, &Embedding{Vector: []float32{float32(i)}})
				cache.Get(key)
			}(i)
		}
		wg.Wait()
		assert.Equal(t, 10, cache.Size())
	})
}

func cosine(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

func TestLocalProvider(t *testing.T) {
	provider := mustNewLocalProvider(t)
	ctx := context.Background()

	t.Run("provider metadata", func(t *testing.T) {
		assert.Equal(t, ProviderLocal, provider.Provider())
		assert.Equal(t, LocalDimension, provider.Dimension())
		assert.Equal(t, DefaultLocalModel, provider.Model())
	})

	t.Run("unit length and deterministic", func(t *testing.T) {
		a, err := provider.GenerateEmbedding(ctx, EmbeddingRequest{Text: "React hooks tutorial"})
		require.NoError(t, err)
		b, err := provider.GenerateEmbedding(ctx, EmbeddingRequest{Text: "React hooks tutorial"})
		require.NoError(t, err)

		require.Len(t, a.Vector, LocalDimension)
		assert.Equal(t, a.Vector, b.Vector)
		assert.InDelta(t, 1.0, cosine(a.Vector, a.Vector), 1e-5)
	})

	t.Run("shared vocabulary is closer", func(t *testing.T) {
		query, err := provider.GenerateEmbedding(ctx, EmbeddingRequest{Text: "vue components"})
		require.NoError(t, err)
		near, err := provider.GenerateEmbedding(ctx, EmbeddingRequest{Text: "Components are reusable Vue instances"})
		require.NoError(t, err)
		far, err := provider.GenerateEmbedding(ctx, EmbeddingRequest{Text: "Learn how to use React hooks"})
		require.NoError(t, err)

		assert.Greater(t, cosine(query.Vector, near.Vector), cosine(query.Vector, far.Vector))
	})

	t.Run("punctuation only still embeds", func(t *testing.T) {
		emb, err := provider.GenerateEmbedding(ctx, EmbeddingRequest{Text: "!!!"})
		require.NoError(t, err)
		assert.InDelta(t, 1.0, cosine(emb.Vector, emb.Vector), 1e-5)
	})

	t.Run("empty text is an embedding error", func(t *testing.T) {
		_, err := provider.GenerateEmbedding(ctx, EmbeddingRequest{Text: "   "})
		assert.True(t, errors.Is(err, types.ErrEmbedding))
	})

	t.Run("truncation is applied before hashing", func(t *testing.T) {
		p, err := NewLocalProvider(ProviderOptions{MaxInputChars: 10})
		require.NoError(t, err)
		a, err := p.GenerateEmbedding(ctx, EmbeddingRequest{Text: "0123456789 tail one"})
		require.NoError(t, err)
		b, err := p.GenerateEmbedding(ctx, EmbeddingRequest{Text: "0123456789 tail two"})
		require.NoError(t, err)
		assert.Equal(t, a.Vector, b.Vector)
	})

	t.Run("batch embedding", func(t *testing.T) {
		resp, err := provider.GenerateBatch(ctx, BatchEmbeddingRequest{Texts: []string{"one", "two", "three"}})
		require.NoError(t, err)
		require.Len(t, resp.Embeddings, 3)
		for _, emb := range resp.Embeddings {
			assert.Len(t, emb.Vector, LocalDimension)
		}
	})

	t.Run("custom dimension", func(t *testing.T) {
		p, err := NewLocalProvider(ProviderOptions{Dimension: 32})
		require.NoError(t, err)
		emb, err := p.GenerateEmbedding(ctx, EmbeddingRequest{Text: strings.Repeat("word ", 5)})
		require.NoError(t, err)
		assert.Len(t, emb.Vector, 32)
	})

	t.Run("cancelled context", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		_, err := provider.GenerateEmbedding(cctx, EmbeddingRequest{Text: "test"})
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestNormalizeVector(t *testing.T) {
	v := NormalizeVector([]float32{3, 4})
	assert.InDelta(t, 0.6, v[0], 1e-6)
	assert.InDelta(t, 0.8, v[1], 1e-6)

	zero := []float32{0, 0}
	assert.Equal(t, zero, NormalizeVector(zero))
}

func mustNewLocalProvider(t *testing.T) *LocalProvider {
	t.Helper()
	p, err := NewLocalProvider(ProviderOptions{Cache: NewCache(10)})
	require.NoError(t, err)
	return p
}
