package embedder

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RLabs-Inc/claude-mcp/pkg/types"
)

func fastRetry() *RetryConfig {
	return &RetryConfig{MaxRetries: 3, BaseDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond, Multiplier: 2}
}

// embeddingServer answers the OpenAI-compatible /embeddings protocol.
// failures controls how many leading calls return status.
func embeddingServer(t *testing.T, dim int, failures int32, status int) (*httptest.Server, *int32) {
	t.Helper()
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&calls, 1)
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		if n <= failures {
			w.WriteHeader(status)
			_, _ = w.Write([]byte(`{"error":"boom"}`))
			return
		}

		var req struct {
			Input []string `json:"input"`
			Model string   `json:"model"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		data := make([]map[string]interface{}, len(req.Input))
		// Reverse order to check the client sorts by index.
		for i := range req.Input {
			vec := make([]float32, dim)
			vec[i%dim] = 1
			data[len(req.Input)-1-i] = map[string]interface{}{"index": i, "embedding": vec}
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"model": req.Model, "data": data})
	}))
	t.Cleanup(server.Close)
	return server, &calls
}

func TestJinaProvider(t *testing.T) {
	ctx := context.Background()

	t.Run("successful batch", func(t *testing.T) {
		server, calls := embeddingServer(t, JinaDimension, 0, 0)
		provider, err := NewJinaProvider(ProviderOptions{APIKey: "test-key", BaseURL: server.URL, Retry: fastRetry()})
		require.NoError(t, err)
		defer provider.Close()

		resp, err := provider.GenerateBatch(ctx, BatchEmbeddingRequest{Texts: []string{"a", "b"}})
		require.NoError(t, err)
		require.Len(t, resp.Embeddings, 2)
		assert.Equal(t, float32(1), resp.Embeddings[0].Vector[0])
		assert.Equal(t, float32(1), resp.Embeddings[1].Vector[1])
		assert.Equal(t, ProviderJina, resp.Provider)
		assert.EqualValues(t, 1, atomic.LoadInt32(calls))
	})

	t.Run("provider metadata", func(t *testing.T) {
		provider, err := NewJinaProvider(ProviderOptions{APIKey: "test-key"})
		require.NoError(t, err)
		assert.Equal(t, ProviderJina, provider.Provider())
		assert.Equal(t, JinaDimension, provider.Dimension())
		assert.Equal(t, DefaultJinaModel, provider.Model())
	})

	t.Run("missing api key", func(t *testing.T) {
		t.Setenv(EnvJinaAPIKey, "")
		_, err := NewJinaProvider(ProviderOptions{})
		assert.ErrorIs(t, err, ErrNoProviderEnabled)
	})

	t.Run("validation errors", func(t *testing.T) {
		provider, err := NewJinaProvider(ProviderOptions{APIKey: "test-key"})
		require.NoError(t, err)

		_, err = provider.GenerateEmbedding(ctx, EmbeddingRequest{Text: ""})
		assert.ErrorIs(t, err, ErrEmptyText)

		_, err = provider.GenerateBatch(ctx, BatchEmbeddingRequest{Texts: []string{}})
		assert.ErrorIs(t, err, ErrInvalidInput)

		large := make([]string, MaxBatchSize+1)
		for i := range large {
			large[i] = "text"
		}
		_, err = provider.GenerateBatch(ctx, BatchEmbeddingRequest{Texts: large})
		assert.ErrorIs(t, err, ErrBatchTooLarge)
	})
}

func TestOpenAIProvider(t *testing.T) {
	ctx := context.Background()

	t.Run("dimension mismatch is rejected", func(t *testing.T) {
		server, _ := embeddingServer(t, 8, 0, 0)
		provider, err := NewOpenAIProvider(ProviderOptions{APIKey: "test-key", BaseURL: server.URL, Retry: fastRetry()})
		require.NoError(t, err)

		_, err = provider.GenerateEmbedding(ctx, EmbeddingRequest{Text: "hello"})
		assert.ErrorIs(t, err, ErrProviderFailed)
		assert.ErrorIs(t, err, types.ErrEmbedding)
	})

	t.Run("custom dimension", func(t *testing.T) {
		server, _ := embeddingServer(t, 8, 0, 0)
		provider, err := NewOpenAIProvider(ProviderOptions{APIKey: "test-key", BaseURL: server.URL, Dimension: 8})
		require.NoError(t, err)

		emb, err := provider.GenerateEmbedding(ctx, EmbeddingRequest{Text: "hello"})
		require.NoError(t, err)
		assert.Equal(t, 8, emb.Dimension)
		assert.Equal(t, 8, provider.Dimension())
	})
}

func TestRetryLogic(t *testing.T) {
	ctx := context.Background()

	t.Run("retry on transient error", func(t *testing.T) {
		server, calls := embeddingServer(t, JinaDimension, 2, http.StatusInternalServerError)
		provider, err := NewJinaProvider(ProviderOptions{APIKey: "test-key", BaseURL: server.URL, Retry: fastRetry()})
		require.NoError(t, err)

		_, err = provider.GenerateEmbedding(ctx, EmbeddingRequest{Text: "hello"})
		require.NoError(t, err)
		assert.EqualValues(t, 3, atomic.LoadInt32(calls))
	})

	t.Run("client errors are not retried", func(t *testing.T) {
		server, calls := embeddingServer(t, JinaDimension, 10, http.StatusBadRequest)
		provider, err := NewJinaProvider(ProviderOptions{APIKey: "test-key", BaseURL: server.URL, Retry: fastRetry()})
		require.NoError(t, err)

		_, err = provider.GenerateEmbedding(ctx, EmbeddingRequest{Text: "hello"})
		assert.ErrorIs(t, err, ErrProviderFailed)
		assert.EqualValues(t, 1, atomic.LoadInt32(calls))
	})

	t.Run("gives up after max attempts", func(t *testing.T) {
		server, calls := embeddingServer(t, JinaDimension, 10, http.StatusServiceUnavailable)
		provider, err := NewJinaProvider(ProviderOptions{APIKey: "test-key", BaseURL: server.URL, Retry: fastRetry()})
		require.NoError(t, err)

		_, err = provider.GenerateEmbedding(ctx, EmbeddingRequest{Text: "hello"})
		assert.ErrorIs(t, err, types.ErrEmbedding)
		assert.EqualValues(t, 3, atomic.LoadInt32(calls))
	})
}

func TestRetryWithBackoff(t *testing.T) {
	ctx := context.Background()

	t.Run("success after failures", func(t *testing.T) {
		calls := 0
		got, err := retryWithBackoff(ctx, *fastRetry(), func() (string, error) {
			calls++
			if calls < 2 {
				return "", assert.AnError
			}
			return "ok", nil
		})
		require.NoError(t, err)
		assert.Equal(t, "ok", got)
		assert.Equal(t, 2, calls)
	})

	t.Run("context cancelled", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		_, err := retryWithBackoff(cctx, *fastRetry(), func() (int, error) {
			return 0, assert.AnError
		})
		assert.ErrorIs(t, err, context.Canceled)
	})

	t.Run("zero attempts still calls once", func(t *testing.T) {
		calls := 0
		_, _ = retryWithBackoff(ctx, RetryConfig{}, func() (int, error) {
			calls++
			return 0, nil
		})
		assert.Equal(t, 1, calls)
	})

	t.Run("default config", func(t *testing.T) {
		config := DefaultRetryConfig()
		assert.Equal(t, 3, config.MaxRetries)
		assert.Equal(t, 100*time.Millisecond, config.BaseDelay)
		assert.Equal(t, 5000*time.Millisecond, config.MaxDelay)
		assert.Equal(t, 2.0, config.Multiplier)
	})
}

func TestProviderCaching(t *testing.T) {
	ctx := context.Background()

	t.Run("cache hit avoids API call", func(t *testing.T) {
		server, calls := embeddingServer(t, JinaDimension, 0, 0)
		provider, err := NewJinaProvider(ProviderOptions{APIKey: "test-key", BaseURL: server.URL, Cache: NewCache(10)})
		require.NoError(t, err)

		first, err := provider.GenerateEmbedding(ctx, EmbeddingRequest{Text: "cached text"})
		require.NoError(t, err)
		second, err := provider.GenerateEmbedding(ctx, EmbeddingRequest{Text: "cached text"})
		require.NoError(t, err)

		assert.Equal(t, first.Vector, second.Vector)
		assert.EqualValues(t, 1, atomic.LoadInt32(calls))
	})

	t.Run("local batch caching", func(t *testing.T) {
		cache := NewCache(100)
		provider, err := NewLocalProvider(ProviderOptions{Cache: cache})
		require.NoError(t, err)

		texts := []string{"code1", "code2", "code3"}
		_, err = provider.GenerateBatch(ctx, BatchEmbeddingRequest{Texts: texts})
		require.NoError(t, err)

		assert.Equal(t, 3, cache.Size())
		for _, text := range texts {
			_, ok := cache.Get(ComputeHash(DefaultLocalModel, text))
			assert.True(t, ok, "expected cache hit for %q", text)
		}
	})
}

func TestDetectProvider(t *testing.T) {
	tests := []struct {
		name     string
		env      map[string]string
		expected string
	}{
		{"explicit provider", map[string]string{EnvProvider: "Gemini"}, ProviderGemini},
		{"jina key present", map[string]string{EnvJinaAPIKey: "k"}, ProviderJina},
		{"openai key present", map[string]string{EnvOpenAIAPIKey: "k"}, ProviderOpenAI},
		{"gemini key present", map[string]string{EnvGeminiAPIKey: "k"}, ProviderGemini},
		{"jina takes precedence", map[string]string{EnvJinaAPIKey: "k", EnvOpenAIAPIKey: "k"}, ProviderJina},
		{"fallback to local", nil, ProviderLocal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, key := range []string{EnvProvider, EnvJinaAPIKey, EnvOpenAIAPIKey, EnvGeminiAPIKey} {
				t.Setenv(key, tt.env[key])
			}
			assert.Equal(t, tt.expected, DetectProvider())
		})
	}
}

func TestNew(t *testing.T) {
	ctx := context.Background()

	t.Run("local", func(t *testing.T) {
		emb, err := New(ctx, Config{Provider: "local", CacheSize: 10})
		require.NoError(t, err)
		assert.Equal(t, ProviderLocal, emb.Provider())
	})

	t.Run("jina with key", func(t *testing.T) {
		emb, err := New(ctx, Config{Provider: "JINA", APIKey: "k"})
		require.NoError(t, err)
		assert.Equal(t, ProviderJina, emb.Provider())
	})

	t.Run("unknown provider", func(t *testing.T) {
		_, err := New(ctx, Config{Provider: "bogus"})
		assert.ErrorIs(t, err, ErrUnsupportedModel)
	})

	t.Run("empty provider detects from env", func(t *testing.T) {
		for _, key := range []string{EnvProvider, EnvJinaAPIKey, EnvOpenAIAPIKey, EnvGeminiAPIKey} {
			t.Setenv(key, "")
		}
		emb, err := New(ctx, Config{})
		require.NoError(t, err)
		assert.Equal(t, ProviderLocal, emb.Provider())
	})
}
