package embedder

import (
	"context"
	"fmt"
	"os"
	"strings"
)

// EnvProvider selects the embedding provider when no config file sets one.
const EnvProvider = "DOCSEARCH_EMBEDDING_PROVIDER"

// Config holds embedder configuration
type Config struct {
	Provider      string
	Model         string
	APIKey        string
	BaseURL       string
	Dimension     int
	CacheSize     int
	MaxInputChars int
}

// New creates an embedder with explicit configuration. An empty provider
// is resolved with DetectProvider.
func New(ctx context.Context, cfg Config) (Embedder, error) {
	var cache *Cache
	if cfg.CacheSize > 0 {
		cache = NewCache(cfg.CacheSize)
	}

	opts := ProviderOptions{
		APIKey:        cfg.APIKey,
		Model:         cfg.Model,
		BaseURL:       cfg.BaseURL,
		Dimension:     cfg.Dimension,
		MaxInputChars: cfg.MaxInputChars,
		Cache:         cache,
	}

	provider := strings.ToLower(strings.TrimSpace(cfg.Provider))
	if provider == "" {
		provider = DetectProvider()
	}

	switch provider {
	case ProviderJina:
		return NewJinaProvider(opts)
	case ProviderOpenAI:
		return NewOpenAIProvider(opts)
	case ProviderGemini:
		return NewGeminiProvider(ctx, opts)
	case ProviderLocal:
		return NewLocalProvider(opts)
	default:
		return nil, fmt.Errorf("%w: unknown provider %s", ErrUnsupportedModel, cfg.Provider)
	}
}

// NewFromEnv creates an embedder based on environment variables only.
func NewFromEnv(ctx context.Context) (Embedder, error) {
	return New(ctx, Config{CacheSize: 10000})
}

// DetectProvider returns the provider that would be used based on current environment
// Priority:
// 1. DOCSEARCH_EMBEDDING_PROVIDER (jina, openai, gemini, local)
// 2. Check for API keys: JINA_API_KEY, OPENAI_API_KEY, GEMINI_API_KEY
// 3. Default to local if no API keys found
func DetectProvider() string {
	provider := os.Getenv(EnvProvider)
	if provider != "" {
		return strings.ToLower(provider)
	}

	if os.Getenv(EnvJinaAPIKey) != "" {
		return ProviderJina
	}
	if os.Getenv(EnvOpenAIAPIKey) != "" {
		return ProviderOpenAI
	}
	if os.Getenv(EnvGeminiAPIKey) != "" {
		return ProviderGemini
	}

	return ProviderLocal
}
