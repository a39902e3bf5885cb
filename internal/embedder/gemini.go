package embedder

import (
	"context"
	"fmt"
	"os"

	"google.golang.org/genai"
)

// GeminiProvider implements Embedder using the Gemini embedding API.
type GeminiProvider struct {
	client    *genai.Client
	model     string
	dimension int
	maxChars  int
	cache     *Cache
	retry     RetryConfig
}

// NewGeminiProvider creates a Gemini embedder. The API key falls back to
// GEMINI_API_KEY.
func NewGeminiProvider(ctx context.Context, opts ProviderOptions) (*GeminiProvider, error) {
	apiKey := opts.APIKey
	if apiKey == "" {
		apiKey = os.Getenv(EnvGeminiAPIKey)
	}
	if apiKey == "" {
		return nil, fmt.Errorf("%w: %s not set", ErrNoProviderEnabled, EnvGeminiAPIKey)
	}

	cfg := &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	}
	if opts.BaseURL != "" {
		cfg.HTTPOptions = genai.HTTPOptions{BaseURL: opts.BaseURL}
	}
	if opts.HTTPClient != nil {
		cfg.HTTPClient = opts.HTTPClient
	}

	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("%w: create gemini client: %w", ErrProviderFailed, err)
	}

	p := &GeminiProvider{
		client:    client,
		model:     DefaultGeminiModel,
		dimension: GeminiDimension,
		maxChars:  opts.maxChars(),
		cache:     opts.Cache,
		retry:     opts.retry(),
	}
	if opts.Model != "" {
		p.model = opts.Model
	}
	if opts.Dimension > 0 {
		p.dimension = opts.Dimension
	}
	return p, nil
}

func (g *GeminiProvider) GenerateEmbedding(ctx context.Context, req EmbeddingRequest) (*Embedding, error) {
	text, err := prepareText(req.Text, g.maxChars)
	if err != nil {
		return nil, err
	}

	model := req.Model
	if model == "" {
		model = g.model
	}

	hash := ComputeHash(model, text)
	if g.cache != nil {
		if emb, ok := g.cache.Get(hash); ok {
			return emb, nil
		}
	}

	resp, err := g.GenerateBatch(ctx, BatchEmbeddingRequest{Texts: []string{text}, Model: model})
	if err != nil {
		return nil, err
	}
	if len(resp.Embeddings) == 0 {
		return nil, fmt.Errorf("%w: no embeddings returned", ErrProviderFailed)
	}
	return resp.Embeddings[0], nil
}

func (g *GeminiProvider) GenerateBatch(ctx context.Context, req BatchEmbeddingRequest) (*BatchEmbeddingResponse, error) {
	if err := ValidateBatchRequest(req); err != nil {
		return nil, err
	}
	if len(req.Texts) > MaxBatchSize {
		return nil, fmt.Errorf("%w: max %d texts allowed", ErrBatchTooLarge, MaxBatchSize)
	}

	model := req.Model
	if model == "" {
		model = g.model
	}

	texts := make([]string, len(req.Texts))
	contents := make([]*genai.Content, len(req.Texts))
	for i, text := range req.Texts {
		texts[i] = Truncate(text, g.maxChars)
		contents[i] = genai.NewContentFromText(texts[i], genai.RoleUser)
	}

	dim := int32(g.dimension)
	result, err := retryWithBackoff(ctx, g.retry, func() (*genai.EmbedContentResponse, error) {
		return g.client.Models.EmbedContent(ctx, model, contents, &genai.EmbedContentConfig{
			OutputDimensionality: &dim,
		})
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrProviderFailed, err)
	}
	if len(result.Embeddings) != len(texts) {
		return nil, fmt.Errorf("%w: got %d embeddings for %d texts", ErrProviderFailed, len(result.Embeddings), len(texts))
	}

	embeddings := make([]*Embedding, len(texts))
	for i, e := range result.Embeddings {
		if e == nil || len(e.Values) != g.dimension {
			return nil, fmt.Errorf("%w: unexpected embedding shape at index %d", ErrProviderFailed, i)
		}
		// Truncated Gemini outputs are not unit length.
		emb := &Embedding{
			Vector:    NormalizeVector(e.Values),
			Dimension: g.dimension,
			Provider:  ProviderGemini,
			Model:     model,
			Hash:      ComputeHash(model, texts[i]),
		}
		if g.cache != nil {
			g.cache.Set(emb.Hash, emb)
		}
		embeddings[i] = emb
	}

	return &BatchEmbeddingResponse{
		Embeddings: embeddings,
		Provider:   ProviderGemini,
		Model:      model,
	}, nil
}

func (g *GeminiProvider) Dimension() int {
	return g.dimension
}

func (g *GeminiProvider) Provider() string {
	return ProviderGemini
}

func (g *GeminiProvider) Model() string {
	return g.model
}

func (g *GeminiProvider) Close() error {
	return nil
}
