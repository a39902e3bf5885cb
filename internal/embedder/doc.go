// Package embedder turns documentation text into fixed-length vectors.
//
// Four providers implement the Embedder interface: Jina AI and OpenAI over
// their shared /embeddings HTTP protocol, Gemini through the genai SDK, and
// an offline LocalProvider based on feature hashing.
//
// # Basic Usage
//
//	emb, err := embedder.New(ctx, embedder.Config{Provider: "local", CacheSize: 10000})
//	if err != nil {
//	    return err
//	}
//	defer emb.Close()
//
//	result, err := emb.GenerateEmbedding(ctx, embedder.EmbeddingRequest{
//	    Text: "Components are reusable Vue instances.",
//	})
//
// # Provider Selection
//
// When Config.Provider is empty the provider is detected from the environment:
//
//  1. DOCSEARCH_EMBEDDING_PROVIDER, if set
//  2. JINA_API_KEY, then OPENAI_API_KEY, then GEMINI_API_KEY
//  3. local otherwise
//
// # Truncation
//
// Every provider trims and truncates input to MaxInputChars runes before
// embedding and before computing its cache key, so a document and a query
// are always embedded from the same prefix. Text that is empty after
// truncation fails with ErrEmptyText.
//
// # Error Handling
//
// All errors returned by providers wrap types.ErrEmbedding. Transient HTTP
// failures and 429s are retried with exponential backoff inside the
// provider; other 4xx responses fail immediately.
//
//	if errors.Is(err, types.ErrEmbedding) {
//	    // index the document for keyword search only
//	}
package embedder
