package logging

import (
	"context"
	"log/slog"
	"time"

	"github.com/RLabs-Inc/claude-mcp/internal/embedder"
)

// Ensure LoggingEmbedder implements embedder.Embedder.
var _ embedder.Embedder = (*LoggingEmbedder)(nil)

// LoggingEmbedder wraps an Embedder with debug logging of every provider call.
type LoggingEmbedder struct {
	next   embedder.Embedder
	logger *slog.Logger
}

// NewLoggingEmbedder creates a new LoggingEmbedder.
func NewLoggingEmbedder(next embedder.Embedder, logger *slog.Logger) *LoggingEmbedder {
	return &LoggingEmbedder{next: next, logger: logger}
}

// GenerateEmbedding delegates and logs the call.
func (e *LoggingEmbedder) GenerateEmbedding(ctx context.Context, req embedder.EmbeddingRequest) (*embedder.Embedding, error) {
	begin := time.Now()
	emb, err := e.next.GenerateEmbedding(ctx, req)
	attrs := []any{
		"provider", e.next.Provider(),
		"model", e.next.Model(),
		"chars", len(req.Text),
		"duration", time.Since(begin),
	}
	if err != nil {
		e.logger.Warn("embedding", append(attrs, "err", err)...)
		return nil, err
	}
	e.logger.Debug("embedding", attrs...)
	return emb, nil
}

// GenerateBatch delegates and logs the call.
func (e *LoggingEmbedder) GenerateBatch(ctx context.Context, req embedder.BatchEmbeddingRequest) (*embedder.BatchEmbeddingResponse, error) {
	begin := time.Now()
	resp, err := e.next.GenerateBatch(ctx, req)
	attrs := []any{
		"provider", e.next.Provider(),
		"model", e.next.Model(),
		"count", len(req.Texts),
		"duration", time.Since(begin),
	}
	if err != nil {
		e.logger.Warn("embedding batch", append(attrs, "err", err)...)
		return nil, err
	}
	e.logger.Debug("embedding batch", attrs...)
	return resp, nil
}

// Dimension delegates to the wrapped embedder.
func (e *LoggingEmbedder) Dimension() int { return e.next.Dimension() }

// Provider delegates to the wrapped embedder.
func (e *LoggingEmbedder) Provider() string { return e.next.Provider() }

// Model delegates to the wrapped embedder.
func (e *LoggingEmbedder) Model() string { return e.next.Model() }

// Close delegates to the wrapped embedder.
func (e *LoggingEmbedder) Close() error { return e.next.Close() }
