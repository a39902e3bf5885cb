package embedder

import (
	"context"
	"fmt"
	"strings"
	"testing"
)

func BenchmarkComputeHash(b *testing.B) {
	texts := []string{
		"short",
		"medium length text for hashing",
		strings.Repeat("a typical documentation paragraph about hooks and components ", 20),
	}

	for _, text := range texts {
		b.Run(fmt.Sprintf("len=%d", len(text)), func(b *testing.B) {
			for i := 0; i < b.N; i++ {
				_ = ComputeHash(DefaultLocalModel, text)
			}
		})
	}
}

func BenchmarkLocalProvider(b *testing.B) {
	provider, err := NewLocalProvider(ProviderOptions{})
	if err != nil {
		b.Fatal(err)
	}
	ctx := context.Background()
	text := strings.Repeat("Components are reusable Vue instances with a name. ", 40)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := provider.GenerateEmbedding(ctx, EmbeddingRequest{Text: text}); err != nil {
			b.Fatal(err)
		}
	}
}
