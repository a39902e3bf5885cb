package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RLabs-Inc/claude-mcp/internal/docstore"
	"github.com/RLabs-Inc/claude-mcp/internal/embedder"
	"github.com/RLabs-Inc/claude-mcp/internal/indexer"
	"github.com/RLabs-Inc/claude-mcp/internal/searcher"
	"github.com/RLabs-Inc/claude-mcp/internal/storage"
	"github.com/RLabs-Inc/claude-mcp/pkg/types"
)

type toolHandler func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error)

func newTestServer(t *testing.T) *Server {
	t.Helper()

	emb, err := embedder.NewLocalProvider(embedder.ProviderOptions{Dimension: 64})
	require.NoError(t, err)

	idx, err := indexer.New(indexer.Config{Dir: t.TempDir(), IncludeEmbeddings: true, Workers: 2}, emb, nil)
	require.NoError(t, err)
	require.NoError(t, idx.Initialize(context.Background()))
	t.Cleanup(func() { _ = idx.Close() })

	srch, err := searcher.NewSearcher(idx, searcher.DefaultConfig(), nil)
	require.NoError(t, err)

	store, err := storage.NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	s, err := NewServer(idx, srch, store, nil)
	require.NoError(t, err)
	return s
}

// call invokes a handler and decodes the JSON text payload.
func call(t *testing.T, h toolHandler, args map[string]interface{}) (map[string]interface{}, *mcp.CallToolResult) {
	t.Helper()

	request := mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Arguments: args,
		},
	}
	result, err := h(context.Background(), request)
	require.NoError(t, err)
	require.NotNil(t, result)
	require.Len(t, result.Content, 1)

	text, ok := result.Content[0].(mcp.TextContent)
	require.True(t, ok, "expected text content, got %T", result.Content[0])

	var payload map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(text.Text), &payload), text.Text)
	return payload, result
}

// callError invokes a handler that must fail with a protocol error.
func callError(t *testing.T, h toolHandler, args map[string]interface{}) *MCPError {
	t.Helper()

	request := mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Arguments: args,
		},
	}
	result, err := h(context.Background(), request)
	require.Error(t, err)
	assert.Nil(t, result)

	var mcpErr *MCPError
	require.True(t, errors.As(err, &mcpErr), "expected *MCPError, got %T", err)
	return mcpErr
}

func addDoc(t *testing.T, s *Server, framework, version, title, content string) string {
	t.Helper()
	payload, result := call(t, s.handleAddDocument, map[string]interface{}{
		"framework": framework,
		"version":   version,
		"path":      "docs/" + title,
		"title":     title,
		"content":   content,
	})
	require.False(t, result.IsError, payload)
	require.Equal(t, true, payload["success"])
	id, ok := payload["id"].(string)
	require.True(t, ok)
	return id
}

func TestNewServer(t *testing.T) {
	t.Run("requires dependencies", func(t *testing.T) {
		_, err := NewServer(nil, nil, nil, nil)
		require.Error(t, err)
		assert.ErrorIs(t, err, types.ErrInvalidInput)
	})

	t.Run("registers tools", func(t *testing.T) {
		s := newTestServer(t)
		assert.NotNil(t, s.mcp)
		assert.NotNil(t, s.indexer)
		assert.NotNil(t, s.searcher)
		assert.NotNil(t, s.storage)
	})
}

func TestToolSchemas(t *testing.T) {
	tools := []mcp.Tool{
		searchDocsTool(),
		getStatsTool(),
		addDocumentTool(),
		deleteDocumentTool(),
		clearFrameworkVersionTool(),
		rebuildIndexTool(),
		getDocumentTool(),
		registerFrameworkTool(),
		listFrameworksTool(),
	}

	seen := make(map[string]bool)
	for _, tool := range tools {
		t.Run(tool.Name, func(t *testing.T) {
			assert.NotEmpty(t, tool.Description)
			assert.Equal(t, "object", tool.InputSchema.Type)
			assert.False(t, seen[tool.Name], "duplicate tool name")
			seen[tool.Name] = true

			for _, req := range tool.InputSchema.Required {
				assert.Contains(t, tool.InputSchema.Properties, req, "required parameter %s has no schema", req)
			}
		})
	}
}

func TestErrorCodes(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code int
	}{
		{"InvalidInput", fmt.Errorf("%w: bad", types.ErrInvalidInput), ErrorCodeInvalidParams},
		{"NotFound", types.ErrNotFound, ErrorCodeNotFound},
		{"RebuildInProgress", types.ErrRebuildInProgress, ErrorCodeRebuildInProgress},
		{"NotInitialized", fmt.Errorf("%w: %w", types.ErrIndexNotInitialized, types.ErrStorage), ErrorCodeIndexNotReady},
		{"Search", errors.Join(types.ErrSearch, types.ErrEmbedding), ErrorCodeSearchFailed},
		{"Storage", types.ErrStorage, ErrorCodeStorage},
		{"Other", errors.New("boom"), ErrorCodeInternalError},
	}

	seenCodes := make(map[int]string)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.code, errorCode(tt.err))
			if existing, found := seenCodes[tt.code]; found {
				t.Errorf("%s has duplicate code %d (already used by %s)", tt.name, tt.code, existing)
			}
			seenCodes[tt.code] = tt.name
		})
	}
}

func TestMCPError(t *testing.T) {
	err := &MCPError{Code: ErrorCodeInvalidParams, Message: "invalid params"}
	assert.Equal(t, "MCP error -32602: invalid params", err.Error())
}

func TestSearchDocs(t *testing.T) {
	s := newTestServer(t)
	addDoc(t, s, "react", "18.2.0", "useState", "useState is a React hook that lets you add state to function components.")
	addDoc(t, s, "react", "18.2.0", "useEffect", "useEffect lets you synchronize a component with an external system.")
	addDoc(t, s, "vue", "3.4.0", "Reactivity", "ref and reactive create reactive state in Vue components.")

	t.Run("hybrid", func(t *testing.T) {
		payload, result := call(t, s.handleSearchDocs, map[string]interface{}{
			"query": "state hook",
			"limit": float64(5),
		})
		assert.False(t, result.IsError)
		assert.Equal(t, true, payload["success"])

		results := payload["results"].([]interface{})
		assert.Equal(t, float64(len(results)), payload["resultCount"])
		require.NotEmpty(t, results)
		first := results[0].(map[string]interface{})
		assert.Equal(t, "useState", first["title"])
		for _, key := range []string{"id", "framework", "version", "path", "title", "snippet", "score"} {
			assert.Contains(t, first, key)
		}
	})

	t.Run("framework filter", func(t *testing.T) {
		payload, _ := call(t, s.handleSearchDocs, map[string]interface{}{
			"query":     "reactive state",
			"framework": "Vue",
			"mode":      "keyword",
		})
		for _, r := range payload["results"].([]interface{}) {
			assert.Equal(t, "vue", r.(map[string]interface{})["framework"])
		}
	})

	t.Run("no matches", func(t *testing.T) {
		payload, result := call(t, s.handleSearchDocs, map[string]interface{}{
			"query": "kubernetes",
			"mode":  "keyword",
		})
		assert.False(t, result.IsError)
		assert.Equal(t, []interface{}{}, payload["results"])
		assert.Equal(t, float64(0), payload["resultCount"])
	})

	t.Run("validation", func(t *testing.T) {
		tests := []struct {
			name string
			args map[string]interface{}
			code int
		}{
			{"missing query", map[string]interface{}{}, ErrorCodeEmptyQuery},
			{"blank query", map[string]interface{}{"query": "   "}, ErrorCodeEmptyQuery},
			{"limit zero", map[string]interface{}{"query": "x", "limit": float64(0)}, ErrorCodeInvalidParams},
			{"limit too large", map[string]interface{}{"query": "x", "limit": float64(101)}, ErrorCodeInvalidParams},
			{"unknown mode", map[string]interface{}{"query": "x", "mode": "fuzzy"}, ErrorCodeInvalidParams},
			{"alpha out of range", map[string]interface{}{"query": "x", "hybridAlpha": 1.5}, ErrorCodeInvalidParams},
			{"alpha not a number", map[string]interface{}{"query": "x", "hybridAlpha": "high"}, ErrorCodeInvalidParams},
			{"query too long", map[string]interface{}{"query": strings.Repeat("a", searcher.MaxQueryLength+1)}, ErrorCodeInvalidParams},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				mcpErr := callError(t, s.handleSearchDocs, tt.args)
				assert.Equal(t, tt.code, mcpErr.Code)
			})
		}
	})
}

func TestSearchDocs_IndexUnavailable(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, docstore.FileName), []byte("{not json"), 0o644))

	emb, err := embedder.NewLocalProvider(embedder.ProviderOptions{Dimension: 64})
	require.NoError(t, err)
	idx, err := indexer.New(indexer.Config{Dir: dir, Workers: 2}, emb, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = idx.Close() })
	srch, err := searcher.NewSearcher(idx, searcher.DefaultConfig(), nil)
	require.NoError(t, err)
	store, err := storage.NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	s, err := NewServer(idx, srch, store, nil)
	require.NoError(t, err)

	payload, result := call(t, s.handleSearchDocs, map[string]interface{}{"query": "hooks"})
	assert.True(t, result.IsError)
	assert.Equal(t, false, payload["success"])
	assert.Equal(t, float64(ErrorCodeIndexNotReady), payload["code"])
	assert.NotContains(t, payload, "results")
}

func TestDocumentLifecycle(t *testing.T) {
	s := newTestServer(t)
	id := addDoc(t, s, "react", "18.2.0", "useState", "useState adds state to function components.")
	addDoc(t, s, "react", "18.2.0", "useMemo", "useMemo caches a calculation between renders.")
	addDoc(t, s, "react", "17.0.0", "Legacy", "Class components use setState.")

	t.Run("get document", func(t *testing.T) {
		payload, _ := call(t, s.handleGetDocument, map[string]interface{}{"id": id})
		doc := payload["document"].(map[string]interface{})
		assert.Equal(t, id, doc["id"])
		assert.Equal(t, "useState", doc["title"])
		assert.Equal(t, true, doc["hasEmbedding"])
		assert.NotContains(t, doc, "embedding")
		assert.NotEmpty(t, payload["keywords"])
	})

	t.Run("get unknown document", func(t *testing.T) {
		payload, result := call(t, s.handleGetDocument, map[string]interface{}{"id": "missing"})
		assert.True(t, result.IsError)
		assert.Equal(t, false, payload["success"])
		assert.Equal(t, float64(ErrorCodeNotFound), payload["code"])
	})

	t.Run("stats", func(t *testing.T) {
		payload, _ := call(t, s.handleGetStats, nil)
		assert.Equal(t, true, payload["success"])
		assert.Equal(t, float64(3), payload["totalDocuments"])
		assert.Equal(t, []interface{}{"react"}, payload["frameworks"])
		assert.NotNil(t, payload["lastUpdated"])

		health := payload["index"].(map[string]interface{})
		assert.Equal(t, true, health["ready"])
		assert.Equal(t, float64(3), health["liveVectors"])
		assert.Equal(t, float64(0), health["deadVectors"])
	})

	t.Run("delete", func(t *testing.T) {
		payload, _ := call(t, s.handleDeleteDocument, map[string]interface{}{"id": id})
		assert.Equal(t, true, payload["success"])
		assert.Equal(t, true, payload["deleted"])

		payload, _ = call(t, s.handleDeleteDocument, map[string]interface{}{"id": id})
		assert.Equal(t, false, payload["deleted"])

		health, _ := call(t, s.handleGetStats, nil)
		assert.Equal(t, float64(1), health["index"].(map[string]interface{})["deadVectors"])
	})

	t.Run("clear framework version", func(t *testing.T) {
		payload, _ := call(t, s.handleClearFrameworkVersion, map[string]interface{}{
			"framework": "react",
			"version":   "18.2.0",
		})
		assert.Equal(t, true, payload["success"])
		assert.Equal(t, float64(1), payload["removed"])

		stats, _ := call(t, s.handleGetStats, nil)
		assert.Equal(t, float64(1), stats["totalDocuments"])
	})

	t.Run("rebuild", func(t *testing.T) {
		payload, _ := call(t, s.handleRebuildIndex, nil)
		assert.Equal(t, true, payload["success"])
		assert.Equal(t, float64(1), payload["indexed"])
		assert.Equal(t, float64(0), payload["skipped"])
		assert.Contains(t, payload, "durationMs")

		stats, _ := call(t, s.handleGetStats, nil)
		assert.Equal(t, float64(0), stats["index"].(map[string]interface{})["deadVectors"])
	})

	t.Run("missing parameters", func(t *testing.T) {
		assert.Equal(t, ErrorCodeInvalidParams, callError(t, s.handleDeleteDocument, map[string]interface{}{}).Code)
		assert.Equal(t, ErrorCodeInvalidParams, callError(t, s.handleGetDocument, map[string]interface{}{"id": ""}).Code)
		assert.Equal(t, ErrorCodeInvalidParams, callError(t, s.handleClearFrameworkVersion, map[string]interface{}{"framework": "react"}).Code)
	})
}

func TestAddDocument(t *testing.T) {
	s := newTestServer(t)

	t.Run("html content", func(t *testing.T) {
		payload, result := call(t, s.handleAddDocument, map[string]interface{}{
			"framework": "svelte",
			"version":   "4.0.0",
			"format":    "html",
			"content":   "<html><head><title>Stores</title><script>track()</script></head><body><main><p>A store is an object with a subscribe method.</p></main></body></html>",
		})
		require.False(t, result.IsError, payload)

		doc, _ := call(t, s.handleGetDocument, map[string]interface{}{"id": payload["id"]})
		fields := doc["document"].(map[string]interface{})
		assert.Equal(t, "Stores", fields["title"])
		assert.Contains(t, fields["content"], "subscribe method")
		assert.NotContains(t, fields["content"], "track()")
	})

	t.Run("markdown title", func(t *testing.T) {
		payload, _ := call(t, s.handleAddDocument, map[string]interface{}{
			"framework": "svelte",
			"version":   "4.0.0",
			"format":    "markdown",
			"content":   "# Transitions\n\nThe transition directive animates elements.",
		})
		doc, _ := call(t, s.handleGetDocument, map[string]interface{}{"id": payload["id"]})
		assert.Equal(t, "Transitions", doc["document"].(map[string]interface{})["title"])
	})

	t.Run("invalid", func(t *testing.T) {
		tests := []struct {
			name string
			args map[string]interface{}
		}{
			{"unknown format", map[string]interface{}{"framework": "a", "version": "1", "content": "x", "format": "pdf"}},
			{"missing framework", map[string]interface{}{"version": "1", "content": "x"}},
			{"missing version", map[string]interface{}{"framework": "a", "content": "x"}},
			{"empty document", map[string]interface{}{"framework": "a", "version": "1", "content": " "}},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				assert.Equal(t, ErrorCodeInvalidParams, callError(t, s.handleAddDocument, tt.args).Code)
			})
		}
	})

	t.Run("invalid arguments type", func(t *testing.T) {
		request := mcp.CallToolRequest{Params: mcp.CallToolParams{Arguments: []string{"framework"}}}
		_, err := s.handleAddDocument(context.Background(), request)
		var mcpErr *MCPError
		require.ErrorAs(t, err, &mcpErr)
		assert.Equal(t, ErrorCodeInvalidParams, mcpErr.Code)
	})
}

func TestFrameworkRegistry(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		name     string
		args     map[string]interface{}
		location string
	}{
		{
			name:     "npm",
			args:     map[string]interface{}{"name": "React", "displayName": "React", "type": "npm", "package": "react"},
			location: "https://www.npmjs.com/package/react",
		},
		{
			name:     "python",
			args:     map[string]interface{}{"name": "fastapi", "type": "python", "package": "fastapi"},
			location: "https://pypi.org/project/fastapi/",
		},
		{
			name:     "github",
			args:     map[string]interface{}{"name": "svelte", "type": "github", "owner": "sveltejs", "repo": "svelte", "docsPath": "documentation"},
			location: "https://github.com/sveltejs/svelte/tree/main/documentation",
		},
		{
			name:     "custom",
			args:     map[string]interface{}{"name": "htmx", "type": "custom", "docsUrl": "https://htmx.org/docs/"},
			location: "https://htmx.org/docs/",
		},
	}
	for _, tt := range tests {
		t.Run("register "+tt.name, func(t *testing.T) {
			payload, result := call(t, s.handleRegisterFramework, tt.args)
			require.False(t, result.IsError, payload)
			assert.Equal(t, tt.location, payload["docsLocation"])

			fw := payload["framework"].(map[string]interface{})
			assert.Equal(t, tt.args["type"], fw["type"])
		})
	}

	t.Run("list", func(t *testing.T) {
		payload, _ := call(t, s.handleListFrameworks, nil)
		assert.Equal(t, float64(4), payload["count"])
		names := make([]string, 0, 4)
		for _, fw := range payload["frameworks"].([]interface{}) {
			names = append(names, fw.(map[string]interface{})["name"].(string))
		}
		assert.Equal(t, []string{"fastapi", "htmx", "react", "svelte"}, names)
	})

	t.Run("list by type", func(t *testing.T) {
		payload, _ := call(t, s.handleListFrameworks, map[string]interface{}{"type": "github"})
		assert.Equal(t, float64(1), payload["count"])
	})

	t.Run("invalid", func(t *testing.T) {
		tests := []struct {
			name string
			args map[string]interface{}
		}{
			{"missing name", map[string]interface{}{"type": "npm", "package": "x"}},
			{"unknown type", map[string]interface{}{"name": "x", "type": "cargo"}},
			{"npm without package", map[string]interface{}{"name": "x", "type": "npm"}},
			{"github without repo", map[string]interface{}{"name": "x", "type": "github", "owner": "o"}},
			{"custom bad url", map[string]interface{}{"name": "x", "type": "custom", "docsUrl": "not a url"}},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				assert.Equal(t, ErrorCodeInvalidParams, callError(t, s.handleRegisterFramework, tt.args).Code)
			})
		}

		assert.Equal(t, ErrorCodeInvalidParams, callError(t, s.handleListFrameworks, map[string]interface{}{"type": "cargo"}).Code)
	})
}
