package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/RLabs-Inc/claude-mcp/internal/searcher"
)

// searchDocsTool returns the tool definition for search_docs
func searchDocsTool() mcp.Tool {
	return mcp.Tool{
		Name:        "search_docs",
		Description: "Search indexed framework documentation with natural language or keyword queries",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"query": map[string]interface{}{
					"type":        "string",
					"description": "Search query (natural language or keywords)",
					"minLength":   1,
					"maxLength":   searcher.MaxQueryLength,
				},
				"framework": map[string]interface{}{
					"type":        "string",
					"description": "Only return documents of this framework (case-insensitive)",
				},
				"version": map[string]interface{}{
					"type":        "string",
					"description": "Only return documents of this exact version",
				},
				"limit": map[string]interface{}{
					"type":        "integer",
					"description": "Maximum number of results to return (1-100)",
					"default":     searcher.DefaultLimit,
					"minimum":     1,
					"maximum":     searcher.MaxLimit,
				},
				"mode": map[string]interface{}{
					"type":        "string",
					"description": "Search strategy: hybrid (vector + keyword), semantic (vector only), or keyword",
					"enum":        []string{string(searcher.SearchModeHybrid), string(searcher.SearchModeSemantic), string(searcher.SearchModeKeyword)},
					"default":     string(searcher.SearchModeHybrid),
				},
				"hybridAlpha": map[string]interface{}{
					"type":        "number",
					"description": "Weight of the vector score in hybrid mode; 1 is purely semantic, 0 purely keyword",
					"default":     searcher.DefaultAlpha,
					"minimum":     0.0,
					"maximum":     1.0,
				},
			},
			Required: []string{"query"},
		},
	}
}

// getStatsTool returns the tool definition for get_stats
func getStatsTool() mcp.Tool {
	return mcp.Tool{
		Name:        "get_stats",
		Description: "Report document counts per framework and version, plus vector index health",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}
}

// addDocumentTool returns the tool definition for add_document
func addDocumentTool() mcp.Tool {
	return mcp.Tool{
		Name:        "add_document",
		Description: "Add one documentation page to the index",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"framework": map[string]interface{}{
					"type":        "string",
					"description": "Framework the page documents, e.g. react",
				},
				"version": map[string]interface{}{
					"type":        "string",
					"description": "Framework version, e.g. 18.2.0",
				},
				"path": map[string]interface{}{
					"type":        "string",
					"description": "Path of the page inside the documentation set",
				},
				"title": map[string]interface{}{
					"type":        "string",
					"description": "Page title; taken from the content when omitted",
				},
				"content": map[string]interface{}{
					"type":        "string",
					"description": "Page body",
				},
				"url": map[string]interface{}{
					"type":        "string",
					"description": "Canonical URL of the page",
				},
				"format": map[string]interface{}{
					"type":        "string",
					"description": "Encoding of content; html is reduced to its visible text",
					"enum":        []string{"text", "markdown", "html"},
					"default":     "text",
				},
			},
			Required: []string{"framework", "version", "content"},
		},
	}
}

// deleteDocumentTool returns the tool definition for delete_document
func deleteDocumentTool() mcp.Tool {
	return mcp.Tool{
		Name:        "delete_document",
		Description: "Remove a document from the index by id",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"id": map[string]interface{}{
					"type":        "string",
					"description": "Document id as returned by search_docs or add_document",
				},
			},
			Required: []string{"id"},
		},
	}
}

// clearFrameworkVersionTool returns the tool definition for clear_framework_version
func clearFrameworkVersionTool() mcp.Tool {
	return mcp.Tool{
		Name:        "clear_framework_version",
		Description: "Remove every document of one framework version",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"framework": map[string]interface{}{
					"type":        "string",
					"description": "Framework name",
				},
				"version": map[string]interface{}{
					"type":        "string",
					"description": "Exact version to clear",
				},
			},
			Required: []string{"framework", "version"},
		},
	}
}

// rebuildIndexTool returns the tool definition for rebuild_index
func rebuildIndexTool() mcp.Tool {
	return mcp.Tool{
		Name:        "rebuild_index",
		Description: "Rebuild the vector index from stored documents, reclaiming deleted slots",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}
}

// getDocumentTool returns the tool definition for get_document
func getDocumentTool() mcp.Tool {
	return mcp.Tool{
		Name:        "get_document",
		Description: "Fetch a stored document and its extracted keywords",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"id": map[string]interface{}{
					"type":        "string",
					"description": "Document id",
				},
			},
			Required: []string{"id"},
		},
	}
}

// registerFrameworkTool returns the tool definition for register_framework
func registerFrameworkTool() mcp.Tool {
	return mcp.Tool{
		Name:        "register_framework",
		Description: "Register or update a framework and where its documentation comes from",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"name": map[string]interface{}{
					"type":        "string",
					"description": "Framework name used as the framework filter in searches",
				},
				"displayName": map[string]interface{}{
					"type":        "string",
					"description": "Human readable name",
				},
				"type": map[string]interface{}{
					"type":        "string",
					"description": "Documentation source kind",
					"enum":        []string{"npm", "python", "github", "custom"},
				},
				"package": map[string]interface{}{
					"type":        "string",
					"description": "Package name (npm and python)",
				},
				"docsUrl": map[string]interface{}{
					"type":        "string",
					"description": "Documentation URL (custom, optional for python)",
				},
				"owner": map[string]interface{}{
					"type":        "string",
					"description": "Repository owner (github)",
				},
				"repo": map[string]interface{}{
					"type":        "string",
					"description": "Repository name (github)",
				},
				"branch": map[string]interface{}{
					"type":        "string",
					"description": "Branch holding the docs (github, default main)",
				},
				"docsPath": map[string]interface{}{
					"type":        "string",
					"description": "Docs directory inside the repository (github)",
				},
			},
			Required: []string{"name", "type"},
		},
	}
}

// listFrameworksTool returns the tool definition for list_frameworks
func listFrameworksTool() mcp.Tool {
	return mcp.Tool{
		Name:        "list_frameworks",
		Description: "List registered frameworks",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"type": map[string]interface{}{
					"type":        "string",
					"description": "Only list frameworks with this source kind",
					"enum":        []string{"npm", "python", "github", "custom"},
				},
			},
		},
	}
}
