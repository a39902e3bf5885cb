package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/RLabs-Inc/claude-mcp/internal/ingest"
	"github.com/RLabs-Inc/claude-mcp/internal/searcher"
	"github.com/RLabs-Inc/claude-mcp/internal/storage"
	"github.com/RLabs-Inc/claude-mcp/pkg/types"
)

// MCP error codes
const (
	ErrorCodeInvalidParams     = -32602 // Invalid method parameters
	ErrorCodeInternalError     = -32603 // Internal JSON-RPC error
	ErrorCodeNotFound          = -32001 // Document or framework does not exist
	ErrorCodeRebuildInProgress = -32002 // Another rebuild is already running
	ErrorCodeIndexNotReady     = -32003 // Index could not be initialized
	ErrorCodeEmptyQuery        = -32004 // Query parameter is empty
	ErrorCodeSearchFailed      = -32005 // Every search mode failed
	ErrorCodeStorage           = -32006 // Index or registry files could not be written
)

// handleSearchDocs handles the search_docs tool invocation
func (s *Server) handleSearchDocs(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := arguments(request)
	if err != nil {
		return nil, err
	}

	query, ok := args["query"].(string)
	if !ok || strings.TrimSpace(query) == "" {
		return nil, newMCPError(ErrorCodeEmptyQuery, "query parameter is required and cannot be empty", map[string]interface{}{
			"param":  "query",
			"reason": "missing or empty",
		})
	}

	req := searcher.SearchRequest{
		Query:     query,
		Framework: getStringDefault(args, "framework", ""),
		Version:   getStringDefault(args, "version", ""),
		Mode:      searcher.SearchMode(getStringDefault(args, "mode", string(searcher.SearchModeHybrid))),
	}
	if _, present := args["limit"]; present {
		req.Limit = getIntDefault(args, "limit", 0)
		if req.Limit < 1 || req.Limit > searcher.MaxLimit {
			return nil, newMCPError(ErrorCodeInvalidParams, fmt.Sprintf("limit must be between 1 and %d", searcher.MaxLimit), map[string]interface{}{
				"param": "limit",
				"value": args["limit"],
			})
		}
	}
	if raw, present := args["hybridAlpha"]; present {
		alpha, ok := raw.(float64)
		if !ok {
			return nil, newMCPError(ErrorCodeInvalidParams, "hybridAlpha must be a number", map[string]interface{}{
				"param": "hybridAlpha",
				"value": raw,
			})
		}
		req.HybridAlpha = &alpha
	}

	resp, err := s.searcher.Search(ctx, req)
	if err != nil {
		if !errors.Is(err, types.ErrInvalidInput) {
			s.logger.Error("search failed", "query", req.Query, "mode", req.Mode, "error", err)
		}
		return failure(err, nil)
	}

	results := resp.Results
	if results == nil {
		results = []types.SearchResult{}
	}
	response := map[string]interface{}{
		"success":     true,
		"results":     results,
		"resultCount": resp.ResultCount,
		"mode":        resp.Mode,
		"durationMs":  resp.Duration.Milliseconds(),
	}
	if resp.Fallback {
		response["fallback"] = true
	}

	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleGetStats handles the get_stats tool invocation
func (s *Server) handleGetStats(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	stats, err := s.indexer.Stats(ctx)
	if err != nil {
		return failure(err, nil)
	}

	frameworks := stats.Frameworks
	if frameworks == nil {
		frameworks = []string{}
	}
	versions := stats.Versions
	if versions == nil {
		versions = map[string][]string{}
	}

	response := map[string]interface{}{
		"success":        true,
		"totalDocuments": stats.TotalDocuments,
		"frameworks":     frameworks,
		"versions":       versions,
		"lastUpdated":    formatTime(stats.LastUpdated),
		"index":          s.indexer.Health(),
		"cachedQueries":  s.searcher.CacheLen(),
	}

	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleAddDocument handles the add_document tool invocation
func (s *Server) handleAddDocument(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := arguments(request)
	if err != nil {
		return nil, err
	}

	format, err := ingest.ParseFormat(getStringDefault(args, "format", ""))
	if err != nil {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid format", map[string]interface{}{
			"param":   "format",
			"value":   args["format"],
			"allowed": []string{"text", "markdown", "html"},
		})
	}

	page, err := ingest.Parse(format, getStringDefault(args, "content", ""))
	if err != nil {
		return failure(err, map[string]interface{}{"param": "content"})
	}
	title := getStringDefault(args, "title", "")
	if strings.TrimSpace(title) == "" {
		title = page.Title
	}

	in := types.DocumentInput{
		Framework: getStringDefault(args, "framework", ""),
		Version:   getStringDefault(args, "version", ""),
		Path:      getStringDefault(args, "path", ""),
		Title:     title,
		Content:   page.Content,
		URL:       getStringDefault(args, "url", ""),
	}

	doc, err := s.indexer.AddDocument(ctx, in)
	if err != nil {
		// A storage failure still leaves the document indexed in memory.
		if doc != nil {
			return failure(err, map[string]interface{}{"id": doc.ID})
		}
		return failure(err, nil)
	}

	response := map[string]interface{}{
		"success":      true,
		"id":           doc.ID,
		"hasEmbedding": doc.HasEmbedding(),
	}

	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleDeleteDocument handles the delete_document tool invocation
func (s *Server) handleDeleteDocument(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := arguments(request)
	if err != nil {
		return nil, err
	}
	id, err := requireString(args, "id")
	if err != nil {
		return nil, err
	}

	deleted, err := s.indexer.DeleteDocument(ctx, id)
	if err != nil {
		return failure(err, map[string]interface{}{"id": id})
	}

	response := map[string]interface{}{
		"success": true,
		"deleted": deleted,
	}

	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleClearFrameworkVersion handles the clear_framework_version tool invocation
func (s *Server) handleClearFrameworkVersion(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := arguments(request)
	if err != nil {
		return nil, err
	}
	framework, err := requireString(args, "framework")
	if err != nil {
		return nil, err
	}
	version, err := requireString(args, "version")
	if err != nil {
		return nil, err
	}

	removed, err := s.indexer.ClearFrameworkVersion(ctx, framework, version)
	if err != nil {
		return failure(err, nil)
	}

	response := map[string]interface{}{
		"success": true,
		"removed": removed,
	}

	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleRebuildIndex handles the rebuild_index tool invocation
func (s *Server) handleRebuildIndex(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	stats, err := s.indexer.RebuildIndex(ctx)
	if err != nil {
		return failure(err, nil)
	}

	response := map[string]interface{}{
		"success":    true,
		"indexed":    stats.Indexed,
		"skipped":    stats.Skipped,
		"durationMs": stats.Duration.Milliseconds(),
	}

	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleGetDocument handles the get_document tool invocation
func (s *Server) handleGetDocument(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := arguments(request)
	if err != nil {
		return nil, err
	}
	id, err := requireString(args, "id")
	if err != nil {
		return nil, err
	}

	if err := s.indexer.EnsureReady(ctx); err != nil {
		return failure(err, nil)
	}
	doc, ok := s.indexer.Document(id)
	if !ok {
		return failure(fmt.Errorf("%w: document %q", types.ErrNotFound, id), nil)
	}

	keywords := s.indexer.Keywords(id)
	if keywords == nil {
		keywords = []string{}
	}
	response := map[string]interface{}{
		"success": true,
		"document": map[string]interface{}{
			"id":           doc.ID,
			"framework":    doc.Framework,
			"version":      doc.Version,
			"path":         doc.Path,
			"title":        doc.Title,
			"content":      doc.Content,
			"url":          doc.URL,
			"createdAt":    formatTime(doc.CreatedAt),
			"hasEmbedding": doc.HasEmbedding(),
		},
		"keywords": keywords,
	}

	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleRegisterFramework handles the register_framework tool invocation
func (s *Server) handleRegisterFramework(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := arguments(request)
	if err != nil {
		return nil, err
	}
	name, err := requireString(args, "name")
	if err != nil {
		return nil, err
	}

	source, err := frameworkSource(args)
	if err != nil {
		return failure(err, map[string]interface{}{"param": "type"})
	}

	fw := &types.Framework{
		Name:        name,
		DisplayName: getStringDefault(args, "displayName", ""),
		Source:      source,
	}
	if err := s.storage.UpsertFramework(ctx, fw); err != nil {
		return failure(err, nil)
	}

	response := map[string]interface{}{
		"success":      true,
		"framework":    fw,
		"docsLocation": fw.DocsLocation(),
	}

	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleListFrameworks handles the list_frameworks tool invocation
func (s *Server) handleListFrameworks(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := arguments(request)
	if err != nil {
		return nil, err
	}

	var filter storage.ListFilter
	if typ := getStringDefault(args, "type", ""); typ != "" {
		filter.SourceType = types.SourceType(strings.ToLower(typ))
		if _, err := types.DecodeSource(filter.SourceType, nil); err != nil {
			return failure(err, map[string]interface{}{"param": "type"})
		}
	}

	frameworks, err := s.storage.ListFrameworks(ctx, filter)
	if err != nil {
		return failure(err, nil)
	}
	if frameworks == nil {
		frameworks = []*types.Framework{}
	}

	response := map[string]interface{}{
		"success":    true,
		"frameworks": frameworks,
		"count":      len(frameworks),
	}

	return mcp.NewToolResultText(formatJSON(response)), nil
}

// frameworkSource builds the source variant named by the "type" argument.
func frameworkSource(args map[string]interface{}) (types.FrameworkSource, error) {
	typ := types.SourceType(strings.ToLower(getStringDefault(args, "type", "")))
	switch typ {
	case types.SourceNPM:
		return types.NPMSource{Package: getStringDefault(args, "package", "")}, nil
	case types.SourcePython:
		return types.PythonSource{
			Package: getStringDefault(args, "package", ""),
			DocsURL: getStringDefault(args, "docsUrl", ""),
		}, nil
	case types.SourceGitHub:
		return types.GitHubSource{
			Owner:    getStringDefault(args, "owner", ""),
			Repo:     getStringDefault(args, "repo", ""),
			Branch:   getStringDefault(args, "branch", ""),
			DocsPath: getStringDefault(args, "docsPath", ""),
		}, nil
	case types.SourceCustom:
		return types.CustomSource{DocsURL: getStringDefault(args, "docsUrl", "")}, nil
	default:
		return nil, fmt.Errorf("%w: unknown framework type %q", types.ErrInvalidInput, typ)
	}
}

// Helper functions

// failure converts a domain error into the handler's return values.
// Invalid input is a protocol error; everything else becomes a tool
// result with success set to false so clients can read the reason.
func failure(err error, data map[string]interface{}) (*mcp.CallToolResult, error) {
	if errors.Is(err, types.ErrInvalidInput) {
		return nil, newMCPError(ErrorCodeInvalidParams, err.Error(), data)
	}

	response := map[string]interface{}{
		"success": false,
		"error":   err.Error(),
		"code":    errorCode(err),
	}
	for k, v := range data {
		response[k] = v
	}
	return mcp.NewToolResultError(formatJSON(response)), nil
}

// errorCode maps the error taxonomy onto MCP error codes
func errorCode(err error) int {
	switch {
	case errors.Is(err, types.ErrInvalidInput):
		return ErrorCodeInvalidParams
	case errors.Is(err, types.ErrNotFound):
		return ErrorCodeNotFound
	case errors.Is(err, types.ErrRebuildInProgress):
		return ErrorCodeRebuildInProgress
	case errors.Is(err, types.ErrIndexNotInitialized):
		return ErrorCodeIndexNotReady
	case errors.Is(err, types.ErrSearch):
		return ErrorCodeSearchFailed
	case errors.Is(err, types.ErrStorage):
		return ErrorCodeStorage
	default:
		return ErrorCodeInternalError
	}
}

// newMCPError creates a properly formatted MCP error
func newMCPError(code int, message string, data interface{}) error {
	// MCP errors are returned as regular errors, the framework handles encoding
	return &MCPError{
		Code:    code,
		Message: message,
		Data:    data,
	}
}

// MCPError represents an MCP protocol error
type MCPError struct {
	Code    int
	Message string
	Data    interface{}
}

func (e *MCPError) Error() string {
	return fmt.Sprintf("MCP error %d: %s", e.Code, e.Message)
}

// arguments returns the call arguments. Tools without required
// parameters may be called with none.
func arguments(request mcp.CallToolRequest) (map[string]interface{}, error) {
	if request.Params.Arguments == nil {
		return map[string]interface{}{}, nil
	}
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}
	return args, nil
}

// requireString extracts a non-empty string parameter
func requireString(args map[string]interface{}, key string) (string, error) {
	val, ok := args[key].(string)
	if !ok || strings.TrimSpace(val) == "" {
		return "", newMCPError(ErrorCodeInvalidParams, key+" parameter is required", map[string]interface{}{
			"param":  key,
			"reason": "missing or empty",
		})
	}
	return val, nil
}

// formatJSON formats a map as indented JSON
func formatJSON(data map[string]interface{}) string {
	bytes, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", data)
	}
	return string(bytes)
}

// formatTime renders t as RFC 3339, or nil when unset
func formatTime(t time.Time) interface{} {
	if t.IsZero() {
		return nil
	}
	return t.UTC().Format(time.RFC3339)
}

// getIntDefault extracts an integer parameter with a default value
func getIntDefault(args map[string]interface{}, key string, defaultValue int) int {
	if val, ok := args[key].(float64); ok {
		return int(val)
	}
	if val, ok := args[key].(int); ok {
		return val
	}
	return defaultValue
}

// getStringDefault extracts a string parameter with a default value
func getStringDefault(args map[string]interface{}, key string, defaultValue string) string {
	if val, ok := args[key].(string); ok {
		return val
	}
	return defaultValue
}
