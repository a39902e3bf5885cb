package mcp

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/mark3labs/mcp-go/server"

	"github.com/RLabs-Inc/claude-mcp/internal/indexer"
	"github.com/RLabs-Inc/claude-mcp/internal/searcher"
	"github.com/RLabs-Inc/claude-mcp/internal/storage"
	"github.com/RLabs-Inc/claude-mcp/pkg/types"
)

const (
	// ServerName is the MCP server name
	ServerName = "docsearch"
	// ServerVersion is the current server version
	ServerVersion = "1.0.0"
)

// Server wraps the MCP server with application dependencies
type Server struct {
	mcp      *server.MCPServer
	storage  storage.Storage
	indexer  *indexer.Indexer
	searcher *searcher.Searcher
	logger   *slog.Logger
}

// NewServer creates a new MCP server instance. The caller keeps ownership
// of the indexer and the registry and closes them after Serve returns.
func NewServer(idx *indexer.Indexer, srch *searcher.Searcher, store storage.Storage, logger *slog.Logger) (*Server, error) {
	if idx == nil || srch == nil || store == nil {
		return nil, fmt.Errorf("%w: indexer, searcher and storage are required", types.ErrInvalidInput)
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	mcpServer := server.NewMCPServer(
		ServerName,
		ServerVersion,
		server.WithToolCapabilities(false),
		server.WithRecovery(),
	)

	s := &Server{
		mcp:      mcpServer,
		storage:  store,
		indexer:  idx,
		searcher: srch,
		logger:   logger,
	}

	// Register tools
	if err := s.registerTools(); err != nil {
		return nil, fmt.Errorf("failed to register tools: %w", err)
	}

	return s, nil
}

// Serve starts index initialization in the background, then serves MCP on
// stdio and blocks until shutdown. Tool calls issued before initialization
// finishes wait for it.
func (s *Server) Serve(ctx context.Context) error {
	initErr := s.indexer.Start(ctx)
	go func() {
		if err := <-initErr; err != nil {
			s.logger.Error("index initialization failed", "error", err)
		}
	}()
	return server.ServeStdio(s.mcp)
}

// registerTools registers all MCP tools
func (s *Server) registerTools() error {
	s.mcp.AddTool(searchDocsTool(), s.handleSearchDocs)
	s.mcp.AddTool(getStatsTool(), s.handleGetStats)
	s.mcp.AddTool(addDocumentTool(), s.handleAddDocument)
	s.mcp.AddTool(deleteDocumentTool(), s.handleDeleteDocument)
	s.mcp.AddTool(clearFrameworkVersionTool(), s.handleClearFrameworkVersion)
	s.mcp.AddTool(rebuildIndexTool(), s.handleRebuildIndex)
	s.mcp.AddTool(getDocumentTool(), s.handleGetDocument)

	// Framework registry
	s.mcp.AddTool(registerFrameworkTool(), s.handleRegisterFramework)
	s.mcp.AddTool(listFrameworksTool(), s.handleListFrameworks)

	return nil
}
