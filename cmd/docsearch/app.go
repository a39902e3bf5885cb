package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/RLabs-Inc/claude-mcp/internal/config"
	"github.com/RLabs-Inc/claude-mcp/internal/embedder"
	"github.com/RLabs-Inc/claude-mcp/internal/indexer"
	"github.com/RLabs-Inc/claude-mcp/internal/logging"
	"github.com/RLabs-Inc/claude-mcp/internal/searcher"
	"github.com/RLabs-Inc/claude-mcp/internal/storage"
)

// app holds the wired components for one command invocation.
type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	indexer  *indexer.Indexer
	searcher *searcher.Searcher
	registry storage.Storage
}

// openApp loads configuration and builds every component. Nothing is read
// from the index until the indexer is initialized. Logs go to logOut;
// stdout belongs to command output and the MCP protocol.
func openApp(ctx context.Context, opts *rootOptions, logOut io.Writer) (*app, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, err
	}
	if opts.dataDir != "" {
		cfg.DataDir = opts.dataDir
	}
	if opts.logLevel != "" {
		cfg.Log.Level = opts.logLevel
	}

	logger, err := logging.NewWithWriter(logOut, cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return nil, err
	}
	for _, warning := range cfg.Validate() {
		logger.Warn("config warning", "warning", warning)
	}

	if err := os.MkdirAll(cfg.IndexDir(), 0o755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}

	base, err := embedder.New(ctx, cfg.EmbedderConfig())
	if err != nil {
		return nil, fmt.Errorf("create embedder: %w", err)
	}
	emb := logging.NewLoggingEmbedder(base, logger.With("component", "embedder"))

	idx, err := indexer.New(cfg.IndexerConfig(), emb, logger.With("component", "indexer"))
	if err != nil {
		_ = emb.Close()
		return nil, err
	}

	srch, err := searcher.NewSearcher(idx, cfg.SearcherConfig(), logger.With("component", "searcher"))
	if err != nil {
		_ = idx.Close()
		return nil, err
	}

	registry, err := storage.NewSQLiteStorage(cfg.RegistryPath())
	if err != nil {
		_ = idx.Close()
		return nil, err
	}

	logger.Debug("components ready",
		"data_dir", cfg.DataDir,
		"provider", emb.Provider(),
		"model", emb.Model(),
		"dimension", emb.Dimension(),
		"sqlite", storage.BuildMode)

	return &app{
		cfg:      cfg,
		logger:   logger,
		indexer:  idx,
		searcher: srch,
		registry: registry,
	}, nil
}

// ready initializes the index, rebuilding it if it cannot be loaded.
func (a *app) ready(ctx context.Context) error {
	return a.indexer.EnsureReady(ctx)
}

func (a *app) Close() error {
	return errors.Join(a.indexer.Close(), a.registry.Close())
}
