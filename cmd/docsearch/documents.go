package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/RLabs-Inc/claude-mcp/internal/chunker"
	"github.com/RLabs-Inc/claude-mcp/internal/ingest"
	"github.com/RLabs-Inc/claude-mcp/pkg/types"
)

func newStatsCmd(opts *rootOptions) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show document counts and index health",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			a, err := openApp(ctx, opts, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.Close()

			stats, err := a.indexer.Stats(ctx)
			if err != nil {
				return err
			}
			health := a.indexer.Health()

			if asJSON {
				data, err := json.MarshalIndent(map[string]interface{}{
					"totalDocuments": stats.TotalDocuments,
					"frameworks":     stats.Frameworks,
					"versions":       stats.Versions,
					"lastUpdated":    stats.LastUpdated,
					"index":          health,
				}, "", "  ")
				if err != nil {
					return err
				}
				cmd.Println(string(data))
				return nil
			}

			cmd.Printf("Documents:    %d\n", stats.TotalDocuments)
			if !stats.LastUpdated.IsZero() {
				cmd.Printf("Last updated: %s\n", stats.LastUpdated.Local().Format(time.DateTime))
			}
			if len(stats.Frameworks) > 0 {
				cmd.Println("Frameworks:")
				for _, fw := range stats.Frameworks {
					cmd.Printf("  %-20s %s\n", fw, strings.Join(stats.Versions[fw], ", "))
				}
			}
			cmd.Println("Vector index:")
			cmd.Printf("  embedding:    %s %s (%d dimensions)\n", health.Provider, health.Model, health.Dimension)
			cmd.Printf("  vectors:      %d live, %d dead, %d slots\n", health.LiveVectors, health.DeadVectors, health.VectorSlots)
			cmd.Printf("  keyword only: %d\n", health.KeywordOnly)
			if health.DeadVectors > health.LiveVectors && health.DeadVectors > 0 {
				cmd.Println("  more dead slots than live vectors; run 'docsearch rebuild' to reclaim them")
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "output as JSON")
	return cmd
}

func newAddCmd(opts *rootOptions) *cobra.Command {
	var (
		framework  string
		docVersion string
		baseURL    string
		root       string
		split      bool
		maxTokens  int
	)

	cmd := &cobra.Command{
		Use:   "add <file>...",
		Short: "Add documentation files to the index",
		Long: `Reads each file, extracts its title and text (HTML is reduced to its
visible text, Markdown titles come from the first "# " heading) and indexes
it under --framework and --version.

Paths are stored relative to --root. With --base-url, each document's URL
is the base URL joined with that relative path.

With --split, each page is stored as one document per "##"/"###" section,
with the section anchor appended to its path and URL.`,
		Example: `  docsearch add --framework react --version 18.2.0 --root ./docs docs/hooks/*.md`,
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			strategy := chunker.StrategyPage
			if split {
				strategy = chunker.StrategySection
			}
			chunks := chunker.New(maxTokens)

			var inputs []types.DocumentInput
			for _, file := range args {
				page, err := ingest.FromFile(file)
				if err != nil {
					return err
				}
				rel := docPath(root, file)
				for _, ch := range chunks.Chunk(page.Title, page.Content, strategy) {
					path := rel
					if ch.Anchor != "" {
						path += "#" + ch.Anchor
					}
					in := types.DocumentInput{
						Framework: framework,
						Version:   docVersion,
						Path:      path,
						Title:     ch.Title,
						Content:   ch.Content,
					}
					if baseURL != "" {
						in.URL = strings.TrimSuffix(baseURL, "/") + "/" + path
					}
					inputs = append(inputs, in)
				}
			}
			if len(inputs) == 0 {
				return fmt.Errorf("%w: no text found in %d files", types.ErrInvalidInput, len(args))
			}

			a, err := openApp(ctx, opts, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.Close()

			result, err := a.indexer.AddDocuments(ctx, inputs)
			if result != nil {
				cmd.Printf("Added %d of %d documents", len(result.Added), len(inputs))
				if result.KeywordOnly > 0 {
					cmd.Printf(" (%d without embeddings, keyword search only)", result.KeywordOnly)
				}
				cmd.Println()
				for _, invalid := range result.InvalidInput {
					cmd.Printf("  skipped: %v\n", invalid)
				}
			}
			return err
		},
	}

	cmd.Flags().StringVarP(&framework, "framework", "f", "", "framework the files document")
	cmd.Flags().StringVar(&docVersion, "version", "", "framework version")
	cmd.Flags().StringVar(&baseURL, "base-url", "", "URL prefix for document links")
	cmd.Flags().StringVar(&root, "root", "", "directory that stored paths are relative to")
	cmd.Flags().BoolVar(&split, "split", false, "store each heading section as its own document")
	cmd.Flags().IntVar(&maxTokens, "max-tokens", chunker.MaxTokensPerChunk, "approximate token limit per section with --split")
	_ = cmd.MarkFlagRequired("framework")
	_ = cmd.MarkFlagRequired("version")

	return cmd
}

// docPath returns file relative to root with forward slashes, or the
// cleaned file path when it is not under root.
func docPath(root, file string) string {
	if root != "" {
		if rel, err := filepath.Rel(root, file); err == nil && !strings.HasPrefix(rel, "..") {
			return filepath.ToSlash(rel)
		}
	}
	return filepath.ToSlash(filepath.Clean(file))
}

func newGetCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Show a stored document and its keywords",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			a, err := openApp(ctx, opts, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.ready(ctx); err != nil {
				return err
			}
			doc, ok := a.indexer.Document(args[0])
			if !ok {
				return fmt.Errorf("%w: document %q", types.ErrNotFound, args[0])
			}

			cmd.Printf("ID:        %s\n", doc.ID)
			cmd.Printf("Title:     %s\n", doc.Title)
			cmd.Printf("Framework: %s %s\n", doc.Framework, doc.Version)
			cmd.Printf("Path:      %s\n", doc.Path)
			if doc.URL != "" {
				cmd.Printf("URL:       %s\n", doc.URL)
			}
			cmd.Printf("Embedded:  %v\n", doc.HasEmbedding())
			cmd.Printf("Keywords:  %s\n", strings.Join(a.indexer.Keywords(doc.ID), ", "))
			cmd.Println()
			cmd.Println(doc.Content)
			return nil
		},
	}
}

func newDeleteCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>...",
		Short: "Delete documents by id",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			a, err := openApp(ctx, opts, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.Close()

			var errs []error
			for _, id := range args {
				deleted, err := a.indexer.DeleteDocument(ctx, id)
				switch {
				case err != nil:
					errs = append(errs, fmt.Errorf("delete %s: %w", id, err))
				case deleted:
					cmd.Printf("Deleted %s\n", id)
				default:
					cmd.Printf("Not found: %s\n", id)
				}
			}
			return errors.Join(errs...)
		},
	}
}

func newClearCmd(opts *rootOptions) *cobra.Command {
	var (
		framework  string
		docVersion string
	)

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove every document of one framework version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			a, err := openApp(ctx, opts, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.Close()

			removed, err := a.indexer.ClearFrameworkVersion(ctx, framework, docVersion)
			if err != nil {
				return err
			}
			cmd.Printf("Removed %d documents of %s %s\n", removed, framework, docVersion)
			return nil
		},
	}

	cmd.Flags().StringVarP(&framework, "framework", "f", "", "framework name")
	cmd.Flags().StringVar(&docVersion, "version", "", "framework version")
	_ = cmd.MarkFlagRequired("framework")
	_ = cmd.MarkFlagRequired("version")

	return cmd
}

func newRebuildCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "rebuild",
		Short: "Rebuild the vector index from stored documents",
		Long: `Discards the vector index and re-inserts every stored document,
reclaiming slots left by deletions and embedding documents that have no
cached vector.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			a, err := openApp(ctx, opts, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.Close()

			stats, err := a.indexer.RebuildIndex(ctx)
			if err != nil {
				return err
			}
			cmd.Printf("Rebuilt vector index: %d indexed, %d skipped in %s\n",
				stats.Indexed, stats.Skipped, stats.Duration.Round(time.Millisecond))
			return nil
		},
	}
}
