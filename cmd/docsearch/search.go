package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/RLabs-Inc/claude-mcp/internal/searcher"
)

func newSearchCmd(opts *rootOptions) *cobra.Command {
	var (
		framework  string
		docVersion string
		limit      int
		mode       string
		alpha      float64
		asJSON     bool
	)

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search indexed documentation",
		Long: `Performs hybrid search across indexed documentation.
Combines keyword and semantic (vector) scores; --alpha weights the vector
side (1 = semantic only, 0 = keyword only).`,
		Args: cobra.MinimumNArgs(1),
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

			req := searcher.SearchRequest{
				Query:     strings.Join(args, " "),
				Framework: framework,
				Version:   docVersion,
				Limit:     limit,
				Mode:      searcher.SearchMode(mode),
			}
			if cmd.Flags().Changed("alpha") {
				req.HybridAlpha = &alpha
			}

			resp, err := a.searcher.Search(ctx, req)
			if err != nil {
				return fmt.Errorf("search failed: %w", err)
			}

			if asJSON {
				return outputSearchJSON(cmd, resp)
			}
			outputSearchTable(cmd, resp)
			return nil
		},
	}

	cmd.Flags().StringVarP(&framework, "framework", "f", "", "only search this framework")
	cmd.Flags().StringVar(&docVersion, "version", "", "only search this framework version")
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "maximum number of results (default from config)")
	cmd.Flags().StringVarP(&mode, "mode", "m", string(searcher.SearchModeHybrid), "search mode: hybrid, semantic, keyword")
	cmd.Flags().Float64Var(&alpha, "alpha", searcher.DefaultAlpha, "vector weight for hybrid mode, in [0,1]")
	cmd.Flags().BoolVar(&asJSON, "json", false, "output results as JSON")

	return cmd
}

func outputSearchJSON(cmd *cobra.Command, resp *searcher.SearchResponse) error {
	data, err := json.MarshalIndent(map[string]interface{}{
		"success":     true,
		"results":     resp.Results,
		"resultCount": resp.ResultCount,
		"mode":        resp.Mode,
		"fallback":    resp.Fallback,
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal results: %w", err)
	}
	cmd.Println(string(data))
	return nil
}

func outputSearchTable(cmd *cobra.Command, resp *searcher.SearchResponse) {
	if len(resp.Results) == 0 {
		cmd.Println("No results found.")
		return
	}

	if resp.Fallback {
		cmd.Println("(vector search unavailable, showing keyword results)")
	}
	cmd.Println("Results:")
	cmd.Println()
	for i, r := range resp.Results {
		title := r.Title
		if title == "" {
			title = r.ID
		}

		cmd.Printf("  [%d] %s (%.3f)\n", i+1, title, r.Score)
		cmd.Printf("      %s %s  %s\n", r.Framework, r.Version, r.Path)
		if r.Snippet != "" {
			cmd.Printf("      %s\n", r.Snippet)
		}
		cmd.Println()
	}
}
