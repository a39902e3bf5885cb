package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/RLabs-Inc/claude-mcp/internal/storage"
	"github.com/RLabs-Inc/claude-mcp/pkg/types"
)

func newFrameworksCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "frameworks",
		Aliases: []string{"fw"},
		Short:   "Manage the framework registry",
	}

	cmd.AddCommand(
		newFrameworksListCmd(opts),
		newFrameworksRegisterCmd(opts),
		newFrameworksRemoveCmd(opts),
	)
	return cmd
}

func newFrameworksListCmd(opts *rootOptions) *cobra.Command {
	var sourceType string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List registered frameworks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openApp(cmd.Context(), opts, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.Close()

			frameworks, err := a.registry.ListFrameworks(cmd.Context(), storage.ListFilter{
				SourceType: types.SourceType(strings.ToLower(sourceType)),
			})
			if err != nil {
				return err
			}
			if len(frameworks) == 0 {
				cmd.Println("No frameworks registered.")
				return nil
			}
			for _, fw := range frameworks {
				name := fw.Name
				if fw.DisplayName != "" {
					name = fmt.Sprintf("%s (%s)", fw.Name, fw.DisplayName)
				}
				cmd.Printf("  %-30s %-7s %s\n", name, fw.Source.Type(), fw.DocsLocation())
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&sourceType, "type", "", "only list this source type: npm, python, github, custom")
	return cmd
}

func newFrameworksRegisterCmd(opts *rootOptions) *cobra.Command {
	var (
		displayName string
		sourceType  string
		pkg         string
		docsURL     string
		owner       string
		repo        string
		branch      string
		docsPath    string
	)

	cmd := &cobra.Command{
		Use:   "register <name>",
		Short: "Register or update a framework",
		Example: `  docsearch frameworks register react --type npm --package react
  docsearch frameworks register fastapi --type python --package fastapi --docs-url https://fastapi.tiangolo.com
  docsearch frameworks register svelte --type github --owner sveltejs --repo svelte --docs-path documentation
  docsearch frameworks register htmx --type custom --docs-url https://htmx.org/docs/`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var source types.FrameworkSource
			switch types.SourceType(strings.ToLower(sourceType)) {
			case types.SourceNPM:
				source = types.NPMSource{Package: pkg}
			case types.SourcePython:
				source = types.PythonSource{Package: pkg, DocsURL: docsURL}
			case types.SourceGitHub:
				source = types.GitHubSource{Owner: owner, Repo: repo, Branch: branch, DocsPath: docsPath}
			case types.SourceCustom:
				source = types.CustomSource{DocsURL: docsURL}
			default:
				return fmt.Errorf("%w: --type must be one of npm, python, github, custom", types.ErrInvalidInput)
			}

			a, err := openApp(cmd.Context(), opts, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.Close()

			fw := &types.Framework{Name: args[0], DisplayName: displayName, Source: source}
			if err := a.registry.UpsertFramework(cmd.Context(), fw); err != nil {
				return err
			}
			cmd.Printf("Registered %s: %s\n", fw.Name, fw.DocsLocation())
			return nil
		},
	}

	cmd.Flags().StringVar(&displayName, "display-name", "", "human readable name")
	cmd.Flags().StringVar(&sourceType, "type", "", "source type: npm, python, github, custom")
	cmd.Flags().StringVar(&pkg, "package", "", "package name (npm, python)")
	cmd.Flags().StringVar(&docsURL, "docs-url", "", "documentation URL (custom, python)")
	cmd.Flags().StringVar(&owner, "owner", "", "repository owner (github)")
	cmd.Flags().StringVar(&repo, "repo", "", "repository name (github)")
	cmd.Flags().StringVar(&branch, "branch", "", "branch holding the docs (github)")
	cmd.Flags().StringVar(&docsPath, "docs-path", "", "docs directory in the repository (github)")
	_ = cmd.MarkFlagRequired("type")

	return cmd
}

func newFrameworksRemoveCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <name>",
		Short: "Remove a framework from the registry",
		Long: `Removes the registry entry only. Indexed documents are kept; use
'docsearch clear' to remove them.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context(), opts, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.Close()

			removed, err := a.registry.DeleteFramework(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if !removed {
				return fmt.Errorf("%w: framework %q", types.ErrNotFound, args[0])
			}
			cmd.Printf("Removed %s\n", args[0])
			return nil
		},
	}
}
