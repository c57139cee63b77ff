package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dshills/lfind/internal/indexer"
	"github.com/dshills/lfind/pkg/types"
)

func newIndexCmd(c *cli) *cobra.Command {
	var (
		ignore         []string
		includeDirs    bool
		skipEmbeddings bool
		format         string
	)

	cmd := &cobra.Command{
		Use:   "index [dir]",
		Short: "Synchronize the catalog with a directory tree",
		Long: `Walk dir (default: the current directory), add new and changed files to
the catalog, drop files that no longer exist and embed what changed.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := checkFormat(format); err != nil {
				return err
			}
			root := "."
			if len(args) == 1 {
				root = args[0]
			}

			a, err := c.openApp()
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			req := types.IndexRequest{
				Path:           root,
				SkipEmbeddings: skipEmbeddings,
			}
			if cmd.Flags().Changed("ignore") {
				req.IgnorePatterns = ignore
			}
			if cmd.Flags().Changed("include-directories") {
				req.IncludeDirectories = &includeDirs
			}

			resp, err := a.IndexDirectory(cmd.Context(), req)
			if errors.Is(err, indexer.ErrSyncInProgress) {
				return fmt.Errorf("another lfind process is indexing this catalog, try again later")
			}
			if err != nil {
				return err
			}

			if format == formatJSON {
				return writeJSON(cmd.OutOrStdout(), resp)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Indexed %s in %dms\n", resp.Root, resp.DurationMS)
			fmt.Fprintf(out, "  seen %d, changed %d, unchanged %d, skipped %d, deleted %d\n",
				resp.FilesSeen, resp.Changed, resp.Unchanged, resp.Skipped, resp.Deleted)
			fmt.Fprintf(out, "  embedded %d, embedding failures %d\n", resp.Embedded, resp.EmbeddingsFailed)
			for _, msg := range resp.Errors {
				fmt.Fprintf(out, "  error: %s\n", msg)
			}
			if resp.ErrorCount > len(resp.Errors) {
				fmt.Fprintf(out, "  ... %d more errors\n", resp.ErrorCount-len(resp.Errors))
			}
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&ignore, "ignore", nil, "Ignore patterns matched against base names (replaces the configured ones)")
	cmd.Flags().BoolVar(&includeDirs, "include-directories", false, "Catalog directories as well as files")
	cmd.Flags().BoolVar(&skipEmbeddings, "skip-embeddings", false, "Only update the catalog")
	cmd.Flags().StringVar(&format, "format", formatText, "Output format: text or json")

	return cmd
}
