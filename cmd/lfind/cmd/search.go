package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/dshills/lfind/pkg/types"
)

func newSearchCmd(c *cli) *cobra.Command {
	var (
		req     types.SearchRequest
		minSize int64
		maxSize int64
		format  string
	)

	cmd := &cobra.Command{
		Use:   "search [query]",
		Short: "Search the catalog",
		Long: `Select candidate files by directory, extension, type, size and
modification time, then optionally rank them by meaning (--semantic) and ask
a language model which of them match (--llm). Without either flag the query
is not needed.`,
		Example: `  lfind search -d ~/docs -e pdf --modified-after 2024-01-01
  lfind search "tax documents" -d ~/docs --semantic --llm -k 5`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := checkFormat(format); err != nil {
				return err
			}
			if len(args) == 1 {
				req.Query = args[0]
			}
			if req.Directory != "" {
				dir, err := filepath.Abs(req.Directory)
				if err != nil {
					return err
				}
				req.Directory = dir
			}
			if cmd.Flags().Changed("min-size") {
				req.MinSize = &minSize
			}
			if cmd.Flags().Changed("max-size") {
				req.MaxSize = &maxSize
			}
			if err := req.Validate(); err != nil {
				return err
			}

			a, err := c.openApp()
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			resp, err := a.SearchFiles(cmd.Context(), req)
			if err != nil {
				return err
			}

			if format == formatJSON {
				return writeJSON(cmd.OutOrStdout(), resp)
			}
			out := cmd.OutOrStdout()
			for _, r := range resp.Results {
				if r.Source == "semantic" {
					fmt.Fprintf(out, "%s\t%.3f\n", r.Path, r.Score)
				} else {
					fmt.Fprintln(out, r.Path)
				}
			}
			for _, stage := range resp.Degraded {
				c.logger.Warn("search stage unavailable, results may be incomplete", "stage", stage)
			}
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVarP(&req.Directory, "directory", "d", "", "Only files under this directory")
	f.StringSliceVarP(&req.Extensions, "ext", "e", nil, "Only files with these extensions (repeatable)")
	f.StringVar(&req.Type, "type", "", "Record type: file (default) or directory")
	f.Int64Var(&minSize, "min-size", 0, "Minimum size in bytes")
	f.Int64Var(&maxSize, "max-size", 0, "Maximum size in bytes")
	f.StringVar(&req.ModifiedAfter, "modified-after", "", "Modified at or after (RFC 3339 or YYYY-MM-DD)")
	f.StringVar(&req.ModifiedBefore, "modified-before", "", "Modified at or before (RFC 3339, or YYYY-MM-DD for the end of that day)")
	f.BoolVar(&req.Semantic, "semantic", false, "Rank candidates by embedding similarity")
	f.BoolVar(&req.LLM, "llm", false, "Ask a language model which candidates match")
	f.BoolVarP(&req.Hard, "hard", "H", false, "Use the stronger language model")
	f.IntVarP(&req.TopK, "top-k", "k", 0, "Maximum number of results (default from config)")
	f.StringVar(&format, "format", formatText, "Output format: text or json")

	return cmd
}
