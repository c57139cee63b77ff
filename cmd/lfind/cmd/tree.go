package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dshills/lfind/pkg/types"
)

func newTreeCmd(c *cli) *cobra.Command {
	var (
		req       types.TreeRequest
		emptyDirs bool
		format    string
	)

	cmd := &cobra.Command{
		Use:   "tree [dir]",
		Short: "Print the cataloged files under a directory",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := checkFormat(format); err != nil {
				return err
			}
			req.Directory = "."
			if len(args) == 1 {
				req.Directory = args[0]
			}
			if cmd.Flags().Changed("include-empty-dirs") {
				req.IncludeEmptyDirs = &emptyDirs
			}

			a, err := c.openApp()
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			res, err := a.TreeFor(cmd.Context(), req)
			if err != nil {
				return err
			}
			if format == formatJSON {
				return writeJSON(cmd.OutOrStdout(), res)
			}
			if len(res.Lines) == 0 {
				fmt.Fprintf(cmd.ErrOrStderr(), "No indexed files under %s. Run 'lfind index %s' first.\n", res.Root, res.Root)
				return nil
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), indent(res.Lines))
			return err
		},
	}

	cmd.Flags().StringSliceVarP(&req.Extensions, "ext", "e", nil, "Only files with these extensions")
	cmd.Flags().IntVar(&req.MaxEntries, "max-entries", 0, "Maximum entries per directory (default from config)")
	cmd.Flags().BoolVar(&emptyDirs, "include-empty-dirs", false, "Show directories without matching files")
	cmd.Flags().StringVar(&format, "format", formatText, "Output format: text or json")

	return cmd
}

// indent nests rendered tree lines two spaces per directory level
func indent(lines []string) string {
	var b strings.Builder
	depth := 0
	for i, line := range lines {
		if line == "</Dir>" {
			depth--
		}
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(strings.Repeat("  ", max(depth, 0)))
		b.WriteString(line)
		if strings.HasPrefix(line, "<Dir: ") {
			depth++
		}
	}
	return b.String()
}
