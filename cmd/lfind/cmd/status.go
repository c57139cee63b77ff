package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func newStatusCmd(c *cli) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show catalog and embedding statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := checkFormat(format); err != nil {
				return err
			}
			a, err := c.openApp()
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			st, err := a.Status(cmd.Context())
			if err != nil {
				return err
			}
			if format == formatJSON {
				return writeJSON(cmd.OutOrStdout(), st)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Catalog:     %s\n", st.DBPath)
			fmt.Fprintf(out, "Files:       %d\n", st.Files)
			fmt.Fprintf(out, "Directories: %d\n", st.Directories)
			fmt.Fprintf(out, "Embedded:    %d (%d content, %d title)\n", st.Embedded, st.ContentEmbeddings, st.TitleEmbeddings)
			fmt.Fprintf(out, "Vectors:     %d in %s index\n", st.Vectors, st.VectorIndex)
			fmt.Fprintf(out, "Embeddings:  %s/%s, %d dimensions\n", st.EmbeddingProvider, st.EmbeddingModel, st.Dimension)
			if st.LastSyncAt != nil {
				fmt.Fprintf(out, "Last sync:   %s (%d deleted)\n", st.LastSyncAt.Format(time.RFC3339), st.LastSyncDeleted)
			} else {
				fmt.Fprintln(out, "Last sync:   never")
			}
			fmt.Fprintf(out, "LLM:         %v\n", st.LLMAvailable)
			return nil
		},
	}

	cmd.Flags().StringVar(&format, "format", formatText, "Output format: text or json")
	return cmd
}
