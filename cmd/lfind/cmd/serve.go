package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dshills/lfind/internal/httpapi"
	"github.com/dshills/lfind/internal/mcp"
)

func newServeCmd(c *cli) *cobra.Command {
	var transport, addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve lfind over MCP (stdio) or HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !cmd.Flags().Changed("transport") {
				transport = c.cfg.Server.Transport
			}
			if !cmd.Flags().Changed("addr") {
				addr = c.cfg.Server.HTTPAddr
			}

			a, err := c.openApp()
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			switch transport {
			case "stdio":
				return mcp.NewServer(a, c.logger).Serve(cmd.Context())
			case "http":
				return httpapi.New(a, c.logger).ListenAndServe(cmd.Context(), addr)
			default:
				return fmt.Errorf("--transport must be 'stdio' or 'http', got %q", transport)
			}
		},
	}

	cmd.Flags().StringVar(&transport, "transport", "stdio", "Transport: stdio (MCP) or http")
	cmd.Flags().StringVar(&addr, "addr", "", "HTTP listen address (default from config)")
	return cmd
}
