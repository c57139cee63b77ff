// Package cmd provides the CLI commands for lfind.
package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/dshills/lfind/internal/app"
	"github.com/dshills/lfind/internal/config"
	"github.com/dshills/lfind/internal/logging"
	"github.com/dshills/lfind/internal/version"
)

// cli carries state shared by every subcommand
type cli struct {
	configPath string
	logLevel   string
	logFormat  string

	cfg     *config.Config
	logger  *slog.Logger
	cleanup func()
}

// NewRootCmd creates the root command for the lfind CLI.
func NewRootCmd() *cobra.Command {
	c := &cli{}

	cmd := &cobra.Command{
		Use:   "lfind",
		Short: "Find local files by metadata, meaning and natural language",
		Long: `lfind keeps a catalog of the files under your directories in sync and
searches it in stages: a structural filter on name, extension, size and
dates, then optional semantic ranking over embeddings, then an optional
language-model pass over the candidate names.`,
		Version:            version.Short(),
		SilenceUsage:       true,
		PersistentPreRunE:  c.setup,
		PersistentPostRunE: c.teardown,
	}
	cmd.SetVersionTemplate("lfind version {{.Version}}\n")

	cmd.PersistentFlags().StringVar(&c.configPath, "config", "", "Config file (default: user and project config files)")
	cmd.PersistentFlags().StringVar(&c.logLevel, "log-level", "", "Log level: debug, info, warn, error")
	cmd.PersistentFlags().StringVar(&c.logFormat, "log-format", "", "Log format: auto, json, text")

	cmd.AddCommand(newIndexCmd(c))
	cmd.AddCommand(newSearchCmd(c))
	cmd.AddCommand(newTreeCmd(c))
	cmd.AddCommand(newStatusCmd(c))
	cmd.AddCommand(newServeCmd(c))
	cmd.AddCommand(newWatchCmd(c))
	cmd.AddCommand(newConfigCmd(c))
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// Execute runs the root command with SIGINT/SIGTERM cancelling its context
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return NewRootCmd().ExecuteContext(ctx)
}

func (c *cli) setup(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(c.configPath)
	if err != nil {
		return err
	}
	if c.logLevel != "" {
		cfg.Server.LogLevel = c.logLevel
	}
	if c.logFormat != "" {
		cfg.Server.LogFormat = c.logFormat
	}

	logger, cleanup, err := logging.Setup(logging.Config{
		Level:    cfg.Server.LogLevel,
		Format:   cfg.Server.LogFormat,
		FilePath: cfg.Server.LogFile,
		Output:   cmd.ErrOrStderr(),
	})
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	c.cfg = cfg
	c.logger = logger
	c.cleanup = cleanup
	return nil
}

func (c *cli) teardown(_ *cobra.Command, _ []string) error {
	if c.cleanup != nil {
		c.cleanup()
		c.cleanup = nil
	}
	return nil
}

// openApp wires the application from the loaded config
func (c *cli) openApp() (*app.App, error) {
	a, err := app.Open(c.cfg, c.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open catalog: %w", err)
	}
	return a, nil
}
