package cmd

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/dshills/lfind/internal/app"
	"github.com/dshills/lfind/internal/indexer"
	"github.com/dshills/lfind/internal/watcher"
)

func newWatchCmd(c *cli) *cobra.Command {
	var debounce time.Duration

	cmd := &cobra.Command{
		Use:   "watch [dir]",
		Short: "Keep the catalog in sync with a directory until interrupted",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			root := "."
			if len(args) == 1 {
				root = args[0]
			}
			root, err := filepath.Abs(root)
			if err != nil {
				return err
			}

			a, err := c.openApp()
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			w, err := watcher.New(watcher.Config{
				Root:           root,
				IgnorePatterns: c.cfg.Index.IgnorePatterns,
				Debounce:       debounce,
				Logger:         c.logger,
			}, syncFunc(a, root, c.logger))
			if err != nil {
				return err
			}
			return w.Run(cmd.Context())
		},
	}

	cmd.Flags().DurationVar(&debounce, "debounce", watcher.DefaultDebounce, "Quiet period after the last change before syncing")
	return cmd
}

// syncFunc adapts App.Sync to the watcher, reporting a held catalog as busy
func syncFunc(a *app.App, root string, logger *slog.Logger) watcher.SyncFunc {
	return func(ctx context.Context) (bool, error) {
		stats, err := a.Sync(ctx, root, app.SyncOptions{})
		if errors.Is(err, indexer.ErrSyncInProgress) {
			return true, nil
		}
		if err != nil {
			return false, err
		}
		logger.Info("sync complete",
			slog.Int("changed", stats.Changed),
			slog.Int("deleted", stats.Deleted),
			slog.Int("embedded", stats.Embedded),
			slog.Duration("duration", stats.Duration))
		return false, nil
	}
}
