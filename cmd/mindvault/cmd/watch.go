package cmd

import (
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/mindvault/mindvault/internal/ui"
	"github.com/mindvault/mindvault/internal/watcher"
)

func newWatchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Watch the vault and index changes as they happen",
		Long: `Run an initial sync, then watch the vault for file changes and apply
them to the index continuously. Runs until interrupted.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx, appOptions{exclusive: true, requireEmbedder: true})
			if err != nil {
				return err
			}
			defer a.close()

			stats, err := a.sync.Sync(ctx)
			if err != nil {
				return err
			}
			renderer := ui.NewRenderer(cmd.OutOrStdout())
			renderer.SyncStats(stats)

			debounce, err := a.config.WatchDebounce()
			if err != nil {
				debounce = 500 * time.Millisecond
			}
			w, err := watcher.NewVaultWatcher(watcher.Options{
				DebounceWindow: debounce,
				IgnorePatterns: a.config.Vault.IgnorePatterns,
			})
			if err != nil {
				return fmt.Errorf("create watcher: %w", err)
			}
			defer func() { _ = w.Stop() }()

			vaultDir := a.config.Vault.Path
			fmt.Fprintf(cmd.OutOrStdout(), "Watching %s\n", vaultDir)

			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				return w.Start(gctx, vaultDir)
			})
			g.Go(func() error {
				a.sync.Watch(gctx, vaultDir, w)
				return nil
			})
			err = g.Wait()
			if ctx.Err() != nil {
				return nil
			}
			return err
		},
	}
}
