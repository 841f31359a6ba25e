package cmd

import (
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/mindvault/mindvault/internal/brain"
	"github.com/mindvault/mindvault/internal/mcp"
	"github.com/mindvault/mindvault/internal/watcher"
	"github.com/mindvault/mindvault/pkg/version"
)

func newServeCmd() *cobra.Command {
	var (
		withWatch     bool
		withScheduler bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the vault over MCP (stdio)",
		Long: `Expose search, ask, capture, and tasks as MCP tools over stdio for
editor and chat clients. Optionally keeps the index fresh and delivers
reminders while serving.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx, appOptions{exclusive: true, requireEmbedder: true})
			if err != nil {
				return err
			}
			defer a.close()

			if _, err := a.sync.Sync(ctx); err != nil {
				return err
			}

			g, gctx := errgroup.WithContext(ctx)

			if withWatch {
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
				g.Go(func() error { return w.Start(gctx, vaultDir) })
				g.Go(func() error {
					a.sync.Watch(gctx, vaultDir, w)
					return nil
				})
			}

			if withScheduler {
				scheduler := brain.NewScheduler(a.service, a.notifier(), a.schedulerConfig())
				g.Go(func() error { return scheduler.Run(gctx) })
			}

			g.Go(func() error {
				return mcp.NewServer(a.service, version.Short()).Run(gctx)
			})

			err = g.Wait()
			if ctx.Err() != nil {
				return nil
			}
			return err
		},
	}

	cmd.Flags().BoolVar(&withWatch, "watch", true, "Keep the index fresh while serving")
	cmd.Flags().BoolVar(&withScheduler, "scheduler", false, "Deliver reminders and the daily briefing while serving")
	return cmd
}
