package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"sprout/internal/optimizer"
	"sprout/internal/watcher"
	"sprout/pkg/logger"
)

func newWorkerCmd(opts *rootOptions) *cobra.Command {
	var watch bool

	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Run deferred jobs and periodic synchronization without the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := opts.cfg

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := buildApp(ctx, cfg, "")
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.svc.Bootstrap(ctx, true); err != nil {
				return err
			}
			if err := a.dispatcher.Start(ctx, a.periodic, cfg.JobPollInterval()); err != nil {
				return err
			}
			a.periodic.Start(ctx)

			if watch {
				w, err := watcher.New(cfg.Media.Root, optimizer.ScanExtensions, watcher.DefaultDebounce, a.svc.OnFileChanged)
				if err != nil {
					return err
				}
				if err := w.Start(ctx); err != nil {
					return err
				}
				defer w.Stop()
			}

			logger.LogSuccess("Worker running (poll every %s)", cfg.JobPollInterval())
			<-ctx.Done()
			logger.LogInfo("Worker stopping...")
			return nil
		},
	}

	cmd.Flags().BoolVar(&watch, "watch", false, "Queue optimization for images written to the media root by other tools")
	return cmd
}
