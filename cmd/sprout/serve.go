package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"sprout/internal/appinfo"
	"sprout/internal/database"
	"sprout/internal/handlers"
	"sprout/internal/middleware"
	"sprout/pkg/cache"
	"sprout/pkg/logger"
	"sprout/pkg/utils"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the media API and run deferred jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := opts.cfg
			printBanner(cfg)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := buildApp(ctx, cfg, "")
			if err != nil {
				return err
			}
			defer a.Close()

			appinfo.StartTime = time.Now()

			// Public requests are not privileged; admin_request never syncs here.
			if err := a.svc.Bootstrap(ctx, false); err != nil {
				return err
			}
			if err := a.dispatcher.Start(ctx, a.periodic, cfg.JobPollInterval()); err != nil {
				return err
			}
			a.periodic.Start(ctx)

			maintainer := database.NewMaintainer(a.db, cfg.Database.Path, cfg.Database.MaxSize)
			go maintainer.Run(ctx, cfg.MaintenanceInterval())

			appCache := cache.New(ctx, cache.Options{
				Enabled:     cfg.Cache.Enabled,
				MaxCapacity: cfg.Cache.MaxCapacity,
				TTL:         utils.DurationOr(cfg.Cache.TTL, cache.DefaultTTL),
			})

			mux := http.NewServeMux()
			handlers.New(a.svc, appCache, cfg).Routes(mux)

			limiter := middleware.NewRateLimiter(ctx, cfg.Security.RateLimit)
			finalHandler := limiter.Middleware(middleware.Cors(cfg.Security.CorsOrigins)(middleware.Logger(mux)))

			server := &http.Server{
				Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
				Handler:      finalHandler,
				ReadTimeout:  30 * time.Second,
				WriteTimeout: 60 * time.Second,
				IdleTimeout:  120 * time.Second,
			}

			errCh := make(chan error, 1)
			go func() {
				errCh <- server.ListenAndServe()
			}()
			logger.LogServerStart(cfg.Server.Port, cfg.BaseURL())

			select {
			case err := <-errCh:
				if !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			case <-ctx.Done():
			}

			logger.LogInfo("Shutting down...")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return server.Shutdown(shutdownCtx)
		},
	}
}
