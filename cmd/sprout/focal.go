package main

import (
	"sync"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"sprout/internal/focal"
	"sprout/pkg/logger"
)

func newReapplyFocalCropCmd(opts *rootOptions) *cobra.Command {
	var optimize bool

	cmd := &cobra.Command{
		Use:   "reapply-focal-crop",
		Short: "Re-cut every hard-cropped size around its asset's focal point",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			a, err := buildApp(ctx, opts.cfg, "")
			if err != nil {
				return err
			}
			defer a.Close()

			if _, ok := focal.IsEnabled(a.svc.FocalMode()); !ok {
				pterm.Warning.Println("focal_point_cropping is disabled; nothing to do.")
				return nil
			}

			ids, err := a.svc.Store().ListImageIDs(ctx)
			if err != nil {
				return err
			}
			if len(ids) == 0 {
				pterm.Info.Println("No image assets found.")
				return nil
			}

			bar, _ := pterm.DefaultProgressbar.
				WithTotal(len(ids)).
				WithTitle("Re-cropping...").
				WithShowCount(true).
				WithShowElapsedTime(true).
				Start()

			var (
				mu              sync.Mutex
				applied, failed int
			)
			g, gctx := errgroup.WithContext(ctx)
			g.SetLimit(max(opts.cfg.Optimizer.Workers, 1))
			for _, id := range ids {
				g.Go(func() error {
					if gctx.Err() != nil {
						return nil
					}
					_, rep, err := a.svc.ApplyFocalCropToAllSizes(gctx, id)
					if err != nil {
						logger.LogWarn("Asset %d: %v", id, err)
					} else if optimize && rep.Applied > 0 {
						if _, _, err := a.svc.OptimizeAsset(gctx, id, false); err != nil {
							logger.LogWarn("Optimize asset %d: %v", id, err)
						}
					}

					mu.Lock()
					defer mu.Unlock()
					if err != nil {
						failed++
					}
					applied += rep.Applied
					bar.Increment()
					return nil
				})
			}
			_ = g.Wait()
			_, _ = bar.Stop()

			pterm.Println()
			pterm.Success.Printf("Re-cropped %d sizes across %d assets (%d failed).\n", applied, len(ids), failed)
			return nil
		},
	}

	cmd.Flags().BoolVar(&optimize, "optimize", false, "Optimize every asset whose sizes were re-cropped")
	return cmd
}
