package main

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"sprout/internal/optimizer"
)

func newOptimizeCmd(opts *rootOptions) *cobra.Command {
	var (
		force   bool
		workers int
	)

	cmd := &cobra.Command{
		Use:   "optimize",
		Short: "Compress every image under the media root",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := opts.cfg
			if workers > 0 {
				cfg.Optimizer.Workers = workers
			}

			a, err := buildApp(cmd.Context(), cfg, "")
			if err != nil {
				return err
			}
			defer a.Close()

			orch := a.svc.Optimizer()
			printToolChecklist(orch.Availability())
			if err := orch.Ready(); err != nil {
				if errors.Is(err, optimizer.ErrNoOptimizers) {
					pterm.Error.Println("Install at least one of the binaries above and try again.")
				}
				return err
			}

			paths, err := orch.ScanMediaRoot(cmd.Context())
			if err != nil {
				return fmt.Errorf("scan %s: %w", orch.Root(), err)
			}
			found := len(paths)
			if !force {
				paths = orch.Pending(cmd.Context(), paths)
			}
			pterm.Info.Printf("Found %d images, %d to process.\n", found, len(paths))
			if len(paths) == 0 {
				pterm.Success.Println("Everything is already optimized.")
				return nil
			}

			bar, _ := pterm.DefaultProgressbar.
				WithTotal(len(paths)).
				WithTitle("Optimizing...").
				WithShowCount(true).
				WithShowElapsedTime(true).
				Start()

			var failures []string
			rep := orch.OptimizePaths(cmd.Context(), paths, force, func(p string, res optimizer.Result, err error) {
				if res == optimizer.Failed {
					failures = append(failures, fmt.Sprintf("%s: %v", filepath.Base(p), err))
				}
				bar.Increment()
			})
			_, _ = bar.Stop()

			printOptimizeSummary(rep, failures)
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Re-optimize files the ledger marks as done")
	cmd.Flags().IntVar(&workers, "workers", 0, "Files optimized in parallel (default from config)")
	return cmd
}

func printToolChecklist(av optimizer.Availability) {
	pterm.DefaultSection.Println("Optimizers")
	for _, st := range av.Tools {
		if st.Available {
			fmt.Printf(" %s %-10s %s\n", color.GreenString("✓"), st.Tool.Name, color.HiBlackString(st.Path))
		} else {
			fmt.Printf(" %s %-10s %s\n", color.RedString("✗"), st.Tool.Name, color.HiBlackString("not installed ("+st.Tool.Binary+")"))
		}
	}
	pterm.Println()
}

func printOptimizeSummary(rep optimizer.Report, failures []string) {
	pterm.Println()
	if rep.Failed == 0 {
		pterm.DefaultSection.WithStyle(pterm.NewStyle(pterm.FgGreen)).Println("OPTIMIZATION COMPLETED")
	} else {
		pterm.DefaultSection.WithStyle(pterm.NewStyle(pterm.FgYellow)).Println("COMPLETED WITH ERRORS")
	}

	data := pterm.TableData{
		{"Optimized", color.GreenString("%d", rep.Optimized)},
		{"Already optimized", color.CyanString("%d", rep.AlreadyOptimized)},
		{"Skipped", color.YellowString("%d", rep.Skipped)},
		{"Failed", color.RedString("%d", rep.Failed)},
	}
	_ = pterm.DefaultTable.WithBoxed().WithData(data).Render()

	if len(failures) > 0 {
		pterm.Println()
		pterm.Error.Println("Failure Report:")
		for _, f := range failures {
			fmt.Printf(" • %s\n", color.RedString(f))
		}
	}
	pterm.Println()
}
