package main

import (
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"sprout/internal/schedule"
)

func newSyncImageSizesCmd(opts *rootOptions) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "sync-image-sizes",
		Short: "Mirror the image size table into stored options",
		RunE: func(cmd *cobra.Command, args []string) error {
			// Only this explicit run may synchronize.
			a, err := buildApp(cmd.Context(), opts.cfg, schedule.Manual)
			if err != nil {
				return err
			}
			defer a.Close()

			changed, err := a.svc.SynchronizeOptions(cmd.Context(), force)
			if err != nil {
				return err
			}
			if changed {
				pterm.Success.Println("Image size options synchronized.")
			} else {
				pterm.Info.Println("Image size options already up to date.")
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Write options even when the table is unchanged")
	return cmd
}
