package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"sprout/internal/config"
	"sprout/pkg/logger"
	"sprout/pkg/utils"
)

type rootOptions struct {
	configPath string
	verbose    bool

	cfg *config.Config
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:           "sprout",
		Short:         "Image size generation and optimization pipeline",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			utils.LoadEnv()
			logger.SetDebug(opts.verbose)

			cfg, err := config.Load(opts.configPath)
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				var cfgErr *config.ConfigurationError
				if errors.As(err, &cfgErr) {
					logger.LogError("Configuration error: %v", err)
					return fmt.Errorf("refusing to start: %w", err)
				}
				logger.LogError("Configuration validation failed: %v", err)
				return err
			}
			opts.cfg = cfg
			return nil
		},
	}

	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "Config file (default: sprout.yaml in . or ./config)")
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "Enable debug logging")

	root.AddCommand(
		newServeCmd(opts),
		newWorkerCmd(opts),
		newOptimizeCmd(opts),
		newReapplyFocalCropCmd(opts),
		newSyncImageSizesCmd(opts),
		newSizesCmd(opts),
	)
	return root
}
