package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/taoyao-code/isis-master/internal/app/bootstrap"
	cfgpkg "github.com/taoyao-code/isis-master/internal/config"
	"github.com/taoyao-code/isis-master/internal/logging"
)

func serveCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the master: links, show controller and HTTP control API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := cfgpkg.Load(configPath)
			if err != nil {
				return err
			}

			logger, err := logging.InitLogger(cfg.Logging)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()
			zap.ReplaceGlobals(logger)

			return bootstrap.Run(cfg, logger)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "config file (default configs/isis.yaml or $ISIS_CONFIG)")
	return cmd
}
