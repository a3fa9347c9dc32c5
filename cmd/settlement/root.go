package main

import (
	"os"

	"github.com/fjod/go_cart/settlement-service/internal/config"
	"github.com/fjod/go_cart/settlement-service/pkg/logger"
	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:          "settlement",
		Short:        "Checkout settlement service",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "optional YAML config file; environment variables override it")

	load := func() (*config.Config, error) {
		cfg, err := config.Load(configPath)
		if err != nil {
			return nil, err
		}
		logger.SetDefault(logger.New(os.Stdout, cfg.LogLevel))
		return cfg, nil
	}

	root.AddCommand(newServeCmd(load), newMigrateCmd(load), newReconcileCmd(load))
	return root
}
