package main

import (
	"context"

	"github.com/fjod/go_cart/settlement-service/internal/config"
	"github.com/fjod/go_cart/settlement-service/pkg/logger"
	"github.com/spf13/cobra"
)

func newReconcileCmd(load func() (*config.Config, error)) *cobra.Command {
	var publish bool

	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Run one recovery pass over stuck checkouts and exit",
		Long: "Resolves confirmations whose outcome was lost, creates orders for captured payments " +
			"that have none, and clears carts of settled checkouts.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			a, err := buildApp(ctx, cfg)
			if err != nil {
				return err
			}
			defer a.close(context.Background())

			a.poller.Reconcile(ctx)
			if publish {
				n := a.poller.PublishPending(ctx)
				logger.Default().Info("published outbox events", "count", n)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&publish, "publish", false, "also publish pending outbox events")
	return cmd
}
