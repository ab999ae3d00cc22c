package main

import (
	"errors"

	"github.com/address-formatter/app/bootstrap"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newIndexCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "index",
		Short: "Create or update the Meilisearch address index settings",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup()
			if err != nil {
				return err
			}
			defer logger.Sync()

			index, err := bootstrap.NewAddressIndex(cfg, logger)
			if err != nil {
				return err
			}
			if index == nil {
				return errors.New("meilisearch.url is not set")
			}

			ctx, cancel := signalContext()
			defer cancel()
			if err := index.Configure(ctx); err != nil {
				return err
			}
			logger.Info("Address index configured", zap.String("index", cfg.Meilisearch.Index))
			return nil
		},
	}
}
