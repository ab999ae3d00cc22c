package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/address-formatter/app/bootstrap"
	"github.com/address-formatter/app/config"
	"github.com/address-formatter/app/models"
	"github.com/address-formatter/app/services"
	"github.com/address-formatter/helpers/utils"
	"github.com/address-formatter/internal/search"
	"github.com/address-formatter/internal/source"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newMigrateCmd() *cobra.Command {
	var (
		dryRun bool
		limit  int64
	)

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Parse every source record and write it to the configured sinks",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup()
			if err != nil {
				return err
			}
			defer logger.Sync()

			if dryRun {
				cfg.Sink.Kinds = []string{config.SinkNone}
				cfg.Sink.ReviewQueue = false
			}
			if err := cfg.ValidateMigration(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}

			ctx, cancel := signalContext()
			defer cancel()

			report, err := runMigration(ctx, cfg, services.MigrationOptions{
				RunID:         utils.NewRunID(),
				Concurrency:   cfg.Worker.Concurrency,
				ProgressEvery: cfg.Worker.ProgressEvery,
				ProgressBar:   cfg.Worker.ProgressBar,
				DryRun:        dryRun,
				Limit:         limit,
			}, logger)
			if report != nil {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				_ = enc.Encode(report)
			}
			return err
		},
	}

	flags := cmd.Flags()
	flags.BoolVar(&dryRun, "dry-run", false, "parse only, write nothing")
	flags.Int64Var(&limit, "limit", 0, "stop after this many records (0 for all)")
	flags.String("source", config.SourcePostgres, "source kind: postgres or csv")
	flags.String("csv", "", "CSV file to read when --source=csv")
	flags.StringSlice("sinks", []string{config.SinkPostgres}, "sinks: postgres, mongo, kafka, meilisearch, none")
	flags.Int("concurrency", 4, "parallel workers")
	flags.Bool("progress", true, "show a progress bar")
	bindFlags(flags, map[string]string{
		"source":      "source.kind",
		"csv":         "source.csv_path",
		"sinks":       "sink.kinds",
		"concurrency": "worker.concurrency",
		"progress":    "worker.progress_bar",
	})

	return cmd
}

func runMigration(ctx context.Context, cfg *config.Config, opts services.MigrationOptions, logger *zap.Logger) (report *models.MigrationReport, err error) {
	p, err := bootstrap.NewParser(cfg)
	if err != nil {
		return nil, err
	}

	db, err := bootstrap.ConnectMongo(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	if db != nil {
		defer db.Client().Disconnect(context.Background())
	}

	cache, err := bootstrap.NewCache(ctx, cfg, p.RulesVersion(), db, logger)
	if err != nil {
		return nil, err
	}
	if cache != nil {
		defer cache.Close()
	}

	var index *search.AddressIndex
	for _, kind := range cfg.Sink.Kinds {
		if kind == config.SinkMeilisearch {
			if index, err = bootstrap.NewAddressIndex(cfg, logger); err != nil {
				return nil, err
			}
		}
	}

	sinks, err := bootstrap.OpenSinks(ctx, cfg, db, index, logger)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := sinks.Sink.Close(); cerr != nil {
			err = errors.Join(err, fmt.Errorf("close sinks: %w", cerr))
		}
	}()

	src, err := source.Open(ctx, cfg.Source)
	if err != nil {
		return nil, err
	}
	defer src.Close()

	addresses := services.NewAddressService(p, cache, logger)
	report, err = services.NewMigrationService(addresses, src, sinks.Sink, sinks.Reviews, logger).Run(ctx, opts)

	if sinks.Store != nil && report != nil && !opts.DryRun {
		if serr := sinks.Store.SaveReport(context.Background(), report); serr != nil {
			logger.Warn("Could not store run report", zap.Error(serr))
		}
	}
	return report, err
}
