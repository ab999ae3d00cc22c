package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/address-formatter/app/bootstrap"
	"github.com/address-formatter/app/config"
	"github.com/address-formatter/app/services"
	"github.com/address-formatter/helpers/utils"
	"github.com/address-formatter/internal/cloudwriter"
	"github.com/address-formatter/internal/export"
	"github.com/address-formatter/internal/source"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newExportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export a query result, or freshly parsed source records, as CSV or Parquet",
		Long: `export writes a file locally or to S3 (export.s3_bucket).

With --query (or export.query) the query runs read-only against the
destination database. Without it every source record is parsed and written
as a structured address row, nothing is stored in the sinks.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup()
			if err != nil {
				return err
			}
			defer logger.Sync()

			if err := errors.Join(cfg.Validate(), cfg.ValidateExport()); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}

			ctx, cancel := signalContext()
			defer cancel()

			target := export.TargetFromConfig(cfg.Export)
			var factory cloudwriter.CloudWriterFactory
			if target.Bucket != "" {
				if factory, err = cloudwriter.NewS3WriterFactory(ctx, cfg.Export.S3Region); err != nil {
					return err
				}
			}

			if cfg.Export.Query != "" {
				return exportQuery(ctx, cfg, target, factory, logger)
			}
			return exportParsed(ctx, cfg, target, factory, logger)
		},
	}

	flags := cmd.Flags()
	flags.String("format", config.FormatCSV, "file format: csv or parquet")
	flags.String("out", "", "output path, or object name when a bucket is set")
	flags.String("query", "", "SQL query to export instead of parsing the source")
	flags.String("bucket", "", "S3 bucket to upload to")
	bindFlags(flags, map[string]string{
		"format": "export.format",
		"out":    "export.path",
		"query":  "export.query",
		"bucket": "export.s3_bucket",
	})

	return cmd
}

func exportQuery(ctx context.Context, cfg *config.Config, target export.Target, factory cloudwriter.CloudWriterFactory, logger *zap.Logger) error {
	pool, err := pgxpool.New(ctx, cfg.SinkDSN())
	if err != nil {
		return fmt.Errorf("unable to connect to database: %w", err)
	}
	defer pool.Close()

	n, err := export.Query(ctx, pool, cfg.Export.Query, func(header []string) (export.Writer, error) {
		return export.Open(ctx, target, header, factory)
	})
	if err != nil {
		return err
	}
	logger.Info("Export finished",
		zap.String("path", target.Path),
		zap.String("bucket", target.Bucket),
		zap.Int64("rows", n))
	return nil
}

func exportParsed(ctx context.Context, cfg *config.Config, target export.Target, factory cloudwriter.CloudWriterFactory, logger *zap.Logger) (err error) {
	p, err := bootstrap.NewParser(cfg)
	if err != nil {
		return err
	}

	src, err := source.Open(ctx, cfg.Source)
	if err != nil {
		return err
	}
	defer src.Close()

	header := export.AddressHeader(cfg.Source.AttributeColumns)
	w, err := export.Open(ctx, target, header, factory)
	if err != nil {
		return err
	}
	rows := export.NewAddressWriter(w, header)
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			err = errors.Join(err, fmt.Errorf("close export: %w", cerr))
		}
	}()

	addresses := services.NewAddressService(p, nil, logger)
	report, err := services.NewMigrationService(addresses, src, rows, nil, logger).Run(ctx, services.MigrationOptions{
		RunID:         utils.NewRunID(),
		Concurrency:   cfg.Worker.Concurrency,
		ProgressEvery: cfg.Worker.ProgressEvery,
		ProgressBar:   cfg.Worker.ProgressBar,
	})
	if err != nil {
		return err
	}
	logger.Info("Export finished",
		zap.String("path", target.Path),
		zap.String("bucket", target.Bucket),
		zap.Int64("rows", report.Parsed),
		zap.Int64("rejected", report.Rejected))
	return nil
}
