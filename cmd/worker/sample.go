package main

import (
	"fmt"
	"io"
	"os"

	"github.com/address-formatter/internal/sample"
	"github.com/address-formatter/internal/source"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newSampleCmd() *cobra.Command {
	var (
		count int
		seed  int64
		out   string
	)

	cmd := &cobra.Command{
		Use:   "sample",
		Short: "Generate a CSV of synthetic legacy address records",
		Long: `sample writes records laid out like the configured source (id, line and
attribute columns) so they can be migrated with --source=csv.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup()
			if err != nil {
				return err
			}
			defer logger.Sync()

			mapping, err := source.MappingFromConfig(cfg.Source)
			if err != nil {
				return err
			}
			delimiter := ';'
			if r := []rune(cfg.Source.CSVDelimiter); len(r) == 1 {
				delimiter = r[0]
			}

			var w io.Writer = cmd.OutOrStdout()
			if out != "-" {
				f, err := os.Create(out)
				if err != nil {
					return fmt.Errorf("create %s: %w", out, err)
				}
				defer f.Close()
				w = f
			}

			if err := sample.NewGenerator(seed).WriteCSV(w, mapping, delimiter, count); err != nil {
				return err
			}
			logger.Info("Sample written",
				zap.String("out", out),
				zap.Int("records", count),
				zap.Int64("seed", seed))
			return nil
		},
	}

	cmd.Flags().IntVar(&count, "count", 1000, "number of records")
	cmd.Flags().Int64Var(&seed, "seed", 42, "random seed")
	cmd.Flags().StringVar(&out, "out", "-", "output file, - for stdout")
	return cmd
}
