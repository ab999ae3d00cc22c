package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/address-formatter/app/models"
	"github.com/address-formatter/internal/normalizer"
	"github.com/address-formatter/internal/sink"
	"github.com/address-formatter/internal/source"
	"github.com/schollz/progressbar/v3"
	"go.uber.org/zap"
)

// MigrationOptions settings of one run
type MigrationOptions struct {
	RunID         string
	Concurrency   int
	ProgressEvery int
	ProgressBar   bool
	DryRun        bool  // parse only, nothing is written
	Limit         int64 // stop after this many records, 0 for all
}

// MigrationService moves legacy records from a source through the parser into sinks
type MigrationService struct {
	addresses *AddressService
	source    source.Reader
	sink      sink.Sink
	reviews   sink.ReviewQueue
	logger    *zap.Logger
}

// NewMigrationService creates a MigrationService. reviews may be nil.
func NewMigrationService(addresses *AddressService, src source.Reader, dst sink.Sink, reviews sink.ReviewQueue, logger *zap.Logger) *MigrationService {
	return &MigrationService{
		addresses: addresses,
		source:    src,
		sink:      dst,
		reviews:   reviews,
		logger:    logger,
	}
}

type migrationCounters struct {
	read, parsed, rejected, failed, dropped, reviews atomic.Int64
}

// Run migrates every record. Records without identifier are skipped and
// counted; the first source, sink or review queue error stops the run.
func (ms *MigrationService) Run(ctx context.Context, opts MigrationOptions) (*models.MigrationReport, error) {
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}
	started := time.Now()
	logger := ms.logger.With(zap.String("run_id", opts.RunID))
	logger.Info("Migration started",
		zap.Int("concurrency", opts.Concurrency),
		zap.Bool("dry_run", opts.DryRun))

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		counters migrationCounters
		firstErr error
		errOnce  sync.Once
	)
	fail := func(err error) {
		errOnce.Do(func() {
			firstErr = err
			cancel()
		})
	}

	var bar *progressbar.ProgressBar
	if opts.ProgressBar {
		bar = progressbar.Default(-1, "migrating")
	}

	records := make(chan models.UnstructuredAddress, opts.Concurrency*2)

	var wg sync.WaitGroup
	for i := 0; i < opts.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for raw := range records {
				if err := ms.migrate(ctx, raw, opts, &counters, logger); err != nil {
					fail(err)
					continue
				}
				if bar != nil {
					_ = bar.Add(1)
				}
			}
		}()
	}

	fetchErr := ms.source.Fetch(ctx, func(raw models.UnstructuredAddress) error {
		n := counters.read.Add(1)
		select {
		case records <- raw:
		case <-ctx.Done():
			return ctx.Err()
		}
		if opts.ProgressEvery > 0 && n%int64(opts.ProgressEvery) == 0 {
			logger.Info("Migration progress",
				zap.Int64("read", n),
				zap.Int64("parsed", counters.parsed.Load()),
				zap.Int64("rejected", counters.rejected.Load()))
		}
		if opts.Limit > 0 && n >= opts.Limit {
			return source.ErrStop
		}
		return nil
	})
	close(records)
	wg.Wait()

	if bar != nil {
		_ = bar.Finish()
	}

	if fetchErr != nil && !errors.Is(fetchErr, context.Canceled) {
		fail(fmt.Errorf("read source: %w", fetchErr))
	} else if fetchErr != nil && firstErr == nil {
		fail(fetchErr)
	}

	report := &models.MigrationReport{
		RunID:        opts.RunID,
		Read:         counters.read.Load(),
		Parsed:       counters.parsed.Load(),
		Rejected:     counters.rejected.Load(),
		Failed:       counters.failed.Load(),
		DroppedLines: counters.dropped.Load(),
		Reviews:      counters.reviews.Load(),
		StartedAt:    started,
		Duration:     time.Since(started),
		DryRun:       opts.DryRun,
	}

	fields := []zap.Field{
		zap.Int64("read", report.Read),
		zap.Int64("parsed", report.Parsed),
		zap.Int64("rejected", report.Rejected),
		zap.Int64("failed", report.Failed),
		zap.Int64("dropped_lines", report.DroppedLines),
		zap.Int64("reviews", report.Reviews),
		zap.Duration("duration", report.Duration),
	}
	if firstErr != nil {
		logger.Error("Migration aborted", append(fields, zap.Error(firstErr))...)
		return report, firstErr
	}
	logger.Info("Migration finished", fields...)
	return report, nil
}

func (ms *MigrationService) migrate(ctx context.Context, raw models.UnstructuredAddress, opts MigrationOptions, c *migrationCounters, logger *zap.Logger) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	result := ms.addresses.ParseAddress(ctx, raw, ms.reviews != nil)
	if result.Address == nil {
		c.rejected.Add(1)
		logger.Warn("Record rejected", zap.String("old_id", raw.ID), zap.String("reason", result.Error))
		return nil
	}
	c.dropped.Add(int64(len(result.Dropped)))
	if len(result.Dropped) > 0 {
		logger.Debug("Lines dropped", zap.String("old_id", raw.ID), zap.Strings("lines", result.Dropped))
	}

	if opts.DryRun {
		c.parsed.Add(1)
		return nil
	}

	if err := ms.sink.Write(ctx, result.Address); err != nil {
		c.failed.Add(1)
		return fmt.Errorf("write %s: %w", raw.ID, err)
	}
	c.parsed.Add(1)

	if ms.reviews == nil {
		return nil
	}
	reasons := models.ReviewReasons(result.Address, result.Dropped)
	if len(reasons) == 0 {
		return nil
	}
	review := models.NewAddressReview(opts.RunID, normalizer.CompactLines(raw.Lines[:]), *result.Address, result.Trace, reasons)
	if err := ms.reviews.Enqueue(ctx, review); err != nil {
		return fmt.Errorf("queue review %s: %w", raw.ID, err)
	}
	c.reviews.Add(1)
	return nil
}
