package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/address-formatter/app/models"
	"github.com/address-formatter/internal/normalizer"
	"github.com/address-formatter/internal/parser"
	"go.uber.org/zap"
)

// ErrJobNotFound unknown job id
var ErrJobNotFound = errors.New("job not found")

// ErrJobNotFinished results requested before the job completed
var ErrJobNotFinished = errors.New("job not finished")

// AddressService parses legacy records, with an optional result cache
type AddressService struct {
	parser    *parser.AddressParser
	cache     ICacheService
	logger    *zap.Logger
	startTime time.Time

	mu         sync.RWMutex
	jobs       map[string]*models.JobStatus
	jobResults map[string][]*models.ParseResult

	parsed    atomic.Int64
	rejected  atomic.Int64
	cacheHits atomic.Int64
}

// NewAddressService creates an AddressService. cache may be nil.
func NewAddressService(p *parser.AddressParser, cache ICacheService, logger *zap.Logger) *AddressService {
	return &AddressService{
		parser:     p,
		cache:      cache,
		logger:     logger,
		startTime:  time.Now(),
		jobs:       make(map[string]*models.JobStatus),
		jobResults: make(map[string][]*models.ParseResult),
	}
}

// RulesVersion version of the parser vocabulary
func (as *AddressService) RulesVersion() string {
	return as.parser.RulesVersion()
}

// ParseAddress parses one record. A rejected record carries Error and no
// Address. Cache failures are logged and fall back to parsing.
func (as *AddressService) ParseAddress(ctx context.Context, raw models.UnstructuredAddress, withTrace bool) *models.ParseResult {
	key := Fingerprint(as.parser.Profile(), normalizer.CompactLines(raw.Lines[:]))

	if as.cache != nil && raw.ID != "" {
		cached, found, err := as.cache.Get(ctx, key)
		if err != nil {
			as.logger.Warn("Cache lookup failed", zap.Error(err))
		} else if found {
			as.cacheHits.Add(1)
			as.parsed.Add(1)
			return restamp(cached, raw, withTrace)
		}
	}

	addr, trace, err := as.parser.ParseWithTrace(raw)
	if err != nil {
		as.rejected.Add(1)
		return &models.ParseResult{ID: raw.ID, Error: err.Error()}
	}
	as.parsed.Add(1)

	result := &models.ParseResult{
		ID:      raw.ID,
		Address: addr,
		Trace:   trace.Entries(),
		Dropped: trace.Dropped(),
	}

	if as.cache != nil {
		if err := as.cache.Set(ctx, key, result); err != nil {
			as.logger.Warn("Cache store failed", zap.Error(err))
		}
	}

	out := *result
	if !withTrace {
		out.Trace = nil
	}
	if result.Address != nil {
		addr := *result.Address
		if addr.Attributes != nil {
			addr.Attributes = make(map[string]string, len(result.Address.Attributes))
			for k, v := range result.Address.Attributes {
				addr.Attributes[k] = v
			}
		}
		out.Address = &addr
	}
	return &out
}

// restamp copies a cached result onto another record with the same lines
func restamp(cached *models.ParseResult, raw models.UnstructuredAddress, withTrace bool) *models.ParseResult {
	out := *cached
	out.ID = raw.ID
	out.Cached = true
	if !withTrace {
		out.Trace = nil
	}
	if cached.Address != nil {
		addr := *cached.Address
		addr.ID = raw.ID
		addr.Attributes = nil
		if len(raw.Attributes) > 0 {
			addr.Attributes = make(map[string]string, len(raw.Attributes))
			for k, v := range raw.Attributes {
				addr.Attributes[k] = v
			}
		}
		out.Address = &addr
	}
	return &out
}

// StartBatchJob registers a job and parses records in the background
func (as *AddressService) StartBatchJob(jobID string, records []models.UnstructuredAddress, withTrace bool) *models.JobStatus {
	job := &models.JobStatus{
		JobID:     jobID,
		Status:    models.JobStatusPending,
		Total:     len(records),
		CreatedAt: time.Now(),
	}

	as.mu.Lock()
	as.jobs[jobID] = job
	snapshot := *job
	as.mu.Unlock()

	go as.ProcessBatchJob(context.Background(), jobID, records, withTrace)
	return &snapshot
}

// ProcessBatchJob parses records of a registered job in input order
func (as *AddressService) ProcessBatchJob(ctx context.Context, jobID string, records []models.UnstructuredAddress, withTrace bool) {
	as.updateJob(jobID, func(job *models.JobStatus) {
		job.Status = models.JobStatusRunning
	})

	results := make([]*models.ParseResult, 0, len(records))
	for i, raw := range records {
		if err := ctx.Err(); err != nil {
			as.updateJob(jobID, func(job *models.JobStatus) {
				job.Status = models.JobStatusFailed
				job.Error = err.Error()
			})
			return
		}

		result := as.ParseAddress(ctx, raw, withTrace)
		results = append(results, result)

		as.updateJob(jobID, func(job *models.JobStatus) {
			job.Processed = i + 1
			if result.Error != "" {
				job.Rejected++
			}
		})
	}

	now := time.Now()
	as.mu.Lock()
	as.jobResults[jobID] = results
	if job, ok := as.jobs[jobID]; ok {
		job.Status = models.JobStatusCompleted
		job.CompletedAt = &now
	}
	as.mu.Unlock()

	as.logger.Info("Batch job completed",
		zap.String("job_id", jobID),
		zap.Int("total", len(records)))
}

func (as *AddressService) updateJob(jobID string, fn func(*models.JobStatus)) {
	as.mu.Lock()
	defer as.mu.Unlock()
	if job, ok := as.jobs[jobID]; ok {
		fn(job)
	}
}

// GetJobStatus snapshot of a job
func (as *AddressService) GetJobStatus(jobID string) (*models.JobStatus, error) {
	as.mu.RLock()
	defer as.mu.RUnlock()

	job, ok := as.jobs[jobID]
	if !ok {
		return nil, ErrJobNotFound
	}
	snapshot := *job
	return &snapshot, nil
}

// GetJobResults results of a completed job in input order
func (as *AddressService) GetJobResults(jobID string) ([]*models.ParseResult, error) {
	as.mu.RLock()
	defer as.mu.RUnlock()

	if _, ok := as.jobs[jobID]; !ok {
		return nil, ErrJobNotFound
	}
	results, ok := as.jobResults[jobID]
	if !ok {
		return nil, ErrJobNotFinished
	}
	return results, nil
}

// WriteJobResults streams job results as NDJSON
func (as *AddressService) WriteJobResults(jobID string, w io.Writer) (int, error) {
	results, err := as.GetJobResults(jobID)
	if err != nil {
		return 0, err
	}
	enc := json.NewEncoder(w)
	for i, r := range results {
		if err := enc.Encode(r); err != nil {
			return i, fmt.Errorf("encode result %d: %w", i, err)
		}
	}
	return len(results), nil
}

// GetStartTime service start time
func (as *AddressService) GetStartTime() time.Time {
	return as.startTime
}

// ServiceStats parse counters
type ServiceStats struct {
	UptimeSeconds int64  `json:"uptime_seconds"`
	StartTime     string `json:"start_time"`
	RulesVersion  string `json:"rules_version"`
	Parsed        int64  `json:"parsed"`
	Rejected      int64  `json:"rejected"`
	CacheHits     int64  `json:"cache_hits"`
	Jobs          int    `json:"jobs"`
}

// GetStats service counters
func (as *AddressService) GetStats() ServiceStats {
	as.mu.RLock()
	jobs := len(as.jobs)
	as.mu.RUnlock()

	return ServiceStats{
		UptimeSeconds: int64(time.Since(as.startTime).Seconds()),
		StartTime:     as.startTime.Format(time.RFC3339),
		RulesVersion:  as.parser.RulesVersion(),
		Parsed:        as.parsed.Load(),
		Rejected:      as.rejected.Load(),
		CacheHits:     as.cacheHits.Load(),
		Jobs:          jobs,
	}
}
