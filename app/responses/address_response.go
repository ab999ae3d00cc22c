package responses

import (
	"github.com/address-formatter/app/models"
	"github.com/address-formatter/app/services"
	"github.com/address-formatter/internal/search"
)

// ParseAddressResponse response for one parsed record
type ParseAddressResponse struct {
	RulesVersion     string              `json:"rules_version"`      // Version of the parsing vocabulary
	Result           *models.ParseResult `json:"result"`             // Parse outcome
	ProcessingTimeMs int64               `json:"processing_time_ms"` // Handler time (ms)
	RequestID        string              `json:"request_id"`
}

// BatchParseResponse response for an accepted batch job
type BatchParseResponse struct {
	JobID        string `json:"job_id"`
	TotalRecords int    `json:"total_records"`
	StatusURL    string `json:"status_url"`
	ResultsURL   string `json:"results_url"`
	Message      string `json:"message"`
}

// JobStatusResponse progress of a batch job
type JobStatusResponse struct {
	JobID     string  `json:"job_id"`
	Status    string  `json:"status"`
	Progress  float64 `json:"progress"` // 0.0 - 1.0
	Processed int     `json:"processed"`
	Rejected  int     `json:"rejected"`
	Total     int     `json:"total"`
	Error     string  `json:"error,omitempty"`
}

// NewJobStatusResponse builds the response from a job snapshot
func NewJobStatusResponse(job *models.JobStatus) JobStatusResponse {
	progress := 1.0
	if job.Total > 0 {
		progress = float64(job.Processed) / float64(job.Total)
	}
	return JobStatusResponse{
		JobID:     job.JobID,
		Status:    job.Status,
		Progress:  progress,
		Processed: job.Processed,
		Rejected:  job.Rejected,
		Total:     job.Total,
		Error:     job.Error,
	}
}

// JobResultsResponse results of a completed job
type JobResultsResponse struct {
	JobID   string                `json:"job_id"`
	Count   int                   `json:"count"`
	Results []*models.ParseResult `json:"results"`
}

// SystemStatsResponse admin statistics
type SystemStatsResponse struct {
	*services.SystemStats
	Environment string `json:"environment"`
}

// SearchResponse admin search over migrated addresses
type SearchResponse struct {
	Query string                   `json:"query"`
	Count int                      `json:"count"`
	Hits  []search.AddressDocument `json:"hits"`
}

// ReviewListResponse records waiting for manual review
type ReviewListResponse struct {
	Count   int                    `json:"count"`
	Reviews []models.AddressReview `json:"reviews"`
}

// ErrorResponse error body
type ErrorResponse struct {
	Error   string `json:"error"`             // Machine readable code
	Message string `json:"message"`           // Human readable message
	Details string `json:"details,omitempty"` // Extra context
}

// SuccessResponse generic success body
type SuccessResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// HealthCheckResponse health probe body
type HealthCheckResponse struct {
	Status       string            `json:"status"`
	Timestamp    string            `json:"timestamp"`
	Uptime       string            `json:"uptime"`
	Version      string            `json:"version"`
	RulesVersion string            `json:"rules_version"`
	Services     map[string]string `json:"services"`
}
