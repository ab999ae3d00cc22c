package models

import "time"

// TraceEntry role assigned to one input line
type TraceEntry struct {
	Line string `json:"line" bson:"line"`
	Role string `json:"role" bson:"role"`
}

// ParseResult outcome of parsing one legacy record
type ParseResult struct {
	ID      string             `json:"id" bson:"id"`                               // Source record key
	Address *StructuredAddress `json:"address,omitempty" bson:"address,omitempty"` // nil when rejected
	Trace   []TraceEntry       `json:"trace,omitempty" bson:"trace,omitempty"`     // Per-line roles
	Dropped []string           `json:"dropped,omitempty" bson:"dropped,omitempty"` // Unclassified lines beyond compl2
	Cached  bool               `json:"cached" bson:"-"`                            // Served from the parse cache
	Error   string             `json:"error,omitempty" bson:"error,omitempty"`     // Rejection reason
}

// Job status constants
const (
	JobStatusPending   = "pending"
	JobStatusRunning   = "running"
	JobStatusCompleted = "completed"
	JobStatusFailed    = "failed"
)

// JobStatus progress of an asynchronous batch parse
type JobStatus struct {
	JobID       string     `json:"job_id"`
	Status      string     `json:"status"`
	Total       int        `json:"total"`
	Processed   int        `json:"processed"`
	Rejected    int        `json:"rejected"`
	CreatedAt   time.Time  `json:"created_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Error       string     `json:"error,omitempty"`
}

// MigrationReport summary of one migration run
type MigrationReport struct {
	RunID        string        `json:"run_id" bson:"run_id"`
	Read         int64         `json:"read" bson:"read"`                   // Records fetched from the source
	Parsed       int64         `json:"parsed" bson:"parsed"`               // Records written to every sink
	Rejected     int64         `json:"rejected" bson:"rejected"`           // Missing identifier
	Failed       int64         `json:"failed" bson:"failed"`               // Sink write errors
	DroppedLines int64         `json:"dropped_lines" bson:"dropped_lines"` // Lines lost after compl2 was taken
	Reviews      int64         `json:"reviews" bson:"reviews"`             // Records queued for review
	StartedAt    time.Time     `json:"started_at" bson:"started_at"`
	Duration     time.Duration `json:"duration" bson:"duration"`
	DryRun       bool          `json:"dry_run" bson:"dry_run"`
}
