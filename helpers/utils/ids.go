package utils

import (
	"github.com/lucsky/cuid"
)

// NewJobID id of an asynchronous parse job
func NewJobID() string {
	return "job_" + cuid.New()
}

// NewRunID id of a migration run
func NewRunID() string {
	return "run_" + cuid.New()
}

// NewRequestID short id for request correlation
func NewRequestID() string {
	return cuid.Slug()
}
