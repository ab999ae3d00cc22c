package utils

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIDs(t *testing.T) {
	assert.True(t, strings.HasPrefix(NewJobID(), "job_c"))
	assert.True(t, strings.HasPrefix(NewRunID(), "run_c"))
	assert.NotEqual(t, NewJobID(), NewJobID())
	assert.NotEmpty(t, NewRequestID())
}
