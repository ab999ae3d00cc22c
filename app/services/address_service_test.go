package services

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/address-formatter/app/models"
	"github.com/address-formatter/internal/parser"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newTestAddressService(t *testing.T, withCache bool) *AddressService {
	t.Helper()
	p, err := parser.NewDefaultParser()
	require.NoError(t, err)

	var cache ICacheService
	if withCache {
		cs, err := NewCacheService(100, time.Hour, p.RulesVersion())
		require.NoError(t, err)
		cache = cs
	}
	return NewAddressService(p, cache, zaptest.NewLogger(t))
}

func TestParseAddress(t *testing.T) {
	as := newTestAddressService(t, false)
	raw := models.NewUnstructuredAddress("42", "Herr", "Muster Hans", "Bahnhofstrasse 12", "8001 Zürich")

	result := as.ParseAddress(context.Background(), raw, true)
	require.Empty(t, result.Error)
	require.NotNil(t, result.Address)
	assert.Equal(t, "42", result.ID)
	assert.Equal(t, models.Street{Street: "Bahnhofstrasse", HouseNumber: "12"}, result.Address.Address)
	assert.Equal(t, 8001, result.Address.Postal.Code)
	assert.Len(t, result.Trace, 4)
	assert.False(t, result.Cached)

	withoutTrace := as.ParseAddress(context.Background(), raw, false)
	assert.Nil(t, withoutTrace.Trace)
}

func TestParseAddressRejectsMissingID(t *testing.T) {
	as := newTestAddressService(t, true)
	result := as.ParseAddress(context.Background(), models.NewUnstructuredAddress("  ", "3000 Bern"), false)

	assert.Nil(t, result.Address)
	assert.Contains(t, result.Error, parser.ErrMissingIdentifier.Error())
	assert.Equal(t, int64(1), as.GetStats().Rejected)
}

func TestParseAddressCacheRestampsRecord(t *testing.T) {
	as := newTestAddressService(t, true)
	ctx := context.Background()

	first := models.NewUnstructuredAddress("1", "Muster Hans", "Postfach 44", "3000 Bern")
	first.Attributes = map[string]string{"iban": "CH01"}
	second := models.NewUnstructuredAddress("2", " Muster Hans ", "Postfach 44", "", "3000 Bern")
	second.Attributes = map[string]string{"iban": "CH02"}

	r1 := as.ParseAddress(ctx, first, false)
	r2 := as.ParseAddress(ctx, second, true)

	assert.False(t, r1.Cached)
	assert.True(t, r2.Cached)
	assert.Equal(t, "2", r2.ID)
	assert.Equal(t, "2", r2.Address.ID)
	assert.Equal(t, "CH02", r2.Address.Attributes["iban"])
	assert.Equal(t, "1", r1.Address.ID, "cached copy does not leak into earlier results")
	assert.Equal(t, "CH01", r1.Address.Attributes["iban"])
	assert.NotEmpty(t, r2.Trace)
	assert.Equal(t, models.PoBox{BoxNumber: "44"}, r2.Address.Address)
	assert.Equal(t, int64(1), as.GetStats().CacheHits)
}

func TestParseAddressResultDoesNotAliasCache(t *testing.T) {
	as := newTestAddressService(t, true)
	ctx := context.Background()

	raw := models.NewUnstructuredAddress("7", "Muster Hans", "Seeweg 4", "6000 Luzern")
	raw.Attributes = map[string]string{"iban": "CH07"}

	first := as.ParseAddress(ctx, raw, false)
	require.NotNil(t, first.Address)
	first.Address.City = "Changed"
	first.Address.Address = models.PoBox{BoxNumber: "1"}
	first.Address.Attributes["iban"] = "XX"

	again := as.ParseAddress(ctx, raw, false)
	require.True(t, again.Cached)
	assert.Equal(t, "Luzern", again.Address.City)
	assert.Equal(t, models.Street{Street: "Seeweg", HouseNumber: "4"}, again.Address.Address)
	assert.Equal(t, "CH07", again.Address.Attributes["iban"])
}

func waitForJob(t *testing.T, as *AddressService, jobID string) *models.JobStatus {
	t.Helper()
	var status *models.JobStatus
	require.Eventually(t, func() bool {
		var err error
		status, err = as.GetJobStatus(jobID)
		require.NoError(t, err)
		return status.Status == models.JobStatusCompleted
	}, 5*time.Second, 10*time.Millisecond)
	return status
}

func TestBatchJob(t *testing.T) {
	as := newTestAddressService(t, false)
	records := []models.UnstructuredAddress{
		models.NewUnstructuredAddress("1", "Muster Hans", "3000 Bern"),
		models.NewUnstructuredAddress("", "Muster Anna", "8000 Zürich"),
		models.NewUnstructuredAddress("3", "Meier Fritz", "CP 10", "1200 Genève"),
	}

	started := as.StartBatchJob("job_test", records, false)
	assert.Equal(t, 3, started.Total)

	status := waitForJob(t, as, "job_test")
	assert.Equal(t, 3, status.Processed)
	assert.Equal(t, 1, status.Rejected)
	assert.NotNil(t, status.CompletedAt)

	results, err := as.GetJobResults("job_test")
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, "1", results[0].ID)
	assert.NotEmpty(t, results[1].Error)
	assert.Equal(t, "Genève", results[2].Address.City)

	var buf bytes.Buffer
	n, err := as.WriteJobResults("job_test", &buf)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	scanner := bufio.NewScanner(&buf)
	lines := 0
	for scanner.Scan() {
		var r models.ParseResult
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &r))
		lines++
	}
	assert.Equal(t, 3, lines)
}

func TestJobLookupErrors(t *testing.T) {
	as := newTestAddressService(t, false)

	_, err := as.GetJobStatus("nope")
	assert.ErrorIs(t, err, ErrJobNotFound)
	_, err = as.GetJobResults("nope")
	assert.ErrorIs(t, err, ErrJobNotFound)

	as.mu.Lock()
	as.jobs["pending"] = &models.JobStatus{JobID: "pending", Status: models.JobStatusRunning}
	as.mu.Unlock()
	_, err = as.GetJobResults("pending")
	assert.ErrorIs(t, err, ErrJobNotFinished)
}
