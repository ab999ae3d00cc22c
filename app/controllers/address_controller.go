package controllers

import (
	"compress/gzip"
	"errors"
	"net/http"
	"time"

	"github.com/address-formatter/app/requests"
	"github.com/address-formatter/app/responses"
	"github.com/address-formatter/app/services"
	"github.com/address-formatter/helpers/utils"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ServiceVersion reported by health probes
const ServiceVersion = "1.0.0"

// AddressController handles parse requests and batch jobs
type AddressController struct {
	addressService *services.AddressService
	logger         *zap.Logger
}

// NewAddressController creates an AddressController
func NewAddressController(addressService *services.AddressService, logger *zap.Logger) *AddressController {
	return &AddressController{
		addressService: addressService,
		logger:         logger,
	}
}

// ParseAddress parses one record
func (ac *AddressController) ParseAddress(c *gin.Context) {
	var req requests.ParseAddressRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, responses.ErrorResponse{
			Error:   "INVALID_REQUEST",
			Message: "Invalid request: " + err.Error(),
		})
		return
	}

	startTime := time.Now()
	result := ac.addressService.ParseAddress(c.Request.Context(), req.Record(), req.Trace)
	if result.Error != "" {
		c.JSON(http.StatusUnprocessableEntity, responses.ErrorResponse{
			Error:   "PARSE_REJECTED",
			Message: result.Error,
		})
		return
	}

	c.JSON(http.StatusOK, responses.ParseAddressResponse{
		RulesVersion:     ac.addressService.RulesVersion(),
		Result:           result,
		ProcessingTimeMs: time.Since(startTime).Milliseconds(),
		RequestID:        utils.NewRequestID(),
	})
}

// BatchParse starts an asynchronous batch job
func (ac *AddressController) BatchParse(c *gin.Context) {
	var req requests.BatchParseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, responses.ErrorResponse{
			Error:   "INVALID_REQUEST",
			Message: "Invalid request: " + err.Error(),
		})
		return
	}

	if len(req.Records) > requests.MaxBatchRecords {
		c.JSON(http.StatusBadRequest, responses.ErrorResponse{
			Error:   "TOO_MANY_RECORDS",
			Message: "Batch exceeds the record limit (20,000)",
		})
		return
	}

	jobID := utils.NewJobID()
	job := ac.addressService.StartBatchJob(jobID, req.Legacy(), req.Trace)

	ac.logger.Info("Batch job accepted",
		zap.String("job_id", jobID),
		zap.Int("records", job.Total))

	c.JSON(http.StatusAccepted, responses.BatchParseResponse{
		JobID:        jobID,
		TotalRecords: job.Total,
		StatusURL:    "/v1/addresses/jobs/" + jobID + "/status",
		ResultsURL:   "/v1/addresses/jobs/" + jobID + "/results",
		Message:      "Job accepted",
	})
}

// GetJobStatus reports the progress of a job
func (ac *AddressController) GetJobStatus(c *gin.Context) {
	jobID := c.Param("jobID")
	job, err := ac.addressService.GetJobStatus(jobID)
	if err != nil {
		c.JSON(http.StatusNotFound, responses.ErrorResponse{
			Error:   "JOB_NOT_FOUND",
			Message: "Job not found: " + jobID,
		})
		return
	}

	c.JSON(http.StatusOK, responses.NewJobStatusResponse(job))
}

// GetJobResults returns the results of a completed job as JSON, or as
// NDJSON with ?format=ndjson (gzip compressed with &gzip=1)
func (ac *AddressController) GetJobResults(c *gin.Context) {
	jobID := c.Param("jobID")
	results, err := ac.addressService.GetJobResults(jobID)
	switch {
	case errors.Is(err, services.ErrJobNotFound):
		c.JSON(http.StatusNotFound, responses.ErrorResponse{
			Error:   "JOB_NOT_FOUND",
			Message: "Job not found: " + jobID,
		})
		return
	case errors.Is(err, services.ErrJobNotFinished):
		c.JSON(http.StatusConflict, responses.ErrorResponse{
			Error:   "JOB_NOT_FINISHED",
			Message: "Job has not finished yet: " + jobID,
		})
		return
	case err != nil:
		c.JSON(http.StatusInternalServerError, responses.ErrorResponse{
			Error:   "JOB_RESULTS_ERROR",
			Message: err.Error(),
		})
		return
	}

	if c.Query("format") == "ndjson" {
		ac.streamNDJSONResults(c, jobID, c.Query("gzip") == "1")
		return
	}

	c.JSON(http.StatusOK, responses.JobResultsResponse{
		JobID:   jobID,
		Count:   len(results),
		Results: results,
	})
}

// HealthCheck reports service health
func (ac *AddressController) HealthCheck(c *gin.Context) {
	uptime := time.Since(ac.addressService.GetStartTime())

	c.JSON(http.StatusOK, responses.HealthCheckResponse{
		Status:       "healthy",
		Timestamp:    time.Now().Format(time.RFC3339),
		Uptime:       uptime.Round(time.Second).String(),
		Version:      ServiceVersion,
		RulesVersion: ac.addressService.RulesVersion(),
		Services: map[string]string{
			"address_parser": "healthy",
		},
	})
}

func (ac *AddressController) streamNDJSONResults(c *gin.Context, jobID string, gzipEnabled bool) {
	c.Header("Content-Type", "application/x-ndjson")
	c.Status(http.StatusOK)

	var writer gin.ResponseWriter = c.Writer
	if gzipEnabled {
		c.Header("Content-Encoding", "gzip")
		gzWriter := gzip.NewWriter(c.Writer)
		defer gzWriter.Close()
		writer = &gzipResponseWriter{
			ResponseWriter: c.Writer,
			gzWriter:       gzWriter,
		}
	}

	n, err := ac.addressService.WriteJobResults(jobID, writer)
	if err != nil {
		ac.logger.Error("Failed to stream job results",
			zap.String("job_id", jobID),
			zap.Int("written", n),
			zap.Error(err))
		return
	}
	writer.Flush()
}

type gzipResponseWriter struct {
	gin.ResponseWriter
	gzWriter *gzip.Writer
}

func (w *gzipResponseWriter) Write(data []byte) (int, error) {
	return w.gzWriter.Write(data)
}

func (w *gzipResponseWriter) Flush() {
	w.gzWriter.Flush()
	w.ResponseWriter.Flush()
}
