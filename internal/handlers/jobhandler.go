package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/justsurfingit/job-outreach/internal/dtos"
	"github.com/justsurfingit/job-outreach/internal/services"
)

// JobExtractor turns a raw posting page into JSON fields.
type JobExtractor interface {
	ExtractJobDetails(ctx context.Context, rawHTML string) (string, error)
}

type JobHandler struct {
	Extractor  JobExtractor
	JobService *services.JobService
}

// NewJobHandler creates the handler with dependencies
func NewJobHandler(extractor JobExtractor, j *services.JobService) *JobHandler {
	return &JobHandler{Extractor: extractor,
		JobService: j,
	}
}

// ParseJob is the POST /jobs/extract endpoint
func (h *JobHandler) ParseJob(c *gin.Context) {
	var req dtos.JobExtractionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON format: " + err.Error()})
		return
	}
	if h.Extractor == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "AI extraction is not configured"})
		return
	}
	extractedJSON, err := h.Extractor.ExtractJobDetails(c.Request.Context(), req.RawHTML)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": "AI extraction failed"})
		return
	}

	// json.RawMessage keeps the model's JSON from being escaped as a string
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    json.RawMessage(extractedJSON),
	})
}

// CreateJob is the POST /jobs endpoint
func (h *JobHandler) CreateJob(c *gin.Context) {
	var req dtos.JobCreationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON format: " + err.Error()})
		return
	}
	job, err := h.JobService.CreateJob(c.Request.Context(), &req)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create job"})
		return
	}
	c.JSON(http.StatusCreated, job)
}
