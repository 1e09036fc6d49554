package main

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"net/http"
	"os"
	"strconv"
	"text/template"
	"time"

	// Register decoders for the page image formats we accept
	_ "image/jpeg"
	_ "image/png"

	"github.com/Masterminds/sprig/v3"
	"github.com/gabriel-vasile/mimetype"
	"github.com/gin-gonic/gin"

	"homework-analyzer/analysis"
	"homework-analyzer/ocr"
)

// analyzeHandler handles the POST /api/analyze endpoint: it runs the whole
// pipeline synchronously and answers with the detected exercises.
func (app *App) analyzeHandler(c *gin.Context) {
	ctx := c.Request.Context()

	req, img, blocks, ok := app.bindAnalyzeRequest(c)
	if !ok {
		return
	}

	result, backend, err := app.analyzePage(ctx, blocks, img, routingConfigFor(req.Routing), nil)
	if err != nil {
		status := analysisErrorStatus(err)
		c.JSON(status, gin.H{"error": err.Error()})
		log.Errorf("Error analyzing page: %v", err)
		return
	}

	if app.Database != nil {
		if err := InsertAnalysisRecord(app.Database, analysisRecord("", backend, result)); err != nil {
			log.Errorf("Failed to persist analysis: %v", err)
		}
	}

	c.JSON(http.StatusOK, AnalyzePageResponse{
		Backend: backend,
		Result:  *result,
	})
}

// submitAnalyzeJobHandler handles the POST /api/analyze/async endpoint: it
// enqueues the page for background analysis and answers with the job ID.
func (app *App) submitAnalyzeJobHandler(c *gin.Context) {
	req, img, blocks, ok := app.bindAnalyzeRequest(c)
	if !ok {
		return
	}

	job := &Job{
		ID:        generateJobID(),
		Status:    "pending",
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
		blocks:    blocks,
		img:       img,
		routing:   routingConfigFor(req.Routing),
	}
	jobStore.addJob(job)

	select {
	case jobQueue <- job:
		c.JSON(http.StatusAccepted, gin.H{"job_id": job.ID})
	default:
		jobStore.updateJobStatus(job.ID, "failed", "Job queue is full")
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Job queue is full"})
	}
}

// getJobStatusHandler handles the GET /api/jobs/:id endpoint
func getJobStatusHandler(c *gin.Context) {
	jobID := c.Param("id")
	job, exists := jobStore.getJob(jobID)
	if !exists {
		c.JSON(http.StatusNotFound, gin.H{"error": "Job not found"})
		return
	}

	c.JSON(http.StatusOK, jobResponse(job))
}

// getAllJobsHandler handles the GET /api/jobs endpoint
func getAllJobsHandler(c *gin.Context) {
	jobs := jobStore.GetAllJobs()

	responses := make([]JobResponse, 0, len(jobs))
	for _, job := range jobs {
		responses = append(responses, jobResponse(job))
	}

	c.JSON(http.StatusOK, responses)
}

// cancelJobHandler handles the POST /api/jobs/:id/cancel endpoint
func cancelJobHandler(c *gin.Context) {
	jobID := c.Param("id")
	job, exists := jobStore.getJob(jobID)
	if !exists {
		c.JSON(http.StatusNotFound, gin.H{"error": "Job not found"})
		return
	}

	switch job.Status {
	case "completed", "failed", "cancelled":
		c.JSON(http.StatusConflict, gin.H{"error": fmt.Sprintf("Job is already %s", job.Status)})
		return
	}

	if !cancelJob(jobID) {
		// Not yet picked up by a worker; mark it cancelled directly
		jobStore.updateJobStatus(jobID, "cancelled", "Job cancelled by user")
	}

	c.JSON(http.StatusOK, gin.H{"status": "cancelling"})
}

// getHistoryHandler handles the GET /api/history endpoint
func (app *App) getHistoryHandler(c *gin.Context) {
	limit := 20
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid limit parameter"})
			return
		}
		limit = parsed
	}

	records, err := GetRecentAnalyses(app.Database, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": fmt.Sprintf("Error fetching history: %v", err)})
		log.Errorf("Error fetching history: %v", err)
		return
	}

	entries := make([]HistoryEntry, 0, len(records))
	for _, record := range records {
		entries = append(entries, HistoryEntry{
			ID:            record.ID,
			JobID:         record.JobID,
			Subject:       record.Subject,
			ExerciseCount: record.ExerciseCount,
			CreatedAt:     record.CreatedAt,
		})
	}

	c.JSON(http.StatusOK, entries)
}

// getPromptsHandler handles the GET /api/prompts endpoint
func getPromptsHandler(c *gin.Context) {
	templateMutex.RLock()
	defer templateMutex.RUnlock()

	content := classifyPromptText
	if content == "" {
		content = analysis.DefaultClassifyPrompt
	}

	c.JSON(http.StatusOK, gin.H{
		"classify_template": content,
	})
}

// updatePromptsHandler handles the POST /api/prompts endpoint
func updatePromptsHandler(c *gin.Context) {
	var req struct {
		ClassifyTemplate string `json:"classify_template"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request payload"})
		return
	}

	if req.ClassifyTemplate == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "classify_template must not be empty"})
		return
	}

	if _, err := template.New("classify").Funcs(sprig.FuncMap()).Parse(req.ClassifyTemplate); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("Invalid classify template: %v", err)})
		return
	}

	templateMutex.Lock()
	classifyPromptText = req.ClassifyTemplate
	templateMutex.Unlock()

	if err := os.MkdirAll("prompts", os.ModePerm); err == nil {
		if err := os.WriteFile(classifyPromptPath, []byte(req.ClassifyTemplate), 0644); err != nil {
			log.Errorf("Failed to write classify_prompt.tmpl: %v", err)
		}
	}

	c.Status(http.StatusOK)
}

// bindAnalyzeRequest decodes and validates an analyze request: it parses the
// payload, decodes the page image and resolves the OCR blocks, running the
// configured OCR provider when the caller supplied none. On failure it has
// already written the error response and returns ok = false.
func (app *App) bindAnalyzeRequest(c *gin.Context) (AnalyzePageRequest, image.Image, []analysis.OCRBlock, bool) {
	var req AnalyzePageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("Invalid request payload: %v", err)})
		log.Errorf("Invalid request payload: %v", err)
		return req, nil, nil, false
	}

	if req.Image == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing page image"})
		return req, nil, nil, false
	}

	imageContent, err := base64.StdEncoding.DecodeString(req.Image)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid base64 image data"})
		return req, nil, nil, false
	}

	mtype := mimetype.Detect(imageContent)
	if !mtype.Is("image/jpeg") && !mtype.Is("image/png") {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("Unsupported image type: %s", mtype.String())})
		return req, nil, nil, false
	}

	img, _, err := image.Decode(bytes.NewReader(imageContent))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("Failed to decode page image: %v", err)})
		return req, nil, nil, false
	}

	blocks := req.Blocks
	if len(blocks) == 0 {
		if app.OCR == nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "No OCR blocks supplied and no OCR provider configured"})
			return req, nil, nil, false
		}
		extracted, err := app.OCR.ExtractBlocks(c.Request.Context(), imageContent)
		if err != nil {
			c.JSON(http.StatusBadGateway, gin.H{"error": fmt.Sprintf("OCR extraction failed: %v", err)})
			log.Errorf("OCR extraction failed: %v", err)
			return req, nil, nil, false
		}
		blocks = ocrBlocksToAnalysis(extracted)
	}

	return req, img, blocks, true
}

func ocrBlocksToAnalysis(blocks []ocr.Block) []analysis.OCRBlock {
	converted := make([]analysis.OCRBlock, 0, len(blocks))
	for _, block := range blocks {
		converted = append(converted, analysis.OCRBlock{
			Text: block.Text,
			Y:    block.Y,
		})
	}
	return converted
}

// analysisErrorStatus maps pipeline errors to HTTP status codes.
func analysisErrorStatus(err error) int {
	switch {
	case errors.Is(err, analysis.ErrNoContent):
		return http.StatusUnprocessableEntity
	case errors.Is(err, analysis.ErrBackendUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
