package main

import (
	"time"

	"homework-analyzer/analysis"
)

// AnalyzePageRequest is the request payload for the /api/analyze endpoints.
// The image is the full scanned page. Blocks may be omitted, in which case
// the configured OCR provider extracts them server-side.
type AnalyzePageRequest struct {
	// Base64-encoded page image (JPEG or PNG)
	Image string `json:"image"`

	// OCR blocks with normalized positions (optional)
	Blocks []analysis.OCRBlock `json:"blocks,omitempty"`

	// Per-request routing overrides; unset fields fall back to the
	// server-side defaults
	Routing RoutingOverrides `json:"routing"`
}

// RoutingOverrides lets a caller override individual routing flags for one
// request. Nil fields keep the server defaults.
type RoutingOverrides struct {
	UseAgenticAnalysis   *bool `json:"useAgenticAnalysis,omitempty"`
	UseCloudAnalysis     *bool `json:"useCloudAnalysis,omitempty"`
	HasCloudSubscription *bool `json:"hasCloudSubscription,omitempty"`
}

// AnalyzePageResponse is the response payload for the synchronous
// /api/analyze endpoint.
type AnalyzePageResponse struct {
	Backend analysis.Backend        `json:"backend"`
	Result  analysis.AnalysisResult `json:"result"`
}

// JobResponse is the wire representation of an analysis job.
type JobResponse struct {
	ID            string                   `json:"id"`
	Status        string                   `json:"status"`
	Error         string                   `json:"error,omitempty"`
	Result        *analysis.AnalysisResult `json:"result,omitempty"`
	SegmentsDone  int                      `json:"segments_done"`
	TotalSegments int                      `json:"total_segments"`
	CreatedAt     time.Time                `json:"created_at"`
	UpdatedAt     time.Time                `json:"updated_at"`
}

// HistoryEntry is one persisted past analysis in the /api/history response.
type HistoryEntry struct {
	ID            uint      `json:"id"`
	JobID         string    `json:"job_id"`
	Subject       string    `json:"subject,omitempty"`
	ExerciseCount int       `json:"exercise_count"`
	CreatedAt     time.Time `json:"created_at"`
}
