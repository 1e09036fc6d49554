package main

import (
	"context"
	"encoding/json"
	"image"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"homework-analyzer/analysis"
)

var (
	jobCancellersMu sync.Mutex
	jobCancellers   = make(map[string]context.CancelFunc)
)

// Job represents a page analysis job
type Job struct {
	ID            string
	Status        string // "pending", "in_progress", "completed", "failed", "cancelled"
	Error         string // Error message when failed
	Result        *analysis.AnalysisResult
	CreatedAt     time.Time
	UpdatedAt     time.Time
	SegmentsDone  int // Number of segments classified so far
	TotalSegments int // Total number of segments on the page

	// Job input, set at submission time
	blocks  []analysis.OCRBlock
	img     image.Image
	routing analysis.RoutingConfig
}

// JobStore manages jobs and their statuses
type JobStore struct {
	sync.RWMutex
	jobs map[string]*Job
}

var (
	logger = logrus.New()

	jobStore = &JobStore{
		jobs: make(map[string]*Job),
	}
	jobQueue = make(chan *Job, 100) // Buffered channel with capacity of 100 jobs
)

func init() {
	logger.SetOutput(os.Stdout)
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})
	logger.SetLevel(logrus.InfoLevel)
}

func generateJobID() string {
	return uuid.New().String()
}

func (store *JobStore) addJob(job *Job) {
	store.Lock()
	defer store.Unlock()
	job.SegmentsDone = 0
	store.jobs[job.ID] = job
	logger.Infof("Job added: %s", job.ID)
}

// getJob returns a snapshot of the job. Workers keep mutating the stored
// job through the store, so callers get a copy taken under the lock rather
// than a live pointer.
func (store *JobStore) getJob(jobID string) (Job, bool) {
	store.RLock()
	defer store.RUnlock()
	job, exists := store.jobs[jobID]
	if !exists {
		return Job{}, false
	}
	return *job, true
}

// GetAllJobs returns snapshots of all jobs, newest first.
func (store *JobStore) GetAllJobs() []Job {
	store.RLock()
	defer store.RUnlock()

	jobs := make([]Job, 0, len(store.jobs))
	for _, job := range store.jobs {
		jobs = append(jobs, *job)
	}

	sort.Slice(jobs, func(i, j int) bool {
		return jobs[i].CreatedAt.After(jobs[j].CreatedAt)
	})

	return jobs
}

func (store *JobStore) updateJobStatus(jobID, status, errMsg string) {
	store.Lock()
	defer store.Unlock()
	if job, exists := store.jobs[jobID]; exists {
		job.Status = status
		if errMsg != "" {
			job.Error = errMsg
		}
		job.UpdatedAt = time.Now()
		logger.Infof("Job %s status updated: %s", jobID, status)
	}
}

func (store *JobStore) setJobResult(jobID string, result *analysis.AnalysisResult) {
	store.Lock()
	defer store.Unlock()
	if job, exists := store.jobs[jobID]; exists {
		job.Result = result
		job.Status = "completed"
		job.UpdatedAt = time.Now()
	}
}

func (store *JobStore) updateProgress(jobID string, done, total int) {
	store.Lock()
	defer store.Unlock()
	if job, exists := store.jobs[jobID]; exists {
		job.SegmentsDone = done
		job.TotalSegments = total
		job.UpdatedAt = time.Now()
	}
}

// cancelJob cancels the in-flight context of a job, if any. It reports
// whether a canceller was registered.
func cancelJob(jobID string) bool {
	jobCancellersMu.Lock()
	defer jobCancellersMu.Unlock()
	cancel, exists := jobCancellers[jobID]
	if exists {
		cancel()
	}
	return exists
}

func startWorkerPool(app *App, numWorkers int) {
	for i := 0; i < numWorkers; i++ {
		go func(workerID int) {
			logger.Infof("Worker %d started", workerID)
			for job := range jobQueue {
				logger.Infof("Worker %d processing job: %s", workerID, job.ID)
				processJob(app, job)
			}
		}(i)
	}
}

func processJob(app *App, job *Job) {
	jobStore.updateJobStatus(job.ID, "in_progress", "")

	jobCtx, cancel := context.WithCancel(context.Background())
	jobCancellersMu.Lock()
	jobCancellers[job.ID] = cancel
	jobCancellersMu.Unlock()
	defer func() {
		cancel()
		jobCancellersMu.Lock()
		delete(jobCancellers, job.ID)
		jobCancellersMu.Unlock()
	}()

	result, backend, err := app.analyzePage(jobCtx, job.blocks, job.img, job.routing, func(done, total int) {
		jobStore.updateProgress(job.ID, done, total)
	})
	if err != nil {
		if jobCtx.Err() == context.Canceled {
			jobStore.updateJobStatus(job.ID, "cancelled", "Job cancelled by user")
			logger.Infof("Job cancelled: %s", job.ID)
		} else {
			logger.Errorf("Error analyzing page for job %s: %v", job.ID, err)
			jobStore.updateJobStatus(job.ID, "failed", err.Error())
		}
		return
	}

	jobStore.setJobResult(job.ID, result)
	logger.Infof("Job completed: %s", job.ID)

	if app.Database != nil {
		if err := InsertAnalysisRecord(app.Database, analysisRecord(job.ID, backend, result)); err != nil {
			logger.Errorf("Failed to persist analysis for job %s: %v", job.ID, err)
			// The job itself succeeded; history is best effort
		}
	}
}

// analysisRecord builds the persistence row for a completed analysis.
func analysisRecord(jobID string, backend analysis.Backend, result *analysis.AnalysisResult) AnalysisRecord {
	resultJSON, err := json.Marshal(result)
	if err != nil {
		logger.Errorf("Failed to marshal analysis result: %v", err)
	}

	subject := ""
	for _, exercise := range result.Exercises {
		if exercise.Subject != "" {
			subject = exercise.Subject
			break
		}
	}

	return AnalysisRecord{
		JobID:         jobID,
		Backend:       string(backend),
		Subject:       subject,
		ExerciseCount: len(result.Exercises),
		ResultJSON:    string(resultJSON),
	}
}

// jobResponse converts a job snapshot to its wire representation.
func jobResponse(job Job) JobResponse {
	return JobResponse{
		ID:            job.ID,
		Status:        job.Status,
		Error:         job.Error,
		Result:        job.Result,
		SegmentsDone:  job.SegmentsDone,
		TotalSegments: job.TotalSegments,
		CreatedAt:     job.CreatedAt,
		UpdatedAt:     job.UpdatedAt,
	}
}
