package handlers

import (
	"errors"
	"net/http"

	"github.com/kestrel-qa/testpilot/job"
	"github.com/kestrel-qa/testpilot/logger"
	"github.com/kestrel-qa/testpilot/workflow"
)

// JobHandler handles job-related requests.
type JobHandler struct {
	jobStore   job.Store
	workerPool *workflow.WorkerPool
	logger     logger.Logger
}

// NewJobHandler creates a new job handler.
func NewJobHandler(jobStore job.Store, pool *workflow.WorkerPool, log logger.Logger) *JobHandler {
	return &JobHandler{
		jobStore:   jobStore,
		workerPool: pool,
		logger:     log,
	}
}

// CreateJobRequest represents a job creation request.
type CreateJobRequest struct {
	Type   string                 `json:"type"`
	Config map[string]interface{} `json:"config"`
}

// Create handles creating a new job.
func (h *JobHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateJobRequest
	if err := parseJSON(r, &req, h.logger); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	jobType := job.JobType(req.Type)
	if !jobType.IsValid() {
		respondError(w, http.StatusBadRequest, "invalid job type")
		return
	}

	objective, ok := req.Config["objective"].(string)
	if !ok || objective == "" {
		respondError(w, http.StatusBadRequest, "objective is required in config for browser_test jobs")
		return
	}

	j := &job.Job{
		Type:   jobType,
		Status: job.StatusCreated,
		Config: job.JSONMap(req.Config),
	}

	if err := h.jobStore.Create(r.Context(), j); err != nil {
		if errors.Is(err, job.ErrMissingObjective) {
			respondError(w, http.StatusBadRequest, "objective is required in config for browser_test jobs")
			return
		}
		h.logger.Error(r.Context(), "failed to create job", map[string]interface{}{
			"error": err.Error(),
		})
		respondError(w, http.StatusInternalServerError, "failed to create job")
		return
	}

	// Notify worker pool that a new job is available
	if h.workerPool != nil {
		select {
		case h.workerPool.Work <- struct{}{}:
		default:
			// All workers busy; job stays in DB as 'created' until a worker is free
		}
	}

	respondJSON(w, http.StatusCreated, j)
}

// List handles listing jobs, optionally filtered by status.
func (h *JobHandler) List(w http.ResponseWriter, r *http.Request) {
	limit, offset := parsePagination(r)

	statusFilter := r.URL.Query().Get("status")
	if statusFilter != "" {
		status := job.Status(statusFilter)
		if !status.IsValid() {
			respondError(w, http.StatusBadRequest, "invalid status filter")
			return
		}

		jobs, err := h.jobStore.ListByStatus(r.Context(), status, limit, offset)
		if err != nil {
			h.logger.Error(r.Context(), "failed to list jobs", map[string]interface{}{
				"error": err.Error(),
			})
			respondError(w, http.StatusInternalServerError, "failed to list jobs")
			return
		}

		respondJSON(w, http.StatusOK, NewPaginatedResponse(jobs, len(jobs), limit, offset))
		return
	}

	total, err := h.jobStore.Count(r.Context())
	if err != nil {
		h.logger.Error(r.Context(), "failed to count jobs", map[string]interface{}{
			"error": err.Error(),
		})
		respondError(w, http.StatusInternalServerError, "failed to count jobs")
		return
	}

	jobs, err := h.jobStore.List(r.Context(), limit, offset)
	if err != nil {
		h.logger.Error(r.Context(), "failed to list jobs", map[string]interface{}{
			"error": err.Error(),
		})
		respondError(w, http.StatusInternalServerError, "failed to list jobs")
		return
	}

	respondJSON(w, http.StatusOK, NewPaginatedResponse(jobs, total, limit, offset))
}

// GetByID handles getting a single job by ID.
func (h *JobHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	id, ok := parseUUIDOrRespond(w, r, "id", "job")
	if !ok {
		return
	}

	j, err := h.jobStore.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, job.ErrJobNotFound) {
			respondError(w, http.StatusNotFound, "job not found")
			return
		}
		h.logger.Error(r.Context(), "failed to get job", map[string]interface{}{
			"error":  err.Error(),
			"job_id": id,
		})
		respondError(w, http.StatusInternalServerError, "failed to get job")
		return
	}

	respondJSON(w, http.StatusOK, j)
}
