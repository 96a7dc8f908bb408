package workflow

import (
	"context"

	"github.com/kestrel-qa/testpilot/job"
	"github.com/kestrel-qa/testpilot/logger"
	"github.com/kestrel-qa/testpilot/plan"
)

// WorkerPool manages a pool of goroutines that process queued test jobs.
// Workers are notified via a channel when new jobs are created, and each
// worker atomically claims jobs so no job is processed twice.
type WorkerPool struct {
	Work         chan struct{}
	maxWorkers   int
	jobStore     job.Store
	orchestrator *Orchestrator
	logger       logger.Logger
}

// NewWorkerPool creates a new worker pool.
func NewWorkerPool(maxWorkers int, jobStore job.Store, orchestrator *Orchestrator, log logger.Logger) *WorkerPool {
	return &WorkerPool{
		Work:         make(chan struct{}, maxWorkers),
		maxWorkers:   maxWorkers,
		jobStore:     jobStore,
		orchestrator: orchestrator,
		logger:       log,
	}
}

// Start spawns worker goroutines that listen for job notifications.
func (p *WorkerPool) Start(ctx context.Context) {
	p.logger.Info(ctx, "starting worker pool", map[string]interface{}{
		"max_workers": p.maxWorkers,
	})
	for i := 0; i < p.maxWorkers; i++ {
		go p.worker(ctx, i)
	}
}

func (p *WorkerPool) worker(ctx context.Context, id int) {
	p.logger.Info(ctx, "worker started", map[string]interface{}{
		"worker_id": id,
	})
	for {
		select {
		case <-p.Work:
			// Drain all available created jobs before going back to wait
			for {
				j, err := p.jobStore.ClaimNextCreated(ctx)
				if err != nil {
					p.logger.Error(ctx, "worker failed to claim job", map[string]interface{}{
						"worker_id": id,
						"error":     err.Error(),
					})
					break
				}
				if j == nil {
					break
				}
				p.logger.Info(ctx, "worker processing job", map[string]interface{}{
					"worker_id": id,
					"job_id":    j.ID.String(),
				})
				p.runJob(ctx, j)
			}
		case <-ctx.Done():
			p.logger.Info(ctx, "worker stopping", map[string]interface{}{
				"worker_id": id,
			})
			return
		}
	}
}

// runJob executes one claimed job end-to-end and records its terminal
// status. The job fails only on fatal workflow errors; exhausted and
// assertion-failed runs complete the job with their outcome in the result.
func (p *WorkerPool) runJob(ctx context.Context, j *job.Job) {
	objective := plan.Objective{}
	if text, ok := j.Config["objective"].(string); ok {
		objective.Text = text
	}
	if target, ok := j.Config["target"].(string); ok {
		objective.Target = target
	}

	report, err := p.orchestrator.Run(ctx, objective)

	result := job.JSONMap{}
	status := job.StatusFailed
	if report != nil {
		result["run_id"] = report.RunID
		result["outcome"] = string(report.Outcome)
		result["artifact_dir"] = report.ArtifactDir
		result["attempts"] = report.Attempts
		if report.Status != "" {
			result["status"] = string(report.Status)
		}
		if report.FailureStage != "" {
			result["failure_stage"] = string(report.FailureStage)
		}
		if report.Outcome == OutcomeAcceptedAndPassed {
			status = job.StatusSuccess
		}
	}
	if err != nil {
		result["error"] = err.Error()
	}

	if completeErr := p.jobStore.Complete(ctx, j.ID, status, result); completeErr != nil {
		p.logger.Error(ctx, "failed to record job completion", map[string]interface{}{
			"job_id": j.ID.String(),
			"error":  completeErr.Error(),
		})
	}
}
