package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/proteindock/api/internal/config"
	"github.com/proteindock/api/internal/engine"
	"github.com/proteindock/api/internal/fasc"
	"github.com/proteindock/api/internal/model"
	"github.com/proteindock/api/internal/registry"
)

var (
	// ErrComplexMissing means the project has no merged input complex yet.
	ErrComplexMissing = errors.New("complex structure not prepared")
	// ErrTooManyReplicates means nstruct exceeds the configured ceiling.
	ErrTooManyReplicates = errors.New("replicate count exceeds limit")
	// ErrJobNotFound means the project has no persisted job snapshot.
	ErrJobNotFound = errors.New("job not found")
	// ErrResultsNotFound means the project has no score table to aggregate.
	ErrResultsNotFound = errors.New("results not found")
)

// DockService owns the synchronous side of a docking run: admission,
// enqueueing, cancellation acks and state reads. The run itself happens in
// the worker.
type DockService struct {
	cfg      *config.Config
	store    JobStore
	registry *registry.Registry
	queue    *asynq.Client
	layout   engine.Layout
}

func NewDockService(cfg *config.Config, store JobStore, reg *registry.Registry, queue *asynq.Client) *DockService {
	return &DockService{
		cfg:      cfg,
		store:    store,
		registry: reg,
		queue:    queue,
		layout:   engine.NewLayout(cfg.WorkDir),
	}
}

// Start admits a run request and enqueues the background task. The
// running-check and the slot reservation happen inside the registry, so two
// racing requests for one project cannot both pass.
func (s *DockService) Start(ctx context.Context, req *model.DockStartRequest) (*model.DockStartResponse, error) {
	if req.NStruct > s.cfg.Engine.MaxReplicates {
		return nil, fmt.Errorf("%w: %d > %d", ErrTooManyReplicates, req.NStruct, s.cfg.Engine.MaxReplicates)
	}

	if _, err := os.Stat(s.layout.ComplexPath(req.Project)); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrComplexMissing, s.layout.ComplexPath(req.Project))
	}

	job := &model.Job{
		ID:        uuid.NewString(),
		Project:   req.Project,
		Status:    model.JobStatusLaunching,
		NStruct:   req.NStruct,
		CreatedAt: time.Now(),
	}

	if err := s.registry.Acquire(req.Project, job); err != nil {
		return nil, err
	}

	if err := s.store.SaveJob(ctx, job); err != nil {
		s.registry.Release(req.Project)
		return nil, fmt.Errorf("failed to persist job: %w", err)
	}

	payload, err := json.Marshal(model.DockTaskPayload{
		JobID:   job.ID,
		Project: job.Project,
		NStruct: job.NStruct,
	})
	if err != nil {
		s.registry.Release(req.Project)
		return nil, err
	}

	task := asynq.NewTask(model.TaskTypeDock, payload)
	if _, err := s.queue.EnqueueContext(ctx, task,
		asynq.Queue("dock"),
		asynq.MaxRetry(0),
		asynq.Timeout(s.cfg.Engine.MaxRunTime),
	); err != nil {
		s.registry.Release(req.Project)
		return nil, fmt.Errorf("failed to enqueue docking task: %w", err)
	}

	log.Printf("Docking job %s queued for project %s (nstruct=%d)", job.ID, job.Project, job.NStruct)

	return &model.DockStartResponse{
		JobID:     job.ID,
		Project:   job.Project,
		Status:    job.Status,
		Total:     job.NStruct,
		CreatedAt: job.CreatedAt,
	}, nil
}

// Cancel signals the project's active job. Cancelling an idle project is a
// no-op acknowledged with "not_found".
func (s *DockService) Cancel(ctx context.Context, project string) *model.DockCancelResponse {
	status := "not_found"
	if s.registry.Cancel(project) {
		status = "cancelled"
		log.Printf("Cancel requested for project %s", project)
	}
	return &model.DockCancelResponse{Status: status, Project: project}
}

// Status returns the last persisted job snapshot for the project.
func (s *DockService) Status(ctx context.Context, project string) (*model.Job, error) {
	job, err := s.store.GetJob(ctx, project)
	if err != nil {
		return nil, err
	}
	if job == nil {
		return nil, ErrJobNotFound
	}
	return job, nil
}

// Results re-reads the final score table and returns the ranked models. The
// aggregation is a pure re-parse, so polling it twice gives identical output.
func (s *DockService) Results(ctx context.Context, project string) (*model.DockResultsResponse, error) {
	scoreFile := s.layout.ScoreFile(project)
	if _, err := os.Stat(scoreFile); err != nil {
		return nil, ErrResultsNotFound
	}

	rs, skipped, err := fasc.Results(scoreFile, s.layout.PDBGlob(project))
	if err != nil {
		return nil, fmt.Errorf("failed to read score table: %w", err)
	}
	if skipped > 0 {
		log.Printf("Score table for project %s: skipped %d malformed rows", project, skipped)
	}

	return &model.DockResultsResponse{
		Project:   project,
		Best:      rs.Best,
		AllModels: rs.AllModels,
	}, nil
}
