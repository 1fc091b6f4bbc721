package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/renderscope/api/internal/logging"
	"github.com/renderscope/api/internal/model"
	"github.com/renderscope/api/internal/worker"
)

var ErrJobNotReady = errors.New("job not completed")

// TaskEnqueuer submits tasks to the asynq queue
type TaskEnqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// ExportJobService queues full project exports and tracks their jobs
type ExportJobService struct {
	store    JobStore
	enqueuer TaskEnqueuer
	now      func() time.Time
	logger   *slog.Logger
}

func NewExportJobService(store JobStore, enqueuer TaskEnqueuer, now func() time.Time, logger *slog.Logger) *ExportJobService {
	if now == nil {
		now = time.Now
	}
	return &ExportJobService{
		store:    store,
		enqueuer: enqueuer,
		now:      now,
		logger:   logging.WithComponent(logger, "export-jobs"),
	}
}

// StartExportAll queues an export of the project as it is now.
func (s *ExportJobService) StartExportAll(ctx context.Context, project *model.Project) (*model.ExportAllResponse, error) {
	jobID := uuid.New().String()
	now := s.now()

	job := &model.Job{
		ID:        jobID,
		Type:      model.JobTypeExportAll,
		ProjectID: project.ID,
		Status:    model.JobStatusQueued,
		CreatedAt: now,
	}

	if err := s.store.Save(ctx, job); err != nil {
		return nil, fmt.Errorf("failed to save job: %w", err)
	}

	task, err := worker.NewExportAllTask(jobID, project)
	if err != nil {
		return nil, fmt.Errorf("failed to create task: %w", err)
	}

	_, err = s.enqueuer.EnqueueContext(ctx, task,
		asynq.Queue(worker.ExportQueue),
		asynq.MaxRetry(3),
		asynq.Retention(JobTTL),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to enqueue task: %w", err)
	}

	logging.WithProjectID(s.logger, project.ID).Info("export queued", "job_id", jobID)

	return &model.ExportAllResponse{
		JobID:       jobID,
		ProjectID:   project.ID,
		Status:      model.JobStatusQueued,
		StatusURL:   "/api/jobs/" + jobID,
		DownloadURL: "/api/jobs/" + jobID + "/download",
		CreatedAt:   now,
	}, nil
}

// GetJob returns the current state of a job.
func (s *ExportJobService) GetJob(ctx context.Context, jobID string) (*model.Job, error) {
	return s.store.Get(ctx, jobID)
}

// Download returns the archive of a succeeded job.
func (s *ExportJobService) Download(ctx context.Context, jobID string) (*model.ExportFile, error) {
	job, err := s.store.Get(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.Status != model.JobStatusSucceeded {
		return nil, ErrJobNotReady
	}

	data, err := s.store.Result(ctx, jobID)
	if err != nil {
		return nil, err
	}

	return &model.ExportFile{
		FileName:    job.FileName,
		ContentType: ContentTypeZip,
		Data:        data,
	}, nil
}

// UpdateJobProgress updates job progress (called by worker)
func (s *ExportJobService) UpdateJobProgress(ctx context.Context, jobID string, progress int, step string) error {
	job, err := s.store.Get(ctx, jobID)
	if err != nil {
		return err
	}

	job.Progress = progress
	job.CurrentStep = step

	if job.Status == model.JobStatusQueued {
		job.Status = model.JobStatusRunning
		now := s.now()
		job.StartedAt = &now
	}

	return s.store.Save(ctx, job)
}

// CompleteJob stores the result and marks the job succeeded (called by worker)
func (s *ExportJobService) CompleteJob(ctx context.Context, jobID string, file *model.ExportFile) error {
	job, err := s.store.Get(ctx, jobID)
	if err != nil {
		return err
	}

	if err := s.store.SaveResult(ctx, jobID, file.Data); err != nil {
		return fmt.Errorf("failed to save result: %w", err)
	}

	job.Status = model.JobStatusSucceeded
	job.Progress = 100
	job.CurrentStep = ""
	job.FileName = file.FileName
	now := s.now()
	job.CompletedAt = &now

	return s.store.Save(ctx, job)
}

// FailJob marks job as failed (called by worker)
func (s *ExportJobService) FailJob(ctx context.Context, jobID string, errMsg string) error {
	job, err := s.store.Get(ctx, jobID)
	if err != nil {
		return err
	}

	job.Status = model.JobStatusFailed
	job.Error = &errMsg
	now := s.now()
	job.CompletedAt = &now

	return s.store.Save(ctx, job)
}
