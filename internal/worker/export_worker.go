package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"path"
	"time"

	"github.com/hibiken/asynq"
	"github.com/klauspost/compress/zip"

	"github.com/renderscope/api/internal/logging"
	"github.com/renderscope/api/internal/model"
)

const (
	TaskTypeExportAll = "export:all"
	ExportQueue       = "export"
)

const contentTypeZip = "application/zip"

// ProjectExporter renders the files bundled by a full export
type ProjectExporter interface {
	ProjectJSON(project *model.Project) (*model.ExportFile, error)
	CameraCSV(project *model.Project, category *model.Category, camera *model.Camera) (*model.ExportFile, error)
}

// JobTracker records the progress of background jobs
type JobTracker interface {
	UpdateJobProgress(ctx context.Context, jobID string, progress int, step string) error
	CompleteJob(ctx context.Context, jobID string, file *model.ExportFile) error
	FailJob(ctx context.Context, jobID string, errMsg string) error
}

type exportTaskPayload struct {
	JobID   string          `json:"jobId"`
	Payload json.RawMessage `json:"payload"`
}

// NewExportAllTask wraps a project snapshot into an export task.
func NewExportAllTask(jobID string, project *model.Project) (*asynq.Task, error) {
	payload, err := json.Marshal(project)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal project: %w", err)
	}
	data, err := json.Marshal(exportTaskPayload{JobID: jobID, Payload: payload})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeExportAll, data), nil
}

// ExportWorker builds full project exports: the project JSON plus one frame CSV per
// camera, zipped.
type ExportWorker struct {
	exporter ProjectExporter
	jobs     JobTracker
	now      func() time.Time
	logger   *slog.Logger
}

// NewExportWorker creates a new export worker
func NewExportWorker(exporter ProjectExporter, jobs JobTracker, now func() time.Time, logger *slog.Logger) *ExportWorker {
	if now == nil {
		now = time.Now
	}
	return &ExportWorker{
		exporter: exporter,
		jobs:     jobs,
		now:      now,
		logger:   logging.WithComponent(logger, "export-worker"),
	}
}

// ProcessTask handles export task processing
func (w *ExportWorker) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var taskPayload exportTaskPayload
	if err := json.Unmarshal(t.Payload(), &taskPayload); err != nil {
		return fmt.Errorf("failed to unmarshal task payload: %v: %w", err, asynq.SkipRetry)
	}

	jobID := taskPayload.JobID
	log := w.logger.With("job_id", jobID)

	var project model.Project
	if err := json.Unmarshal(taskPayload.Payload, &project); err != nil {
		w.failJob(ctx, jobID, "Invalid payload")
		return fmt.Errorf("failed to unmarshal project: %v: %w", err, asynq.SkipRetry)
	}
	log = logging.WithProjectID(log, project.ID)
	log.Info("export started")

	file, err := w.buildBundle(ctx, jobID, &project)
	if err != nil {
		if w.finalAttempt(ctx) {
			w.failJob(ctx, jobID, err.Error())
		}
		return err
	}

	if err := w.jobs.CompleteJob(ctx, jobID, file); err != nil {
		w.failJob(ctx, jobID, "Failed to save result")
		return err
	}

	log.Info("export completed", "file", file.FileName, "size", len(file.Data))
	return nil
}

func (w *ExportWorker) buildBundle(ctx context.Context, jobID string, project *model.Project) (*model.ExportFile, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	w.updateProgress(ctx, jobID, 5, "Writing project data...")
	projectFile, err := w.exporter.ProjectJSON(project)
	if err != nil {
		return nil, err
	}
	if err := w.addFile(zw, projectFile.FileName, projectFile.Data); err != nil {
		return nil, err
	}

	cameras := 0
	for _, cat := range project.Categories {
		cameras += len(cat.Cameras)
	}

	written := 0
	for ci := range project.Categories {
		category := &project.Categories[ci]
		for ki := range category.Cameras {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			default:
			}

			camera := &category.Cameras[ki]
			file, err := w.exporter.CameraCSV(project, category, camera)
			if err != nil {
				return nil, err
			}
			// camera names repeat across categories
			if err := w.addFile(zw, path.Join(string(category.Type), file.FileName), file.Data); err != nil {
				return nil, err
			}

			written++
			w.updateProgress(ctx, jobID, 10+80*written/cameras,
				fmt.Sprintf("Exported frames of %s / %s", category.Name, camera.Name))
		}
	}

	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("failed to close archive: %w", err)
	}

	return &model.ExportFile{
		FileName:    fmt.Sprintf("%s_all_%s.zip", project.Name, w.now().UTC().Format(time.DateOnly)),
		ContentType: contentTypeZip,
		Data:        buf.Bytes(),
	}, nil
}

func (w *ExportWorker) addFile(zw *zip.Writer, name string, data []byte) error {
	f, err := zw.CreateHeader(&zip.FileHeader{
		Name:     name,
		Method:   zip.Deflate,
		Modified: w.now(),
	})
	if err != nil {
		return fmt.Errorf("failed to add %s: %w", name, err)
	}
	if _, err := f.Write(data); err != nil {
		return fmt.Errorf("failed to write %s: %w", name, err)
	}
	return nil
}

// finalAttempt reports whether asynq will not retry the task after this run.
func (w *ExportWorker) finalAttempt(ctx context.Context) bool {
	retried, ok := asynq.GetRetryCount(ctx)
	if !ok {
		return true
	}
	maxRetry, _ := asynq.GetMaxRetry(ctx)
	return retried >= maxRetry
}

func (w *ExportWorker) updateProgress(ctx context.Context, jobID string, progress int, step string) {
	if err := w.jobs.UpdateJobProgress(ctx, jobID, progress, step); err != nil {
		w.logger.Warn("failed to update job progress", "job_id", jobID, "error", err)
	}
}

func (w *ExportWorker) failJob(ctx context.Context, jobID string, errMsg string) {
	if err := w.jobs.FailJob(ctx, jobID, errMsg); err != nil {
		w.logger.Error("failed to mark job as failed", "job_id", jobID, "error", err)
	}
}
