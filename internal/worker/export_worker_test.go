package worker_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/klauspost/compress/zip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/renderscope/api/internal/logging"
	"github.com/renderscope/api/internal/model"
	"github.com/renderscope/api/internal/service"
	"github.com/renderscope/api/internal/simulator"
	"github.com/renderscope/api/internal/worker"
)

var exportNow = time.Date(2025, 3, 14, 12, 0, 0, 0, time.UTC)

type memoryStore struct {
	mu      sync.Mutex
	jobs    map[string]model.Job
	results map[string][]byte
}

func newMemoryStore() *memoryStore {
	return &memoryStore{jobs: map[string]model.Job{}, results: map[string][]byte{}}
}

func (s *memoryStore) Save(_ context.Context, job *model.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.ID] = *job
	return nil
}

func (s *memoryStore) Get(_ context.Context, id string) (*model.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return nil, service.ErrJobNotFound
	}
	return &job, nil
}

func (s *memoryStore) SaveResult(_ context.Context, id string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results[id] = data
	return nil
}

func (s *memoryStore) Result(_ context.Context, id string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.results[id]
	if !ok {
		return nil, service.ErrJobNotFound
	}
	return data, nil
}

type captureQueue struct {
	tasks []*asynq.Task
}

func (q *captureQueue) EnqueueContext(_ context.Context, task *asynq.Task, _ ...asynq.Option) (*asynq.TaskInfo, error) {
	q.tasks = append(q.tasks, task)
	return &asynq.TaskInfo{Queue: worker.ExportQueue, Type: task.Type()}, nil
}

func exportProject() *model.Project {
	projects := simulator.GenerateProjects(simulator.NewRand(11), simulator.DefaultGeneratorParams(), exportNow)
	return &projects[0]
}

func setupExport(t *testing.T) (*service.ExportJobService, *worker.ExportWorker, *captureQueue) {
	t.Helper()
	now := func() time.Time { return exportNow }
	queue := &captureQueue{}
	jobs := service.NewExportJobService(newMemoryStore(), queue, now, logging.Discard())
	w := worker.NewExportWorker(service.NewExportService(now, logging.Discard()), jobs, now, logging.Discard())
	return jobs, w, queue
}

func TestExportWorker_BuildsBundle(t *testing.T) {
	jobs, w, queue := setupExport(t)
	project := exportProject()
	ctx := context.Background()

	started, err := jobs.StartExportAll(ctx, project)
	require.NoError(t, err)
	require.Len(t, queue.tasks, 1)
	assert.Equal(t, worker.TaskTypeExportAll, queue.tasks[0].Type())

	_, err = jobs.Download(ctx, started.JobID)
	assert.ErrorIs(t, err, service.ErrJobNotReady)

	require.NoError(t, w.ProcessTask(ctx, queue.tasks[0]))

	job, err := jobs.GetJob(ctx, started.JobID)
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusSucceeded, job.Status)
	assert.Equal(t, 100, job.Progress)
	require.NotNil(t, job.StartedAt)
	require.NotNil(t, job.CompletedAt)

	file, err := jobs.Download(ctx, started.JobID)
	require.NoError(t, err)
	assert.Equal(t, project.Name+"_all_2025-03-14.zip", file.FileName)
	assert.Equal(t, service.ContentTypeZip, file.ContentType)

	zr, err := zip.NewReader(bytes.NewReader(file.Data), int64(len(file.Data)))
	require.NoError(t, err)

	entries := make(map[string][]byte)
	for _, f := range zr.File {
		rc, err := f.Open()
		require.NoError(t, err)
		data, err := io.ReadAll(rc)
		rc.Close()
		require.NoError(t, err)
		entries[f.Name] = data
	}

	cameras := 0
	for _, cat := range project.Categories {
		for _, cam := range cat.Cameras {
			cameras++
			name := string(cat.Type) + "/" + cam.Name + "_frames_2025-03-14.csv"
			data, ok := entries[name]
			require.True(t, ok, name)
			assert.Equal(t, len(cam.Frames)+1, bytes.Count(data, []byte("\n")), name)
		}
	}
	assert.Len(t, entries, cameras+1)

	var decoded model.Project
	require.NoError(t, json.Unmarshal(entries[project.Name+"_export_2025-03-14.json"], &decoded))
	assert.Equal(t, project.ID, decoded.ID)
	assert.Equal(t, project.TotalFrames, decoded.TotalFrames)
}

func TestExportWorker_InvalidPayloadSkipsRetry(t *testing.T) {
	_, w, _ := setupExport(t)

	err := w.ProcessTask(context.Background(), asynq.NewTask(worker.TaskTypeExportAll, []byte("not json")))
	assert.True(t, errors.Is(err, asynq.SkipRetry))
}

func TestExportWorker_BadProjectFailsJob(t *testing.T) {
	jobs, w, queue := setupExport(t)
	ctx := context.Background()

	started, err := jobs.StartExportAll(ctx, exportProject())
	require.NoError(t, err)

	payload, err := json.Marshal(map[string]interface{}{
		"jobId":   started.JobID,
		"payload": "not a project",
	})
	require.NoError(t, err)

	err = w.ProcessTask(ctx, asynq.NewTask(worker.TaskTypeExportAll, payload))
	assert.ErrorIs(t, err, asynq.SkipRetry)
	assert.Len(t, queue.tasks, 1)

	job, err := jobs.GetJob(ctx, started.JobID)
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusFailed, job.Status)
	require.NotNil(t, job.Error)
	assert.Equal(t, "Invalid payload", *job.Error)
}

func TestExportWorker_CanceledContext(t *testing.T) {
	jobs, w, queue := setupExport(t)

	started, err := jobs.StartExportAll(context.Background(), exportProject())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = w.ProcessTask(ctx, queue.tasks[0])
	assert.ErrorIs(t, err, context.Canceled)

	job, err := jobs.GetJob(context.Background(), started.JobID)
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusFailed, job.Status)
}

func TestExportJobService_UnknownJob(t *testing.T) {
	jobs, _, _ := setupExport(t)

	_, err := jobs.GetJob(context.Background(), "missing")
	assert.ErrorIs(t, err, service.ErrJobNotFound)
	_, err = jobs.Download(context.Background(), "missing")
	assert.ErrorIs(t, err, service.ErrJobNotFound)
}
