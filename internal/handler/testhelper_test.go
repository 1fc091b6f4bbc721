package handler_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/require"

	"github.com/renderscope/api/internal/auth"
	"github.com/renderscope/api/internal/handler"
	"github.com/renderscope/api/internal/logging"
	"github.com/renderscope/api/internal/middleware"
	"github.com/renderscope/api/internal/model"
	"github.com/renderscope/api/internal/service"
	"github.com/renderscope/api/internal/simulator"
	ws "github.com/renderscope/api/internal/websocket"
	"github.com/renderscope/api/internal/worker"
)

const testJWTSecret = "test-secret-for-handlers"

var testNow = time.Date(2025, 3, 14, 12, 0, 0, 0, time.UTC)

// fakeSource serves a snapshot and applies edits to it immediately.
type fakeSource struct {
	snap *model.Snapshot
}

func (f *fakeSource) Apply(_ context.Context, edit worker.Edit) error {
	next, err := edit(f.snap.Projects, testNow)
	if err != nil {
		return err
	}
	snap := *f.snap
	snap.Projects = next
	snap.Stats = simulator.ComputeStats(next)
	f.snap = &snap
	return nil
}

func (f *fakeSource) Snapshot() *model.Snapshot { return f.snap }

func (f *fakeSource) Stats() worker.PollerStats { return worker.PollerStats{Ticks: f.snap.Tick} }

func (f *fakeSource) Subscribe(string, chan<- *model.Snapshot) error { return nil }

func (f *fakeSource) Unsubscribe(string) error { return nil }

// memoryJobs keeps export jobs in process.
type memoryJobs struct {
	mu      sync.Mutex
	jobs    map[string]model.Job
	results map[string][]byte
}

func (s *memoryJobs) Save(_ context.Context, job *model.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.ID] = *job
	return nil
}

func (s *memoryJobs) Get(_ context.Context, id string) (*model.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return nil, service.ErrJobNotFound
	}
	return &job, nil
}

func (s *memoryJobs) SaveResult(_ context.Context, id string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results[id] = data
	return nil
}

func (s *memoryJobs) Result(_ context.Context, id string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.results[id]
	if !ok {
		return nil, service.ErrJobNotFound
	}
	return data, nil
}

// taskQueue records enqueued tasks instead of sending them to Redis.
type taskQueue struct {
	tasks []*asynq.Task
}

func (q *taskQueue) EnqueueContext(_ context.Context, task *asynq.Task, _ ...asynq.Option) (*asynq.TaskInfo, error) {
	q.tasks = append(q.tasks, task)
	return &asynq.TaskInfo{Type: task.Type()}, nil
}

type testApp struct {
	app    *fiber.App
	issuer *auth.TokenIssuer
	snap   *model.Snapshot
	source *fakeSource
	queue  *taskQueue
	worker *worker.ExportWorker
}

// setupApp builds the same routes as the server around a seeded snapshot.
// The rate limiter has no Redis client and lets everything through.
func setupApp(t *testing.T) *testApp {
	t.Helper()

	projects := simulator.GenerateProjects(simulator.NewRand(42), simulator.DefaultGeneratorParams(), testNow)
	snap := &model.Snapshot{
		Projects:    projects,
		Stats:       simulator.ComputeStats(projects),
		Connected:   true,
		Tick:        7,
		GeneratedAt: testNow,
	}
	source := &fakeSource{snap: snap}

	log := logging.Discard()
	validate := validator.New()
	issuer := auth.NewTokenIssuer(testJWTSecret, time.Hour)

	dashboardService := service.NewDashboardService(source)
	now := func() time.Time { return testNow }
	exportService := service.NewExportService(now, log)
	queue := &taskQueue{}
	jobService := service.NewExportJobService(&memoryJobs{jobs: map[string]model.Job{}, results: map[string][]byte{}}, queue, now, log)
	authService := service.NewAuthService(issuer)
	editorService := service.NewEditorService(source, source, log)

	hub := ws.NewHub(log)

	app := fiber.New(fiber.Config{ErrorHandler: handler.ErrorHandler})
	handler.SetupRoutes(app, handler.Routes{
		Auth:          middleware.NewAuthMiddleware(issuer, log),
		RateLimiter:   middleware.NewRateLimiter(nil, log),
		ExportPerHour: 10000,
		Login:         handler.NewAuthHandler(authService, validate),
		Dashboard:     handler.NewDashboardHandler(dashboardService),
		Editor:        handler.NewEditorHandler(editorService, validate),
		Export:        handler.NewExportHandler(dashboardService, exportService, jobService, validate),
		WebSocket:     handler.NewWebSocketHandler(hub, source),
	})

	return &testApp{
		app:    app,
		issuer: issuer,
		snap:   snap,
		source: source,
		queue:  queue,
		worker: worker.NewExportWorker(exportService, jobService, now, log),
	}
}

func (ta *testApp) token(t *testing.T) string {
	t.Helper()
	token, _, err := ta.issuer.Issue("test-user-123", "test@example.com", "Test User", "viewer")
	require.NoError(t, err)
	return token
}

func doRequest(t *testing.T, app *fiber.App, method, path, body string, headers map[string]string) *http.Response {
	t.Helper()

	var bodyReader io.Reader
	if body != "" {
		bodyReader = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, path, bodyReader)
	require.NoError(t, err)

	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func (ta *testApp) authRequest(t *testing.T, method, path, body string) *http.Response {
	t.Helper()
	return doRequest(t, ta.app, method, path, body, map[string]string{
		"Authorization": "Bearer " + ta.token(t),
	})
}

func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(b)
}

func parseJSON(t *testing.T, resp *http.Response, out interface{}) {
	t.Helper()
	body := readBody(t, resp)
	require.NoError(t, json.Unmarshal([]byte(body), out), "body: %s", body)
}

func errorCode(t *testing.T, resp *http.Response) string {
	t.Helper()
	var env struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	parseJSON(t, resp, &env)
	return env.Error.Code
}
