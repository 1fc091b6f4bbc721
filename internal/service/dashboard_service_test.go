package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/renderscope/api/internal/model"
	"github.com/renderscope/api/internal/simulator"
	"github.com/renderscope/api/internal/worker"
)

var testNow = time.Date(2025, 3, 14, 12, 0, 0, 0, time.UTC)

type staticReader struct {
	snap  *model.Snapshot
	stats worker.PollerStats
}

func (r *staticReader) Snapshot() *model.Snapshot { return r.snap }

func (r *staticReader) Stats() worker.PollerStats { return r.stats }

func newReader() *staticReader {
	projects := simulator.GenerateProjects(simulator.NewRand(7), simulator.DefaultGeneratorParams(), testNow)
	return &staticReader{
		snap: &model.Snapshot{
			Projects:    projects,
			Stats:       simulator.ComputeStats(projects),
			Connected:   true,
			Tick:        3,
			GeneratedAt: testNow,
		},
		stats: worker.PollerStats{Ticks: 3, Published: 9, Dropped: 1, Subscribers: 2},
	}
}

func TestListProjects_Summaries(t *testing.T) {
	reader := newReader()
	svc := NewDashboardService(reader)

	list := svc.ListProjects()
	require.Len(t, list.Projects, len(reader.snap.Projects))

	for i, summary := range list.Projects {
		p := reader.snap.Projects[i]
		assert.Equal(t, p.ID, summary.ID)
		assert.Equal(t, p.Status, summary.Status)

		sum := 0
		for _, cat := range p.Categories {
			totals, ok := summary.Categories[cat.ID]
			require.True(t, ok, cat.ID)
			sum += totals.TotalFrames
		}
		assert.Equal(t, p.TotalFrames, sum)
	}
}

func TestGetCamera_Lookup(t *testing.T) {
	reader := newReader()
	svc := NewDashboardService(reader)
	project := reader.snap.Projects[0]
	category := project.Categories[len(project.Categories)-1]
	camera := category.Cameras[len(category.Cameras)-1]

	p, cat, cam, err := svc.GetCamera(project.ID, category.ID, camera.ID)
	require.NoError(t, err)
	assert.Equal(t, project.ID, p.ID)
	assert.Equal(t, category.ID, cat.ID)
	assert.Equal(t, camera.ID, cam.ID)

	_, _, _, err = svc.GetCamera("proj_404", category.ID, camera.ID)
	assert.ErrorIs(t, err, ErrProjectNotFound)

	_, _, _, err = svc.GetCamera(project.ID, "cat_none", camera.ID)
	assert.ErrorIs(t, err, ErrCategoryNotFound)

	_, _, _, err = svc.GetCamera(project.ID, category.ID, "cam_99")
	assert.ErrorIs(t, err, ErrCameraNotFound)
}

func TestGetStats_Formatting(t *testing.T) {
	reader := newReader()
	reader.snap.Stats = model.ProjectStats{
		TotalFrames:     400,
		CompletedFrames: 100,
		GlobalETA:       3*time.Hour + 7*time.Minute,
	}
	svc := NewDashboardService(reader)

	stats := svc.GetStats()
	assert.Equal(t, "03:07", stats.GlobalETA)
	assert.Equal(t, 25.0, stats.CompletedPct)
	assert.Equal(t, uint64(3), stats.Tick)
}

func TestConnection_Counters(t *testing.T) {
	reader := newReader()
	reader.snap.Connected = false
	svc := NewDashboardService(reader)

	conn := svc.Connection()
	assert.False(t, conn.Connected)
	assert.Equal(t, uint64(9), conn.Published)
	assert.Equal(t, uint64(1), conn.Dropped)
	assert.Equal(t, 2, conn.Subscribers)
}
