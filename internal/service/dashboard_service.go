package service

import (
	"github.com/renderscope/api/internal/model"
	"github.com/renderscope/api/internal/simulator"
	"github.com/renderscope/api/internal/worker"
	"github.com/renderscope/api/pkg/format"
)

var (
	ErrProjectNotFound  = simulator.ErrProjectNotFound
	ErrCategoryNotFound = simulator.ErrCategoryNotFound
	ErrCameraNotFound   = simulator.ErrCameraNotFound
)

// SnapshotReader exposes the latest published snapshot
type SnapshotReader interface {
	Snapshot() *model.Snapshot
	Stats() worker.PollerStats
}

// DashboardService answers read queries against the latest snapshot
type DashboardService struct {
	source SnapshotReader
}

func NewDashboardService(source SnapshotReader) *DashboardService {
	return &DashboardService{source: source}
}

// ListProjects returns per-project summaries without frame detail.
func (s *DashboardService) ListProjects() *model.ProjectListResponse {
	snap := s.source.Snapshot()

	summaries := make([]model.ProjectSummary, 0, len(snap.Projects))
	for _, p := range snap.Projects {
		categories := make(map[string]model.CategoryTotals, len(p.Categories))
		for _, cat := range p.Categories {
			categories[cat.ID] = cat.Totals()
		}
		summaries = append(summaries, model.ProjectSummary{
			ID:              p.ID,
			Name:            p.Name,
			TotalFrames:     p.TotalFrames,
			CompletedFrames: p.CompletedFrames,
			GlobalProgress:  p.GlobalProgress,
			StartTime:       p.StartTime,
			Deadline:        p.Deadline,
			Status:          p.Status,
			Categories:      categories,
		})
	}

	return &model.ProjectListResponse{
		Tick:      snap.Tick,
		Connected: snap.Connected,
		Projects:  summaries,
	}
}

// GetProject returns the full project tree.
func (s *DashboardService) GetProject(projectID string) (*model.Project, error) {
	project, ok := s.source.Snapshot().FindProject(projectID)
	if !ok {
		return nil, ErrProjectNotFound
	}
	return project, nil
}

// GetCamera resolves a camera inside a project category.
func (s *DashboardService) GetCamera(projectID, categoryID, cameraID string) (*model.Project, *model.Category, *model.Camera, error) {
	project, err := s.GetProject(projectID)
	if err != nil {
		return nil, nil, nil, err
	}
	category, ok := project.FindCategory(categoryID)
	if !ok {
		return nil, nil, nil, ErrCategoryNotFound
	}
	camera, ok := category.FindCamera(cameraID)
	if !ok {
		return nil, nil, nil, ErrCameraNotFound
	}
	return project, category, camera, nil
}

// CameraDetail wraps GetCamera for the API.
func (s *DashboardService) CameraDetail(projectID, categoryID, cameraID string) (*model.CameraDetailResponse, error) {
	project, category, camera, err := s.GetCamera(projectID, categoryID, cameraID)
	if err != nil {
		return nil, err
	}
	return &model.CameraDetailResponse{
		ProjectID:    project.ID,
		CategoryID:   category.ID,
		CategoryName: category.Name,
		Camera:       *camera,
		ETAFormatted: format.Duration(camera.Timing.ETA),
	}, nil
}

// GetStats returns global statistics of the latest snapshot.
func (s *DashboardService) GetStats() *model.StatsResponse {
	snap := s.source.Snapshot()
	return &model.StatsResponse{
		Stats:        snap.Stats,
		GlobalETA:    format.Duration(snap.Stats.GlobalETA),
		Connected:    snap.Connected,
		Tick:         snap.Tick,
		GeneratedAt:  snap.GeneratedAt,
		CompletedPct: simulator.Percentage(snap.Stats.CompletedFrames, snap.Stats.TotalFrames),
	}
}

// Connection reports the connection label and publish counters.
func (s *DashboardService) Connection() *model.ConnectionResponse {
	snap := s.source.Snapshot()
	stats := s.source.Stats()
	return &model.ConnectionResponse{
		Connected:   snap.Connected,
		Tick:        snap.Tick,
		Ticks:       stats.Ticks,
		Published:   stats.Published,
		Dropped:     stats.Dropped,
		Subscribers: stats.Subscribers,
	}
}
