package simulator

import (
	"fmt"
	"time"

	"github.com/renderscope/api/internal/model"
)

// Per-tick probabilities
const (
	cameraActiveChance  = 0.3
	frameResolveChance  = 0.4
	frameCompleteChance = 0.95
)

// Tick advances every project by one simulation step and returns a new tree.
//
// Each camera that is not complete is active with probability 0.3. In an active camera
// every rendering frame resolves with probability 0.4, to complete (95%) or corrupt.
// Only cameras whose frames changed are re-aggregated; every project is rolled up again.
// The input is never modified.
func Tick(rng Rand, projects []model.Project, now time.Time) []model.Project {
	next := make([]model.Project, len(projects))
	for i, p := range projects {
		next[i] = tickProject(rng, p, now)
	}
	return next
}

func tickProject(rng Rand, p model.Project, now time.Time) model.Project {
	categories := make([]model.Category, len(p.Categories))
	for i, cat := range p.Categories {
		cameras := make([]model.Camera, len(cat.Cameras))
		for j, cam := range cat.Cameras {
			cameras[j] = tickCamera(rng, cam, now)
		}
		cat.Cameras = cameras
		categories[i] = cat
	}
	p.Categories = categories
	return RecomputeProject(p, now)
}

func tickCamera(rng Rand, cam model.Camera, now time.Time) model.Camera {
	if cam.Status == model.CameraStatusComplete {
		return cam
	}
	if rng.Float64() >= cameraActiveChance {
		return cam
	}

	frames := make([]model.Frame, len(cam.Frames))
	copy(frames, cam.Frames)

	for i := range frames {
		if frames[i].Status != model.FrameStatusRendering {
			continue
		}
		if rng.Float64() >= frameResolveChance {
			continue
		}

		ts := now
		frames[i].Timestamp = &ts
		frames[i].Path = CameraFramePath(cam, frames[i].Number)
		if rng.Float64() < frameCompleteChance {
			frames[i].Status = model.FrameStatusComplete
		} else {
			frames[i].Status = model.FrameStatusCorrupt
		}
	}

	cam.Frames = frames
	return RecomputeCamera(cam, now)
}

// Diff reports camera and project status transitions between two trees.
// Only transitions into complete/error (cameras) and complete/delayed (projects) are reported.
func Diff(prev, next []model.Project, now time.Time) []model.Event {
	type cameraKey struct{ project, category, camera string }

	cameraStatus := make(map[cameraKey]model.CameraStatus)
	projectStatus := make(map[string]model.ProjectStatus, len(prev))
	for _, p := range prev {
		projectStatus[p.ID] = p.Status
		for _, cat := range p.Categories {
			for _, cam := range cat.Cameras {
				cameraStatus[cameraKey{p.ID, cat.ID, cam.ID}] = cam.Status
			}
		}
	}

	var events []model.Event
	for _, p := range next {
		for _, cat := range p.Categories {
			for _, cam := range cat.Cameras {
				before, ok := cameraStatus[cameraKey{p.ID, cat.ID, cam.ID}]
				if !ok || before == cam.Status {
					continue
				}

				var evType model.EventType
				switch cam.Status {
				case model.CameraStatusComplete:
					evType = model.EventCameraComplete
				case model.CameraStatusError:
					evType = model.EventCameraError
				default:
					continue
				}

				events = append(events, model.Event{
					Type:       evType,
					ProjectID:  p.ID,
					CategoryID: cat.ID,
					CameraID:   cam.ID,
					Message:    fmt.Sprintf("%s / %s / %s is now %s", p.Name, cat.Name, cam.Name, cam.Status),
					Timestamp:  now,
				})
			}
		}

		before, ok := projectStatus[p.ID]
		if !ok || before == p.Status {
			continue
		}
		switch p.Status {
		case model.ProjectStatusComplete:
			events = append(events, model.Event{
				Type:      model.EventProjectComplete,
				ProjectID: p.ID,
				Message:   fmt.Sprintf("%s finished rendering", p.Name),
				Timestamp: now,
			})
		case model.ProjectStatusDelayed:
			events = append(events, model.Event{
				Type:      model.EventProjectDelayed,
				ProjectID: p.ID,
				Message:   fmt.Sprintf("%s is behind its deadline", p.Name),
				Timestamp: now,
			})
		}
	}

	return events
}
