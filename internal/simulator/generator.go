package simulator

import (
	"fmt"
	"time"

	"github.com/renderscope/api/internal/model"
)

// Frame status thresholds for initial generation
const (
	corruptThreshold   = 0.05
	missingThreshold   = 0.08
	renderingThreshold = 0.15
)

// ProjectNames are assigned to generated projects in order.
var ProjectNames = []string{
	"Cyberpunk_Cityscape",
	"Forest_Environment",
	"Sci_Fi_Laboratory",
	"Underwater_Scene",
	"Mountain_Vista",
}

const (
	firstFrame       = 1
	completedWindow  = time.Hour
	cameraStartSpan  = 24 * time.Hour
	projectStartSpan = 48 * time.Hour
	projectDuration  = 7 * 24 * time.Hour
)

// GeneratorParams bounds the shape of a generated project tree
type GeneratorParams struct {
	Projects   IntRange
	Categories IntRange
	Cameras    IntRange
	Frames     IntRange
}

// DefaultGeneratorParams returns 2-4 projects of 2-4 categories of 2-5 cameras,
// each camera rendering 100-599 frames.
func DefaultGeneratorParams() GeneratorParams {
	return GeneratorParams{
		Projects:   IntRange{Min: 2, Max: 4},
		Categories: IntRange{Min: 2, Max: 4},
		Cameras:    IntRange{Min: 2, Max: 5},
		Frames:     IntRange{Min: 100, Max: 599},
	}
}

// FramePath returns the synthetic output path of a rendered frame.
func FramePath(number int) string {
	return fmt.Sprintf("/render/frame_%04d.exr", number)
}

// GenerateFrames draws a status for every frame in [start, end].
// An inverted range yields an empty set.
func GenerateFrames(rng Rand, start, end int, now time.Time) []model.Frame {
	n := model.FrameRange{Start: start, End: end}.Len()
	frames := make([]model.Frame, 0, n)

	for number := start; number <= end; number++ {
		frame := model.Frame{Number: number, Status: model.FrameStatusComplete}

		r := rng.Float64()
		switch {
		case r < corruptThreshold:
			frame.Status = model.FrameStatusCorrupt
		case r < missingThreshold:
			frame.Status = model.FrameStatusMissing
		case r < renderingThreshold:
			frame.Status = model.FrameStatusRendering
		}

		if frame.Status == model.FrameStatusComplete {
			ts := now.Add(-jitter(rng, completedWindow))
			frame.Path = FramePath(number)
			frame.Timestamp = &ts
		}

		frames = append(frames, frame)
	}

	return frames
}

// BuildCamera generates the frames of a camera over the given range and aggregates them.
func BuildCamera(rng Rand, index int, frameRange model.FrameRange, now time.Time) model.Camera {
	frames := GenerateFrames(rng, frameRange.Start, frameRange.End, now)

	cam := model.Camera{
		ID:         fmt.Sprintf("cam_%02d", index+1),
		Name:       fmt.Sprintf("Camera_%02d", index+1),
		FrameRange: frameRange,
		Frames:     frames,
		Timing: model.CameraTiming{
			StartTime: now.Add(-jitter(rng, cameraStartSpan)),
		},
	}

	return RecomputeCamera(cam, now)
}

// NewCamera draws a frame range from frames and builds the camera.
func NewCamera(rng Rand, index int, frames IntRange, now time.Time) model.Camera {
	end := firstFrame - 1 + frames.Pick(rng)
	return BuildCamera(rng, index, model.FrameRange{Start: firstFrame, End: end}, now)
}

// NewCategory builds a category of the given type with cameraCount cameras.
func NewCategory(rng Rand, categoryType model.CategoryType, cameraCount int, frames IntRange, now time.Time) model.Category {
	cameras := make([]model.Camera, 0, cameraCount)
	for i := 0; i < cameraCount; i++ {
		cameras = append(cameras, NewCamera(rng, i, frames, now))
	}

	return model.Category{
		ID:      "cat_" + string(categoryType),
		Name:    categoryType.DisplayName(),
		Type:    categoryType,
		Cameras: cameras,
	}
}

// GenerateProjects builds the initial project tree.
func GenerateProjects(rng Rand, params GeneratorParams, now time.Time) []model.Project {
	count := min(params.Projects.Pick(rng), len(ProjectNames))
	projects := make([]model.Project, 0, count)

	for i := 0; i < count; i++ {
		categoryCount := min(params.Categories.Pick(rng), len(model.CategoryTypes))
		categories := make([]model.Category, 0, categoryCount)
		for _, categoryType := range model.CategoryTypes[:categoryCount] {
			cameraCount := params.Cameras.Pick(rng)
			categories = append(categories, NewCategory(rng, categoryType, cameraCount, params.Frames, now))
		}

		start := now.Add(-jitter(rng, projectStartSpan))
		project := model.Project{
			ID:         fmt.Sprintf("proj_%d", i+1),
			Name:       ProjectNames[i],
			Categories: categories,
			StartTime:  start,
			Deadline:   start.Add(projectDuration),
		}

		projects = append(projects, RecomputeProject(project, now))
	}

	return projects
}

// jitter returns a uniform duration in [0, span).
func jitter(rng Rand, span time.Duration) time.Duration {
	return time.Duration(rng.Float64() * float64(span))
}
