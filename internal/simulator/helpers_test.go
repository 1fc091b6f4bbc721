package simulator

import (
	"time"

	"github.com/renderscope/api/internal/model"
)

var testNow = time.Date(2025, 3, 14, 12, 0, 0, 0, time.UTC)

// fixedRand always returns the same value.
type fixedRand struct{ v float64 }

func (r fixedRand) Float64() float64 { return r.v }
func (r fixedRand) IntN(n int) int   { return int(r.v * float64(n)) }

// seqRand replays values in order and counts draws.
type seqRand struct {
	values []float64
	draws  int
}

func (r *seqRand) Float64() float64 {
	v := r.values[r.draws%len(r.values)]
	r.draws++
	return v
}

func (r *seqRand) IntN(n int) int { return int(r.Float64() * float64(n)) }

// cameraWith builds an aggregated camera whose frames start at 1 with the given statuses.
func cameraWith(statuses ...model.FrameStatus) model.Camera {
	frames := make([]model.Frame, len(statuses))
	for i, s := range statuses {
		frames[i] = model.Frame{Number: i + 1, Status: s}
	}
	cam := model.Camera{
		ID:         "cam_01",
		Name:       "Camera_01",
		FrameRange: model.FrameRange{Start: 1, End: len(statuses)},
		Frames:     frames,
		Timing:     model.CameraTiming{StartTime: testNow.Add(-time.Hour)},
	}
	return RecomputeCamera(cam, testNow)
}

func projectWith(cams ...model.Camera) model.Project {
	p := model.Project{
		ID:   "proj_1",
		Name: "Test_Project",
		Categories: []model.Category{{
			ID:      "cat_interior",
			Name:    "Interior",
			Type:    model.CategoryInterior,
			Cameras: cams,
		}},
		StartTime: testNow.Add(-time.Hour),
		Deadline:  testNow.Add(24 * time.Hour),
	}
	return RecomputeProject(p, testNow)
}
