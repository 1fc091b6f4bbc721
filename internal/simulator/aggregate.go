package simulator

import (
	"math"
	"time"

	"github.com/renderscope/api/internal/model"
)

// NominalFrameTime is the expected render time of one frame.
const NominalFrameTime = 2 * time.Minute

// Percentage returns 100*done/total rounded to two decimals, 0 when total is 0.
// The result only reaches 100 when done == total.
func Percentage(done, total int) float64 {
	if total <= 0 {
		return 0
	}
	if done >= total {
		return 100
	}
	pct := math.Round(float64(done)/float64(total)*100*100) / 100
	if pct >= 100 {
		pct = 99.99
	}
	return pct
}

// RecomputeCamera derives progress, timing, errors and status from the camera's frames.
// StartTime is kept as is; Frames is not modified.
func RecomputeCamera(cam model.Camera, now time.Time) model.Camera {
	total := cam.FrameRange.Len()

	completed := 0
	corrupt := []int{}
	missing := []int{}
	for _, f := range cam.Frames {
		switch f.Status {
		case model.FrameStatusComplete:
			completed++
		case model.FrameStatusCorrupt:
			corrupt = append(corrupt, f.Number)
		case model.FrameStatusMissing:
			missing = append(missing, f.Number)
		}
	}

	pct := Percentage(completed, total)

	elapsed := now.Sub(cam.Timing.StartTime)
	expected := time.Duration(total) * NominalFrameTime
	eta := expected
	if pct > 0 {
		eta = time.Duration(float64(elapsed) / pct * (100 - pct))
	}

	cam.Progress = model.CameraProgress{
		Completed:  completed,
		Total:      total,
		Percentage: pct,
	}
	cam.Timing = model.CameraTiming{
		StartTime:     cam.Timing.StartTime,
		Elapsed:       elapsed,
		ETA:           eta,
		ExpectedTotal: expected,
	}
	cam.Errors = model.CameraErrors{Corrupt: corrupt, Missing: missing}
	cam.Status = cameraStatus(pct, cam.Errors)

	return cam
}

func cameraStatus(pct float64, errs model.CameraErrors) model.CameraStatus {
	switch {
	case pct >= 100:
		return model.CameraStatusComplete
	case errs.Count() > 0:
		return model.CameraStatusError
	default:
		return model.CameraStatusRendering
	}
}

// RecomputeProject rolls camera progress up into project totals and status.
// A project that completes after its deadline is still complete.
func RecomputeProject(p model.Project, now time.Time) model.Project {
	total, completed := 0, 0
	for _, cat := range p.Categories {
		t := cat.Totals()
		total += t.TotalFrames
		completed += t.CompletedFrames
	}

	p.TotalFrames = total
	p.CompletedFrames = completed
	p.GlobalProgress = Percentage(completed, total)

	switch {
	case p.GlobalProgress >= 100:
		p.Status = model.ProjectStatusComplete
	case p.GlobalProgress < 50 && now.After(p.Deadline):
		p.Status = model.ProjectStatusDelayed
	default:
		p.Status = model.ProjectStatusActive
	}

	return p
}

// ComputeStats aggregates counters over all projects.
//
// GlobalETA is the largest, over active projects, of the mean across categories of the
// longest ETA among that category's rendering cameras.
func ComputeStats(projects []model.Project) model.ProjectStats {
	stats := model.ProjectStats{TotalProjects: len(projects)}

	for _, p := range projects {
		stats.TotalFrames += p.TotalFrames
		stats.CompletedFrames += p.CompletedFrames
		for _, cat := range p.Categories {
			stats.ErrorFrames += cat.Totals().ErrorFrames
		}

		if p.Status != model.ProjectStatusActive {
			continue
		}
		stats.ActiveProjects++

		if eta := projectETA(p); eta > stats.GlobalETA {
			stats.GlobalETA = eta
		}
	}

	return stats
}

func projectETA(p model.Project) time.Duration {
	var sum time.Duration
	for _, cat := range p.Categories {
		var longest time.Duration
		for _, cam := range cat.Cameras {
			if cam.Status == model.CameraStatusRendering && cam.Timing.ETA > longest {
				longest = cam.Timing.ETA
			}
		}
		sum += longest
	}
	return sum / time.Duration(max(len(p.Categories), 1))
}
