package simulator

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/renderscope/api/internal/model"
)

func TestGenerateFrames_Thresholds(t *testing.T) {
	// one draw per frame, plus one timestamp draw after a complete frame
	rng := &seqRand{values: []float64{0.01, 0.06, 0.10, 0.90, 0.5}}

	frames := GenerateFrames(rng, 1, 4, testNow)
	require.Len(t, frames, 4)

	assert.Equal(t, model.FrameStatusCorrupt, frames[0].Status)
	assert.Equal(t, model.FrameStatusMissing, frames[1].Status)
	assert.Equal(t, model.FrameStatusRendering, frames[2].Status)
	assert.Equal(t, model.FrameStatusComplete, frames[3].Status)

	for _, f := range frames[:3] {
		assert.Empty(t, f.Path)
		assert.Nil(t, f.Timestamp)
	}

	assert.Equal(t, "/render/frame_0004.exr", frames[3].Path)
	require.NotNil(t, frames[3].Timestamp)
	assert.Equal(t, testNow.Add(-30*time.Minute), *frames[3].Timestamp)
	assert.Equal(t, 5, rng.draws)
}

func TestGenerateFrames_Count(t *testing.T) {
	rng := NewRand(42)
	for _, tc := range []struct{ start, end, want int }{
		{1, 1, 1},
		{1, 100, 100},
		{37, 412, 376},
		{5, 4, 0},
	} {
		frames := GenerateFrames(rng, tc.start, tc.end, testNow)
		assert.Len(t, frames, tc.want)
		for i, f := range frames {
			assert.Equal(t, tc.start+i, f.Number)
		}
	}
}

func TestGenerateFrames_CompleteTimestampWithinLastHour(t *testing.T) {
	frames := GenerateFrames(NewRand(7), 1, 500, testNow)
	for _, f := range frames {
		if f.Status != model.FrameStatusComplete {
			continue
		}
		require.NotNil(t, f.Timestamp)
		assert.False(t, f.Timestamp.After(testNow))
		assert.True(t, f.Timestamp.After(testNow.Add(-time.Hour)))
	}
}

func TestBuildCamera_DeterministicAllComplete(t *testing.T) {
	cam := BuildCamera(fixedRand{0.5}, 0, model.FrameRange{Start: 1, End: 10}, testNow)

	require.Len(t, cam.Frames, 10)
	for _, f := range cam.Frames {
		assert.Equal(t, model.FrameStatusComplete, f.Status)
	}
	assert.Equal(t, 10, cam.Progress.Completed)
	assert.Equal(t, 10, cam.Progress.Total)
	assert.Equal(t, 100.0, cam.Progress.Percentage)
	assert.Equal(t, model.CameraStatusComplete, cam.Status)
	assert.Equal(t, "cam_01", cam.ID)
	assert.Equal(t, "Camera_01", cam.Name)
	assert.Equal(t, testNow.Add(-12*time.Hour), cam.Timing.StartTime)
	assert.Equal(t, time.Duration(0), cam.Timing.ETA)
}

func TestBuildCamera_InvertedRange(t *testing.T) {
	cam := BuildCamera(NewRand(1), 3, model.FrameRange{Start: 5, End: 4}, testNow)

	assert.Empty(t, cam.Frames)
	assert.Equal(t, 0, cam.Progress.Total)
	assert.Equal(t, 0, cam.Progress.Completed)
	assert.Equal(t, 0.0, cam.Progress.Percentage)
	assert.Equal(t, model.CameraStatusRendering, cam.Status)
	assert.Equal(t, time.Duration(0), cam.Timing.ExpectedTotal)
	assert.Equal(t, "cam_04", cam.ID)
}

func TestGenerateProjects_Shape(t *testing.T) {
	params := DefaultGeneratorParams()

	for seed := uint64(1); seed <= 20; seed++ {
		projects := GenerateProjects(NewRand(seed), params, testNow)

		require.GreaterOrEqual(t, len(projects), 2)
		require.LessOrEqual(t, len(projects), 4)

		for i, p := range projects {
			assert.Equal(t, ProjectNames[i], p.Name)
			assert.Equal(t, p.StartTime.Add(7*24*time.Hour), p.Deadline)
			assert.True(t, p.StartTime.After(testNow.Add(-48*time.Hour)))

			require.GreaterOrEqual(t, len(p.Categories), 2)
			require.LessOrEqual(t, len(p.Categories), 4)

			total, completed := 0, 0
			for j, cat := range p.Categories {
				assert.Equal(t, model.CategoryTypes[j], cat.Type)
				assert.Equal(t, "cat_"+string(cat.Type), cat.ID)
				require.GreaterOrEqual(t, len(cat.Cameras), 2)
				require.LessOrEqual(t, len(cat.Cameras), 5)

				for _, cam := range cat.Cameras {
					assert.Equal(t, 1, cam.FrameRange.Start)
					assert.GreaterOrEqual(t, cam.Progress.Total, 100)
					assert.LessOrEqual(t, cam.Progress.Total, 599)
					assert.Len(t, cam.Frames, cam.Progress.Total)
					total += cam.Progress.Total
					completed += cam.Progress.Completed
				}
			}
			assert.Equal(t, total, p.TotalFrames)
			assert.Equal(t, completed, p.CompletedFrames)
		}
	}
}

func TestGenerateProjects_SameSeedSameTree(t *testing.T) {
	params := DefaultGeneratorParams()
	a := GenerateProjects(NewRand(99), params, testNow)
	b := GenerateProjects(NewRand(99), params, testNow)
	assert.Equal(t, a, b)
}

func TestGenerateProjects_CapsAtKnownNames(t *testing.T) {
	params := DefaultGeneratorParams()
	params.Projects = IntRange{Min: 9, Max: 9}
	params.Categories = IntRange{Min: 8, Max: 8}
	params.Cameras = IntRange{Min: 1, Max: 1}
	params.Frames = IntRange{Min: 1, Max: 1}

	projects := GenerateProjects(NewRand(3), params, testNow)
	require.Len(t, projects, len(ProjectNames))
	for _, p := range projects {
		assert.Len(t, p.Categories, len(model.CategoryTypes))
	}
}
