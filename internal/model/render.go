package model

import (
	"encoding/json"
	"time"
)

// Frame is one renderable image of a camera pass
type Frame struct {
	Number    int         `json:"number"`
	Status    FrameStatus `json:"status"`
	Path      string      `json:"path,omitempty"`
	Timestamp *time.Time  `json:"timestamp,omitempty"`
}

// FrameRange is an inclusive range of frame numbers
type FrameRange struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Len returns the number of frames in the range, 0 when inverted.
func (r FrameRange) Len() int {
	if r.End < r.Start {
		return 0
	}
	return r.End - r.Start + 1
}

// CameraProgress holds frame completion counters
type CameraProgress struct {
	Completed  int     `json:"completed"`
	Total      int     `json:"total"`
	Percentage float64 `json:"percentage"`
}

// CameraTiming holds elapsed and estimated durations of a camera pass.
// Durations are encoded as integer milliseconds.
type CameraTiming struct {
	StartTime     time.Time
	Elapsed       time.Duration
	ETA           time.Duration
	ExpectedTotal time.Duration
}

type cameraTimingJSON struct {
	StartTime     time.Time `json:"startTime"`
	Elapsed       int64     `json:"elapsed"`
	ETA           int64     `json:"eta"`
	ExpectedTotal int64     `json:"expectedTotal"`
}

func (t CameraTiming) MarshalJSON() ([]byte, error) {
	return json.Marshal(cameraTimingJSON{
		StartTime:     t.StartTime,
		Elapsed:       t.Elapsed.Milliseconds(),
		ETA:           t.ETA.Milliseconds(),
		ExpectedTotal: t.ExpectedTotal.Milliseconds(),
	})
}

func (t *CameraTiming) UnmarshalJSON(data []byte) error {
	var raw cameraTimingJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	t.StartTime = raw.StartTime
	t.Elapsed = time.Duration(raw.Elapsed) * time.Millisecond
	t.ETA = time.Duration(raw.ETA) * time.Millisecond
	t.ExpectedTotal = time.Duration(raw.ExpectedTotal) * time.Millisecond
	return nil
}

// CameraErrors lists frame numbers in an error state, ascending
type CameraErrors struct {
	Corrupt []int `json:"corrupt"`
	Missing []int `json:"missing"`
}

// Count returns the number of frames in an error state.
func (e CameraErrors) Count() int {
	return len(e.Corrupt) + len(e.Missing)
}

// Camera is a named render pass over a contiguous frame range
type Camera struct {
	ID         string         `json:"id"`
	Name       string         `json:"name"`
	FrameRange FrameRange     `json:"frameRange"`
	Frames     []Frame        `json:"frames"`
	Progress   CameraProgress `json:"progress"`
	Timing     CameraTiming   `json:"timing"`
	Errors     CameraErrors   `json:"errors"`
	Status     CameraStatus   `json:"status"`
	// OutputPattern names rendered files, "#" runs are replaced by the frame number.
	// Empty means the default frame_####.exr.
	OutputPattern string `json:"outputPattern,omitempty"`
}

// Category groups cameras by shot type
type Category struct {
	ID      string       `json:"id"`
	Name    string       `json:"name"`
	Type    CategoryType `json:"type"`
	Cameras []Camera     `json:"cameras"`
}

// CategoryTotals are rollups over the cameras of a category
type CategoryTotals struct {
	TotalFrames     int `json:"totalFrames"`
	CompletedFrames int `json:"completedFrames"`
	ErrorFrames     int `json:"errorFrames"`
}

// Totals sums frame counters over the category's cameras.
func (c Category) Totals() CategoryTotals {
	var t CategoryTotals
	for _, cam := range c.Cameras {
		t.TotalFrames += cam.Progress.Total
		t.CompletedFrames += cam.Progress.Completed
		t.ErrorFrames += cam.Errors.Count()
	}
	return t
}

// Project is the top-level render job
type Project struct {
	ID              string        `json:"id"`
	Name            string        `json:"name"`
	Categories      []Category    `json:"categories"`
	TotalFrames     int           `json:"totalFrames"`
	CompletedFrames int           `json:"completedFrames"`
	GlobalProgress  float64       `json:"globalProgress"`
	StartTime       time.Time     `json:"startTime"`
	Deadline        time.Time     `json:"deadline"`
	Status          ProjectStatus `json:"status"`
}

// FindCategory returns the category with the given id.
func (p *Project) FindCategory(id string) (*Category, bool) {
	for i := range p.Categories {
		if p.Categories[i].ID == id {
			return &p.Categories[i], true
		}
	}
	return nil, false
}

// FindCamera returns the camera with the given id inside a category.
func (c *Category) FindCamera(id string) (*Camera, bool) {
	for i := range c.Cameras {
		if c.Cameras[i].ID == id {
			return &c.Cameras[i], true
		}
	}
	return nil, false
}

// ProjectStats is the process-wide aggregate over all projects
type ProjectStats struct {
	TotalProjects   int           `json:"totalProjects"`
	ActiveProjects  int           `json:"activeProjects"`
	TotalFrames     int           `json:"totalFrames"`
	CompletedFrames int           `json:"completedFrames"`
	ErrorFrames     int           `json:"errorFrames"`
	GlobalETA       time.Duration `json:"-"`
}

type projectStatsJSON struct {
	TotalProjects   int   `json:"totalProjects"`
	ActiveProjects  int   `json:"activeProjects"`
	TotalFrames     int   `json:"totalFrames"`
	CompletedFrames int   `json:"completedFrames"`
	ErrorFrames     int   `json:"errorFrames"`
	GlobalETA       int64 `json:"globalETA"`
}

func (s ProjectStats) MarshalJSON() ([]byte, error) {
	return json.Marshal(projectStatsJSON{
		TotalProjects:   s.TotalProjects,
		ActiveProjects:  s.ActiveProjects,
		TotalFrames:     s.TotalFrames,
		CompletedFrames: s.CompletedFrames,
		ErrorFrames:     s.ErrorFrames,
		GlobalETA:       s.GlobalETA.Milliseconds(),
	})
}

func (s *ProjectStats) UnmarshalJSON(data []byte) error {
	var raw projectStatsJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*s = ProjectStats{
		TotalProjects:   raw.TotalProjects,
		ActiveProjects:  raw.ActiveProjects,
		TotalFrames:     raw.TotalFrames,
		CompletedFrames: raw.CompletedFrames,
		ErrorFrames:     raw.ErrorFrames,
		GlobalETA:       time.Duration(raw.GlobalETA) * time.Millisecond,
	}
	return nil
}

// Snapshot is the immutable view published to subscribers after every tick
type Snapshot struct {
	Projects    []Project    `json:"projects"`
	Stats       ProjectStats `json:"stats"`
	Connected   bool         `json:"connected"`
	Tick        uint64       `json:"tick"`
	GeneratedAt time.Time    `json:"generatedAt"`
	Events      []Event      `json:"events,omitempty"`
}

// FindProject returns the project with the given id.
func (s *Snapshot) FindProject(id string) (*Project, bool) {
	for i := range s.Projects {
		if s.Projects[i].ID == id {
			return &s.Projects[i], true
		}
	}
	return nil, false
}

// Event reports a status transition observed between two ticks
type Event struct {
	Type       EventType `json:"type"`
	ProjectID  string    `json:"projectId"`
	CategoryID string    `json:"categoryId,omitempty"`
	CameraID   string    `json:"cameraId,omitempty"`
	Message    string    `json:"message"`
	Timestamp  time.Time `json:"timestamp"`
}
