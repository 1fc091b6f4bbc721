package model

import (
	"strings"
	"unicode"
)

// Frame status
type FrameStatus string

const (
	FrameStatusComplete  FrameStatus = "complete"
	FrameStatusCorrupt   FrameStatus = "corrupt"
	FrameStatusMissing   FrameStatus = "missing"
	FrameStatusRendering FrameStatus = "rendering"
)

// Terminal reports whether a frame in this status can no longer change.
func (s FrameStatus) Terminal() bool {
	return s != FrameStatusRendering
}

// Camera status. Idle and Paused are reserved; the simulator never produces them.
type CameraStatus string

const (
	CameraStatusIdle      CameraStatus = "idle"
	CameraStatusRendering CameraStatus = "rendering"
	CameraStatusComplete  CameraStatus = "complete"
	CameraStatusError     CameraStatus = "error"
	CameraStatusPaused    CameraStatus = "paused"
)

// Category types
type CategoryType string

const (
	CategoryInterior  CategoryType = "interior"
	CategoryExterior  CategoryType = "exterior"
	CategoryAnimation CategoryType = "animation"
	CategoryVR360     CategoryType = "vr_360"
)

// CategoryTypes lists category types in the order projects are populated.
var CategoryTypes = []CategoryType{
	CategoryInterior, CategoryExterior, CategoryAnimation, CategoryVR360,
}

// DisplayName returns the category label shown on dashboards: the first underscore
// becomes a space and every word is capitalized, so vr_360 reads "Vr 360".
func (t CategoryType) DisplayName() string {
	name := []rune(strings.Replace(string(t), "_", " ", 1))
	for i, r := range name {
		if i == 0 || !isWordRune(name[i-1]) {
			name[i] = unicode.ToUpper(r)
		}
	}
	return string(name)
}

func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

// Project status. Error is reserved for manual overrides and never assigned by a rule.
type ProjectStatus string

const (
	ProjectStatusActive   ProjectStatus = "active"
	ProjectStatusComplete ProjectStatus = "complete"
	ProjectStatusDelayed  ProjectStatus = "delayed"
	ProjectStatusError    ProjectStatus = "error"
)

// Event types emitted when a camera or project changes status between ticks
type EventType string

const (
	EventCameraComplete  EventType = "camera_complete"
	EventCameraError     EventType = "camera_error"
	EventProjectComplete EventType = "project_complete"
	EventProjectDelayed  EventType = "project_delayed"
)

// Export formats
type ExportFormat string

const (
	ExportFormatCSV  ExportFormat = "csv"
	ExportFormatJSON ExportFormat = "json"
)

// Job status
type JobStatus string

const (
	JobStatusQueued    JobStatus = "queued"
	JobStatusRunning   JobStatus = "running"
	JobStatusSucceeded JobStatus = "succeeded"
	JobStatusFailed    JobStatus = "failed"
)
