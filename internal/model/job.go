package model

import "time"

// Job represents a background job
type Job struct {
	ID          string     `json:"id"`
	Type        string     `json:"type"`
	ProjectID   string     `json:"projectId"`
	Status      JobStatus  `json:"status"`
	Progress    int        `json:"progress"`
	CurrentStep string     `json:"currentStep,omitempty"`
	Error       *string    `json:"error,omitempty"`
	FileName    string     `json:"fileName,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	StartedAt   *time.Time `json:"startedAt,omitempty"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
	RetryCount  int        `json:"retryCount"`
}

// Job types
const (
	JobTypeExportAll = "export_all"
)

// ExportAllResponse is returned when a full project export is queued
type ExportAllResponse struct {
	JobID       string    `json:"jobId"`
	ProjectID   string    `json:"projectId"`
	Status      JobStatus `json:"status"`
	StatusURL   string    `json:"statusUrl"`
	DownloadURL string    `json:"downloadUrl"`
	CreatedAt   time.Time `json:"createdAt"`
}
