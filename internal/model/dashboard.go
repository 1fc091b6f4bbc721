package model

import "time"

// ProjectSummary is a project without its frame-level detail
type ProjectSummary struct {
	ID              string                    `json:"id"`
	Name            string                    `json:"name"`
	TotalFrames     int                       `json:"totalFrames"`
	CompletedFrames int                       `json:"completedFrames"`
	GlobalProgress  float64                   `json:"globalProgress"`
	StartTime       time.Time                 `json:"startTime"`
	Deadline        time.Time                 `json:"deadline"`
	Status          ProjectStatus             `json:"status"`
	Categories      map[string]CategoryTotals `json:"categories"`
}

// ProjectListResponse represents GET /api/projects
type ProjectListResponse struct {
	Tick      uint64           `json:"tick"`
	Connected bool             `json:"connected"`
	Projects  []ProjectSummary `json:"projects"`
}

// StatsResponse represents GET /api/stats
type StatsResponse struct {
	Stats        ProjectStats `json:"stats"`
	GlobalETA    string       `json:"globalEtaFormatted"`
	Connected    bool         `json:"connected"`
	Tick         uint64       `json:"tick"`
	GeneratedAt  time.Time    `json:"generatedAt"`
	CompletedPct float64      `json:"completedPercentage"`
}

// ConnectionResponse represents GET /api/connection
type ConnectionResponse struct {
	Connected   bool   `json:"connected"`
	Tick        uint64 `json:"tick"`
	Ticks       uint64 `json:"ticks"`
	Published   uint64 `json:"published"`
	Dropped     uint64 `json:"dropped"`
	Subscribers int    `json:"subscribers"`
}

// CameraDetailResponse represents a camera lookup
type CameraDetailResponse struct {
	ProjectID    string `json:"projectId"`
	CategoryID   string `json:"categoryId"`
	CategoryName string `json:"categoryName"`
	Camera       Camera `json:"camera"`
	ETAFormatted string `json:"etaFormatted"`
}
