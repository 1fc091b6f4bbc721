package model

// CameraSpec describes a camera created through the editor
type CameraSpec struct {
	Name          string `json:"name" validate:"required,max=64,excludesall=/\\"`
	CategoryID    string `json:"categoryId" validate:"required"`
	FrameStart    int    `json:"frameStart" validate:"gte=0"`
	FrameEnd      int    `json:"frameEnd" validate:"gte=0"`
	OutputPattern string `json:"outputPattern,omitempty" validate:"omitempty,max=128,contains=#,excludesall=/\\"`
}

// CameraUpdate is a partial camera edit; nil fields are left unchanged
type CameraUpdate struct {
	Name          *string `json:"name,omitempty" validate:"omitempty,min=1,max=64,excludesall=/\\"`
	FrameStart    *int    `json:"frameStart,omitempty" validate:"omitempty,gte=0"`
	FrameEnd      *int    `json:"frameEnd,omitempty" validate:"omitempty,gte=0"`
	OutputPattern *string `json:"outputPattern,omitempty" validate:"omitempty,max=128,contains=#,excludesall=/\\"`
}

// ValidationResult reports blocking conflicts and advisory warnings for a camera
type ValidationResult struct {
	Valid     bool     `json:"valid"`
	Conflicts []string `json:"conflicts"`
	Warnings  []string `json:"warnings"`
}

// BulkCamera is one row of a bulk import. Category matches a category id or type.
type BulkCamera struct {
	Name          string `json:"name"`
	Category      string `json:"category"`
	FrameStart    int    `json:"frameStart"`
	FrameEnd      int    `json:"frameEnd"`
	OutputPattern string `json:"outputPattern,omitempty"`
}

// BulkImportRequest carries cameras to add in one edit
type BulkImportRequest struct {
	Cameras []BulkCamera `json:"cameras" validate:"required,min=1,max=500"`
}

// CameraEditResponse is returned after a camera was added or changed
type CameraEditResponse struct {
	ProjectID  string           `json:"projectId"`
	CategoryID string           `json:"categoryId"`
	Camera     Camera           `json:"camera"`
	Validation ValidationResult `json:"validation"`
}

// BulkImportResponse lists the cameras created by a bulk import
type BulkImportResponse struct {
	ProjectID string               `json:"projectId"`
	Imported  []CameraEditResponse `json:"imported"`
}

// FolderNode is one entry of the output folder preview
type FolderNode struct {
	Name     string       `json:"name"`
	Path     string       `json:"path"`
	Type     string       `json:"type"`
	Children []FolderNode `json:"children,omitempty"`
}

// Folder node types
const (
	FolderNodeFolder = "folder"
	FolderNodeFile   = "file"
)

// ValidateCameraRequest checks a camera definition without applying it.
// CameraID names the camera being edited so it does not conflict with itself.
type ValidateCameraRequest struct {
	CameraSpec
	CameraID string `json:"cameraId,omitempty"`
}

// FolderQuery holds the query parameters of the folder preview
type FolderQuery struct {
	RootPath string `query:"rootPath" validate:"omitempty,startswith=/,max=256"`
}
