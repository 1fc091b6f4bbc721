package model

// ExportQuery holds the query parameters of a project export
type ExportQuery struct {
	Format ExportFormat `query:"format" validate:"omitempty,oneof=csv json"`
}

// ProjectExportRow is one camera line of a project CSV export
type ProjectExportRow struct {
	ProjectID       string
	ProjectName     string
	ProjectStatus   ProjectStatus
	ProjectProgress float64
	CategoryID      string
	CategoryName    string
	CategoryType    CategoryType
	CameraID        string
	CameraName      string
	CameraStatus    CameraStatus
	CameraProgress  float64
	FrameStart      int
	FrameEnd        int
	FramesCompleted int
	FramesTotal     int
	CorruptFrames   int
	MissingFrames   int
	ETASeconds      float64
}

// ExportFile is a rendered export ready to be sent as an attachment
type ExportFile struct {
	FileName    string
	ContentType string
	Data        []byte
}
