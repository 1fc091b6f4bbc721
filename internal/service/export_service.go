package service

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/renderscope/api/internal/logging"
	"github.com/renderscope/api/internal/model"
	"github.com/renderscope/api/pkg/format"
)

const (
	ContentTypeCSV  = "text/csv"
	ContentTypeJSON = "application/json"
	ContentTypeZip  = "application/zip"
)

var projectCSVHeader = []string{
	"project_id", "project_name", "project_status", "project_progress",
	"category_id", "category_name", "category_type",
	"camera_id", "camera_name", "camera_status", "camera_progress",
	"frame_start", "frame_end", "frames_completed", "frames_total",
	"corrupt_frames", "missing_frames", "eta_seconds",
}

var frameCSVHeader = []string{
	"project_name", "category_name", "camera_name",
	"frame_number", "frame_status", "frame_path", "frame_timestamp",
}

// ExportService renders projects and cameras as downloadable files
type ExportService struct {
	now    func() time.Time
	logger *slog.Logger
}

func NewExportService(now func() time.Time, logger *slog.Logger) *ExportService {
	if now == nil {
		now = time.Now
	}
	return &ExportService{now: now, logger: logging.WithComponent(logger, "export")}
}

// ExportProject renders a project in the requested format (csv by default).
func (s *ExportService) ExportProject(project *model.Project, exportFormat model.ExportFormat) (*model.ExportFile, error) {
	var (
		file *model.ExportFile
		err  error
	)
	switch exportFormat {
	case model.ExportFormatJSON:
		file, err = s.ProjectJSON(project)
	case model.ExportFormatCSV, "":
		file, err = s.ProjectCSV(project)
	default:
		return nil, fmt.Errorf("unsupported export format %q", exportFormat)
	}
	if err != nil {
		return nil, err
	}

	logging.WithProjectID(s.logger, project.ID).Info("project exported",
		"file", file.FileName,
		"size", format.FileSize(int64(len(file.Data))),
	)
	return file, nil
}

// ProjectRows flattens a project into one row per camera.
func ProjectRows(project *model.Project) []model.ProjectExportRow {
	var rows []model.ProjectExportRow
	for _, cat := range project.Categories {
		for _, cam := range cat.Cameras {
			rows = append(rows, model.ProjectExportRow{
				ProjectID:       project.ID,
				ProjectName:     project.Name,
				ProjectStatus:   project.Status,
				ProjectProgress: project.GlobalProgress,
				CategoryID:      cat.ID,
				CategoryName:    cat.Name,
				CategoryType:    cat.Type,
				CameraID:        cam.ID,
				CameraName:      cam.Name,
				CameraStatus:    cam.Status,
				CameraProgress:  cam.Progress.Percentage,
				FrameStart:      cam.FrameRange.Start,
				FrameEnd:        cam.FrameRange.End,
				FramesCompleted: cam.Progress.Completed,
				FramesTotal:     cam.Progress.Total,
				CorruptFrames:   len(cam.Errors.Corrupt),
				MissingFrames:   len(cam.Errors.Missing),
				ETASeconds:      cam.Timing.ETA.Seconds(),
			})
		}
	}
	return rows
}

// ProjectCSV renders one line per camera.
func (s *ExportService) ProjectCSV(project *model.Project) (*model.ExportFile, error) {
	records := [][]string{projectCSVHeader}
	for _, r := range ProjectRows(project) {
		records = append(records, []string{
			r.ProjectID, r.ProjectName, string(r.ProjectStatus), formatFloat(r.ProjectProgress),
			r.CategoryID, r.CategoryName, string(r.CategoryType),
			r.CameraID, r.CameraName, string(r.CameraStatus), formatFloat(r.CameraProgress),
			strconv.Itoa(r.FrameStart), strconv.Itoa(r.FrameEnd),
			strconv.Itoa(r.FramesCompleted), strconv.Itoa(r.FramesTotal),
			strconv.Itoa(r.CorruptFrames), strconv.Itoa(r.MissingFrames),
			strconv.FormatFloat(r.ETASeconds, 'f', 0, 64),
		})
	}

	data, err := writeCSV(records)
	if err != nil {
		return nil, fmt.Errorf("failed to write project csv: %w", err)
	}

	return &model.ExportFile{
		FileName:    s.fileName(project.Name, "export", "csv"),
		ContentType: ContentTypeCSV,
		Data:        data,
	}, nil
}

// ProjectJSON renders the full project tree, indented.
func (s *ExportService) ProjectJSON(project *model.Project) (*model.ExportFile, error) {
	data, err := json.MarshalIndent(project, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal project: %w", err)
	}

	return &model.ExportFile{
		FileName:    s.fileName(project.Name, "export", "json"),
		ContentType: ContentTypeJSON,
		Data:        data,
	}, nil
}

// CameraCSV renders one line per frame of a camera.
func (s *ExportService) CameraCSV(project *model.Project, category *model.Category, camera *model.Camera) (*model.ExportFile, error) {
	records := [][]string{frameCSVHeader}
	for _, f := range camera.Frames {
		ts := ""
		if f.Timestamp != nil {
			ts = f.Timestamp.UTC().Format(time.RFC3339Nano)
		}
		records = append(records, []string{
			project.Name, category.Name, camera.Name,
			strconv.Itoa(f.Number), string(f.Status), f.Path, ts,
		})
	}

	data, err := writeCSV(records)
	if err != nil {
		return nil, fmt.Errorf("failed to write camera csv: %w", err)
	}

	logging.WithProjectID(s.logger, project.ID).Info("camera exported",
		"camera_id", camera.ID,
		"frames", len(camera.Frames),
	)

	return &model.ExportFile{
		FileName:    s.fileName(camera.Name, "frames", "csv"),
		ContentType: ContentTypeCSV,
		Data:        data,
	}, nil
}

func (s *ExportService) fileName(name, kind, ext string) string {
	return fmt.Sprintf("%s_%s_%s.%s", name, kind, s.now().UTC().Format(time.DateOnly), ext)
}

func writeCSV(records [][]string) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.WriteAll(records); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
