package service

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/renderscope/api/internal/logging"
	"github.com/renderscope/api/internal/model"
	"github.com/renderscope/api/internal/simulator"
	"github.com/renderscope/api/internal/worker"
)

// Fallback frame range of bulk CSV rows with an unreadable number
const (
	bulkDefaultStart = 1001
	bulkDefaultEnd   = 1200
)

var bulkCSVColumns = []string{"name", "category", "frameStart", "frameEnd", "outputPattern"}

// ErrBulkCSV is returned for a bulk CSV that cannot be read
var ErrBulkCSV = errors.New("invalid bulk csv")

// Applier hands tree edits to the simulation loop
type Applier interface {
	Apply(ctx context.Context, edit worker.Edit) error
}

// EditorService adds, changes and removes cameras. Every change is submitted to
// the simulation loop, which applies it on its next tick.
type EditorService struct {
	source  SnapshotReader
	applier Applier
	logger  *slog.Logger
}

func NewEditorService(source SnapshotReader, applier Applier, logger *slog.Logger) *EditorService {
	return &EditorService{
		source:  source,
		applier: applier,
		logger:  logging.WithComponent(logger, "editor"),
	}
}

// Validate checks a camera definition against the latest snapshot.
func (s *EditorService) Validate(projectID string, req model.ValidateCameraRequest) (*model.ValidationResult, error) {
	project, ok := s.source.Snapshot().FindProject(projectID)
	if !ok {
		return nil, ErrProjectNotFound
	}
	category, ok := simulator.ResolveCategory(project, req.CategoryID)
	if !ok {
		return nil, ErrCategoryNotFound
	}

	result := simulator.ValidateCamera(req.Name, model.FrameRange{Start: req.FrameStart, End: req.FrameEnd}, category, req.CameraID)
	return &result, nil
}

// AddCamera creates a camera whose frames all start rendering.
func (s *EditorService) AddCamera(ctx context.Context, projectID string, spec model.CameraSpec) (*model.CameraEditResponse, error) {
	var resp *model.CameraEditResponse

	err := s.applier.Apply(ctx, func(projects []model.Project, now time.Time) ([]model.Project, error) {
		next, cam, result, err := simulator.AddCamera(projects, projectID, spec, now)
		if err != nil {
			return nil, err
		}
		resp = &model.CameraEditResponse{
			ProjectID:  projectID,
			CategoryID: categoryID(next, projectID, spec.CategoryID),
			Camera:     cam,
			Validation: result,
		}
		return next, nil
	})
	if err != nil {
		return nil, err
	}

	logging.WithProjectID(s.logger, projectID).Info("camera added",
		"category_id", resp.CategoryID,
		"camera_id", resp.Camera.ID,
		"frames", resp.Camera.Progress.Total,
		"warnings", len(resp.Validation.Warnings),
	)
	return resp, nil
}

// UpdateCamera changes name, frame range or output pattern of a camera.
func (s *EditorService) UpdateCamera(ctx context.Context, projectID, categoryID, cameraID string, upd model.CameraUpdate) (*model.CameraEditResponse, error) {
	var resp *model.CameraEditResponse

	err := s.applier.Apply(ctx, func(projects []model.Project, now time.Time) ([]model.Project, error) {
		next, cam, result, err := simulator.UpdateCamera(projects, projectID, categoryID, cameraID, upd, now)
		if err != nil {
			return nil, err
		}
		resp = &model.CameraEditResponse{
			ProjectID:  projectID,
			CategoryID: categoryID,
			Camera:     cam,
			Validation: result,
		}
		return next, nil
	})
	if err != nil {
		return nil, err
	}

	logging.WithProjectID(s.logger, projectID).Info("camera updated",
		"category_id", categoryID,
		"camera_id", cameraID,
		"frames", resp.Camera.Progress.Total,
	)
	return resp, nil
}

// RemoveCamera deletes a camera and its frames.
func (s *EditorService) RemoveCamera(ctx context.Context, projectID, categoryID, cameraID string) error {
	err := s.applier.Apply(ctx, func(projects []model.Project, now time.Time) ([]model.Project, error) {
		return simulator.RemoveCamera(projects, projectID, categoryID, cameraID, now)
	})
	if err != nil {
		return err
	}

	logging.WithProjectID(s.logger, projectID).Info("camera removed", "category_id", categoryID, "camera_id", cameraID)
	return nil
}

// BulkImport adds all rows in one edit, or none of them.
func (s *EditorService) BulkImport(ctx context.Context, projectID string, rows []model.BulkCamera) (*model.BulkImportResponse, error) {
	var resp *model.BulkImportResponse

	err := s.applier.Apply(ctx, func(projects []model.Project, now time.Time) ([]model.Project, error) {
		next, added, err := simulator.BulkAddCameras(projects, projectID, rows, now)
		if err != nil {
			return nil, err
		}
		resp = &model.BulkImportResponse{
			ProjectID: projectID,
			Imported:  make([]model.CameraEditResponse, 0, len(added)),
		}
		for _, a := range added {
			resp.Imported = append(resp.Imported, model.CameraEditResponse{
				ProjectID:  projectID,
				CategoryID: a.CategoryID,
				Camera:     a.Camera,
				Validation: a.Validation,
			})
		}
		return next, nil
	})
	if err != nil {
		return nil, err
	}

	logging.WithProjectID(s.logger, projectID).Info("cameras imported", "count", len(resp.Imported))
	return resp, nil
}

// Folders previews the output folder layout of a project.
func (s *EditorService) Folders(projectID, rootPath string) (*model.FolderNode, error) {
	project, ok := s.source.Snapshot().FindProject(projectID)
	if !ok {
		return nil, ErrProjectNotFound
	}
	tree := simulator.FolderTree(project, rootPath)
	return &tree, nil
}

// ParseBulkCSV reads bulk import rows. The header must name the name and category
// columns; frameStart, frameEnd and outputPattern are optional. Rows without a name
// or category are skipped and unreadable frame numbers fall back to 1001-1200.
func ParseBulkCSV(r io.Reader) ([]model.BulkCamera, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBulkCSV, err)
	}

	index := make(map[string]int, len(header))
	for i, col := range header {
		index[strings.TrimSpace(col)] = i
	}
	for _, required := range bulkCSVColumns[:2] {
		if _, ok := index[required]; !ok {
			return nil, fmt.Errorf("%w: missing %q column", ErrBulkCSV, required)
		}
	}

	field := func(record []string, name string) string {
		i, ok := index[name]
		if !ok || i >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[i])
	}

	var rows []model.BulkCamera
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrBulkCSV, err)
		}

		row := model.BulkCamera{
			Name:          field(record, "name"),
			Category:      field(record, "category"),
			FrameStart:    atoiOr(field(record, "frameStart"), bulkDefaultStart),
			FrameEnd:      atoiOr(field(record, "frameEnd"), bulkDefaultEnd),
			OutputPattern: field(record, "outputPattern"),
		}
		if row.Name == "" || row.Category == "" {
			continue
		}
		rows = append(rows, row)
	}

	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: no camera rows", ErrBulkCSV)
	}
	return rows, nil
}

func atoiOr(s string, fallback int) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return fallback
	}
	return n
}

func categoryID(projects []model.Project, projectID, ref string) string {
	for i := range projects {
		if projects[i].ID != projectID {
			continue
		}
		if cat, ok := simulator.ResolveCategory(&projects[i], ref); ok {
			return cat.ID
		}
	}
	return ref
}
