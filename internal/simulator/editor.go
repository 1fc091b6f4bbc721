package simulator

import (
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/renderscope/api/internal/model"
)

var (
	ErrProjectNotFound  = errors.New("project not found")
	ErrCategoryNotFound = errors.New("category not found")
	ErrCameraNotFound   = errors.New("camera not found")
	ErrInvalidCamera    = errors.New("invalid camera")
)

// LargeRangeFrames is the frame span above which a camera gets a performance warning.
const LargeRangeFrames = 10000

// RenderRoot is the parent folder of every project's output.
const RenderRoot = "/mnt/render"

// InvalidCameraError lists why a camera edit was rejected.
type InvalidCameraError struct {
	Problems []string
}

func (e *InvalidCameraError) Error() string {
	return "invalid camera: " + strings.Join(e.Problems, "; ")
}

func (e *InvalidCameraError) Unwrap() error {
	return ErrInvalidCamera
}

// DefaultOutputPattern is the file pattern assigned to cameras created without one.
func DefaultOutputPattern(cameraName string) string {
	return cameraName + "_####.exr"
}

// DefaultRootPath is the output folder of a project.
func DefaultRootPath(projectName string) string {
	return path.Join(RenderRoot, projectName)
}

// ExpandPattern replaces the first run of '#' in pattern with number, zero padded
// to the length of the run.
func ExpandPattern(pattern string, number int) string {
	start := strings.IndexByte(pattern, '#')
	if start < 0 {
		return pattern
	}
	end := start
	for end < len(pattern) && pattern[end] == '#' {
		end++
	}
	return pattern[:start] + fmt.Sprintf("%0*d", end-start, number) + pattern[end:]
}

// CameraFramePath returns where frame number of cam is written.
func CameraFramePath(cam model.Camera, number int) string {
	if cam.OutputPattern == "" {
		return FramePath(number)
	}
	return "/render/" + ExpandPattern(cam.OutputPattern, number)
}

// ValidateCamera checks a camera definition against the category it belongs to.
// Cameras with id excludeID are ignored by the name check, so an edit does not
// conflict with itself.
func ValidateCamera(name string, frames model.FrameRange, category *model.Category, excludeID string) model.ValidationResult {
	result := model.ValidationResult{Conflicts: []string{}, Warnings: []string{}}

	if frames.Start >= frames.End {
		result.Conflicts = append(result.Conflicts, "Start frame must be less than end frame")
	}
	if frames.End-frames.Start > LargeRangeFrames {
		result.Warnings = append(result.Warnings, "Large frame range may impact performance")
	}
	if category != nil {
		for _, cam := range category.Cameras {
			if cam.ID != excludeID && cam.Name == name {
				result.Conflicts = append(result.Conflicts, fmt.Sprintf("Camera name %q is already used in %s", name, category.Name))
				break
			}
		}
	}

	result.Valid = len(result.Conflicts) == 0
	return result
}

// AddCamera returns a tree with a new camera appended to the category named by
// spec.CategoryID (an id or a category type). Every frame of the new camera starts
// out rendering. The input is never modified.
func AddCamera(projects []model.Project, projectID string, spec model.CameraSpec, now time.Time) ([]model.Project, model.Camera, model.ValidationResult, error) {
	var (
		added  model.Camera
		result model.ValidationResult
	)

	next, err := editCategory(projects, projectID, spec.CategoryID, now, func(cat *model.Category) error {
		frames := model.FrameRange{Start: spec.FrameStart, End: spec.FrameEnd}
		result = ValidateCamera(spec.Name, frames, cat, "")
		if !result.Valid {
			return &InvalidCameraError{Problems: result.Conflicts}
		}

		pattern := spec.OutputPattern
		if pattern == "" {
			pattern = DefaultOutputPattern(spec.Name)
		}

		added = RecomputeCamera(model.Camera{
			ID:            nextCameraID(cat),
			Name:          spec.Name,
			FrameRange:    frames,
			Frames:        resizeFrames(nil, frames),
			Timing:        model.CameraTiming{StartTime: now},
			OutputPattern: pattern,
		}, now)
		cat.Cameras = append(cat.Cameras, added)
		return nil
	})
	if err != nil {
		return nil, model.Camera{}, result, err
	}
	return next, added, result, nil
}

// BulkAdded is one camera created by BulkAddCameras
type BulkAdded struct {
	CategoryID string
	Camera     model.Camera
	Validation model.ValidationResult
}

// BulkAddCameras adds every row or none. All rows are checked first and every
// problem is reported, prefixed with the 1-based row number.
func BulkAddCameras(projects []model.Project, projectID string, rows []model.BulkCamera, now time.Time) ([]model.Project, []BulkAdded, error) {
	project, ok := findProject(projects, projectID)
	if !ok {
		return nil, nil, ErrProjectNotFound
	}

	var problems []string
	seen := make(map[string]bool)
	for i, row := range rows {
		prefix := fmt.Sprintf("Camera %d: ", i+1)
		if row.Name == "" {
			problems = append(problems, prefix+"Name is required")
		}
		cat, ok := ResolveCategory(project, row.Category)
		if !ok {
			problems = append(problems, fmt.Sprintf("%sInvalid category %q", prefix, row.Category))
			continue
		}
		if row.Name == "" {
			continue
		}
		res := ValidateCamera(row.Name, model.FrameRange{Start: row.FrameStart, End: row.FrameEnd}, cat, "")
		for _, c := range res.Conflicts {
			problems = append(problems, prefix+c)
		}
		key := cat.ID + "/" + row.Name
		if seen[key] {
			problems = append(problems, fmt.Sprintf("%sCamera name %q appears more than once in %s", prefix, row.Name, cat.Name))
		}
		seen[key] = true
	}
	if len(problems) > 0 {
		return nil, nil, &InvalidCameraError{Problems: problems}
	}

	next := projects
	added := make([]BulkAdded, 0, len(rows))
	for _, row := range rows {
		var (
			cam model.Camera
			res model.ValidationResult
			err error
		)
		next, cam, res, err = AddCamera(next, projectID, model.CameraSpec{
			Name:          row.Name,
			CategoryID:    row.Category,
			FrameStart:    row.FrameStart,
			FrameEnd:      row.FrameEnd,
			OutputPattern: row.OutputPattern,
		}, now)
		if err != nil {
			return nil, nil, err
		}
		p, _ := findProject(next, projectID)
		cat, _ := ResolveCategory(p, row.Category)
		added = append(added, BulkAdded{CategoryID: cat.ID, Camera: cam, Validation: res})
	}
	return next, added, nil
}

// UpdateCamera applies a partial edit. Frames inside both the old and the new range
// keep their state; frames added by a wider range start out rendering.
func UpdateCamera(projects []model.Project, projectID, categoryID, cameraID string, upd model.CameraUpdate, now time.Time) ([]model.Project, model.Camera, model.ValidationResult, error) {
	var (
		updated model.Camera
		result  model.ValidationResult
	)

	next, err := editCategory(projects, projectID, categoryID, now, func(cat *model.Category) error {
		idx := -1
		for i := range cat.Cameras {
			if cat.Cameras[i].ID == cameraID {
				idx = i
				break
			}
		}
		if idx < 0 {
			return ErrCameraNotFound
		}

		cam := cat.Cameras[idx]
		oldName := cam.Name
		frames := cam.FrameRange
		if upd.Name != nil {
			cam.Name = *upd.Name
		}
		if upd.FrameStart != nil {
			frames.Start = *upd.FrameStart
		}
		if upd.FrameEnd != nil {
			frames.End = *upd.FrameEnd
		}

		result = ValidateCamera(cam.Name, frames, cat, cam.ID)
		if !result.Valid {
			return &InvalidCameraError{Problems: result.Conflicts}
		}

		switch {
		case upd.OutputPattern != nil:
			cam.OutputPattern = *upd.OutputPattern
		case cam.Name != oldName && cam.OutputPattern == DefaultOutputPattern(oldName):
			cam.OutputPattern = DefaultOutputPattern(cam.Name)
		}

		if frames != cam.FrameRange {
			cam.Frames = resizeFrames(cam.Frames, frames)
			cam.FrameRange = frames
		}

		updated = RecomputeCamera(cam, now)
		cat.Cameras[idx] = updated
		return nil
	})
	if err != nil {
		return nil, model.Camera{}, result, err
	}
	return next, updated, result, nil
}

// RemoveCamera returns a tree without the camera.
func RemoveCamera(projects []model.Project, projectID, categoryID, cameraID string, now time.Time) ([]model.Project, error) {
	return editCategory(projects, projectID, categoryID, now, func(cat *model.Category) error {
		for i := range cat.Cameras {
			if cat.Cameras[i].ID == cameraID {
				cat.Cameras = append(cat.Cameras[:i], cat.Cameras[i+1:]...)
				return nil
			}
		}
		return ErrCameraNotFound
	})
}

// FolderTree previews the output folders of a project under rootPath: one folder per
// category type that has cameras, one per camera, each holding a frames folder and
// the first frame's file name.
func FolderTree(project *model.Project, rootPath string) model.FolderNode {
	if rootPath == "" {
		rootPath = DefaultRootPath(project.Name)
	}
	rootPath = path.Clean(rootPath)

	rootName := path.Base(rootPath)
	if rootName == "/" || rootName == "." {
		rootName = "project"
	}
	root := model.FolderNode{Name: rootName, Path: rootPath, Type: model.FolderNodeFolder}

	for _, cat := range project.Categories {
		if len(cat.Cameras) == 0 {
			continue
		}
		catPath := path.Join(rootPath, string(cat.Type))
		catNode := model.FolderNode{Name: string(cat.Type), Path: catPath, Type: model.FolderNodeFolder}

		for _, cam := range cat.Cameras {
			camPath := path.Join(catPath, cam.Name)
			framesPath := path.Join(camPath, "frames")

			pattern := cam.OutputPattern
			if pattern == "" {
				pattern = "frame_####.exr"
			}
			first := ExpandPattern(pattern, cam.FrameRange.Start)

			catNode.Children = append(catNode.Children, model.FolderNode{
				Name: cam.Name,
				Path: camPath,
				Type: model.FolderNodeFolder,
				Children: []model.FolderNode{{
					Name: "frames",
					Path: framesPath,
					Type: model.FolderNodeFolder,
					Children: []model.FolderNode{{
						Name: first,
						Path: path.Join(framesPath, first),
						Type: model.FolderNodeFile,
					}},
				}},
			})
		}
		root.Children = append(root.Children, catNode)
	}

	return root
}

// editCategory copies the path from the tree root down to one category, lets fn
// change that category and rolls the project up again.
func editCategory(projects []model.Project, projectID, categoryRef string, now time.Time, fn func(*model.Category) error) ([]model.Project, error) {
	pi := -1
	for i := range projects {
		if projects[i].ID == projectID {
			pi = i
			break
		}
	}
	if pi < 0 {
		return nil, ErrProjectNotFound
	}

	project := projects[pi]
	ci := -1
	for i := range project.Categories {
		if matchesCategory(project.Categories[i], categoryRef) {
			ci = i
			break
		}
	}
	if ci < 0 {
		return nil, ErrCategoryNotFound
	}

	category := project.Categories[ci]
	category.Cameras = append([]model.Camera(nil), category.Cameras...)
	if err := fn(&category); err != nil {
		return nil, err
	}

	project.Categories = append([]model.Category(nil), project.Categories...)
	project.Categories[ci] = category

	next := append([]model.Project(nil), projects...)
	next[pi] = RecomputeProject(project, now)
	return next, nil
}

func findProject(projects []model.Project, id string) (*model.Project, bool) {
	for i := range projects {
		if projects[i].ID == id {
			return &projects[i], true
		}
	}
	return nil, false
}

// ResolveCategory finds a category of p by id or by category type.
func ResolveCategory(p *model.Project, ref string) (*model.Category, bool) {
	for i := range p.Categories {
		if matchesCategory(p.Categories[i], ref) {
			return &p.Categories[i], true
		}
	}
	return nil, false
}

func matchesCategory(cat model.Category, ref string) bool {
	return ref != "" && (cat.ID == ref || string(cat.Type) == ref)
}

func nextCameraID(cat *model.Category) string {
	highest := 0
	for _, cam := range cat.Cameras {
		var n int
		if _, err := fmt.Sscanf(cam.ID, "cam_%d", &n); err == nil && n > highest {
			highest = n
		}
	}
	return fmt.Sprintf("cam_%02d", highest+1)
}

// resizeFrames returns frames for r, reusing frames of old whose number is in r.
func resizeFrames(old []model.Frame, r model.FrameRange) []model.Frame {
	byNumber := make(map[int]model.Frame, len(old))
	for _, f := range old {
		byNumber[f.Number] = f
	}

	frames := make([]model.Frame, 0, r.Len())
	for n := r.Start; n <= r.End; n++ {
		if f, ok := byNumber[n]; ok {
			frames = append(frames, f)
			continue
		}
		frames = append(frames, model.Frame{Number: n, Status: model.FrameStatusRendering})
	}
	return frames
}
