package handler

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/renderscope/api/internal/model"
	"github.com/renderscope/api/internal/service"
	"github.com/renderscope/api/internal/simulator"
	"github.com/renderscope/api/internal/worker"
	"github.com/renderscope/api/pkg/response"
)

// editTimeout bounds how long a request waits for the next tick
const editTimeout = 10 * time.Second

type EditorHandler struct {
	service   *service.EditorService
	validator *validator.Validate
}

func NewEditorHandler(svc *service.EditorService, v *validator.Validate) *EditorHandler {
	return &EditorHandler{
		service:   svc,
		validator: v,
	}
}

// AddCamera handles POST /api/projects/:projectId/cameras
func (h *EditorHandler) AddCamera(c *fiber.Ctx) error {
	var req model.CameraSpec
	if err := c.BodyParser(&req); err != nil {
		return response.ValidationError(c, "Invalid request body", nil)
	}

	if err := h.validator.Struct(&req); err != nil {
		return response.ValidationError(c, "Validation failed", formatValidationErrors(err))
	}

	ctx, cancel := context.WithTimeout(c.UserContext(), editTimeout)
	defer cancel()

	result, err := h.service.AddCamera(ctx, c.Params("projectId"), req)
	if err != nil {
		return editError(c, err)
	}

	return response.Created(c, result)
}

// UpdateCamera handles PATCH /api/projects/:projectId/categories/:categoryId/cameras/:cameraId
func (h *EditorHandler) UpdateCamera(c *fiber.Ctx) error {
	var req model.CameraUpdate
	if err := c.BodyParser(&req); err != nil {
		return response.ValidationError(c, "Invalid request body", nil)
	}

	if err := h.validator.Struct(&req); err != nil {
		return response.ValidationError(c, "Validation failed", formatValidationErrors(err))
	}

	ctx, cancel := context.WithTimeout(c.UserContext(), editTimeout)
	defer cancel()

	result, err := h.service.UpdateCamera(ctx, c.Params("projectId"), c.Params("categoryId"), c.Params("cameraId"), req)
	if err != nil {
		return editError(c, err)
	}

	return response.OK(c, result)
}

// RemoveCamera handles DELETE /api/projects/:projectId/categories/:categoryId/cameras/:cameraId
func (h *EditorHandler) RemoveCamera(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), editTimeout)
	defer cancel()

	if err := h.service.RemoveCamera(ctx, c.Params("projectId"), c.Params("categoryId"), c.Params("cameraId")); err != nil {
		return editError(c, err)
	}

	return response.NoContent(c)
}

// BulkImport handles POST /api/projects/:projectId/cameras/bulk with a JSON body
// or a text/csv upload.
func (h *EditorHandler) BulkImport(c *fiber.Ctx) error {
	var req model.BulkImportRequest

	if strings.HasPrefix(c.Get(fiber.HeaderContentType), "text/csv") {
		rows, err := service.ParseBulkCSV(bytes.NewReader(c.Body()))
		if err != nil {
			return response.ValidationError(c, err.Error(), nil)
		}
		req.Cameras = rows
	} else if err := c.BodyParser(&req); err != nil {
		return response.ValidationError(c, "Invalid request body", nil)
	}

	if err := h.validator.Struct(&req); err != nil {
		return response.ValidationError(c, "Validation failed", formatValidationErrors(err))
	}

	ctx, cancel := context.WithTimeout(c.UserContext(), editTimeout)
	defer cancel()

	result, err := h.service.BulkImport(ctx, c.Params("projectId"), req.Cameras)
	if err != nil {
		return editError(c, err)
	}

	return response.Created(c, result)
}

// Validate handles POST /api/projects/:projectId/cameras/validate
func (h *EditorHandler) Validate(c *fiber.Ctx) error {
	var req model.ValidateCameraRequest
	if err := c.BodyParser(&req); err != nil {
		return response.ValidationError(c, "Invalid request body", nil)
	}

	if err := h.validator.Struct(&req); err != nil {
		return response.ValidationError(c, "Validation failed", formatValidationErrors(err))
	}

	result, err := h.service.Validate(c.Params("projectId"), req)
	if err != nil {
		return lookupError(c, err)
	}

	return response.OK(c, result)
}

// Folders handles GET /api/projects/:projectId/folders?rootPath=
func (h *EditorHandler) Folders(c *fiber.Ctx) error {
	var query model.FolderQuery
	if err := c.QueryParser(&query); err != nil {
		return response.ValidationError(c, "Invalid query parameters", nil)
	}

	if err := h.validator.Struct(&query); err != nil {
		return response.ValidationError(c, "Validation failed", formatValidationErrors(err))
	}

	tree, err := h.service.Folders(c.Params("projectId"), query.RootPath)
	if err != nil {
		return lookupError(c, err)
	}

	return response.OK(c, tree)
}

func editError(c *fiber.Ctx, err error) error {
	var invalid *simulator.InvalidCameraError
	switch {
	case errors.As(err, &invalid):
		return response.ValidationError(c, "Camera validation failed", fiber.Map{"conflicts": invalid.Problems})
	case errors.Is(err, worker.ErrNotRunning):
		return response.Unavailable(c, "Simulation is not running")
	case errors.Is(err, context.DeadlineExceeded):
		return response.Unavailable(c, "Timed out waiting for the simulation")
	default:
		return lookupError(c, err)
	}
}
