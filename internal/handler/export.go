package handler

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/renderscope/api/internal/model"
	"github.com/renderscope/api/internal/service"
	"github.com/renderscope/api/pkg/response"
)

type ExportHandler struct {
	dashboard *service.DashboardService
	service   *service.ExportService
	jobs      *service.ExportJobService
	validator *validator.Validate
}

func NewExportHandler(dashboard *service.DashboardService, svc *service.ExportService, jobs *service.ExportJobService, v *validator.Validate) *ExportHandler {
	return &ExportHandler{
		dashboard: dashboard,
		service:   svc,
		jobs:      jobs,
		validator: v,
	}
}

// Project handles GET /api/export/projects/:projectId?format=csv|json
func (h *ExportHandler) Project(c *fiber.Ctx) error {
	var query model.ExportQuery
	if err := c.QueryParser(&query); err != nil {
		return response.ValidationError(c, "Invalid query parameters", nil)
	}

	if err := h.validator.Struct(&query); err != nil {
		return response.ValidationError(c, "Validation failed", formatValidationErrors(err))
	}

	project, err := h.dashboard.GetProject(c.Params("projectId"))
	if err != nil {
		return lookupError(c, err)
	}

	file, err := h.service.ExportProject(project, query.Format)
	if err != nil {
		return response.ExportFailed(c, err.Error())
	}

	return response.Attachment(c, file.FileName, file.ContentType, file.Data)
}

// Camera handles GET /api/export/projects/:projectId/categories/:categoryId/cameras/:cameraId
func (h *ExportHandler) Camera(c *fiber.Ctx) error {
	project, category, camera, err := h.dashboard.GetCamera(c.Params("projectId"), c.Params("categoryId"), c.Params("cameraId"))
	if err != nil {
		return lookupError(c, err)
	}

	file, err := h.service.CameraCSV(project, category, camera)
	if err != nil {
		return response.ExportFailed(c, err.Error())
	}

	return response.Attachment(c, file.FileName, file.ContentType, file.Data)
}

// All handles GET /api/export/projects/:projectId/all
func (h *ExportHandler) All(c *fiber.Ctx) error {
	project, err := h.dashboard.GetProject(c.Params("projectId"))
	if err != nil {
		return lookupError(c, err)
	}

	result, err := h.jobs.StartExportAll(c.UserContext(), project)
	if err != nil {
		return response.ServiceError(c, err.Error())
	}

	return response.Accepted(c, result)
}

// Job handles GET /api/jobs/:jobId
func (h *ExportHandler) Job(c *fiber.Ctx) error {
	job, err := h.jobs.GetJob(c.UserContext(), c.Params("jobId"))
	if err != nil {
		return jobError(c, err)
	}
	return response.OK(c, job)
}

// Download handles GET /api/jobs/:jobId/download
func (h *ExportHandler) Download(c *fiber.Ctx) error {
	file, err := h.jobs.Download(c.UserContext(), c.Params("jobId"))
	if err != nil {
		return jobError(c, err)
	}
	return response.Attachment(c, file.FileName, file.ContentType, file.Data)
}

func jobError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, service.ErrJobNotFound):
		return response.NotFound(c, "Job not found")
	case errors.Is(err, service.ErrJobNotReady):
		return response.JobNotReady(c)
	default:
		return response.ServiceError(c, err.Error())
	}
}
