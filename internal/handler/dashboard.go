package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/renderscope/api/internal/service"
	"github.com/renderscope/api/pkg/response"
)

type DashboardHandler struct {
	service *service.DashboardService
}

func NewDashboardHandler(svc *service.DashboardService) *DashboardHandler {
	return &DashboardHandler{service: svc}
}

// Health handles GET /health
func (h *DashboardHandler) Health(c *fiber.Ctx) error {
	conn := h.service.Connection()
	return c.JSON(fiber.Map{
		"status":    "ok",
		"connected": conn.Connected,
		"tick":      conn.Tick,
	})
}

// ListProjects handles GET /api/projects
func (h *DashboardHandler) ListProjects(c *fiber.Ctx) error {
	return response.OK(c, h.service.ListProjects())
}

// GetProject handles GET /api/projects/:projectId
func (h *DashboardHandler) GetProject(c *fiber.Ctx) error {
	project, err := h.service.GetProject(c.Params("projectId"))
	if err != nil {
		return lookupError(c, err)
	}
	return response.OK(c, project)
}

// GetCamera handles GET /api/projects/:projectId/categories/:categoryId/cameras/:cameraId
func (h *DashboardHandler) GetCamera(c *fiber.Ctx) error {
	result, err := h.service.CameraDetail(c.Params("projectId"), c.Params("categoryId"), c.Params("cameraId"))
	if err != nil {
		return lookupError(c, err)
	}
	return response.OK(c, result)
}

// Stats handles GET /api/stats
func (h *DashboardHandler) Stats(c *fiber.Ctx) error {
	return response.OK(c, h.service.GetStats())
}

// Connection handles GET /api/connection
func (h *DashboardHandler) Connection(c *fiber.Ctx) error {
	return response.OK(c, h.service.Connection())
}

func lookupError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, service.ErrProjectNotFound):
		return response.NotFound(c, "Project not found")
	case errors.Is(err, service.ErrCategoryNotFound):
		return response.NotFound(c, "Category not found")
	case errors.Is(err, service.ErrCameraNotFound):
		return response.NotFound(c, "Camera not found")
	default:
		return response.ServiceError(c, err.Error())
	}
}
