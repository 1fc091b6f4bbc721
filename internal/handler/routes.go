package handler

import (
	"github.com/gofiber/fiber/v2"

	"github.com/renderscope/api/internal/middleware"
	"github.com/renderscope/api/pkg/response"
)

// Routes bundles everything SetupRoutes mounts.
type Routes struct {
	Auth          *middleware.AuthMiddleware
	RateLimiter   *middleware.RateLimiter
	ExportPerHour int

	Login     *AuthHandler
	Dashboard *DashboardHandler
	Editor    *EditorHandler
	Export    *ExportHandler
	WebSocket *WebSocketHandler
}

// SetupRoutes registers the public, authenticated and WebSocket routes on app.
func SetupRoutes(app *fiber.App, r Routes) {
	app.Get("/health", r.Dashboard.Health)

	app.Post("/auth/login", r.Login.Login)

	api := app.Group("/api", r.Auth.Authenticate())

	api.Post("/auth/refresh", r.Login.Refresh)
	api.Get("/auth/me", r.Login.Me)

	api.Get("/projects", r.Dashboard.ListProjects)
	api.Get("/projects/:projectId", r.Dashboard.GetProject)
	api.Get("/projects/:projectId/categories/:categoryId/cameras/:cameraId", r.Dashboard.GetCamera)

	api.Post("/projects/:projectId/cameras", r.Editor.AddCamera)
	api.Post("/projects/:projectId/cameras/bulk", r.Editor.BulkImport)
	api.Post("/projects/:projectId/cameras/validate", r.Editor.Validate)
	api.Patch("/projects/:projectId/categories/:categoryId/cameras/:cameraId", r.Editor.UpdateCamera)
	api.Delete("/projects/:projectId/categories/:categoryId/cameras/:cameraId", r.Editor.RemoveCamera)
	api.Get("/projects/:projectId/folders", r.Editor.Folders)

	api.Get("/jobs/:jobId", r.Export.Job)
	api.Get("/jobs/:jobId/download", r.Export.Download)

	api.Get("/stats", r.Dashboard.Stats)
	api.Get("/connection", r.Dashboard.Connection)

	export := api.Group("/export", r.RateLimiter.ExportLimit(r.ExportPerHour))
	export.Get("/projects/:projectId", r.Export.Project)
	export.Get("/projects/:projectId/all", r.Export.All)
	export.Get("/projects/:projectId/categories/:categoryId/cameras/:cameraId", r.Export.Camera)

	if r.WebSocket != nil {
		app.Use("/ws", r.WebSocket.RequireUpgrade)
		app.Get("/ws/dashboard/:topic", r.Auth.AuthenticateQuery(), r.WebSocket.ResolveTopic, r.WebSocket.Dashboard())
	}
}

// ErrorHandler renders fiber errors in the API error envelope.
func ErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal Server Error"

	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
		message = e.Message
	}

	errCode := response.CodeServiceError
	switch code {
	case fiber.StatusNotFound:
		errCode = response.CodeNotFound
	case fiber.StatusUnauthorized:
		errCode = response.CodeUnauthorized
	}

	return response.Error(c, code, errCode, message, nil)
}
