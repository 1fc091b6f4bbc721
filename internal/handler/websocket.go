package handler

import (
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"

	ws "github.com/renderscope/api/internal/websocket"
	"github.com/renderscope/api/pkg/response"
)

type WebSocketHandler struct {
	hub    *ws.Hub
	source ws.SnapshotSource
}

func NewWebSocketHandler(hub *ws.Hub, source ws.SnapshotSource) *WebSocketHandler {
	return &WebSocketHandler{hub: hub, source: source}
}

// RequireUpgrade rejects plain HTTP requests under /ws.
func (h *WebSocketHandler) RequireUpgrade(c *fiber.Ctx) error {
	if websocket.IsWebSocketUpgrade(c) {
		return c.Next()
	}
	return fiber.ErrUpgradeRequired
}

// ResolveTopic checks the topic before upgrading so unknown projects get a 404.
func (h *WebSocketHandler) ResolveTopic(c *fiber.Ctx) error {
	topic := c.Params("topic")
	initial, ok := ws.InitialMessage(h.source.Snapshot(), topic)
	if !ok {
		return response.NotFound(c, "Project not found")
	}
	c.Locals("topic", topic)
	c.Locals("initial", initial)
	return c.Next()
}

// Dashboard streams snapshots for the resolved topic.
func (h *WebSocketHandler) Dashboard() fiber.Handler {
	return websocket.New(func(c *websocket.Conn) {
		topic, _ := c.Locals("topic").(string)
		initial, _ := c.Locals("initial").([]byte)
		h.hub.HandleConnection(c, topic, initial)
	})
}
