package websocket

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/google/uuid"

	"github.com/renderscope/api/internal/logging"
	"github.com/renderscope/api/internal/model"
)

// TopicAll receives full snapshots. Any other topic is a project id.
const TopicAll = "all"

const pingPeriod = 30 * time.Second

// SnapshotSource publishes dashboard snapshots
type SnapshotSource interface {
	Subscribe(id string, ch chan<- *model.Snapshot) error
	Unsubscribe(id string) error
	Snapshot() *model.Snapshot
}

// Client represents a WebSocket client
type Client struct {
	ID    string
	Topic string
	Conn  *websocket.Conn
	Send  chan []byte

	mu     sync.Mutex
	closed bool
}

// NewClient creates a client with a buffered send queue.
func NewClient(topic string, conn *websocket.Conn) *Client {
	return &Client{
		ID:    uuid.New().String(),
		Topic: topic,
		Conn:  conn,
		Send:  make(chan []byte, 256),
	}
}

// TrySend queues data without blocking. It returns false if the queue is full or closed.
func (c *Client) TrySend(data []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return false
	}
	select {
	case c.Send <- data:
		return true
	default:
		return false
	}
}

func (c *Client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.closed {
		c.closed = true
		close(c.Send)
	}
}

// Hub maintains active WebSocket connections
type Hub struct {
	// Clients grouped by topic
	clients map[string]map[*Client]bool

	register   chan *Client
	unregister chan *Client
	broadcast  chan *BroadcastMessage
	done       chan struct{}

	mu     sync.RWMutex
	logger *slog.Logger
}

// BroadcastMessage represents a message to broadcast
type BroadcastMessage struct {
	Topic   string
	Message []byte
}

// NewHub creates a new Hub
func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		clients:    make(map[string]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *BroadcastMessage, 256),
		done:       make(chan struct{}),
		logger:     logging.WithComponent(logger, "websocket"),
	}
}

// Run starts the hub's main loop and returns when ctx is done.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for topic, clients := range h.clients {
				for client := range clients {
					client.close()
				}
				delete(h.clients, topic)
			}
			h.mu.Unlock()
			return

		case client := <-h.register:
			h.mu.Lock()
			if h.clients[client.Topic] == nil {
				h.clients[client.Topic] = make(map[*Client]bool)
			}
			h.clients[client.Topic][client] = true
			h.mu.Unlock()
			h.logger.Debug("client registered", "client_id", client.ID, "topic", client.Topic)

		case client := <-h.unregister:
			h.mu.Lock()
			h.remove(client)
			h.mu.Unlock()
			h.logger.Debug("client unregistered", "client_id", client.ID, "topic", client.Topic)

		case msg := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients[msg.Topic] {
				if !client.TrySend(msg.Message) {
					h.logger.Warn("client send queue full, disconnecting", "client_id", client.ID)
					h.remove(client)
				}
			}
			h.mu.Unlock()
		}
	}
}

// remove drops a client and closes its queue. Caller holds mu.
func (h *Hub) remove(client *Client) {
	clients, ok := h.clients[client.Topic]
	if !ok {
		return
	}
	if _, ok := clients[client]; !ok {
		return
	}
	delete(clients, client)
	client.close()
	if len(clients) == 0 {
		delete(h.clients, client.Topic)
	}
}

// Register adds a new client
func (h *Hub) Register(client *Client) {
	select {
	case h.register <- client:
	case <-h.done:
	}
}

// Unregister removes a client
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// ClientCount returns the number of connected clients on a topic.
func (h *Hub) ClientCount(topic string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[topic])
}

func (h *Hub) send(topic string, data []byte) {
	select {
	case h.broadcast <- &BroadcastMessage{Topic: topic, Message: data}:
	case <-h.done:
	}
}

// Relay forwards snapshots from a source to the hub
type Relay struct {
	hub    *Hub
	source SnapshotSource
	id     string
	ch     chan *model.Snapshot
}

// NewRelay subscribes to source before returning, so every snapshot published
// afterwards reaches the hub once Run is called.
func (h *Hub) NewRelay(source SnapshotSource) (*Relay, error) {
	r := &Relay{
		hub:    h,
		source: source,
		id:     "websocket-hub-" + uuid.New().String(),
		ch:     make(chan *model.Snapshot, 8),
	}
	if err := source.Subscribe(r.id, r.ch); err != nil {
		return nil, fmt.Errorf("failed to subscribe relay: %w", err)
	}
	return r, nil
}

// Run broadcasts snapshots until ctx is done, then unsubscribes.
func (r *Relay) Run(ctx context.Context) {
	defer func() {
		if err := r.source.Unsubscribe(r.id); err != nil {
			r.hub.logger.Warn("failed to unsubscribe relay", "error", err)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case snap := <-r.ch:
			r.hub.BroadcastSnapshot(snap)
		}
	}
}

// BroadcastSnapshot sends snap to TopicAll, each project to its own topic,
// and every event to both.
func (h *Hub) BroadcastSnapshot(snap *model.Snapshot) {
	data, err := SnapshotMessage(snap)
	if err != nil {
		h.logger.Error("failed to marshal snapshot message", "error", err)
		return
	}
	h.send(TopicAll, data)

	for i := range snap.Projects {
		project := &snap.Projects[i]
		if h.ClientCount(project.ID) == 0 {
			continue
		}
		data, err := ProjectMessage(snap, project)
		if err != nil {
			h.logger.Error("failed to marshal project message", "error", err, "project_id", project.ID)
			continue
		}
		h.send(project.ID, data)
	}

	for _, ev := range snap.Events {
		data, err := json.Marshal(model.WSEventMessage{Type: model.WSMessageTypeEvent, Event: ev})
		if err != nil {
			h.logger.Error("failed to marshal event message", "error", err)
			continue
		}
		h.send(TopicAll, data)
		h.send(ev.ProjectID, data)
	}
}

// SnapshotMessage encodes a full snapshot message.
func SnapshotMessage(snap *model.Snapshot) ([]byte, error) {
	return json.Marshal(model.WSSnapshotMessage{Type: model.WSMessageTypeSnapshot, Snapshot: snap})
}

// ProjectMessage encodes a single project message.
func ProjectMessage(snap *model.Snapshot, project *model.Project) ([]byte, error) {
	return json.Marshal(model.WSProjectMessage{
		Type:      model.WSMessageTypeProject,
		Tick:      snap.Tick,
		Connected: snap.Connected,
		Project:   project,
	})
}

// InitialMessage encodes the current state for a newly connected client.
// It returns false when the topic names an unknown project.
func InitialMessage(snap *model.Snapshot, topic string) ([]byte, bool) {
	if topic == TopicAll {
		data, err := SnapshotMessage(snap)
		return data, err == nil
	}
	project, ok := snap.FindProject(topic)
	if !ok {
		return nil, false
	}
	data, err := ProjectMessage(snap, project)
	return data, err == nil
}

// HandleConnection handles a WebSocket connection
func (h *Hub) HandleConnection(c *websocket.Conn, topic string, initial []byte) {
	client := NewClient(topic, c)
	if initial != nil {
		client.TrySend(initial)
	}

	h.Register(client)
	defer h.Unregister(client)

	// Start writer goroutine
	go func() {
		ticker := time.NewTicker(pingPeriod)
		defer ticker.Stop()

		for {
			select {
			case message, ok := <-client.Send:
				if !ok {
					c.WriteMessage(websocket.CloseMessage, []byte{})
					return
				}
				if err := c.WriteMessage(websocket.TextMessage, message); err != nil {
					return
				}

			case <-ticker.C:
				if err := c.WriteMessage(websocket.PingMessage, nil); err != nil {
					return
				}
			}
		}
	}()

	// Reader loop
	for {
		_, message, err := c.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.logger.Warn("websocket read error", "error", err, "client_id", client.ID)
			}
			break
		}

		var msg model.WSMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			continue
		}

		if msg.Type == model.WSMessageTypePing {
			pong, _ := json.Marshal(model.WSMessage{Type: model.WSMessageTypePong})
			client.TrySend(pong)
		}
	}
}
