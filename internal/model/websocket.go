package model

// WebSocket message types
const (
	WSMessageTypeSnapshot = "snapshot"
	WSMessageTypeProject  = "project"
	WSMessageTypeEvent    = "event"
	WSMessageTypeError    = "error"
	WSMessageTypePing     = "ping"
	WSMessageTypePong     = "pong"
)

// WSMessage represents a generic WebSocket message
type WSMessage struct {
	Type string `json:"type"`
}

// WSSnapshotMessage carries the full dashboard state
type WSSnapshotMessage struct {
	Type     string    `json:"type"`
	Snapshot *Snapshot `json:"snapshot"`
}

// WSProjectMessage carries a single project plus the connection label
type WSProjectMessage struct {
	Type      string   `json:"type"`
	Tick      uint64   `json:"tick"`
	Connected bool     `json:"connected"`
	Project   *Project `json:"project"`
}

// WSEventMessage carries one status transition
type WSEventMessage struct {
	Type  string `json:"type"`
	Event Event  `json:"event"`
}

// WSErrorMessage represents an error
type WSErrorMessage struct {
	Type  string  `json:"type"`
	Error WSError `json:"error"`
}

// WSError represents error details
type WSError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
