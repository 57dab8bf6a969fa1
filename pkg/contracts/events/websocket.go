// Package events contains the event contracts broadcast over WebSocket
// while study runs execute.
package events

import (
	"time"
)

// MessageType distinguishes the frames on the WebSocket wire.
type MessageType string

const (
	// Run snapshots carry the pipeline state and dominate the traffic.
	MessageTypeRunSnapshot MessageType = "run:snapshot"

	MessageTypeSystemStatus MessageType = "system:status"

	// Connection lifecycle
	MessageTypeConnect    MessageType = "connect"
	MessageTypeDisconnect MessageType = "disconnect"
	MessageTypeError      MessageType = "error"
)

// BaseMessage is the envelope shared by every frame.
type BaseMessage struct {
	ID        string      `json:"id,omitempty"`
	Type      MessageType `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	TraceID   string      `json:"trace_id,omitempty"`
}

// WebSocketMessage is an envelope with an arbitrary payload.
type WebSocketMessage struct {
	BaseMessage
	Data interface{} `json:"data,omitempty"`
}

// ErrorMessage reports a failure to connected viewers. Fatal tells the
// client whether the run it watches can still make progress.
type ErrorMessage struct {
	BaseMessage
	Data struct {
		Code    string `json:"code"`
		Message string `json:"message"`
		Fatal   bool   `json:"fatal"`
	} `json:"data"`
}

// SystemStatusEvent carries the periodic health summary.
type SystemStatusEvent struct {
	BaseMessage
	Data struct {
		Status     string            `json:"status"` // healthy|degraded|unhealthy
		Components map[string]string `json:"components"`
		Uptime     string            `json:"uptime"`
		Version    string            `json:"version"`
	} `json:"data"`
}
