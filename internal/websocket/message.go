package websocket

import (
	"encoding/json"
	"time"
)

// Message types pushed to clients.
const (
	TypeConnection     = "connection"
	TypeUploadProgress = "upload:progress"
	TypeUploadStatus   = "upload:status"
)

// Message is the envelope of every frame the server writes.
type Message struct {
	Type      string    `json:"type"`
	Data      any       `json:"data,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	TraceID   string    `json:"trace_id,omitempty"`
}

func encode(msgType string, data any, traceID string) ([]byte, error) {
	return json.Marshal(Message{
		Type:      msgType,
		Data:      data,
		Timestamp: time.Now().UTC(),
		TraceID:   traceID,
	})
}
