// Package protocol defines the WebSocket message types exchanged with the
// engine host page and the control UI.
package protocol

import (
	"encoding/json"
	"fmt"
	"time"

	jsoniter "github.com/json-iterator/go"
)

var codec = jsoniter.ConfigCompatibleWithStandardLibrary

// MessageType identifies the type of WebSocket message
type MessageType string

const (
	// Bridge → engine host
	TypeCommand   MessageType = "command"   // Engine call
	TypeBootstrap MessageType = "bootstrap" // Start loading the engine

	// Engine host → bridge
	TypeLoaded   MessageType = "loaded"   // Engine finished loading (once)
	TypeProgress MessageType = "progress" // Load progress
	TypeError    MessageType = "error"    // Engine error

	// UI → server
	TypeKey MessageType = "key" // Keyboard event

	// Server → UI
	TypeStatus MessageType = "status" // Pipeline status snapshot

	// Bidirectional
	TypePing MessageType = "ping" // Health check
	TypePong MessageType = "pong" // Health check response
)

// Message is the base wrapper for all WebSocket messages
type Message struct {
	Type      MessageType     `json:"type"`
	Timestamp int64           `json:"ts,omitempty"` // Unix milliseconds
	Data      json.RawMessage `json:"data,omitempty"`
}

// NewMessage creates a new message with the current timestamp
func NewMessage(msgType MessageType, data any) (*Message, error) {
	var rawData json.RawMessage
	if data != nil {
		var err error
		rawData, err = codec.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal message data: %w", err)
		}
	}

	return &Message{
		Type:      msgType,
		Timestamp: time.Now().UnixMilli(),
		Data:      rawData,
	}, nil
}

// ParseData unmarshals the message data into the provided struct
func (m *Message) ParseData(v any) error {
	if m.Data == nil {
		return nil
	}
	return codec.Unmarshal(m.Data, v)
}

// Bytes returns the JSON-encoded message
func (m *Message) Bytes() ([]byte, error) {
	return codec.Marshal(m)
}

// ParseMessage parses a JSON message from bytes
func ParseMessage(data []byte) (*Message, error) {
	var msg Message
	if err := codec.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("failed to parse message: %w", err)
	}
	if msg.Type == "" {
		return nil, fmt.Errorf("failed to parse message: missing type")
	}
	return &msg, nil
}

// =============================================================================
// Engine message types
// =============================================================================

// CommandData is one engine call, e.g. Player.SetMovementDirection.
type CommandData struct {
	Target  string `json:"target"`
	Method  string `json:"method"`
	Payload string `json:"payload,omitempty"`
}

// BootstrapData asks the host to start loading the engine.
type BootstrapData struct {
	Reason string `json:"reason,omitempty"`
}

// ProgressData is the engine load progress in [0, 1].
type ProgressData struct {
	Progress float64 `json:"progress"`
}

// ErrorData is an engine error message.
type ErrorData struct {
	Message string `json:"message"`
}

// =============================================================================
// UI message types
// =============================================================================

// KeyData is a browser keyboard event. Code is KeyboardEvent.code.
type KeyData struct {
	Code    string `json:"code"`
	Pressed bool   `json:"pressed"`
}

// =============================================================================
// Bidirectional Message Types
// =============================================================================

// PingData is a health check
type PingData struct {
	ID        string `json:"id"`
	Timestamp int64  `json:"ts"`
}

// PongData is a health check response
type PongData struct {
	ID        string `json:"id"`
	PingTS    int64  `json:"ping_ts"`
	PongTS    int64  `json:"pong_ts"`
	LatencyMs int64  `json:"latency_ms"`
}
