// Package engine describes the boundary to the embedded game engine: the
// commands sent to it, how a direction is encoded into commands, and the
// readiness gate that holds dispatch back until the engine has loaded.
package engine

import "errors"

// PlayerTarget is the engine object that receives movement commands.
const PlayerTarget = "Player"

// ErrNoEngine is returned when no engine host is connected.
var ErrNoEngine = errors.New("engine: no engine connected")

// Sender delivers one command to the engine.
type Sender interface {
	Send(target, method, payload string) error
}

// SenderFunc adapts a function to Sender.
type SenderFunc func(target, method, payload string) error

// Send calls f.
func (f SenderFunc) Send(target, method, payload string) error {
	return f(target, method, payload)
}

// Command is one engine call.
type Command struct {
	Target  string `json:"target"`
	Method  string `json:"method"`
	Payload string `json:"payload,omitempty"`
}

// SendTo delivers c through s.
func (c Command) SendTo(s Sender) error {
	return s.Send(c.Target, c.Method, c.Payload)
}
