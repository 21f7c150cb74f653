package control

import (
	"github.com/teslashibe/go-posedrive/pkg/input"
	"github.com/teslashibe/go-posedrive/pkg/movement"
	"github.com/teslashibe/go-posedrive/pkg/tracking"
)

// Mode selects which input source drives the character.
type Mode int

const (
	ModeKeyboard Mode = iota
	ModePose
)

func (m Mode) String() string {
	switch m {
	case ModeKeyboard:
		return "keyboard"
	case ModePose:
		return "pose"
	default:
		return "unknown"
	}
}

// ParseMode resolves "keyboard" or "pose".
func ParseMode(s string) (Mode, bool) {
	switch s {
	case "keyboard":
		return ModeKeyboard, true
	case "pose":
		return ModePose, true
	}
	return 0, false
}

// Tuning is every runtime-adjustable parameter. Zero fields are left
// unchanged by SetTuning.
type Tuning struct {
	tracking.TuningParams
	DeltaThreshold float64 `json:"delta_threshold"`
	Encoder        string  `json:"encoder,omitempty"`
}

// Status is a snapshot of the controller, published after every change.
type Status struct {
	Mode        string               `json:"mode"`
	Detecting   bool                 `json:"detecting"`
	Calibration string               `json:"calibration"`
	Reference   tracking.Calibration `json:"reference"`

	Engine         string  `json:"engine"`
	EngineProgress float64 `json:"engine_progress"`
	EngineError    string  `json:"engine_error,omitempty"`

	Keys      input.KeyStates `json:"keys"`
	Direction input.Direction `json:"direction"`
	FPS       float64         `json:"fps"`
	Dispatch  movement.Stats  `json:"dispatch"`
	Tuning    Tuning          `json:"tuning"`
	LastError string          `json:"last_error,omitempty"`
}

// StatusSink receives status snapshots from the controller goroutine.
// Implementations must not block.
type StatusSink interface {
	PublishStatus(Status)
}

// StatusFunc adapts a function to StatusSink.
type StatusFunc func(Status)

// PublishStatus calls f.
func (f StatusFunc) PublishStatus(s Status) { f(s) }
