package engine

import (
	"fmt"
	"strconv"

	jsoniter "github.com/json-iterator/go"
	"github.com/teslashibe/go-posedrive/pkg/input"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Engine methods on the Player object.
const (
	MethodSetMovementDirection  = "SetMovementDirection"
	MethodSetHorizontalMovement = "SetHorizontalMovement"
	MethodSetVerticalMovement   = "SetVerticalMovement"
	MethodResetExternalInput    = "ResetExternalInput"
	MethodMoveUp                = "MoveUp"
	MethodMoveDown              = "MoveDown"
	MethodMoveLeft              = "MoveLeft"
	MethodMoveRight             = "MoveRight"
)

// Encoder translates a direction into the engine's command shape.
type Encoder interface {
	Name() string
	Encode(d input.Direction) []Command
}

// EncoderByName returns "vector", "axis" or "discrete".
func EncoderByName(name string) (Encoder, error) {
	switch name {
	case "", "vector":
		return VectorEncoder{}, nil
	case "axis":
		return AxisEncoder{}, nil
	case "discrete":
		return DiscreteEncoder{}, nil
	default:
		return nil, fmt.Errorf("unknown encoder %q", name)
	}
}

// VectorEncoder sends the whole direction as one JSON payload {"x":..,"y":..}.
type VectorEncoder struct{}

func (VectorEncoder) Name() string { return "vector" }

func (VectorEncoder) Encode(d input.Direction) []Command {
	payload, _ := json.Marshal(d)
	return []Command{{
		Target:  PlayerTarget,
		Method:  MethodSetMovementDirection,
		Payload: string(payload),
	}}
}

// AxisEncoder sets each axis separately; rest resets external input.
type AxisEncoder struct{}

func (AxisEncoder) Name() string { return "axis" }

func (AxisEncoder) Encode(d input.Direction) []Command {
	if d.IsNeutral() {
		return []Command{{Target: PlayerTarget, Method: MethodResetExternalInput}}
	}
	return []Command{
		{Target: PlayerTarget, Method: MethodSetHorizontalMovement, Payload: formatAxis(d.X)},
		{Target: PlayerTarget, Method: MethodSetVerticalMovement, Payload: formatAxis(d.Y)},
	}
}

func formatAxis(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// DiscreteEncoder sends one Move* command per non-zero axis with payload
// "1"; rest resets external input.
type DiscreteEncoder struct{}

func (DiscreteEncoder) Name() string { return "discrete" }

func (DiscreteEncoder) Encode(d input.Direction) []Command {
	if d.IsNeutral() {
		return []Command{{Target: PlayerTarget, Method: MethodResetExternalInput}}
	}

	var cmds []Command
	switch {
	case d.X > 0:
		cmds = append(cmds, Command{Target: PlayerTarget, Method: MethodMoveRight, Payload: "1"})
	case d.X < 0:
		cmds = append(cmds, Command{Target: PlayerTarget, Method: MethodMoveLeft, Payload: "1"})
	}
	switch {
	case d.Y > 0:
		cmds = append(cmds, Command{Target: PlayerTarget, Method: MethodMoveUp, Payload: "1"})
	case d.Y < 0:
		cmds = append(cmds, Command{Target: PlayerTarget, Method: MethodMoveDown, Payload: "1"})
	}
	return cmds
}
