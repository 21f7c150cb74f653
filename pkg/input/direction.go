// Package input provides the canonical two-axis control signal and the
// keyboard source that produces it.
//
// Every input source (keyboard, body tilt) reduces to a Direction. The
// vertical axis is "up is positive" for all sources.
package input

import (
	"fmt"
	"math"
)

// Direction is the canonical two-axis control signal.
// Both axes are in [-1, 1]; {0,0} is rest.
type Direction struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Neutral is the rest direction.
var Neutral = Direction{}

// Clamp returns d with both axes limited to [-1, 1].
func (d Direction) Clamp() Direction {
	return Direction{
		X: clamp(d.X, -1, 1),
		Y: clamp(d.Y, -1, 1),
	}
}

// IsNeutral returns true when both axes are exactly zero.
func (d Direction) IsNeutral() bool {
	return d.X == 0 && d.Y == 0
}

// Equal compares two directions exactly
func (d Direction) Equal(other Direction) bool {
	return d.X == other.X && d.Y == other.Y
}

// Delta returns the per-axis absolute difference between d and other.
func (d Direction) Delta(other Direction) (dx, dy float64) {
	return math.Abs(d.X - other.X), math.Abs(d.Y - other.Y)
}

func (d Direction) String() string {
	return fmt.Sprintf("(%.2f, %.2f)", d.X, d.Y)
}

// clamp restricts v to the range [min, max].
func clamp(v, min, max float64) float64 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
