package tracking

import (
	"errors"
	"fmt"
	"math"

	"github.com/teslashibe/go-posedrive/pkg/pose"
)

// Calibration failures. None are fatal; a prior reference survives them.
var (
	ErrMissingLandmark     = errors.New("calibration: landmark missing")
	ErrLowConfidence       = errors.New("calibration: landmark confidence too low")
	ErrDegenerateShoulders = errors.New("calibration: shoulder width is zero")
)

// Point is a position in frame pixels.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Calibration is the user's neutral pose. ShoulderWidth is always > 0.
type Calibration struct {
	ShoulderWidth  float64 `json:"shoulder_width"`
	ShoulderCenter Point   `json:"shoulder_center"`
	NosePosition   Point   `json:"nose_position"`
}

// noseOffset is the nose position relative to the shoulder midpoint.
func (c Calibration) noseOffset() Point {
	return Point{
		X: c.NosePosition.X - c.ShoulderCenter.X,
		Y: c.NosePosition.Y - c.ShoulderCenter.Y,
	}
}

// CalibrationState is the calibrator lifecycle.
type CalibrationState int

const (
	Uninitialized CalibrationState = iota
	Calibrating
	Calibrated
)

func (s CalibrationState) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Calibrating:
		return "calibrating"
	case Calibrated:
		return "calibrated"
	default:
		return "unknown"
	}
}

// calibrationLandmarks are read, in order, from the calibration frame.
var calibrationLandmarks = [...]pose.Landmark{pose.LeftShoulder, pose.RightShoulder, pose.Nose}

// Calibrator holds the reference pose. Not safe for concurrent use; the
// controller goroutine owns it.
type Calibrator struct {
	minScore float64
	state    CalibrationState
	ref      Calibration
	has      bool
}

// NewCalibrator creates a calibrator requiring landmark scores > minScore.
func NewCalibrator(minScore float64) *Calibrator {
	return &Calibrator{minScore: minScore}
}

// Begin marks a calibration as pending until the next Capture.
func (c *Calibrator) Begin() {
	c.state = Calibrating
}

// Capture derives a reference from l. On failure the previous reference,
// if any, is kept and the state falls back to Calibrated or Uninitialized.
func (c *Calibrator) Capture(l pose.Landmarks) (Calibration, error) {
	ref, err := c.derive(l)
	if err != nil {
		if c.has {
			c.state = Calibrated
		} else {
			c.state = Uninitialized
		}
		return Calibration{}, err
	}

	c.ref = ref
	c.has = true
	c.state = Calibrated
	return ref, nil
}

// Cancel abandons a pending calibration, falling back like a failed Capture.
func (c *Calibrator) Cancel() {
	if c.state != Calibrating {
		return
	}
	if c.has {
		c.state = Calibrated
	} else {
		c.state = Uninitialized
	}
}

func (c *Calibrator) derive(l pose.Landmarks) (Calibration, error) {
	var kps [len(calibrationLandmarks)]pose.Keypoint
	for i, id := range calibrationLandmarks {
		kp, ok := l.Get(id)
		if !ok {
			return Calibration{}, fmt.Errorf("%w: %s", ErrMissingLandmark, id)
		}
		if _, ok := l.Confident(id, c.minScore); !ok {
			return Calibration{}, fmt.Errorf("%w: %s score %.2f", ErrLowConfidence, id, kp.Score)
		}
		kps[i] = kp
	}
	left, right, nose := kps[0], kps[1], kps[2]

	width := math.Abs(right.X - left.X)
	if width <= 0 {
		return Calibration{}, ErrDegenerateShoulders
	}

	return Calibration{
		ShoulderWidth: width,
		ShoulderCenter: Point{
			X: (left.X + right.X) / 2,
			Y: (left.Y + right.Y) / 2,
		},
		NosePosition: Point{X: nose.X, Y: nose.Y},
	}, nil
}

// Reference returns the current reference and whether one exists.
func (c *Calibrator) Reference() (Calibration, bool) {
	return c.ref, c.has
}

// State returns the lifecycle state.
func (c *Calibrator) State() CalibrationState {
	return c.state
}
