package tracking

import (
	"math"

	"github.com/teslashibe/go-posedrive/pkg/debug"
	"github.com/teslashibe/go-posedrive/pkg/input"
	"github.com/teslashibe/go-posedrive/pkg/pose"
)

// Smoothing is the per-axis EMA accumulator.
type Smoothing struct {
	Horizontal float64 `json:"horizontal"`
	Vertical   float64 `json:"vertical"`
}

// Processor converts landmarks into a direction relative to a calibration.
//
// The vertical axis is "up is positive" to match the keyboard: image Y grows
// downward, so a nose dropping toward the shoulders yields negative Y.
// Not safe for concurrent use.
type Processor struct {
	config    Config
	smoothing Smoothing
}

// NewProcessor creates a processor with the given tuning.
func NewProcessor(config Config) *Processor {
	return &Processor{config: config}
}

// Process computes the direction for one frame. It returns false when a
// required landmark is missing or below FrameMinScore, or the calibration is
// unusable; the smoothing state is left untouched in that case.
func (p *Processor) Process(l pose.Landmarks, calib Calibration) (input.Direction, bool) {
	if calib.ShoulderWidth <= 0 {
		return input.Direction{}, false
	}

	minScore := p.config.FrameMinScore
	left, ok := l.Confident(pose.LeftShoulder, minScore)
	if !ok {
		return input.Direction{}, false
	}
	right, ok := l.Confident(pose.RightShoulder, minScore)
	if !ok {
		return input.Direction{}, false
	}
	nose, ok := l.Confident(pose.Nose, minScore)
	if !ok {
		return input.Direction{}, false
	}

	midX := (left.X + right.X) / 2
	midY := (left.Y + right.Y) / 2
	ref := calib.noseOffset()

	rawH := ((nose.X - midX) - ref.X) / calib.ShoulderWidth
	rawV := -((nose.Y - midY) - ref.Y) / calib.ShoulderWidth
	if p.config.MirrorX {
		rawH = -rawH
	}
	// Non-finite input would stick in the accumulator.
	if math.IsNaN(rawH+rawV) || math.IsInf(rawH+rawV, 0) {
		return input.Direction{}, false
	}

	a := p.config.SmoothingAlpha
	p.smoothing.Horizontal = p.smoothing.Horizontal*(1-a) + rawH*a
	p.smoothing.Vertical = p.smoothing.Vertical*(1-a) + rawV*a

	dir := input.Direction{
		X: p.shape(p.smoothing.Horizontal),
		Y: p.shape(p.smoothing.Vertical),
	}

	debug.PoseLog("tilt raw=(%.3f, %.3f) smoothed=(%.3f, %.3f) out=%s",
		rawH, rawV, p.smoothing.Horizontal, p.smoothing.Vertical, dir)

	return dir, true
}

// shape applies the dead zone, then sensitivity with a hard ±1 clamp.
func (p *Processor) shape(v float64) float64 {
	if math.Abs(v) <= p.config.DeadZone {
		return 0
	}
	return math.Copysign(math.Min(math.Abs(v)*p.config.Sensitivity, 1), v)
}

// Calibrated is called after a new reference is captured.
func (p *Processor) Calibrated() {
	if p.config.ResetSmoothingOnCalibrate {
		p.ResetSmoothing()
	}
}

// ResetSmoothing clears the EMA accumulator.
func (p *Processor) ResetSmoothing() {
	p.smoothing = Smoothing{}
}

// Smoothing returns the accumulator.
func (p *Processor) Smoothing() Smoothing {
	return p.smoothing
}

// Config returns the current tuning.
func (p *Processor) Config() Config {
	return p.config
}
