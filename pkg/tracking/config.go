// Package tracking turns body poses into movement directions.
//
// A Calibrator captures the user's neutral pose; a Processor compares each
// later frame against it and produces a smoothed, dead-zoned, scaled
// input.Direction; a Loop paces frame capture and pose estimation.
package tracking

import (
	"fmt"
	"time"
)

// Config holds all tunable parameters for pose tracking.
type Config struct {
	// Confidence
	CalibrationMinScore float64 // Calibration landmarks need score > this
	FrameMinScore       float64 // Per-frame landmarks need score > this

	// Signal shaping
	SmoothingAlpha float64 // EMA weight of the new sample (0-1)
	DeadZone       float64 // |smoothed| <= this collapses to 0
	Sensitivity    float64 // Gain applied after the dead zone, then clamped to ±1
	MirrorX        bool    // Flip horizontal for mirrored camera feeds

	// Calibration
	ResetSmoothingOnCalibrate bool // Clear the EMA when a new reference is captured

	// Frame loop
	MaxFPS      float64       // Upper bound on estimate calls per second
	StatsWindow time.Duration // FPS is recomputed once per window
}

// DefaultConfig returns the standard tuning.
func DefaultConfig() Config {
	return Config{
		CalibrationMinScore: 0.5,
		FrameMinScore:       0.3,

		SmoothingAlpha: 0.3,
		DeadZone:       0.08,
		Sensitivity:    2.0,

		ResetSmoothingOnCalibrate: true,

		MaxFPS:      30,
		StatsWindow: time.Second,
	}
}

// ResponsiveConfig reacts faster at the cost of more jitter.
func ResponsiveConfig() Config {
	cfg := DefaultConfig()
	cfg.SmoothingAlpha = 0.5
	cfg.DeadZone = 0.06
	cfg.Sensitivity = 2.5
	return cfg
}

// SteadyConfig favors stillness; small sways are ignored.
func SteadyConfig() Config {
	cfg := DefaultConfig()
	cfg.SmoothingAlpha = 0.2
	cfg.DeadZone = 0.1
	cfg.Sensitivity = 1.8
	cfg.MaxFPS = 20
	return cfg
}

// ConfigByName returns a preset: "default", "responsive" or "steady".
func ConfigByName(name string) (Config, error) {
	switch name {
	case "", "default":
		return DefaultConfig(), nil
	case "responsive":
		return ResponsiveConfig(), nil
	case "steady":
		return SteadyConfig(), nil
	default:
		return Config{}, fmt.Errorf("unknown tracking preset %q", name)
	}
}
