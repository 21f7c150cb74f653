package tracking

// TuningParams holds the real-time adjustable tracking parameters.
// These can be modified via the tuning API without restarting.
type TuningParams struct {
	SmoothingAlpha float64 `json:"smoothing_alpha"` // EMA alpha (0.2=steady, 0.5=responsive)
	DeadZone       float64 `json:"dead_zone"`
	Sensitivity    float64 `json:"sensitivity"`
	MaxFPS         float64 `json:"max_fps"`
}

// Tuning returns the processor's current shaping parameters. MaxFPS is
// filled in by the caller that owns the frame loop.
func (p *Processor) Tuning() TuningParams {
	return TuningParams{
		SmoothingAlpha: p.config.SmoothingAlpha,
		DeadZone:       p.config.DeadZone,
		Sensitivity:    p.config.Sensitivity,
		MaxFPS:         p.config.MaxFPS,
	}
}

// SetTuning updates shaping parameters at runtime.
// Only non-zero values are applied.
func (p *Processor) SetTuning(params TuningParams) {
	if params.SmoothingAlpha > 0 {
		p.config.SmoothingAlpha = clamp(params.SmoothingAlpha, 0.01, 1)
	}
	if params.DeadZone > 0 {
		p.config.DeadZone = clamp(params.DeadZone, 0, 0.5)
	}
	if params.Sensitivity > 0 {
		p.config.Sensitivity = clamp(params.Sensitivity, 0.1, 10)
	}
	if params.MaxFPS > 0 {
		p.config.MaxFPS = clampFPS(params.MaxFPS)
	}
}

// clampFPS keeps the frame rate in 1-60 Hz.
func clampFPS(fps float64) float64 {
	return clamp(fps, 1, 60)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
