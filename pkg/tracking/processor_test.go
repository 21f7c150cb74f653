package tracking

import (
	"math"
	"testing"

	"github.com/teslashibe/go-posedrive/pkg/input"
	"github.com/teslashibe/go-posedrive/pkg/pose"
)

func newCalibrated(t *testing.T, cfg Config) (*Processor, Calibration) {
	t.Helper()
	c := NewCalibrator(cfg.CalibrationMinScore)
	return NewProcessor(cfg), mustCalibrate(c, neutral(0.9))
}

func TestProcessor_CalibrationPoseIsNeutral(t *testing.T) {
	p, ref := newCalibrated(t, DefaultConfig())

	for i := 0; i < 10; i++ {
		dir, ok := p.Process(neutral(0.9), ref)
		if !ok {
			t.Fatalf("frame %d rejected", i)
		}
		if !dir.IsNeutral() {
			t.Fatalf("frame %d: got %v, want neutral", i, dir)
		}
	}
}

func TestProcessor_ConvergesToNeutral(t *testing.T) {
	p, ref := newCalibrated(t, DefaultConfig())

	for i := 0; i < 5; i++ {
		p.Process(tilted(40, 0), ref)
	}
	if dir, _ := p.Process(tilted(40, 0), ref); dir.X == 0 {
		t.Fatal("sustained tilt should move")
	}

	var dir input.Direction
	for i := 0; i < 30; i++ {
		dir, _ = p.Process(neutral(0.9), ref)
	}
	if !dir.IsNeutral() {
		t.Errorf("after returning to neutral: got %v", dir)
	}
	if s := p.Smoothing(); s.Horizontal > DefaultConfig().DeadZone {
		t.Errorf("smoothing did not decay: %+v", s)
	}
}

func TestProcessor_Steps(t *testing.T) {
	p, ref := newCalibrated(t, DefaultConfig())

	// nose 20px right on 100px shoulders: raw 0.2
	dir, ok := p.Process(tilted(20, 0), ref)
	if !ok {
		t.Fatal("frame rejected")
	}
	// smoothed 0.06 is inside the dead zone
	if !approx(p.Smoothing().Horizontal, 0.06) || dir.X != 0 {
		t.Errorf("first frame: smoothed=%v out=%v", p.Smoothing().Horizontal, dir.X)
	}

	dir, _ = p.Process(tilted(20, 0), ref)
	// 0.06*0.7 + 0.2*0.3 = 0.102, scaled by 2
	if !approx(p.Smoothing().Horizontal, 0.102) || !approx(dir.X, 0.204) {
		t.Errorf("second frame: smoothed=%v out=%v", p.Smoothing().Horizontal, dir.X)
	}
	if dir.Y != 0 {
		t.Errorf("vertical should stay 0, got %v", dir.Y)
	}
}

func TestProcessor_DistanceInvariant(t *testing.T) {
	near := NewProcessor(DefaultConfig())
	far := NewProcessor(DefaultConfig())
	c := NewCalibrator(0.5)

	nearRef := mustCalibrate(c, body(100, 200, 300, 200, 200, 100, 0.9))
	farRef := mustCalibrate(c, body(100, 200, 150, 200, 125, 175, 0.9))

	var dn, df input.Direction
	for i := 0; i < 10; i++ {
		dn, _ = near.Process(body(100, 200, 300, 200, 240, 100, 0.9), nearRef) // 20% of width
		df, _ = far.Process(body(100, 200, 150, 200, 135, 175, 0.9), farRef)   // 20% of width
	}
	if !approx(dn.X, df.X) {
		t.Errorf("near %v != far %v", dn.X, df.X)
	}
}

func TestProcessor_RejectsLowConfidence(t *testing.T) {
	p, ref := newCalibrated(t, DefaultConfig())

	for i := 0; i < 5; i++ {
		p.Process(tilted(40, 0), ref)
	}
	before := p.Smoothing()

	frame := tilted(-40, 0)
	nose, _ := frame.Get(pose.Nose)
	nose.Score = 0.3
	frame.Set(pose.Nose, nose)

	if _, ok := p.Process(frame, ref); ok {
		t.Error("nose at 0.3 should be rejected")
	}
	if _, ok := p.Process(pose.Landmarks{}, ref); ok {
		t.Error("empty landmarks should be rejected")
	}
	if p.Smoothing() != before {
		t.Errorf("rejected frames changed smoothing: %+v -> %+v", before, p.Smoothing())
	}
}

func TestProcessor_NonFiniteFrameIsSkipped(t *testing.T) {
	p, ref := newCalibrated(t, DefaultConfig())

	frame := tilted(60, 0)
	nose, _ := frame.Get(pose.Nose)
	nose.X = math.NaN()
	frame.Set(pose.Nose, nose)
	if _, ok := p.Process(frame, ref); ok {
		t.Error("NaN nose should be rejected")
	}

	if _, ok := p.Process(body(100, 200, 200, 200, 150, 150, math.NaN()), ref); ok {
		t.Error("NaN scores should be rejected")
	}

	var dir input.Direction
	for i := 0; i < 50; i++ {
		var ok bool
		if dir, ok = p.Process(tilted(60, 0), ref); !ok {
			t.Fatalf("frame %d rejected", i)
		}
	}
	if math.IsNaN(dir.X) || dir.X != 1 {
		t.Errorf("after a bad frame: got %v, want full right", dir)
	}
}

func TestProcessor_RequiresCalibration(t *testing.T) {
	p := NewProcessor(DefaultConfig())
	if _, ok := p.Process(neutral(0.9), Calibration{}); ok {
		t.Error("zero calibration should be rejected")
	}
}

func TestProcessor_Shape(t *testing.T) {
	p := NewProcessor(DefaultConfig())

	tests := []struct {
		in, want float64
	}{
		{0, 0},
		{0.08, 0},
		{-0.08, 0},
		{0.081, 0.162},
		{-0.081, -0.162},
		{0.3, 0.6},
		{0.5, 1},
		{0.75, 1},
		{-3, -1},
	}
	for _, tt := range tests {
		if got := p.shape(tt.in); !approx(got, tt.want) {
			t.Errorf("shape(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestProcessor_ClampIsExact(t *testing.T) {
	p, ref := newCalibrated(t, DefaultConfig())

	var dir input.Direction
	for i := 0; i < 50; i++ {
		dir, _ = p.Process(tilted(200, -200), ref)
	}
	if dir.X != 1 || dir.Y != 1 {
		t.Errorf("got %v, want exactly (1, 1)", dir)
	}
}

func TestProcessor_VerticalMatchesKeyboard(t *testing.T) {
	tests := []struct {
		name string
		dy   float64
		key  string
	}{
		{"nose down", 40, "ArrowDown"},
		{"nose up", -40, "ArrowUp"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, ref := newCalibrated(t, DefaultConfig())
			var dir input.Direction
			for i := 0; i < 10; i++ {
				dir, _ = p.Process(tilted(0, tt.dy), ref)
			}

			agg := input.NewAggregator()
			keys, _ := agg.SetKey(tt.key, true)

			if dir.Y == 0 || (dir.Y > 0) != (keys.Y > 0) {
				t.Errorf("pose y=%v, keyboard y=%v: signs differ", dir.Y, keys.Y)
			}
		})
	}
}

func TestProcessor_MirrorX(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MirrorX = true
	p, ref := newCalibrated(t, cfg)

	var dir input.Direction
	for i := 0; i < 10; i++ {
		dir, _ = p.Process(tilted(40, 0), ref)
	}
	if dir.X >= 0 {
		t.Errorf("mirrored right tilt should be negative, got %v", dir.X)
	}
}

func TestProcessor_SmoothingOnRecalibrate(t *testing.T) {
	tests := []struct {
		name  string
		reset bool
	}{
		{"reset", true},
		{"persist", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.ResetSmoothingOnCalibrate = tt.reset
			p, ref := newCalibrated(t, cfg)

			for i := 0; i < 10; i++ {
				p.Process(tilted(40, 0), ref)
			}

			// recalibrate on the current (tilted) posture
			c := NewCalibrator(cfg.CalibrationMinScore)
			ref = mustCalibrate(c, tilted(40, 0))
			p.Calibrated()

			dir, _ := p.Process(tilted(40, 0), ref)
			if tt.reset && !dir.IsNeutral() {
				t.Errorf("with reset, first frame on new reference: got %v, want neutral", dir)
			}
			if !tt.reset && dir.X <= 0 {
				t.Errorf("without reset, prior motion should carry over: got %v", dir)
			}
		})
	}
}

func TestProcessor_Tuning(t *testing.T) {
	p := NewProcessor(DefaultConfig())

	p.SetTuning(TuningParams{Sensitivity: 3, DeadZone: 0.9})

	got := p.Tuning()
	if got.Sensitivity != 3 {
		t.Errorf("Sensitivity: got %v", got.Sensitivity)
	}
	if got.DeadZone != 0.5 {
		t.Errorf("DeadZone should clamp to 0.5, got %v", got.DeadZone)
	}
	if got.SmoothingAlpha != 0.3 {
		t.Errorf("zero SmoothingAlpha should be ignored, got %v", got.SmoothingAlpha)
	}
}
