// Package config loads posedrive configuration from the environment.
//
// A .env file is read first when present; real environment variables win
// over it. Command-line flags override both (see cmd/posedrive).
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// Config is the full process configuration.
type Config struct {
	// Logging
	LogLevel string `env:"LOG_LEVEL" envDefault:"info" validate:"oneof=debug info warn error"`
	LogFile  string `env:"LOG_FILE"`

	// Web control surface and engine bridge
	Addr string `env:"POSEDRIVE_ADDR" envDefault:":8090" validate:"required,hostname_port"`

	// Engine
	Encoder        string  `env:"ENGINE_ENCODER" envDefault:"vector" validate:"oneof=vector axis discrete"`
	DeltaThreshold float64 `env:"DELTA_THRESHOLD" envDefault:"0.05" validate:"gte=0,lt=1"`

	// Pose estimation
	PoseBackend string `env:"POSE_BACKEND" envDefault:"movenet" validate:"oneof=movenet remote http"`
	PoseModel   string `env:"POSE_MODEL" envDefault:"models/movenet_singlepose_lightning.onnx"`
	PoseURL     string `env:"POSE_URL" validate:"required_unless=PoseBackend movenet"`
	// HTTP pose service tried when the primary backend fails
	PoseFallbackURL string `env:"POSE_FALLBACK_URL" validate:"omitempty,url"`

	// Camera
	CameraDevice int     `env:"CAMERA_DEVICE" envDefault:"0" validate:"gte=0"`
	CameraPreset string  `env:"CAMERA_PRESET" envDefault:"default" validate:"oneof=default low 720p"`
	CameraWidth  int     `env:"CAMERA_WIDTH" validate:"gte=0"`  // 0 keeps the preset
	CameraHeight int     `env:"CAMERA_HEIGHT" validate:"gte=0"` // 0 keeps the preset
	MaxFPS       float64 `env:"MAX_FPS" envDefault:"30" validate:"gt=0,lte=120"`

	// Tracking
	TrackingPreset            string `env:"TRACKING_PRESET" envDefault:"default" validate:"oneof=default responsive steady"`
	MirrorX                   bool   `env:"MIRROR_X" envDefault:"false"`
	ResetSmoothingOnCalibrate bool   `env:"RESET_SMOOTHING_ON_CALIBRATE" envDefault:"true"`

	// Console key release when the terminal reports no key-up
	HoldTimeout time.Duration `env:"HOLD_TIMEOUT" envDefault:"600ms" validate:"gt=0"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Load reads the optional dotenv files (".env" when none are given), parses
// the environment and validates the result.
func Load(files ...string) (Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("load %s: %w", f, err)
		}
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks field ranges. Call it again after applying flag overrides.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}
