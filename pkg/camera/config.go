// Package camera captures webcam frames as JPEG for pose estimation.
package camera

import "fmt"

// Config holds camera capture parameters.
type Config struct {
	Device    int `json:"device"`    // OpenCV device index
	Width     int `json:"width"`     // Frame width in pixels
	Height    int `json:"height"`    // Frame height in pixels
	Framerate int `json:"framerate"` // Requested FPS
	Quality   int `json:"quality"`   // JPEG quality 1-100
}

// DefaultConfig returns 640x480 at 30 FPS, plenty for a single-body model.
func DefaultConfig() Config {
	return Config{
		Device:    0,
		Width:     640,
		Height:    480,
		Framerate: 30,
		Quality:   80,
	}
}

// Validate checks if the config values are within valid ranges.
// Returns a list of validation errors, or nil if valid.
func (c *Config) Validate() []string {
	var errs []string

	if c.Device < 0 {
		errs = append(errs, "device must be >= 0")
	}
	if c.Width < 160 || c.Width > 3840 {
		errs = append(errs, "width must be between 160 and 3840")
	}
	if c.Height < 120 || c.Height > 2160 {
		errs = append(errs, "height must be between 120 and 2160")
	}
	if c.Framerate < 1 || c.Framerate > 120 {
		errs = append(errs, "framerate must be between 1 and 120")
	}
	if c.Quality < 1 || c.Quality > 100 {
		errs = append(errs, "quality must be between 1 and 100")
	}

	return errs
}

func (c Config) String() string {
	return fmt.Sprintf("device %d %dx%d@%d q%d", c.Device, c.Width, c.Height, c.Framerate, c.Quality)
}
