package camera

import (
	"errors"
	"fmt"
	"sync"

	"github.com/teslashibe/go-posedrive/internal/log"
	"gocv.io/x/gocv"
)

// Sentinel errors.
var (
	ErrNoFrame = errors.New("camera: no frame")
	ErrClosed  = errors.New("camera: closed")
)

// Capture reads frames from a local camera. Safe for concurrent use.
type Capture struct {
	mu     sync.Mutex
	config Config
	vc     *gocv.VideoCapture
	frame  gocv.Mat
	closed bool
}

// Open starts capturing from cfg.Device.
func Open(cfg Config) (*Capture, error) {
	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, fmt.Errorf("validation failed: %v", errs)
	}

	vc, err := gocv.OpenVideoCapture(cfg.Device)
	if err != nil {
		return nil, fmt.Errorf("open camera %d: %w", cfg.Device, err)
	}

	c := &Capture{
		config: cfg,
		vc:     vc,
		frame:  gocv.NewMat(),
	}
	c.apply(cfg)

	log.Info("camera opened", "config", cfg.String())
	return c, nil
}

func (c *Capture) apply(cfg Config) {
	c.vc.Set(gocv.VideoCaptureFrameWidth, float64(cfg.Width))
	c.vc.Set(gocv.VideoCaptureFrameHeight, float64(cfg.Height))
	c.vc.Set(gocv.VideoCaptureFPS, float64(cfg.Framerate))
}

// Config returns the current configuration.
func (c *Capture) Config() Config {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.config
}

// CaptureJPEG grabs one frame and encodes it at the configured quality.
func (c *Capture) CaptureJPEG() ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, ErrClosed
	}
	if ok := c.vc.Read(&c.frame); !ok || c.frame.Empty() {
		return nil, ErrNoFrame
	}

	buf, err := gocv.IMEncodeWithParams(gocv.JPEGFileExt, c.frame,
		[]int{gocv.IMWriteJpegQuality, c.config.Quality})
	if err != nil {
		return nil, fmt.Errorf("encode frame: %w", err)
	}
	defer buf.Close()

	// GetBytes aliases C memory freed by Close
	out := make([]byte, buf.Len())
	copy(out, buf.GetBytes())
	return out, nil
}

// Close releases the device.
func (c *Capture) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true
	c.frame.Close()
	return c.vc.Close()
}
