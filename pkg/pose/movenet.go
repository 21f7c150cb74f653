package pose

import (
	"context"
	"fmt"
	"image"
	"os"
	"sync"

	"github.com/teslashibe/go-posedrive/pkg/debug"
	"gocv.io/x/gocv"
)

// MoveNet runs a single-pose MoveNet ONNX model through OpenCV's DNN module.
//
// The model is expected to take a 1x3xHxW float input and produce a
// 1x1x17x3 tensor of (y, x, score) rows with coordinates normalized to 0-1.
type MoveNet struct {
	net       gocv.Net
	config    Config
	inputSize image.Point
	mu        sync.Mutex // Protects inference
	closed    bool
}

// NewMoveNet loads the model at cfg.ModelPath.
func NewMoveNet(cfg Config) (*MoveNet, error) {
	if _, err := os.Stat(cfg.ModelPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: model file not found: %s", ErrNoModel, cfg.ModelPath)
	}

	net := gocv.ReadNetFromONNX(cfg.ModelPath)
	if net.Empty() {
		return nil, fmt.Errorf("%w: failed to load %s", ErrNoModel, cfg.ModelPath)
	}

	net.SetPreferableBackend(gocv.NetBackendDefault)
	net.SetPreferableTarget(gocv.NetTargetCPU)

	return &MoveNet{
		net:       net,
		config:    cfg,
		inputSize: image.Pt(cfg.InputWidth, cfg.InputHeight),
	}, nil
}

// Estimate finds the body in a JPEG frame. Coordinates are in frame pixels.
func (m *MoveNet) Estimate(ctx context.Context, jpeg []byte) ([]Pose, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, ErrClosed
	}

	img, err := gocv.IMDecode(jpeg, gocv.IMReadColor)
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	defer img.Close()

	if img.Empty() {
		return nil, ErrEmptyFrame
	}

	imgW := float64(img.Cols())
	imgH := float64(img.Rows())

	blob := gocv.BlobFromImage(img, 1.0, m.inputSize, gocv.NewScalar(0, 0, 0, 0), true, false)
	defer blob.Close()

	m.net.SetInput(blob, "")

	output := m.net.Forward("")
	defer output.Close()

	data, err := output.DataPtrFloat32()
	if err != nil {
		return nil, fmt.Errorf("read output: %w", err)
	}

	p, err := parseMoveNet(data, imgW, imgH)
	if err != nil {
		return nil, err
	}

	if p.Score < m.config.MinPoseScore {
		debug.PoseLog("pose score %.2f below %.2f, dropped", p.Score, m.config.MinPoseScore)
		return nil, nil
	}

	return []Pose{p}, nil
}

// parseMoveNet converts the flat (y, x, score) output into a Pose scaled to
// the frame size. The pose score is the mean keypoint score.
func parseMoveNet(data []float32, imgW, imgH float64) (Pose, error) {
	const stride = 3
	if len(data) < int(NumLandmarks)*stride {
		return Pose{}, fmt.Errorf("unexpected output size %d", len(data))
	}

	p := Pose{Keypoints: make([]Keypoint, NumLandmarks)}
	total := 0.0
	for i := 0; i < int(NumLandmarks); i++ {
		y := float64(data[i*stride])
		x := float64(data[i*stride+1])
		score := float64(data[i*stride+2])

		p.Keypoints[i] = Keypoint{
			X:     x * imgW,
			Y:     y * imgH,
			Score: score,
			Name:  Landmark(i).String(),
		}
		total += score
	}
	p.Score = total / float64(NumLandmarks)

	return p, nil
}

// Close releases the network.
func (m *MoveNet) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	m.closed = true
	return m.net.Close()
}
