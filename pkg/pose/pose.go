// Package pose provides body keypoint types and pose estimation backends.
//
// Estimators return poses as unordered keypoint lists (the shape pose models
// emit). Consumers resolve a pose once per frame into Landmarks, a fixed
// table indexed by Landmark, instead of searching the list by name.
package pose

import (
	"context"
	"errors"
	"math"
)

// Landmark identifies a body keypoint in the 17-point COCO topology used by
// MoveNet and BlazePose-lite.
type Landmark int

// Landmark indices, in model output order.
const (
	Nose Landmark = iota
	LeftEye
	RightEye
	LeftEar
	RightEar
	LeftShoulder
	RightShoulder
	LeftElbow
	RightElbow
	LeftWrist
	RightWrist
	LeftHip
	RightHip
	LeftKnee
	RightKnee
	LeftAnkle
	RightAnkle
	NumLandmarks
)

var landmarkNames = [NumLandmarks]string{
	"nose",
	"left_eye",
	"right_eye",
	"left_ear",
	"right_ear",
	"left_shoulder",
	"right_shoulder",
	"left_elbow",
	"right_elbow",
	"left_wrist",
	"right_wrist",
	"left_hip",
	"right_hip",
	"left_knee",
	"right_knee",
	"left_ankle",
	"right_ankle",
}

var landmarkByName = func() map[string]Landmark {
	m := make(map[string]Landmark, NumLandmarks)
	for i, name := range landmarkNames {
		m[name] = Landmark(i)
	}
	return m
}()

// String returns the model keypoint name (e.g. "left_shoulder").
func (l Landmark) String() string {
	if l < 0 || l >= NumLandmarks {
		return "unknown"
	}
	return landmarkNames[l]
}

// ParseLandmark resolves a keypoint name.
func ParseLandmark(name string) (Landmark, bool) {
	l, ok := landmarkByName[name]
	return l, ok
}

// Sentinel errors.
var (
	// ErrNoModel is returned when the model file is missing or fails to load.
	ErrNoModel = errors.New("pose: model not available")

	// ErrEmptyFrame is returned when a frame cannot be decoded.
	ErrEmptyFrame = errors.New("pose: empty frame")

	// ErrClosed is returned when estimating on a closed estimator.
	ErrClosed = errors.New("pose: estimator closed")
)

// Keypoint is a body landmark with a confidence score in [0, 1].
type Keypoint struct {
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Score float64 `json:"score"`
	Name  string  `json:"name,omitempty"`
}

// Pose is one detected body.
type Pose struct {
	Keypoints []Keypoint `json:"keypoints"`
	Score     float64    `json:"score"`
}

// Estimator is the interface for pose estimation backends.
type Estimator interface {
	// Estimate returns the poses found in a JPEG frame.
	Estimate(ctx context.Context, jpeg []byte) ([]Pose, error)

	// Close releases resources
	Close() error
}

// Config holds estimator configuration
type Config struct {
	ModelPath    string  // Path to ONNX model
	MinPoseScore float64 // Poses below this are dropped (0 keeps all)
	InputWidth   int     // Model input width
	InputHeight  int     // Model input height
}

// DefaultConfig returns defaults for MoveNet SinglePose Lightning.
func DefaultConfig() Config {
	return Config{
		ModelPath:    "models/movenet_singlepose_lightning.onnx",
		MinPoseScore: 0.3,
		InputWidth:   192,
		InputHeight:  192,
	}
}

// First returns the first pose; only the first detected body is used.
func First(poses []Pose) (Pose, bool) {
	if len(poses) == 0 {
		return Pose{}, false
	}
	return poses[0], true
}

// Landmarks is a pose resolved into a fixed table indexed by Landmark.
type Landmarks struct {
	points [NumLandmarks]Keypoint
	found  [NumLandmarks]bool
}

// Resolve builds the landmark table for a pose. Named keypoints are placed by
// name; unnamed keypoints fall back to their position in model output order.
// Unknown names are ignored.
func Resolve(p Pose) Landmarks {
	var l Landmarks
	for i, kp := range p.Keypoints {
		id := Landmark(i)
		if kp.Name != "" {
			var ok bool
			if id, ok = ParseLandmark(kp.Name); !ok {
				continue
			}
		} else if id >= NumLandmarks {
			continue
		}
		l.Set(id, kp)
	}
	return l
}

// Set stores a keypoint for id.
func (l *Landmarks) Set(id Landmark, kp Keypoint) {
	if id < 0 || id >= NumLandmarks {
		return
	}
	if kp.Name == "" {
		kp.Name = id.String()
	}
	l.points[id] = kp
	l.found[id] = true
}

// Get returns the keypoint for id and whether it was present.
func (l Landmarks) Get(id Landmark) (Keypoint, bool) {
	if id < 0 || id >= NumLandmarks {
		return Keypoint{}, false
	}
	return l.points[id], l.found[id]
}

// Confident returns the keypoint for id only if present with score > min.
// Keypoints with a non-finite coordinate or score never qualify.
func (l Landmarks) Confident(id Landmark, min float64) (Keypoint, bool) {
	kp, ok := l.Get(id)
	if !ok || !kp.finite() || kp.Score <= min {
		return Keypoint{}, false
	}
	return kp, true
}

func (kp Keypoint) finite() bool {
	return isFinite(kp.X) && isFinite(kp.Y) && isFinite(kp.Score)
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// Count returns how many landmarks were resolved.
func (l Landmarks) Count() int {
	n := 0
	for _, f := range l.found {
		if f {
			n++
		}
	}
	return n
}
