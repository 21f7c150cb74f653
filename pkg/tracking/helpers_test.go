package tracking

import (
	"math"

	"github.com/teslashibe/go-posedrive/pkg/pose"
)

const eps = 1e-9

func approx(a, b float64) bool {
	return math.Abs(a-b) < eps
}

// body builds landmarks for shoulders and nose at the given positions, all
// with the same score.
func body(lx, ly, rx, ry, nx, ny, score float64) pose.Landmarks {
	var l pose.Landmarks
	l.Set(pose.LeftShoulder, pose.Keypoint{X: lx, Y: ly, Score: score})
	l.Set(pose.RightShoulder, pose.Keypoint{X: rx, Y: ry, Score: score})
	l.Set(pose.Nose, pose.Keypoint{X: nx, Y: ny, Score: score})
	return l
}

// neutral is a user standing straight: shoulders 100px apart, nose 50px above.
func neutral(score float64) pose.Landmarks {
	return body(100, 200, 200, 200, 150, 150, score)
}

// tilted moves the nose by (dx, dy) pixels from neutral.
func tilted(dx, dy float64) pose.Landmarks {
	return body(100, 200, 200, 200, 150+dx, 150+dy, 0.9)
}

func mustCalibrate(c *Calibrator, l pose.Landmarks) Calibration {
	ref, err := c.Capture(l)
	if err != nil {
		panic(err)
	}
	return ref
}
