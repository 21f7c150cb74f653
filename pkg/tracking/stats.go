package tracking

import (
	"math"
	"time"
)

// Stats reports detection throughput. Observational only.
type Stats struct {
	FPS               float64   `json:"fps"`
	LastDetectionTime time.Time `json:"last_detection_time"`
	FrameCount        int       `json:"frame_count"` // frames since LastDetectionTime
}

// Record counts one processed frame at now. FPS is recomputed, and the
// window restarted, once more than window has elapsed.
func (s *Stats) Record(now time.Time, window time.Duration) {
	if s.LastDetectionTime.IsZero() {
		s.LastDetectionTime = now
	}
	s.FrameCount++

	elapsed := now.Sub(s.LastDetectionTime)
	if elapsed <= window {
		return
	}

	s.FPS = math.Round(float64(s.FrameCount) / elapsed.Seconds())
	s.LastDetectionTime = now
	s.FrameCount = 0
}
