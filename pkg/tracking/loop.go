package tracking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/teslashibe/go-posedrive/internal/log"
	"github.com/teslashibe/go-posedrive/pkg/debug"
	"github.com/teslashibe/go-posedrive/pkg/pose"
	"golang.org/x/time/rate"
)

// ErrNoPose is returned by Sample when the estimator found no body.
var ErrNoPose = errors.New("tracking: no pose in frame")

// lostAfter is the consecutive miss count that gets logged once.
const lostAfter = 5

// FrameSource interface for capturing frames
type FrameSource interface {
	CaptureJPEG() ([]byte, error)
}

// PoseResult is one estimated frame, resolved to landmarks.
type PoseResult struct {
	Landmarks pose.Landmarks
	Score     float64
	At        time.Time
}

// Loop captures frames and estimates poses, one estimate in flight at a time.
type Loop struct {
	source    FrameSource
	estimator pose.Estimator
	limiter   *rate.Limiter
	misses    int
}

// NewLoop creates a frame loop capped at maxFPS estimates per second.
func NewLoop(source FrameSource, estimator pose.Estimator, maxFPS float64) *Loop {
	return &Loop{
		source:    source,
		estimator: estimator,
		limiter:   rate.NewLimiter(rate.Limit(clampFPS(maxFPS)), 1),
	}
}

// SetMaxFPS changes the pacing. Safe to call while Run is active.
func (l *Loop) SetMaxFPS(fps float64) {
	l.limiter.SetLimit(rate.Limit(clampFPS(fps)))
}

// MaxFPS returns the current pacing.
func (l *Loop) MaxFPS() float64 {
	return float64(l.limiter.Limit())
}

// Run estimates frames until ctx is cancelled, sending each pose found to
// out. Frames without a pose and estimation errors are skipped. An estimate
// already in flight when ctx is cancelled runs to completion and its result
// is discarded.
func (l *Loop) Run(ctx context.Context, out chan<- PoseResult) {
	log.Info("pose loop started", "max_fps", l.MaxFPS())
	defer log.Info("pose loop stopped")

	for {
		if err := l.limiter.Wait(ctx); err != nil {
			return
		}

		res, err := l.Sample(context.WithoutCancel(ctx))
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			l.miss(err)
			continue
		}
		l.misses = 0

		select {
		case out <- res:
		case <-ctx.Done():
			return
		}
	}
}

func (l *Loop) miss(err error) {
	l.misses++
	if errors.Is(err, ErrNoPose) {
		debug.PoseLog("no pose in frame")
	} else {
		log.Debug("pose frame skipped", "error", err)
	}
	if l.misses == lostAfter {
		log.Info("lost body", "consecutive_misses", l.misses)
	}
}

// Sample captures and estimates a single frame. Only the first pose is used.
func (l *Loop) Sample(ctx context.Context) (PoseResult, error) {
	frame, err := l.source.CaptureJPEG()
	if err != nil {
		return PoseResult{}, fmt.Errorf("capture: %w", err)
	}

	poses, err := l.estimator.Estimate(ctx, frame)
	if err != nil {
		return PoseResult{}, fmt.Errorf("estimate: %w", err)
	}

	p, ok := pose.First(poses)
	if !ok {
		return PoseResult{}, ErrNoPose
	}

	return PoseResult{
		Landmarks: pose.Resolve(p),
		Score:     p.Score,
		At:        time.Now(),
	}, nil
}
