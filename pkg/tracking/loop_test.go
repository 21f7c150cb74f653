package tracking

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/teslashibe/go-posedrive/pkg/pose"
)

type mockSource struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (m *mockSource) CaptureJPEG() ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return []byte{0xff, 0xd8}, nil
}

type mockEstimator struct {
	inflight    atomic.Int32
	maxInflight atomic.Int32
	calls       atomic.Int32
	empty       bool
	delay       time.Duration
}

func (m *mockEstimator) Estimate(ctx context.Context, jpeg []byte) ([]pose.Pose, error) {
	n := m.inflight.Add(1)
	defer m.inflight.Add(-1)
	for {
		cur := m.maxInflight.Load()
		if n <= cur || m.maxInflight.CompareAndSwap(cur, n) {
			break
		}
	}
	m.calls.Add(1)
	time.Sleep(m.delay)

	if m.empty {
		return nil, nil
	}
	return []pose.Pose{{
		Score: 0.8,
		Keypoints: []pose.Keypoint{
			{X: 100, Y: 200, Score: 0.9, Name: "left_shoulder"},
			{X: 200, Y: 200, Score: 0.9, Name: "right_shoulder"},
			{X: 150, Y: 150, Score: 0.9, Name: "nose"},
		},
	}}, nil
}

func (m *mockEstimator) Close() error { return nil }

func TestLoop_Sample(t *testing.T) {
	l := NewLoop(&mockSource{}, &mockEstimator{}, 30)

	res, err := l.Sample(context.Background())
	if err != nil {
		t.Fatalf("Sample: %v", err)
	}
	if res.Score != 0.8 || res.Landmarks.Count() != 3 {
		t.Errorf("result: score=%v count=%d", res.Score, res.Landmarks.Count())
	}
	nose, _ := res.Landmarks.Get(pose.Nose)
	if nose.X != 150 {
		t.Errorf("nose.X: got %v", nose.X)
	}
}

func TestLoop_SampleErrors(t *testing.T) {
	camErr := errors.New("camera unplugged")

	l := NewLoop(&mockSource{err: camErr}, &mockEstimator{}, 30)
	if _, err := l.Sample(context.Background()); !errors.Is(err, camErr) {
		t.Errorf("capture failure: got %v", err)
	}

	l = NewLoop(&mockSource{}, &mockEstimator{empty: true}, 30)
	if _, err := l.Sample(context.Background()); !errors.Is(err, ErrNoPose) {
		t.Errorf("empty frame: got %v, want ErrNoPose", err)
	}
}

func TestLoop_RunOneInFlight(t *testing.T) {
	est := &mockEstimator{delay: 5 * time.Millisecond}
	l := NewLoop(&mockSource{}, est, 60)
	out := make(chan PoseResult)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		l.Run(ctx, out)
		close(done)
	}()

	for i := 0; i < 3; i++ {
		select {
		case <-out:
		case <-time.After(2 * time.Second):
			t.Fatalf("result %d not delivered", i)
		}
	}
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop after cancel")
	}

	if got := est.maxInflight.Load(); got != 1 {
		t.Errorf("max concurrent estimates: got %d, want 1", got)
	}
}

func TestLoop_RunSkipsEmptyFrames(t *testing.T) {
	est := &mockEstimator{empty: true}
	l := NewLoop(&mockSource{}, est, 60)
	out := make(chan PoseResult, 1)

	ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
	defer cancel()
	l.Run(ctx, out)

	if len(out) != 0 {
		t.Error("empty frames must not produce results")
	}
	if est.calls.Load() < 2 {
		t.Errorf("loop should keep going after misses, calls=%d", est.calls.Load())
	}
}

func TestLoop_SetMaxFPS(t *testing.T) {
	l := NewLoop(&mockSource{}, &mockEstimator{}, 30)

	l.SetMaxFPS(15)
	if l.MaxFPS() != 15 {
		t.Errorf("MaxFPS: got %v, want 15", l.MaxFPS())
	}
	l.SetMaxFPS(500)
	if l.MaxFPS() != 60 {
		t.Errorf("MaxFPS should clamp to 60, got %v", l.MaxFPS())
	}
}
