package pose

import (
	"context"
	"errors"
	"testing"
)

type stubEstimator struct {
	poses  []Pose
	err    error
	calls  int
	closed bool
}

func (s *stubEstimator) Estimate(ctx context.Context, jpeg []byte) ([]Pose, error) {
	s.calls++
	return s.poses, s.err
}

func (s *stubEstimator) Close() error {
	s.closed = true
	return nil
}

func TestChainFallback(t *testing.T) {
	failing := &stubEstimator{err: errors.New("model missing")}
	working := &stubEstimator{poses: []Pose{{Score: 0.8}}}

	chain, err := NewChain(failing, working)
	if err != nil {
		t.Fatalf("NewChain: %v", err)
	}

	poses, err := chain.Estimate(context.Background(), []byte{0xff})
	if err != nil {
		t.Fatalf("Estimate: %v", err)
	}
	if len(poses) != 1 || poses[0].Score != 0.8 {
		t.Errorf("unexpected poses %+v", poses)
	}
	if failing.calls != 1 || working.calls != 1 {
		t.Errorf("calls: %d, %d", failing.calls, working.calls)
	}
}

func TestChainNoBodyIsSuccess(t *testing.T) {
	empty := &stubEstimator{}
	next := &stubEstimator{poses: []Pose{{Score: 0.9}}}

	chain, _ := NewChain(empty, next)
	poses, err := chain.Estimate(context.Background(), nil)
	if err != nil || len(poses) != 0 {
		t.Fatalf("got %v, %v", poses, err)
	}
	if next.calls != 0 {
		t.Error("an empty frame must not fall through")
	}
}

func TestChainAllFail(t *testing.T) {
	last := errors.New("service down")
	chain, _ := NewChain(
		&stubEstimator{err: errors.New("model missing")},
		&stubEstimator{err: last},
	)

	_, err := chain.Estimate(context.Background(), nil)
	var chainErr *ChainError
	if !errors.As(err, &chainErr) {
		t.Fatalf("expected *ChainError, got %T", err)
	}
	if len(chainErr.Errors) != 2 {
		t.Errorf("expected 2 errors, got %d", len(chainErr.Errors))
	}
	if !errors.Is(err, last) {
		t.Error("ChainError should unwrap to the last error")
	}
}

func TestChainClose(t *testing.T) {
	a, b := &stubEstimator{}, &stubEstimator{}
	chain, _ := NewChain(a, b)
	chain.Close()
	if !a.closed || !b.closed {
		t.Error("Close should close every estimator")
	}
}

func TestNewChain_Empty(t *testing.T) {
	if _, err := NewChain(); !errors.Is(err, ErrNoEstimator) {
		t.Errorf("got %v, want ErrNoEstimator", err)
	}
}
