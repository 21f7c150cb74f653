package movement

import (
	"errors"
	"sync"
	"testing"

	"github.com/teslashibe/go-posedrive/pkg/engine"
	"github.com/teslashibe/go-posedrive/pkg/input"
)

// mockSender records engine calls.
type mockSender struct {
	mu    sync.Mutex
	calls []engine.Command
	err   error
}

func (m *mockSender) Send(target, method, payload string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.calls = append(m.calls, engine.Command{Target: target, Method: method, Payload: payload})
	return nil
}

func (m *mockSender) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

func (m *mockSender) last() engine.Command {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[len(m.calls)-1]
}

type staticGate bool

func (g staticGate) Ready() bool { return bool(g) }

func newTestDispatcher(ready bool) (*Dispatcher, *mockSender) {
	s := &mockSender{}
	return NewDispatcher(s, engine.VectorEncoder{}, staticGate(ready)), s
}

func TestDispatcher_Suppression(t *testing.T) {
	d, s := newTestDispatcher(true)

	steps := []struct {
		dir   input.Direction
		sent  bool
		calls int
	}{
		{input.Direction{X: 0.5, Y: 0.5}, true, 1},
		{input.Direction{X: 0.54, Y: 0.54}, false, 1}, // 0.04 on each axis
		{input.Direction{X: 0.56, Y: 0.5}, true, 2},   // 0.06 on one axis
		{input.Direction{X: 0.56, Y: 0.5}, false, 2},
	}

	for i, st := range steps {
		if got := d.Submit(st.dir); got != st.sent {
			t.Errorf("step %d: Submit(%v) = %v, want %v", i, st.dir, got, st.sent)
		}
		if s.count() != st.calls {
			t.Errorf("step %d: %d calls, want %d", i, s.count(), st.calls)
		}
	}

	if got := d.Stats(); got.Sent != 2 || got.Skipped != 2 {
		t.Errorf("stats: %+v", got)
	}
}

func TestDispatcher_ThresholdIsStrict(t *testing.T) {
	d, s := newTestDispatcher(true)
	d.SetThreshold(0.5)

	d.Submit(input.Direction{X: 0.5})
	if s.count() != 0 {
		t.Error("a change equal to the threshold must not be sent")
	}
	d.Submit(input.Direction{X: 0.75})
	if s.count() != 1 {
		t.Error("a change above the threshold should be sent")
	}
}

func TestDispatcher_Gated(t *testing.T) {
	s := &mockSender{}
	gate := engine.NewGate()
	d := NewDispatcher(s, engine.VectorEncoder{}, gate)

	d.Submit(input.Direction{X: 1})
	d.Submit(input.Direction{Y: -1})
	d.Stop()
	if s.count() != 0 {
		t.Fatalf("%d calls before ready, want 0", s.count())
	}
	if d.Stats().Dropped != 3 {
		t.Errorf("Dropped: got %d, want 3", d.Stats().Dropped)
	}

	gate.Request()
	gate.MarkLoaded()

	d.Submit(input.Direction{X: 1})
	if s.count() != 1 {
		t.Fatalf("%d calls after ready, want 1", s.count())
	}
	if got := s.last().Payload; got != `{"x":1,"y":0}` {
		t.Errorf("payload: got %s", got)
	}
}

func TestDispatcher_StopBypassesThreshold(t *testing.T) {
	d, s := newTestDispatcher(true)

	d.Submit(input.Direction{X: 0.03}) // suppressed, last stays {0,0}
	if !d.Stop() {
		t.Fatal("Stop should always send when ready")
	}
	if s.count() != 1 {
		t.Fatalf("calls: got %d, want 1", s.count())
	}
	if got := s.last(); got.Method != "SetMovementDirection" || got.Payload != `{"x":0,"y":0}` {
		t.Errorf("stop command: %+v", got)
	}
}

func TestDispatcher_ErrorKeepsState(t *testing.T) {
	d, s := newTestDispatcher(true)

	d.Submit(input.Direction{X: 1})
	s.err = engine.ErrNoEngine

	if d.Submit(input.Direction{X: -1}) {
		t.Error("failed send should report false")
	}
	if d.Last() != (input.Direction{X: 1}) {
		t.Errorf("Last after failure: got %v, want (1, 0)", d.Last())
	}
	if d.Stats().Errors != 1 {
		t.Errorf("Errors: got %d", d.Stats().Errors)
	}

	s.err = nil
	if !d.Submit(input.Direction{X: -1}) {
		t.Error("retry after recovery should send")
	}
}

func TestDispatcher_ClampsInput(t *testing.T) {
	d, s := newTestDispatcher(true)

	d.Submit(input.Direction{X: 3, Y: -2})
	if got := s.last().Payload; got != `{"x":1,"y":-1}` {
		t.Errorf("payload: got %s", got)
	}
}

func TestDispatcher_AxisEncoder(t *testing.T) {
	d, s := newTestDispatcher(true)
	d.SetEncoder(engine.AxisEncoder{})

	d.Submit(input.Direction{X: 0.5, Y: -0.5})
	if s.count() != 2 {
		t.Fatalf("calls: got %d, want 2", s.count())
	}

	d.Stop()
	if got := s.last().Method; got != "ResetExternalInput" {
		t.Errorf("stop: got %s", got)
	}
}

func TestDispatcher_PartialFailure(t *testing.T) {
	calls := 0
	sender := engine.SenderFunc(func(target, method, payload string) error {
		calls++
		if method == engine.MethodSetVerticalMovement {
			return errors.New("boom")
		}
		return nil
	})
	d := NewDispatcher(sender, engine.AxisEncoder{}, staticGate(true))

	if d.Submit(input.Direction{X: 1, Y: 1}) {
		t.Error("partial failure should report false")
	}
	if !d.Last().IsNeutral() {
		t.Errorf("Last should be unchanged, got %v", d.Last())
	}
	if calls != 2 {
		t.Errorf("calls: got %d, want 2", calls)
	}
}

func TestDispatcher_SetThreshold(t *testing.T) {
	d, _ := newTestDispatcher(true)
	if d.Threshold() != DefaultThreshold {
		t.Errorf("default threshold: got %v", d.Threshold())
	}
	d.SetThreshold(-1)
	if d.Threshold() != 0 {
		t.Errorf("negative threshold: got %v", d.Threshold())
	}
}
