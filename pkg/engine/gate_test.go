package engine

import (
	"sync"
	"sync/atomic"
	"testing"
)

func TestGate_Lifecycle(t *testing.T) {
	g := NewGate()
	if g.State() != NotRequested || g.Ready() {
		t.Fatalf("initial state: %v", g.State())
	}

	if g.MarkLoaded() {
		t.Error("loaded before request should be ignored")
	}

	if !g.Request() {
		t.Fatal("first Request should report true")
	}
	if g.State() != Initializing {
		t.Errorf("after Request: %v", g.State())
	}

	select {
	case <-g.Done():
		t.Fatal("Done closed before ready")
	default:
	}

	if !g.MarkLoaded() {
		t.Fatal("MarkLoaded while initializing should take effect")
	}
	if !g.Ready() {
		t.Error("should be ready")
	}
	<-g.Done()

	if g.MarkLoaded() {
		t.Error("second loaded notification should be ignored")
	}
	if g.Request() {
		t.Error("Request after ready should be a no-op")
	}
}

func TestGate_BootstrapOnce(t *testing.T) {
	g := NewGate()
	var calls atomic.Int32
	g.SetBootstrap(func() { calls.Add(1) })

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			g.Request()
		}()
	}
	wg.Wait()

	if got := calls.Load(); got != 1 {
		t.Errorf("bootstrap ran %d times, want 1", got)
	}
}

func TestGate_ErrorKeepsInitializing(t *testing.T) {
	g := NewGate()
	g.Request()
	g.ReportProgress(0.4)
	g.ReportError("wasm failed")

	if g.State() != Initializing {
		t.Errorf("state: got %v, want initializing", g.State())
	}
	if g.LastError() != "wasm failed" {
		t.Errorf("LastError: got %q", g.LastError())
	}
	if g.Progress() != 0.4 {
		t.Errorf("Progress: got %v", g.Progress())
	}
}

func TestGate_ProgressClamped(t *testing.T) {
	g := NewGate()
	g.ReportProgress(1.7)
	if g.Progress() != 1 {
		t.Errorf("got %v, want 1", g.Progress())
	}
	g.ReportProgress(-1)
	if g.Progress() != 0 {
		t.Errorf("got %v, want 0", g.Progress())
	}
}

func TestGate_Changed(t *testing.T) {
	g := NewGate()
	g.Request()
	g.ReportProgress(0.5) // coalesces with the Request signal

	select {
	case <-g.Changed():
	default:
		t.Fatal("expected a change signal")
	}
	select {
	case <-g.Changed():
		t.Fatal("signals should coalesce")
	default:
	}

	g.MarkLoaded()
	select {
	case <-g.Changed():
	default:
		t.Fatal("expected a change signal after ready")
	}
}

func TestState_String(t *testing.T) {
	for s, want := range map[State]string{
		NotRequested: "not_requested",
		Initializing: "initializing",
		Ready:        "ready",
	} {
		if s.String() != want {
			t.Errorf("%d: got %q, want %q", s, s.String(), want)
		}
	}
}
