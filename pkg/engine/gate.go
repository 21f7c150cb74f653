package engine

import (
	"sync"

	"github.com/teslashibe/go-posedrive/internal/log"
)

// State is the engine readiness lifecycle.
type State int

const (
	NotRequested State = iota
	Initializing
	Ready
)

func (s State) String() string {
	switch s {
	case NotRequested:
		return "not_requested"
	case Initializing:
		return "initializing"
	case Ready:
		return "ready"
	default:
		return "unknown"
	}
}

// Gate tracks whether the engine has finished loading. It moves
// NotRequested -> Initializing on the first Request and Initializing ->
// Ready on the loaded notification, and never goes back. Safe for
// concurrent use.
type Gate struct {
	mu        sync.Mutex
	state     State
	progress  float64
	lastErr   string
	bootstrap func()

	ready   chan struct{}
	changed chan struct{}
}

// NewGate creates a gate in NotRequested.
func NewGate() *Gate {
	return &Gate{
		ready:   make(chan struct{}),
		changed: make(chan struct{}, 1),
	}
}

// SetBootstrap sets the hook run once by the first Request, e.g. telling
// the engine host to start loading.
func (g *Gate) SetBootstrap(fn func()) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.bootstrap = fn
}

// Request starts initialization. Only the first call has an effect and
// reports true.
func (g *Gate) Request() bool {
	g.mu.Lock()
	if g.state != NotRequested {
		g.mu.Unlock()
		return false
	}
	g.state = Initializing
	bootstrap := g.bootstrap
	g.mu.Unlock()

	log.Info("engine initialization requested")
	g.notify()
	if bootstrap != nil {
		bootstrap()
	}
	return true
}

// MarkLoaded handles the engine's one-shot loaded notification. It only
// takes effect while Initializing and reports whether it did.
func (g *Gate) MarkLoaded() bool {
	g.mu.Lock()
	if g.state != Initializing {
		state := g.state
		g.mu.Unlock()
		log.Debug("engine loaded notification ignored", "state", state)
		return false
	}
	g.state = Ready
	g.progress = 1
	close(g.ready)
	g.mu.Unlock()

	log.Info("engine ready")
	g.notify()
	return true
}

// ReportProgress records load progress in [0, 1]. Observability only.
func (g *Gate) ReportProgress(p float64) {
	g.mu.Lock()
	if g.state == Ready {
		g.mu.Unlock()
		return
	}
	g.progress = min(max(p, 0), 1)
	g.mu.Unlock()
	g.notify()
}

// ReportError records a load error. The gate stays where it is; there is
// no retry within a session.
func (g *Gate) ReportError(msg string) {
	g.mu.Lock()
	g.lastErr = msg
	state := g.state
	g.mu.Unlock()

	log.Error("engine error", "message", msg, "state", state)
	g.notify()
}

// Ready reports whether the engine has loaded.
func (g *Gate) Ready() bool {
	return g.State() == Ready
}

// State returns the current state.
func (g *Gate) State() State {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

// Progress returns the last reported load progress.
func (g *Gate) Progress() float64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.progress
}

// LastError returns the last reported engine error, or "".
func (g *Gate) LastError() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.lastErr
}

// Done is closed when the gate becomes Ready.
func (g *Gate) Done() <-chan struct{} {
	return g.ready
}

// Changed receives a value after any state, progress or error update.
// Updates coalesce; a reader sees at least one signal after the last change.
func (g *Gate) Changed() <-chan struct{} {
	return g.changed
}

func (g *Gate) notify() {
	select {
	case g.changed <- struct{}{}:
	default:
	}
}
