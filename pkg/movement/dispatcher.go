// Package movement forwards directions to the engine, once per significant
// change and only while the engine is ready.
package movement

import (
	"github.com/teslashibe/go-posedrive/internal/log"
	"github.com/teslashibe/go-posedrive/pkg/debug"
	"github.com/teslashibe/go-posedrive/pkg/engine"
	"github.com/teslashibe/go-posedrive/pkg/input"
)

// DefaultThreshold is the per-axis change needed before a new direction is
// sent.
const DefaultThreshold = 0.05

// ReadinessGate reports whether the engine accepts commands.
type ReadinessGate interface {
	Ready() bool
}

// Stats are dispatcher diagnostics.
type Stats struct {
	Sent    uint64 `json:"sent"`    // Directions delivered
	Skipped uint64 `json:"skipped"` // Below threshold
	Dropped uint64 `json:"dropped"` // Engine not ready
	Errors  uint64 `json:"errors"`  // Sender failures
}

// Dispatcher owns the last direction sent to the engine. It is driven by a
// single goroutine (the controller) and is not safe for concurrent use.
type Dispatcher struct {
	sender    engine.Sender
	encoder   engine.Encoder
	gate      ReadinessGate
	threshold float64

	// last is updated only after a successful send
	last  input.Direction
	stats Stats
}

// NewDispatcher creates a dispatcher with DefaultThreshold.
func NewDispatcher(sender engine.Sender, encoder engine.Encoder, gate ReadinessGate) *Dispatcher {
	return &Dispatcher{
		sender:    sender,
		encoder:   encoder,
		gate:      gate,
		threshold: DefaultThreshold,
	}
}

// Submit sends dir if the engine is ready and either axis moved more than
// the threshold since the last send. It reports whether dir was sent.
// Nothing is queued while the engine is not ready.
func (d *Dispatcher) Submit(dir input.Direction) bool {
	dir = dir.Clamp()

	if !d.gate.Ready() {
		d.stats.Dropped++
		debug.DispatchLog("dropped %s: engine not ready", dir)
		return false
	}

	if !d.needsSend(dir) {
		d.stats.Skipped++
		debug.DispatchLog("skipped %s: within %.2f of %s", dir, d.threshold, d.last)
		return false
	}

	return d.send(dir)
}

// Stop sends rest regardless of the threshold. Still gated on readiness.
func (d *Dispatcher) Stop() bool {
	if !d.gate.Ready() {
		d.stats.Dropped++
		return false
	}
	return d.send(input.Neutral)
}

// needsSend returns true if dir differs enough from the last sent direction.
func (d *Dispatcher) needsSend(dir input.Direction) bool {
	dx, dy := dir.Delta(d.last)
	return dx > d.threshold || dy > d.threshold
}

func (d *Dispatcher) send(dir input.Direction) bool {
	for _, cmd := range d.encoder.Encode(dir) {
		if err := cmd.SendTo(d.sender); err != nil {
			d.stats.Errors++
			if d.stats.Errors%100 == 1 {
				log.Warn("engine send failed", "method", cmd.Method, "error", err, "errors", d.stats.Errors)
			}
			return false
		}
	}

	d.last = dir
	d.stats.Sent++
	debug.DispatchLog("sent %s via %s", dir, d.encoder.Name())
	return true
}

// SetThreshold changes the per-axis change threshold. Negative values are
// treated as zero.
func (d *Dispatcher) SetThreshold(t float64) {
	d.threshold = max(t, 0)
}

// Threshold returns the per-axis change threshold.
func (d *Dispatcher) Threshold() float64 {
	return d.threshold
}

// SetEncoder switches the command shape for subsequent sends.
func (d *Dispatcher) SetEncoder(enc engine.Encoder) {
	d.encoder = enc
}

// Encoder returns the active encoder.
func (d *Dispatcher) Encoder() engine.Encoder {
	return d.encoder
}

// Last returns the last direction delivered to the engine.
func (d *Dispatcher) Last() input.Direction {
	return d.last
}

// Stats returns dispatcher diagnostics.
func (d *Dispatcher) Stats() Stats {
	return d.stats
}
