package console

import "github.com/teslashibe/go-posedrive/pkg/control"

// Sink is a control.StatusSink that keeps only the newest snapshot for the
// console to pick up.
type Sink struct {
	ch chan control.Status
}

// NewSink creates an empty sink.
func NewSink() *Sink {
	return &Sink{ch: make(chan control.Status, 1)}
}

// PublishStatus replaces any snapshot the console has not read yet.
func (s *Sink) PublishStatus(st control.Status) {
	for {
		select {
		case s.ch <- st:
			return
		default:
		}
		select {
		case <-s.ch:
		default:
		}
	}
}
