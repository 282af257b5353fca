package stream

import (
	"context"
	"sync"

	"github.com/conneroisu/typster/internal/source"
)

// sink is the producer's revocable write handle on the line buffer.
type sink struct {
	ch      chan<- source.Line
	stop    chan struct{}
	stopped sync.Once
}

func newSink(ch chan<- source.Line) *sink {
	return &sink{ch: ch, stop: make(chan struct{})}
}

// send blocks until line is buffered, reporting false if the sink is revoked
// or ctx ends first. A revoked sink never accepts a line.
func (s *sink) send(ctx context.Context, line source.Line) bool {
	if s.revoked() {
		return false
	}

	select {
	case s.ch <- line:
		return true
	case <-s.stop:
		return false
	case <-ctx.Done():
		return false
	}
}

func (s *sink) revoke() {
	s.stopped.Do(func() { close(s.stop) })
}

func (s *sink) revoked() bool {
	select {
	case <-s.stop:
		return true
	default:
		return false
	}
}
