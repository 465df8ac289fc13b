package predlog

import (
	"context"
	"sync"

	"github.com/banshee-data/risk.report/internal/monitoring"
)

var logf = monitoring.Prefixed("[predlog] ")

type appendReq struct {
	ctx   context.Context
	entry Entry
	reply chan error
}

// Serialized funnels every Append through one writer goroutine, so rows
// from concurrent requests are written whole and in arrival order.
type Serialized struct {
	sink Sink
	reqs chan appendReq
	done chan struct{}

	mu     sync.RWMutex
	closed bool
}

// NewSerialized starts the writer for sink. buffer is the number of
// appends that may queue before callers block.
func NewSerialized(sink Sink, buffer int) *Serialized {
	if buffer < 0 {
		buffer = 0
	}
	s := &Serialized{
		sink: sink,
		reqs: make(chan appendReq, buffer),
		done: make(chan struct{}),
	}
	go s.run()
	return s
}

func (s *Serialized) run() {
	defer close(s.done)
	for req := range s.reqs {
		if err := req.ctx.Err(); err != nil {
			req.reply <- err
			continue
		}
		err := s.sink.Append(req.ctx, req.entry)
		if err != nil {
			logf("append failed: %v", err)
		}
		req.reply <- err
	}
}

// Append queues e and waits for the writer. If ctx ends after the entry
// was queued the entry may still be written.
func (s *Serialized) Append(ctx context.Context, e Entry) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrClosed
	}

	req := appendReq{ctx: ctx, entry: e, reply: make(chan error, 1)}
	select {
	case s.reqs <- req:
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-req.reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops accepting appends and waits until every queued entry has
// been written.
func (s *Serialized) Close() error {
	s.mu.Lock()
	if !s.closed {
		s.closed = true
		close(s.reqs)
	}
	s.mu.Unlock()

	<-s.done
	return nil
}
