package events

import (
	"errors"
	"slices"
	"sync"
)

// ErrClosed is returned by Send on a closed Stream.
var ErrClosed = errors.New("events: stream closed")

// Sink receives events in emission order.
type Sink interface {
	Send(Event) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(Event) error

// Send calls f.
func (f SinkFunc) Send(e Event) error { return f(e) }

// Discard accepts and drops every event.
var Discard Sink = SinkFunc(func(Event) error { return nil })

// ---------------------------------------------------------------------------
// Stream
// ---------------------------------------------------------------------------

var _ Sink = (*Stream)(nil)

// Stream is an unbounded FIFO between one producer and one consumer.
// Send never blocks and never drops; the consumer reads from Subscribe.
// After Close, queued events are still delivered before the channel closes.
//
// The consumer must keep reading until the channel closes, or the
// delivery goroutine stays blocked.
type Stream struct {
	mu     sync.Mutex
	cond   *sync.Cond
	queue  []Event
	closed bool
	out    chan Event
}

// NewStream creates a Stream and starts its delivery goroutine.
func NewStream() *Stream {
	s := &Stream{out: make(chan Event)}
	s.cond = sync.NewCond(&s.mu)
	go s.pump()
	return s
}

// Send enqueues e.
func (s *Stream) Send(e Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	s.queue = append(s.queue, e)
	s.cond.Signal()
	return nil
}

// Subscribe returns the delivery channel. There is exactly one.
func (s *Stream) Subscribe() <-chan Event {
	return s.out
}

// Close stops accepting events. It is safe to call more than once.
func (s *Stream) Close() {
	s.mu.Lock()
	s.closed = true
	s.cond.Broadcast()
	s.mu.Unlock()
}

func (s *Stream) pump() {
	for {
		s.mu.Lock()
		for len(s.queue) == 0 && !s.closed {
			s.cond.Wait()
		}
		if len(s.queue) == 0 {
			s.mu.Unlock()
			close(s.out)
			return
		}
		e := s.queue[0]
		s.queue[0] = Event{}
		s.queue = s.queue[1:]
		s.mu.Unlock()

		s.out <- e
	}
}

// ---------------------------------------------------------------------------
// Recorder
// ---------------------------------------------------------------------------

var _ Sink = (*Recorder)(nil)

// Recorder keeps every event in memory.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

// Send appends e.
func (r *Recorder) Send(e Event) error {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
	return nil
}

// Events returns a copy of everything recorded so far.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.events)
}

// Len returns the number of recorded events.
func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

// ---------------------------------------------------------------------------
// Multi
// ---------------------------------------------------------------------------

// Multi sends every event to each sink in order. One sink failing does not
// stop delivery to the others; their errors are joined.
func Multi(sinks ...Sink) Sink {
	return SinkFunc(func(e Event) error {
		var errs []error
		for _, s := range sinks {
			if err := s.Send(e); err != nil {
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)
	})
}
