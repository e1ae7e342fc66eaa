package hub

import (
	"context"
	"errors"
	"sync"
)

var (
	// ErrSubscriberClosed is returned by [Subscriber.Next] after the
	// subscriber has been closed or unregistered.
	ErrSubscriberClosed = errors.New("subscriber closed")

	// ErrQueueOverflow is returned by [Subscriber.Next] when the subscriber
	// was reset for exceeding its queue limit.
	ErrQueueOverflow = errors.New("subscriber queue limit exceeded")
)

// Subscriber is the outbound frame queue of one client.
//
// Any number of producers may call Put; exactly one consumer should call Next.
// Frames are delivered in the order they were put.
type Subscriber struct {
	id    string
	limit int

	mu     sync.Mutex
	queue  [][]byte
	closed bool
	err    error

	// ready holds at most one token and is signalled after each Put.
	ready chan struct{}
	done  chan struct{}
}

// NewSubscriber creates a standalone subscriber. limit <= 0 means unbounded.
//
// Most callers should use [Hub.NewSubscriber], which assigns an ID and the
// hub's queue limit.
func NewSubscriber(id string, limit int) *Subscriber {
	if limit < 0 {
		limit = 0
	}
	return &Subscriber{
		id:    id,
		limit: limit,
		ready: make(chan struct{}, 1),
		done:  make(chan struct{}),
	}
}

// ID returns the subscriber's identifier.
func (s *Subscriber) ID() string {
	return s.id
}

// Put appends msg to the queue without blocking.
//
// It returns [ErrSubscriberClosed] if the subscriber is already closed. If
// this frame would exceed the queue limit the subscriber is closed, its
// pending frames are discarded and [ErrQueueOverflow] is returned; later calls
// report [ErrSubscriberClosed].
func (s *Subscriber) Put(msg []byte) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSubscriberClosed
	}
	if s.limit > 0 && len(s.queue) >= s.limit {
		s.closeLocked(ErrQueueOverflow)
		s.mu.Unlock()
		return ErrQueueOverflow
	}
	s.queue = append(s.queue, msg)
	s.mu.Unlock()

	select {
	case s.ready <- struct{}{}:
	default:
		// a wake-up is already pending
	}
	return nil
}

// Next blocks until a frame is available and returns it.
//
// It returns the close reason ([ErrSubscriberClosed] or [ErrQueueOverflow])
// once the subscriber is closed, even if frames were still pending, and
// ctx.Err() if ctx is done first.
func (s *Subscriber) Next(ctx context.Context) ([]byte, error) {
	for {
		s.mu.Lock()
		if s.closed {
			err := s.err
			s.mu.Unlock()
			return nil, err
		}
		if len(s.queue) > 0 {
			msg := s.queue[0]
			s.queue[0] = nil
			s.queue = s.queue[1:]
			if len(s.queue) == 0 {
				// release the backing array once drained
				s.queue = nil
			}
			s.mu.Unlock()
			return msg, nil
		}
		s.mu.Unlock()

		select {
		case <-s.ready:
		case <-s.done:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// Len returns the number of pending frames.
func (s *Subscriber) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

// Close closes the subscriber. Safe to call multiple times.
func (s *Subscriber) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closeLocked(ErrSubscriberClosed)
}

// Done returns a channel that is closed when the subscriber is closed.
func (s *Subscriber) Done() <-chan struct{} {
	return s.done
}

// Err returns the close reason, or nil while the subscriber is open.
func (s *Subscriber) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *Subscriber) closeLocked(reason error) {
	if s.closed {
		return
	}
	s.closed = true
	s.err = reason
	s.queue = nil
	close(s.done)
}
