package solana

import (
	"context"
	"sync"
)

// WSClient defines Solana WebSocket subscription interface.
type WSClient interface {
	// SubscribeLogs subscribes to transaction logs matching the filter.
	SubscribeLogs(ctx context.Context, filter LogsFilter) (*LogSubscription, error)

	// Close closes the WebSocket connection and every subscription on it.
	Close() error
}

// LogsFilter defines subscription filter for logs.
type LogsFilter struct {
	// Mentions filters logs that mention any of these addresses.
	Mentions []string
	// Commitment is the commitment level, "confirmed" when empty.
	Commitment string
}

// LogNotification represents a logs subscription message.
type LogNotification struct {
	Signature string
	Slot      int64
	Logs      []string
	Err       interface{}
}

// LogSubscription is a cancellable handle for one logs subscription.
// Notifications for a single subscription arrive in the order the node sent them.
// Push never blocks: notifications wait in an unbounded queue until the
// consumer drains the channel, so a slow consumer only delays itself.
// The notification channel is never closed; consumers select on Done.
type LogSubscription struct {
	ch     chan LogNotification
	done   chan struct{}
	once   sync.Once
	cancel func() error
	err    error

	mu    sync.Mutex
	queue []LogNotification
	wake  chan struct{}
}

// NewLogSubscription creates a subscription handle with the given buffer.
// cancel is invoked once by Unsubscribe and may be nil.
func NewLogSubscription(buffer int, cancel func() error) *LogSubscription {
	s := &LogSubscription{
		ch:     make(chan LogNotification, buffer),
		done:   make(chan struct{}),
		cancel: cancel,
		wake:   make(chan struct{}, 1),
	}
	go s.forward()
	return s
}

// Notifications returns the channel notifications are delivered on.
func (s *LogSubscription) Notifications() <-chan LogNotification {
	return s.ch
}

// Done is closed once the subscription has been torn down.
func (s *LogSubscription) Done() <-chan struct{} {
	return s.done
}

// Unsubscribe tears the subscription down. Safe to call more than once.
func (s *LogSubscription) Unsubscribe() error {
	s.once.Do(func() {
		close(s.done)
		if s.cancel != nil {
			s.err = s.cancel()
		}
	})
	return s.err
}

// Push queues a notification for delivery without blocking.
// Returns false once the subscription has been closed.
func (s *LogSubscription) Push(n LogNotification) bool {
	select {
	case <-s.done:
		return false
	default:
	}

	s.mu.Lock()
	s.queue = append(s.queue, n)
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
	return true
}

// queued returns the number of notifications not yet handed to the channel.
func (s *LogSubscription) queued() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

// forward moves queued notifications onto the channel until the handle is done.
func (s *LogSubscription) forward() {
	for {
		select {
		case <-s.done:
			return
		case <-s.wake:
		}

		for {
			s.mu.Lock()
			if len(s.queue) == 0 {
				s.queue = nil
				s.mu.Unlock()
				break
			}
			n := s.queue[0]
			s.queue[0] = LogNotification{}
			s.queue = s.queue[1:]
			s.mu.Unlock()

			select {
			case s.ch <- n:
			case <-s.done:
				return
			}
		}
	}
}

// closeLocal marks the handle done without invoking cancel.
func (s *LogSubscription) closeLocal() {
	s.once.Do(func() {
		close(s.done)
	})
}
