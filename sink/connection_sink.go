package sink

import (
	"context"
	"duochat/contract"
	"duochat/domain"
	"duochat/domain/event"
	"duochat/errors"
	"sync"
	"time"
)

var _ contract.EventSink = (*ConnectionSink)(nil)

// ConnectionSink is the outbound queue of one live connection.
// Producers call Consume, the connection writer drains Events.
// A slow reader gets at most timeout of patience before events are refused.
type ConnectionSink struct {
	conn    domain.ConnectionID
	events  chan event.DomainEvent
	done    chan struct{}
	once    sync.Once
	timeout time.Duration
}

func NewConnectionSink(conn domain.ConnectionID, capacity int, timeout time.Duration) *ConnectionSink {
	if capacity < 1 {
		capacity = 1
	}
	return &ConnectionSink{
		conn:    conn,
		events:  make(chan event.DomainEvent, capacity),
		done:    make(chan struct{}),
		timeout: timeout,
	}
}

func (s *ConnectionSink) Conn() domain.ConnectionID { return s.conn }

// Consume enqueues e, waiting until the buffer has room, the sink is closed,
// ctx is done or the sink timeout elapses.
func (s *ConnectionSink) Consume(ctx context.Context, e event.DomainEvent) error {
	select {
	case <-s.done:
		return errors.ErrSinkClosed
	default:
	}

	select {
	case s.events <- e:
		return nil
	default:
	}

	timer := time.NewTimer(s.timeout)
	defer timer.Stop()
	select {
	case s.events <- e:
		return nil
	case <-s.done:
		return errors.ErrSinkClosed
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return errors.ErrSinkFull
	}
}

// Events is drained by the single writer of the connection.
func (s *ConnectionSink) Events() <-chan event.DomainEvent { return s.events }

// Done is closed once the sink stops accepting events.
func (s *ConnectionSink) Done() <-chan struct{} { return s.done }

// Close is idempotent. Queued events stay readable.
func (s *ConnectionSink) Close() {
	s.once.Do(func() { close(s.done) })
}

// Pending returns how many events wait to be written.
func (s *ConnectionSink) Pending() int { return len(s.events) }
