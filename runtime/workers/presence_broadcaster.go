package workers

import (
	"context"
	"duochat/contract"
	"duochat/domain/event"
	"duochat/observability"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
)

// PresenceBroadcaster pushes the online list to every live connection.
//
// Notify only marks the list as dirty, so bursts of register and disconnect
// collapse into a single broadcast computed from the registry at send time.
// Delivery is best effort: a connection that cannot take the event within
// the timeout is closed and removed.
type PresenceBroadcaster struct {
	log      *slog.Logger
	registry contract.IRegistry
	metrics  *observability.Metrics
	timeout  time.Duration
	dirty    chan struct{}
	now      func() time.Time
}

var _ contract.PresenceNotifier = (*PresenceBroadcaster)(nil)

const defaultPresenceTimeout = 2 * time.Second

func NewPresenceBroadcaster(log *slog.Logger, registry contract.IRegistry, metrics *observability.Metrics, timeout time.Duration) *PresenceBroadcaster {
	if timeout <= 0 {
		timeout = defaultPresenceTimeout
	}
	return &PresenceBroadcaster{
		log:      log,
		registry: registry,
		metrics:  metrics,
		timeout:  timeout,
		dirty:    make(chan struct{}, 1),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (b *PresenceBroadcaster) Notify() {
	select {
	case b.dirty <- struct{}{}:
	default:
	}
}

func (b *PresenceBroadcaster) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			b.log.Debug("Context done, stopping presence broadcast")
			return nil
		case <-b.dirty:
			b.Broadcast(ctx)
		}
	}
}

// Broadcast sends the current online list to every live connection and waits for all deliveries.
func (b *PresenceBroadcaster) Broadcast(ctx context.Context) {
	online := b.registry.ListOnline()
	b.metrics.SetOnline(len(online))
	evt := event.PresenceChanged{Online: online, At: b.now()}

	var g errgroup.Group
	for _, s := range b.registry.All() {
		g.Go(func() error {
			deliveryCtx, cancel := context.WithTimeout(ctx, b.timeout)
			defer cancel()
			if err := s.Sink.Consume(deliveryCtx, evt); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				b.log.Warn("Presence delivery failed, dropping connection", "connection_id", s.Conn, "error", err)
				b.metrics.DeliveryFailed(string(evt.EventName()))
				if closer, ok := s.Sink.(interface{ Close() }); ok {
					closer.Close()
				}
				if identity, _ := b.registry.RemoveConnection(s.Conn); identity != "" {
					b.Notify()
				}
				return nil
			}
			b.metrics.Delivered(string(evt.EventName()))
			return nil
		})
	}
	_ = g.Wait()
}
