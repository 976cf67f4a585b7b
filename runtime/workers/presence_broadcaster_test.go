package workers

import (
	"context"
	"duochat/domain"
	"duochat/domain/event"
	"duochat/errors"
	"duochat/mocks"
	"duochat/runtime"
	"duochat/sink"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func TestPresenceBroadcaster_Sends_Online_List_To_Everyone(t *testing.T) {
	req := require.New(t)
	registry := runtime.NewRegistry()
	alice := sink.NewConnectionSink("a1", 4, time.Second)
	bob := sink.NewConnectionSink("b1", 4, time.Second)
	_, err := registry.Register("alice", "Alice", "a1", alice)
	req.NoError(err)
	_, err = registry.Register("bob", "Bob", "b1", bob)
	req.NoError(err)

	b := NewPresenceBroadcaster(slog.Default(), registry, nil, time.Second)
	b.Broadcast(context.Background())

	for _, s := range []*sink.ConnectionSink{alice, bob} {
		evt := (<-s.Events()).(event.PresenceChanged)
		req.Len(evt.Online, 2)
		req.Equal(domain.Identity("alice"), evt.Online[0].Identity)
		req.Equal(domain.Identity("bob"), evt.Online[1].Identity)
	}
}

func TestPresenceBroadcaster_Drops_Failing_Connection(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	registry := runtime.NewRegistry()
	dead := mocks.NewMockEventSink(ctrl)
	dead.EXPECT().Consume(gomock.Any(), gomock.Any()).Return(errors.ErrSinkFull).Times(1)
	_, err := registry.Register("bob", "Bob", "b1", dead)
	req.NoError(err)

	b := NewPresenceBroadcaster(slog.Default(), registry, nil, 10*time.Millisecond)
	b.Broadcast(context.Background())

	req.False(registry.IsOnline("bob"))
	// The removal marks the list dirty again
	select {
	case <-b.dirty:
	default:
		req.Fail("expected a pending broadcast")
	}
}

func TestPresenceBroadcaster_Notify_Coalesces(t *testing.T) {
	req := require.New(t)
	registry := runtime.NewRegistry()
	alice := sink.NewConnectionSink("a1", 8, time.Second)
	_, err := registry.Register("alice", "Alice", "a1", alice)
	req.NoError(err)

	b := NewPresenceBroadcaster(slog.Default(), registry, nil, time.Second)
	b.Notify()
	b.Notify()
	b.Notify()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = b.Run(ctx)
		close(done)
	}()

	req.Eventually(func() bool { return alice.Pending() == 1 }, time.Second, 5*time.Millisecond)
	cancel()
	<-done
	req.Equal(1, alice.Pending())
}
