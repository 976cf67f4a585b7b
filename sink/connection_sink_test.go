package sink_test

import (
	"context"
	"duochat/domain"
	"duochat/domain/event"
	"duochat/errors"
	"duochat/sink"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestConnectionSink_Keeps_Order(t *testing.T) {
	req := require.New(t)
	s := sink.NewConnectionSink("conn-1", 4, time.Second)
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		req.NoError(s.Consume(ctx, event.MessageAppended{Message: domain.Message{Seq: uint64(i)}}))
	}
	req.Equal(3, s.Pending())

	for i := 1; i <= 3; i++ {
		evt := <-s.Events()
		req.Equal(uint64(i), evt.(event.MessageAppended).Message.Seq)
	}
}

func TestConnectionSink_Full_Buffer_Times_Out(t *testing.T) {
	req := require.New(t)
	s := sink.NewConnectionSink("conn-1", 1, 20*time.Millisecond)
	ctx := context.Background()

	// Given a buffer nobody drains
	req.NoError(s.Consume(ctx, event.PresenceChanged{}))

	// When another event comes in
	err := s.Consume(ctx, event.PresenceChanged{})

	// Then it is refused once the timeout elapsed
	req.ErrorIs(err, errors.ErrSinkFull)
}

func TestConnectionSink_Closed_Refuses_Events(t *testing.T) {
	req := require.New(t)
	s := sink.NewConnectionSink("conn-1", 1, time.Second)

	s.Close()
	s.Close()

	req.ErrorIs(s.Consume(context.Background(), event.PresenceChanged{}), errors.ErrSinkClosed)
	select {
	case <-s.Done():
	default:
		req.Fail("done should be closed")
	}
}

func TestConnectionSink_Close_Unblocks_Waiting_Producer(t *testing.T) {
	req := require.New(t)
	s := sink.NewConnectionSink("conn-1", 1, 5*time.Second)
	ctx := context.Background()
	req.NoError(s.Consume(ctx, event.PresenceChanged{}))

	errCh := make(chan error, 1)
	go func() { errCh <- s.Consume(ctx, event.PresenceChanged{}) }()

	time.Sleep(20 * time.Millisecond)
	s.Close()

	select {
	case err := <-errCh:
		req.ErrorIs(err, errors.ErrSinkClosed)
	case <-time.After(time.Second):
		req.Fail("producer still blocked after close")
	}
}
