package client

import (
	"context"
	"duochat/wire"
	stderrors "errors"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/test/bufconn"
)

type idleChat struct{}

func (idleChat) Connect(stream wire.ChatService_ConnectServer) error {
	<-stream.Context().Done()
	return nil
}

func TestGRPCDialer_Dials_As_Soon_As_The_Server_Is_Back(t *testing.T) {
	req := require.New(t)
	listener := bufconn.Listen(1 << 20)
	server := grpc.NewServer()
	wire.RegisterChatServiceServer(server, idleChat{})
	go func() { _ = server.Serve(listener) }()
	defer server.Stop()

	// Default connect params: the channel's own backoff starts at one second
	var down atomic.Bool
	down.Store(true)
	dialer, err := NewGRPCDialer("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			if down.Load() {
				return nil, stderrors.New("connection refused")
			}
			return listener.DialContext(ctx)
		}))
	req.NoError(err)
	defer func() { _ = dialer.Close() }()

	// Given two failed attempts while the server is unreachable
	for range 2 {
		_, err = dialer.Dial(context.Background())
		req.Error(err)
	}

	// When the server becomes reachable
	down.Store(false)

	// Then the very next dial succeeds, well before the channel backoff would expire
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	transport, err := dialer.Dial(ctx)
	req.NoError(err)
	req.NoError(transport.Close())
}
