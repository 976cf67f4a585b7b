package client

import (
	"context"
	"duochat/wire"
	"sync"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/connectivity"
	"google.golang.org/grpc/credentials/insecure"
)

// readyTimeout bounds the wait for the channel to settle before a stream is opened.
const readyTimeout = 10 * time.Second

// Transport is one live stream to the server.
// Send and Recv may be called concurrently with each other, not with themselves.
type Transport interface {
	Send(*wire.Request) error
	Recv() (*wire.Frame, error)
	Close() error
}

// Dialer opens a new Transport. A failed dial leaves nothing behind.
type Dialer interface {
	Dial(ctx context.Context) (Transport, error)
}

// DialFunc adapts a function to Dialer.
type DialFunc func(ctx context.Context) (Transport, error)

func (f DialFunc) Dial(ctx context.Context) (Transport, error) { return f(ctx) }

// GRPCDialer opens chat streams over a shared gRPC client connection.
type GRPCDialer struct {
	cc     *grpc.ClientConn
	client wire.ChatServiceClient
}

// NewGRPCDialer targets addr. Extra options are appended after plaintext credentials.
func NewGRPCDialer(addr string, opts ...grpc.DialOption) (*GRPCDialer, error) {
	opts = append([]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, opts...)
	cc, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, err
	}
	return &GRPCDialer{cc: cc, client: wire.NewChatServiceClient(cc)}, nil
}

// Dial opens a stream bound to ctx, cancelling ctx tears the stream down.
// The channel's own connect backoff is reset first, so every call is a real
// attempt and the client's reconnect schedule alone decides when to retry.
func (d *GRPCDialer) Dial(ctx context.Context) (Transport, error) {
	d.awaitSettled(ctx)
	streamCtx, cancel := context.WithCancel(ctx)
	stream, err := d.client.Connect(streamCtx)
	if err != nil {
		cancel()
		return nil, err
	}
	return &grpcTransport{stream: stream, cancel: cancel}, nil
}

// awaitSettled forces a connection attempt and waits until the channel is
// ready or failed again. A failed channel makes the stream fail fast.
func (d *GRPCDialer) awaitSettled(ctx context.Context) {
	d.cc.ResetConnectBackoff()
	d.cc.Connect()
	ctx, cancel := context.WithTimeout(ctx, readyTimeout)
	defer cancel()
	for {
		state := d.cc.GetState()
		if state == connectivity.Ready || state == connectivity.Shutdown {
			return
		}
		if !d.cc.WaitForStateChange(ctx, state) {
			return
		}
		if d.cc.GetState() == connectivity.TransientFailure {
			return
		}
	}
}

// Close releases the underlying gRPC connection.
func (d *GRPCDialer) Close() error {
	return d.cc.Close()
}

type grpcTransport struct {
	stream wire.ChatService_ConnectClient
	cancel context.CancelFunc
	once   sync.Once
}

func (t *grpcTransport) Send(r *wire.Request) error { return t.stream.Send(r) }

func (t *grpcTransport) Recv() (*wire.Frame, error) { return t.stream.Recv() }

func (t *grpcTransport) Close() error {
	var err error
	t.once.Do(func() {
		err = t.stream.CloseSend()
		t.cancel()
	})
	return err
}
