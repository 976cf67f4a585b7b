package wire

import (
	"context"

	"google.golang.org/grpc"
)

const (
	ServiceName   = "duochat.v1.ChatService"
	connectMethod = "/duochat.v1.ChatService/Connect"
)

// ChatServiceServer serves one bidirectional stream per connection.
type ChatServiceServer interface {
	Connect(ChatService_ConnectServer) error
}

type ChatService_ConnectServer interface {
	Send(*Frame) error
	Recv() (*Request, error)
	grpc.ServerStream
}

var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*ChatServiceServer)(nil),
	Methods:     []grpc.MethodDesc{},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "Connect",
			Handler:       connectHandler,
			ServerStreams: true,
			ClientStreams: true,
		},
	},
	Metadata: "duochat/v1/chat",
}

func RegisterChatServiceServer(s grpc.ServiceRegistrar, srv ChatServiceServer) {
	s.RegisterService(&ServiceDesc, srv)
}

func connectHandler(srv any, stream grpc.ServerStream) error {
	return srv.(ChatServiceServer).Connect(&connectServer{stream})
}

type connectServer struct {
	grpc.ServerStream
}

func (s *connectServer) Send(f *Frame) error { return s.ServerStream.SendMsg(f) }

func (s *connectServer) Recv() (*Request, error) {
	r := new(Request)
	if err := s.ServerStream.RecvMsg(r); err != nil {
		return nil, err
	}
	return r, nil
}

type ChatServiceClient interface {
	Connect(ctx context.Context, opts ...grpc.CallOption) (ChatService_ConnectClient, error)
}

type ChatService_ConnectClient interface {
	Send(*Request) error
	Recv() (*Frame, error)
	grpc.ClientStream
}

type chatServiceClient struct {
	cc grpc.ClientConnInterface
}

func NewChatServiceClient(cc grpc.ClientConnInterface) ChatServiceClient {
	return &chatServiceClient{cc: cc}
}

func (c *chatServiceClient) Connect(ctx context.Context, opts ...grpc.CallOption) (ChatService_ConnectClient, error) {
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	stream, err := c.cc.NewStream(ctx, &ServiceDesc.Streams[0], connectMethod, opts...)
	if err != nil {
		return nil, err
	}
	return &connectClient{stream}, nil
}

type connectClient struct {
	grpc.ClientStream
}

func (c *connectClient) Send(r *Request) error { return c.ClientStream.SendMsg(r) }

func (c *connectClient) Recv() (*Frame, error) {
	f := new(Frame)
	if err := c.ClientStream.RecvMsg(f); err != nil {
		return nil, err
	}
	return f, nil
}
