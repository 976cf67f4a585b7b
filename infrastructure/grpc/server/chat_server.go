package server

import (
	"context"
	"duochat/domain"
	"duochat/errors"
	"duochat/observability"
	"duochat/services"
	"duochat/sink"
	"duochat/wire"
	"encoding/json"
	stderrors "errors"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type ChatServer struct {
	router               *services.Router
	metrics              *observability.Metrics
	connectionBufferSize int
	deliveryTimeout      time.Duration
	log                  *slog.Logger
}

var _ wire.ChatServiceServer = (*ChatServer)(nil)

func NewChatServer(log *slog.Logger, router *services.Router, metrics *observability.Metrics,
	connectionBufferSize int, deliveryTimeout time.Duration) *ChatServer {
	if deliveryTimeout <= 0 {
		deliveryTimeout = 2 * time.Second
	}
	return &ChatServer{
		router:               router,
		metrics:              metrics,
		connectionBufferSize: connectionBufferSize,
		deliveryTimeout:      deliveryTimeout,
		log:                  log,
	}
}

// Connect serves one client connection for its whole life.
// Requests are read and handled one at a time by a reader goroutine, this
// goroutine is the only one writing to the stream: acks and pushed events
// both go through it. On return the connection is removed from presence.
func (s *ChatServer) Connect(stream wire.ChatService_ConnectServer) error {
	ctx := stream.Context()
	conn := domain.ConnectionID(uuid.NewString())
	out := sink.NewConnectionSink(conn, s.connectionBufferSize, s.deliveryTimeout)
	s.metrics.ConnectionOpened()
	s.log.Debug("Connection opened", "connection_id", conn)
	defer func() {
		out.Close()
		s.router.HandleDisconnect(conn)
		s.metrics.ConnectionClosed()
		s.log.Debug("Connection closed", "connection_id", conn)
	}()

	acks := make(chan *wire.Frame)
	readerDone := make(chan error, 1)
	go func() {
		readerDone <- s.read(ctx, stream, conn, out, acks)
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-readerDone:
			return err
		case <-out.Done():
			return errors.MapToGRPCError(errors.ErrSinkClosed)
		case frame := <-acks:
			if err := stream.Send(frame); err != nil {
				s.log.Warn("Failed to send ack", "connection_id", conn, "op", frame.Op, "error", err)
				return err
			}
		case evt := <-out.Events():
			frame, err := wire.EventFrame(evt)
			if err != nil {
				s.log.Error("Cannot encode event", "connection_id", conn, "error", err)
				continue
			}
			if err = stream.Send(frame); err != nil {
				s.log.Warn("Failed to push event to stream", "connection_id", conn, "event", frame.Event, "error", err)
				return err
			}
		}
	}
}

func (s *ChatServer) read(ctx context.Context, stream wire.ChatService_ConnectServer,
	conn domain.ConnectionID, out *sink.ConnectionSink, acks chan<- *wire.Frame) error {
	for {
		req, err := stream.Recv()
		if stderrors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			if status.Code(err) == codes.Canceled || ctx.Err() != nil {
				return nil
			}
			return err
		}

		frame := s.dispatch(ctx, conn, out, req)
		select {
		case acks <- frame:
		case <-ctx.Done():
			return nil
		}
	}
}

// dispatch handles one request to completion and builds its ack.
func (s *ChatServer) dispatch(ctx context.Context, conn domain.ConnectionID, out *sink.ConnectionSink, req *wire.Request) *wire.Frame {
	start := time.Now()
	payload, err := s.handle(ctx, conn, out, req)

	var frame *wire.Frame
	if err == nil {
		frame, err = wire.Ack(req.ID, req.Op, payload)
	}
	if err != nil {
		frame = wire.Fail(req.ID, req.Op, err)
		if req.Op == wire.OpSendMessage {
			frame.Payload, _ = json.Marshal(wire.SendMessageResponse{Error: frame.Error})
		}
		s.metrics.Request(string(req.Op), string(frame.Error.Code))
		s.log.Debug("Request refused", "connection_id", conn, "op", req.Op, "code", frame.Error.Code, "error", err)
		return frame
	}
	s.metrics.Request(string(req.Op), "OK")
	s.log.Debug("Request handled", "connection_id", conn, "op", req.Op, "duration", time.Since(start))
	return frame
}

func (s *ChatServer) handle(ctx context.Context, conn domain.ConnectionID, out *sink.ConnectionSink, req *wire.Request) (any, error) {
	switch req.Op {
	case wire.OpRegister:
		p, err := wire.Decode[wire.RegisterRequest](req.Payload)
		if err != nil {
			return nil, err
		}
		info, err := s.router.HandleRegister(ctx, p.Identity, p.DisplayName, conn, out)
		if err != nil {
			return nil, err
		}
		return wire.RegisterResponse{
			Success:     true,
			Identity:    info.Identity,
			DisplayName: info.DisplayName,
			ConnectedAt: info.ConnectedAt,
		}, nil

	case wire.OpCheckIdentity:
		p, err := wire.Decode[wire.CheckIdentityRequest](req.Payload)
		if err != nil {
			return nil, err
		}
		result, err := s.router.HandleCheckIdentity(p.Identity)
		if err != nil {
			return nil, err
		}
		return wire.CheckIdentityResponse{Success: true, Exists: result.Exists, Info: result.Info}, nil

	case wire.OpListConversations:
		p, err := wire.Decode[wire.ListConversationsRequest](req.Payload)
		if err != nil {
			return nil, err
		}
		summaries, err := s.router.HandleGetConversations(p.Identity)
		if err != nil {
			return nil, err
		}
		return wire.FromSummaries(summaries), nil

	case wire.OpGetMessages:
		p, err := wire.Decode[wire.GetMessagesRequest](req.Payload)
		if err != nil {
			return nil, err
		}
		result, err := s.router.HandleGetMessages(p.FromIdentity, p.ToIdentity)
		if err != nil {
			return nil, err
		}
		return wire.GetMessagesResponse{Messages: result.Messages, PeerInfo: result.Peer}, nil

	case wire.OpSendMessage:
		p, err := wire.Decode[wire.SendMessageRequest](req.Payload)
		if err != nil {
			return nil, err
		}
		message, err := s.router.HandleSendMessage(ctx, domain.SendMessageCommand{
			Conn: conn,
			From: p.FromIdentity,
			To:   p.ToIdentity,
			Text: p.Text,
		})
		if err != nil {
			return nil, err
		}
		return wire.SendMessageResponse{Success: true, Message: &message}, nil
	}
	return nil, errors.ErrUnknownOperation
}
