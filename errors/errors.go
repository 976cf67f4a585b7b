package errors

import (
	stderrors "errors"
	"fmt"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

var (
	ErrWorkerPanic = fmt.Errorf("worker panic")

	ErrInvalidIdentity  = fmt.Errorf("identity must not be blank")
	ErrInvalidRequest   = fmt.Errorf("from, to and text are required")
	ErrEmptyMessage     = fmt.Errorf("message text must not be blank")
	ErrRateLimited      = fmt.Errorf("too many messages, slow down")
	ErrUnknownOperation = fmt.Errorf("unknown operation")

	ErrConnectFailed = fmt.Errorf("could not establish connection")
	ErrNotConnected  = fmt.Errorf("not connected")
	ErrClosed        = fmt.Errorf("client closed")

	ErrSinkFull   = fmt.Errorf("connection buffer full")
	ErrSinkClosed = fmt.Errorf("connection closed")
)

// MapToGRPCError translates domain errors into gRPC status errors.
func MapToGRPCError(err error) error {
	if err == nil {
		return nil
	}
	switch {
	case stderrors.Is(err, ErrInvalidIdentity),
		stderrors.Is(err, ErrInvalidRequest),
		stderrors.Is(err, ErrEmptyMessage):
		return status.Error(codes.InvalidArgument, err.Error())
	case stderrors.Is(err, ErrRateLimited):
		return status.Error(codes.ResourceExhausted, err.Error())
	case stderrors.Is(err, ErrUnknownOperation):
		return status.Error(codes.Unimplemented, err.Error())
	case stderrors.Is(err, ErrNotConnected), stderrors.Is(err, ErrSinkClosed):
		return status.Error(codes.Unavailable, err.Error())
	default:
		return status.Error(codes.Internal, "internal server error")
	}
}
