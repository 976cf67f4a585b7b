package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestCode_Round_Trip_Keeps_Sentinel(t *testing.T) {
	req := require.New(t)
	for _, sentinel := range []error{ErrInvalidIdentity, ErrInvalidRequest, ErrEmptyMessage, ErrRateLimited} {
		wrapped := fmt.Errorf("append: %w", sentinel)

		code := CodeOf(wrapped)
		rebuilt := FromCode(code, wrapped.Error())

		req.NotEqual(CodeInternal, code)
		req.True(stderrors.Is(rebuilt, sentinel), "code %s", code)
	}
}

func TestFromCode_Every_Wire_Code_Maps_Back(t *testing.T) {
	req := require.New(t)
	for _, c := range wireCodes {
		req.Equal(c.code, CodeOf(c.err))
		req.Equal(c.err, FromCode(c.code, ""))
	}
}

func TestCodeOf_Unknown_Error_Is_Internal(t *testing.T) {
	require.Equal(t, CodeInternal, CodeOf(fmt.Errorf("disk on fire")))
}

func TestMapToGRPCError(t *testing.T) {
	req := require.New(t)
	req.Nil(MapToGRPCError(nil))
	req.Equal(codes.InvalidArgument, status.Code(MapToGRPCError(ErrEmptyMessage)))
	req.Equal(codes.ResourceExhausted, status.Code(MapToGRPCError(ErrRateLimited)))
	req.Equal(codes.Unavailable, status.Code(MapToGRPCError(ErrSinkClosed)))
	req.Equal(codes.Internal, status.Code(MapToGRPCError(fmt.Errorf("boom"))))
}
