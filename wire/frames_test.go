package wire

import (
	"duochat/domain"
	"duochat/domain/event"
	"duochat/errors"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/health/grpc_health_v1"
)

func TestFail_Keeps_Sentinel_Across_The_Wire(t *testing.T) {
	req := require.New(t)

	frame := Fail(7, OpSendMessage, errors.ErrEmptyMessage)
	raw, err := codec{}.Marshal(frame)
	req.NoError(err)

	var decoded Frame
	req.NoError(codec{}.Unmarshal(raw, &decoded))
	req.Equal(KindAck, decoded.Kind)
	req.Equal(uint64(7), decoded.ID)
	req.False(decoded.OK)
	req.Equal(errors.CodeEmptyMessage, decoded.Error.Code)
	req.ErrorIs(decoded.Error.Err(), errors.ErrEmptyMessage)
}

func TestEventFrame_Conversations_Use_Peer_Identity(t *testing.T) {
	req := require.New(t)
	last := domain.Message{ID: uuid.New(), Seq: 1, From: "alice", To: "bob", Text: "hi", SentAt: time.Now().UTC()}

	frame, err := EventFrame(event.ConversationsRefreshed{
		Owner:         "alice",
		Conversations: []domain.ConversationSummary{{Peer: "bob", LastMessage: &last, TotalMessages: 1}},
	})
	req.NoError(err)
	req.Equal(KindEvent, frame.Kind)
	req.Equal(event.ConversationsName, frame.Event)

	var fields []map[string]any
	req.NoError(json.Unmarshal(frame.Payload, &fields))
	req.Len(fields, 1)
	req.Equal("bob", fields[0]["peerIdentity"])
	req.EqualValues(1, fields[0]["totalMessages"])

	conversations, err := Decode[[]Conversation](frame.Payload)
	req.NoError(err)
	req.Equal(last, *conversations[0].LastMessage)
}

func TestDecode_Malformed_Payload_Is_Invalid_Request(t *testing.T) {
	req := require.New(t)

	_, err := Decode[SendMessageRequest](json.RawMessage(`{"text": 3}`))
	req.ErrorIs(err, errors.ErrInvalidRequest)

	empty, err := Decode[SendMessageRequest](nil)
	req.NoError(err)
	req.Empty(empty.Text)
}

func TestCodec_Handles_Protobuf_Messages(t *testing.T) {
	req := require.New(t)

	raw, err := codec{}.Marshal(&grpc_health_v1.HealthCheckResponse{Status: grpc_health_v1.HealthCheckResponse_SERVING})
	req.NoError(err)
	req.Contains(string(raw), "SERVING")

	var decoded grpc_health_v1.HealthCheckResponse
	req.NoError(codec{}.Unmarshal(raw, &decoded))
	req.Equal(grpc_health_v1.HealthCheckResponse_SERVING, decoded.Status)
}
