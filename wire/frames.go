// Package wire holds everything exchanged on the chat stream:
// request and reply frames, operation payloads and the pushed events.
package wire

import (
	"duochat/domain"
	"duochat/domain/event"
	"duochat/errors"
	"encoding/json"
	"fmt"
	"time"

	"github.com/samber/lo"
)

// Op names a request/reply operation.
type Op string

const (
	OpRegister          Op = "register"
	OpCheckIdentity     Op = "checkIdentity"
	OpListConversations Op = "listConversations"
	OpGetMessages       Op = "getMessages"
	OpSendMessage       Op = "sendMessage"
)

type Kind string

const (
	KindAck   Kind = "ack"
	KindEvent Kind = "event"
)

// Request is sent by the client. ID correlates the ack.
type Request struct {
	ID      uint64          `json:"id"`
	Op      Op              `json:"op"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Failure is the structured error of a refused request.
type Failure struct {
	Code    errors.Code `json:"code"`
	Message string      `json:"message"`
}

func (f *Failure) Err() error {
	if f == nil {
		return nil
	}
	return errors.FromCode(f.Code, f.Message)
}

// Frame is sent by the server, either the ack of a Request or a pushed event.
type Frame struct {
	Kind    Kind            `json:"kind"`
	ID      uint64          `json:"id,omitempty"`
	Op      Op              `json:"op,omitempty"`
	Event   event.Name      `json:"event,omitempty"`
	OK      bool            `json:"ok"`
	Error   *Failure        `json:"error,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type RegisterRequest struct {
	Identity    domain.Identity `json:"identity"`
	DisplayName string          `json:"displayName"`
}

type RegisterResponse struct {
	Success     bool            `json:"success"`
	Identity    domain.Identity `json:"identity"`
	DisplayName string          `json:"displayName"`
	ConnectedAt time.Time       `json:"connectedAt"`
}

type CheckIdentityRequest struct {
	Identity domain.Identity `json:"identity"`
}

type CheckIdentityResponse struct {
	Success bool             `json:"success"`
	Exists  bool             `json:"exists"`
	Info    *domain.UserInfo `json:"info,omitempty"`
}

type ListConversationsRequest struct {
	Identity domain.Identity `json:"identity"`
}

// Conversation is one entry of a conversation list.
type Conversation struct {
	PeerIdentity  domain.Identity `json:"peerIdentity"`
	LastMessage   *domain.Message `json:"lastMessage,omitempty"`
	TotalMessages int             `json:"totalMessages"`
}

type GetMessagesRequest struct {
	FromIdentity domain.Identity `json:"fromIdentity"`
	ToIdentity   domain.Identity `json:"toIdentity"`
}

type GetMessagesResponse struct {
	Messages []domain.Message `json:"messages"`
	PeerInfo *domain.UserInfo `json:"peerInfo,omitempty"`
}

type SendMessageRequest struct {
	FromIdentity domain.Identity `json:"fromIdentity"`
	ToIdentity   domain.Identity `json:"toIdentity"`
	Text         string          `json:"text"`
}

type SendMessageResponse struct {
	Success bool            `json:"success"`
	Message *domain.Message `json:"message,omitempty"`
	Error   *Failure        `json:"error,omitempty"`
}

type Presence struct {
	Online []domain.UserInfo `json:"online"`
	At     time.Time         `json:"at"`
}

func FromSummaries(summaries []domain.ConversationSummary) []Conversation {
	return lo.Map(summaries, func(s domain.ConversationSummary, _ int) Conversation {
		return Conversation{PeerIdentity: s.Peer, LastMessage: s.LastMessage, TotalMessages: s.TotalMessages}
	})
}

func Ack(id uint64, op Op, payload any) (*Frame, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode %s reply: %w", op, err)
	}
	return &Frame{Kind: KindAck, ID: id, Op: op, OK: true, Payload: raw}, nil
}

// Fail builds the failed ack of a request, err is reduced to its wire code.
func Fail(id uint64, op Op, err error) *Frame {
	return &Frame{
		Kind:  KindAck,
		ID:    id,
		Op:    op,
		Error: &Failure{Code: errors.CodeOf(err), Message: err.Error()},
	}
}

// EventFrame converts a domain event to its pushed form.
func EventFrame(e event.DomainEvent) (*Frame, error) {
	var payload any
	switch evt := e.(type) {
	case event.MessageAppended:
		payload = evt.Message
	case event.ConversationsRefreshed:
		payload = FromSummaries(evt.Conversations)
	case event.PresenceChanged:
		payload = Presence{Online: evt.Online, At: evt.At}
	default:
		return nil, fmt.Errorf("unsupported event %T", e)
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return &Frame{Kind: KindEvent, Event: e.EventName(), OK: true, Payload: raw}, nil
}

// Decode unmarshals a payload into T. An empty payload yields the zero value.
func Decode[T any](raw json.RawMessage) (T, error) {
	var v T
	if len(raw) == 0 {
		return v, nil
	}
	if err := json.Unmarshal(raw, &v); err != nil {
		return v, fmt.Errorf("%w: %v", errors.ErrInvalidRequest, err)
	}
	return v, nil
}
