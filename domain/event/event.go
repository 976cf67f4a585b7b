package event

import (
	"duochat/domain"
	"time"
)

// Name is the event name seen by clients.
type Name string

const (
	MessageName       Name = "message"
	ConversationsName Name = "conversations"
	PresenceName      Name = "presence"
)

// DomainEvent is anything pushed to live connections.
type DomainEvent interface {
	EventName() Name
}

// MessageAppended is emitted once a message is stored in its conversation.
type MessageAppended struct {
	Message domain.Message
}

func (MessageAppended) EventName() Name { return MessageName }

// ConversationsRefreshed carries the full conversation list of Owner.
type ConversationsRefreshed struct {
	Owner         domain.Identity
	Conversations []domain.ConversationSummary
}

func (ConversationsRefreshed) EventName() Name { return ConversationsName }

// PresenceChanged carries the online list after a register or a disconnect.
type PresenceChanged struct {
	Online []domain.UserInfo
	At     time.Time
}

func (PresenceChanged) EventName() Name { return PresenceName }
