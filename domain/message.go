// Package domain contains core concepts of the chat system.
// This file defines Message and the conversation key rules.
// Messages are immutable once appended and validated by the domain.
package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Message represents an immutable entry of a conversation log.
type Message struct {
	ID     uuid.UUID `json:"id"`
	Seq    uint64    `json:"seq"` // 1-based position inside the conversation
	From   Identity  `json:"from"`
	To     Identity  `json:"to"`
	Text   string    `json:"text"`
	SentAt time.Time `json:"sentAt"`
}

// IsBlank reports whether text is empty once surrounding whitespace is trimmed.
// The stored text itself is kept verbatim.
func IsBlank(text string) bool {
	return strings.TrimSpace(text) == ""
}
