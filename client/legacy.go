package client

import (
	"duochat/domain"
	"duochat/wire"
	"encoding/json"
	"fmt"
	"time"
)

// legacyConversation is the flat summary shape older servers answer with.
type legacyConversation struct {
	Peer          domain.Identity `json:"peer"`
	LastFrom      domain.Identity `json:"lastFrom"`
	LastText      *string         `json:"lastText"`
	LastAt        *time.Time      `json:"lastAt"`
	TotalMessages int             `json:"totalMessages"`
}

// NormalizeConversations accepts both the current and the flat summary
// shape and returns the current one. owner is the identity the list belongs to.
func NormalizeConversations(owner domain.Identity, raw json.RawMessage) ([]wire.Conversation, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return []wire.Conversation{}, nil
	}
	var entries []json.RawMessage
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, fmt.Errorf("conversation list: %w", err)
	}
	conversations := make([]wire.Conversation, 0, len(entries))
	for _, entry := range entries {
		c, err := normalizeConversation(owner, entry)
		if err != nil {
			return nil, err
		}
		conversations = append(conversations, c)
	}
	return conversations, nil
}

func normalizeConversation(owner domain.Identity, raw json.RawMessage) (wire.Conversation, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return wire.Conversation{}, fmt.Errorf("conversation entry: %w", err)
	}
	if _, ok := fields["peerIdentity"]; ok {
		var c wire.Conversation
		err := json.Unmarshal(raw, &c)
		return c, err
	}

	var legacy legacyConversation
	if err := json.Unmarshal(raw, &legacy); err != nil {
		return wire.Conversation{}, fmt.Errorf("legacy conversation entry: %w", err)
	}
	c := wire.Conversation{PeerIdentity: legacy.Peer, TotalMessages: legacy.TotalMessages}
	if legacy.LastText == nil {
		return c, nil
	}
	last := domain.Message{From: legacy.LastFrom, Text: *legacy.LastText}
	if legacy.LastFrom == legacy.Peer {
		last.To = owner
	} else {
		last.To = legacy.Peer
	}
	if legacy.LastAt != nil {
		last.SentAt = *legacy.LastAt
	}
	c.LastMessage = &last
	if c.TotalMessages == 0 {
		c.TotalMessages = 1
	}
	return c, nil
}
