package client

import (
	"context"
	"duochat/domain"
	"duochat/domain/event"
	"duochat/wire"
	"encoding/json"
)

// Register attaches the current connection to identity. On success the
// identity is remembered and registered again after every recovery.
func (c *Client) Register(ctx context.Context, identity domain.Identity, displayName string) (wire.RegisterResponse, error) {
	req := wire.RegisterRequest{Identity: identity, DisplayName: displayName}
	var resp wire.RegisterResponse
	if err := c.Invoke(ctx, wire.OpRegister, req, &resp); err != nil {
		return wire.RegisterResponse{}, err
	}
	c.mu.Lock()
	c.registration = &req
	c.mu.Unlock()
	return resp, nil
}

// Identity returns the remembered registration, empty before Register.
func (c *Client) Identity() domain.Identity {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.registration == nil {
		return ""
	}
	return c.registration.Identity
}

func (c *Client) CheckIdentity(ctx context.Context, identity domain.Identity) (wire.CheckIdentityResponse, error) {
	var resp wire.CheckIdentityResponse
	err := c.Invoke(ctx, wire.OpCheckIdentity, wire.CheckIdentityRequest{Identity: identity}, &resp)
	return resp, err
}

func (c *Client) ListConversations(ctx context.Context, identity domain.Identity) ([]wire.Conversation, error) {
	var raw json.RawMessage
	if err := c.Invoke(ctx, wire.OpListConversations, wire.ListConversationsRequest{Identity: identity}, &raw); err != nil {
		return nil, err
	}
	return NormalizeConversations(identity, raw)
}

func (c *Client) GetMessages(ctx context.Context, from, to domain.Identity) (wire.GetMessagesResponse, error) {
	var resp wire.GetMessagesResponse
	err := c.Invoke(ctx, wire.OpGetMessages, wire.GetMessagesRequest{FromIdentity: from, ToIdentity: to}, &resp)
	return resp, err
}

func (c *Client) SendMessage(ctx context.Context, from, to domain.Identity, text string) (domain.Message, error) {
	var resp wire.SendMessageResponse
	err := c.Invoke(ctx, wire.OpSendMessage, wire.SendMessageRequest{FromIdentity: from, ToIdentity: to, Text: text}, &resp)
	if err != nil {
		return domain.Message{}, err
	}
	if !resp.Success || resp.Message == nil {
		return domain.Message{}, resp.Error.Err()
	}
	return *resp.Message, nil
}

func (c *Client) OnMessage(h func(domain.Message)) func() {
	return c.On(event.MessageName, func(payload json.RawMessage) {
		m, err := wire.Decode[domain.Message](payload)
		if err != nil {
			c.log.Warn("Malformed message event", "error", err)
			return
		}
		h(m)
	})
}

// OnConversations receives the refreshed conversation list of owner.
func (c *Client) OnConversations(owner domain.Identity, h func([]wire.Conversation)) func() {
	return c.On(event.ConversationsName, func(payload json.RawMessage) {
		conversations, err := NormalizeConversations(owner, payload)
		if err != nil {
			c.log.Warn("Malformed conversations event", "error", err)
			return
		}
		h(conversations)
	})
}

func (c *Client) OnPresence(h func(wire.Presence)) func() {
	return c.On(event.PresenceName, func(payload json.RawMessage) {
		p, err := wire.Decode[wire.Presence](payload)
		if err != nil {
			c.log.Warn("Malformed presence event", "error", err)
			return
		}
		h(p)
	})
}
