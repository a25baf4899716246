package sdk

import "context"

// PresenceRequest represents a heartbeat or leave request
type PresenceRequest struct {
	ConversationId string `json:"conversation_id"`
}

// SetTypingRequest represents a typing flag request
type SetTypingRequest struct {
	ConversationId string `json:"conversation_id"`
	Typing         bool   `json:"typing"`
}

// Heartbeat refreshes the caller's last-seen in a conversation
func (c *Client) Heartbeat(ctx context.Context, conversationId string) error {
	return c.post(ctx, "/presence/heartbeat", &PresenceRequest{ConversationId: conversationId}, nil)
}

// SetTyping sets or clears the caller's typing flag
func (c *Client) SetTyping(ctx context.Context, conversationId string, typing bool) error {
	return c.post(ctx, "/presence/typing", &SetTypingRequest{ConversationId: conversationId, Typing: typing}, nil)
}

// Leave best-effort marks the caller offline in a conversation
func (c *Client) Leave(ctx context.Context, conversationId string) error {
	return c.post(ctx, "/presence/leave", &PresenceRequest{ConversationId: conversationId}, nil)
}

// GetPresence gets the counterpart's presence snapshot
func (c *Client) GetPresence(ctx context.Context, conversationId string) (*PresenceInfo, error) {
	params := map[string]string{"conversation_id": conversationId}
	var result PresenceInfo
	if err := c.get(ctx, "/presence/info", params, &result); err != nil {
		return nil, err
	}
	return &result, nil
}
