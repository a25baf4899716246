package sdk

import "context"

// GetConversationList gets all conversations for the current user,
// newest activity first.
func (c *Client) GetConversationList(ctx context.Context) ([]*ConversationInfo, error) {
	var result ConversationListResponse
	if err := c.get(ctx, "/conversation/list", nil, &result); err != nil {
		return nil, err
	}
	return result.Conversations, nil
}

// GetConversation gets a specific conversation
func (c *Client) GetConversation(ctx context.Context, conversationId string) (*ConversationInfo, error) {
	params := map[string]string{"conversation_id": conversationId}
	var result ConversationInfo
	if err := c.get(ctx, "/conversation/info", params, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// GetCounterpart gets the other participant of a conversation
func (c *Client) GetCounterpart(ctx context.Context, conversationId string) (*CounterpartInfo, error) {
	params := map[string]string{"conversation_id": conversationId}
	var result CounterpartInfo
	if err := c.get(ctx, "/conversation/counterpart", params, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// MarkReadRequest represents mark read request
type MarkReadRequest struct {
	ConversationId string `json:"conversation_id"`
}

// MarkRead marks every unread message from the peer as read
func (c *Client) MarkRead(ctx context.Context, conversationId string) error {
	req := &MarkReadRequest{ConversationId: conversationId}
	return c.post(ctx, "/conversation/mark_read", req, nil)
}
