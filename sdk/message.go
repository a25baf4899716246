package sdk

import (
	"context"
	"strconv"
)

// SendMessage sends a message over the HTTP API
func (c *Client) SendMessage(ctx context.Context, req *SendMessageRequest) (*MessageInfo, error) {
	var result MessageInfo
	if err := c.post(ctx, "/msg/send", req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// SendText is a convenience method to send a text message into an
// existing conversation.
func (c *Client) SendText(ctx context.Context, clientMsgId, conversationId, text string) (*MessageInfo, error) {
	return c.SendMessage(ctx, &SendMessageRequest{
		ClientMsgId:    clientMsgId,
		ConversationId: conversationId,
		Text:           text,
	})
}

// StartConversation sends the first message toward a peer about a
// listing, creating the conversation as a side effect.
func (c *Client) StartConversation(ctx context.Context, clientMsgId, peerUserId string, listing *ListingRef, text string) (*MessageInfo, error) {
	return c.SendMessage(ctx, &SendMessageRequest{
		ClientMsgId: clientMsgId,
		PeerUserId:  peerUserId,
		Listing:     listing,
		Text:        text,
	})
}

// PullMessages pulls messages from a conversation
func (c *Client) PullMessages(ctx context.Context, conversationId string, beginSeq, endSeq int64, limit int) (*PullMessagesResponse, error) {
	params := map[string]string{
		"conversation_id": conversationId,
	}
	if beginSeq > 0 {
		params["begin_seq"] = strconv.FormatInt(beginSeq, 10)
	}
	if endSeq > 0 {
		params["end_seq"] = strconv.FormatInt(endSeq, 10)
	}
	if limit > 0 {
		params["limit"] = strconv.Itoa(limit)
	}

	var result PullMessagesResponse
	if err := c.get(ctx, "/msg/pull", params, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// GetNewestSeq gets the max seq and unread count for a conversation
func (c *Client) GetNewestSeq(ctx context.Context, conversationId string) (*NewestSeqResponse, error) {
	params := map[string]string{"conversation_id": conversationId}
	var result NewestSeqResponse
	if err := c.get(ctx, "/msg/newest_seq", params, &result); err != nil {
		return nil, err
	}
	return &result, nil
}
