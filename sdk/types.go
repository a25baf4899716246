package sdk

// Response represents the standard API response
type Response struct {
	Code int         `json:"code"`
	Msg  string      `json:"msg"`
	Data interface{} `json:"data,omitempty"`
}

// ListingRef identifies the marketplace listing a conversation is
// scoped to. The preview fields are denormalized snapshots, not
// authoritative listing data.
type ListingRef struct {
	Id        string `json:"id"`
	Title     string `json:"title,omitempty"`
	Price     string `json:"price,omitempty"`
	Thumbnail string `json:"thumbnail,omitempty"`
}

// PresenceInfo represents a participant's derived presence
type PresenceInfo struct {
	UserId   string `json:"user_id"`
	Online   bool   `json:"online"`
	LastSeen int64  `json:"last_seen"`
	Typing   bool   `json:"typing"`
}

// CounterpartInfo represents the other participant of a conversation
type CounterpartInfo struct {
	UserId      string `json:"user_id"`
	DisplayName string `json:"display_name,omitempty"`
	AvatarUrl   string `json:"avatar_url,omitempty"`
}

// MessageInfo represents message info
type MessageInfo struct {
	Id             string `json:"id"`
	ConversationId string `json:"conversation_id"`
	Seq            int64  `json:"seq"`
	ClientMsgId    string `json:"client_msg_id,omitempty"`
	SenderId       string `json:"sender_id"`
	Text           string `json:"text"`
	CreatedAt      int64  `json:"created_at"`
	Read           bool   `json:"read"`
	ReadAt         *int64 `json:"read_at,omitempty"`
}

// ConversationInfo represents a directory entry as seen by one
// participant.
type ConversationInfo struct {
	ConversationId string           `json:"conversation_id"`
	Listing        *ListingRef      `json:"listing,omitempty"`
	Counterpart    *CounterpartInfo `json:"counterpart,omitempty"`
	LastMessage    string           `json:"last_message,omitempty"`
	LastMessageAt  int64            `json:"last_message_at"`
	UnreadCount    int64            `json:"unread_count"`
	Presence       *PresenceInfo    `json:"presence,omitempty"`
	UpdatedAt      int64            `json:"updated_at"`
}

// SendMessageRequest represents a send request. ConversationId targets
// an existing conversation; PeerUserId plus Listing starts a new one.
type SendMessageRequest struct {
	ClientMsgId    string      `json:"client_msg_id"`
	ConversationId string      `json:"conversation_id,omitempty"`
	PeerUserId     string      `json:"peer_user_id,omitempty"`
	Listing        *ListingRef `json:"listing,omitempty"`
	Text           string      `json:"text"`
}

// PullMessagesResponse represents a history pull response
type PullMessagesResponse struct {
	Messages []*MessageInfo `json:"messages"`
	MaxSeq   int64          `json:"max_seq"`
}

// NewestSeqResponse represents a newest seq response
type NewestSeqResponse struct {
	MaxSeq      int64 `json:"max_seq"`
	UnreadCount int64 `json:"unread_count"`
}

// ConversationListResponse represents a directory listing response
type ConversationListResponse struct {
	Conversations []*ConversationInfo `json:"conversations"`
}
