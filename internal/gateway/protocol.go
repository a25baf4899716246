package gateway

import (
	"encoding/json"

	"github.com/mbeoliero/vorbi/internal/entity"
)

// WSRequest represents a WebSocket request message
type WSRequest struct {
	ReqIdentifier int32  `json:"req_identifier"` // Request type
	MsgIncr       string `json:"msg_incr"`       // Client message counter/trace Id
	OperationId   string `json:"operation_id"`   // Operation Id
	Token         string `json:"token"`          // JWT token (optional, used in handshake)
	SendId        string `json:"send_id"`        // Sender user Id
	Data          []byte `json:"data"`           // Business data
}

// WSResponse represents a WebSocket response message
type WSResponse struct {
	ReqIdentifier int32  `json:"req_identifier"` // Request type (echo back)
	MsgIncr       string `json:"msg_incr"`       // Message counter (echo back)
	OperationId   string `json:"operation_id"`   // Operation Id (echo back)
	ErrCode       int    `json:"err_code"`       // Error code, 0 = success
	ErrMsg        string `json:"err_msg"`        // Error message
	Data          []byte `json:"data"`           // Response data
}

// SendMsgReq represents send message request data
type SendMsgReq struct {
	ClientMsgId    string             `json:"client_msg_id"`
	ConversationId string             `json:"conversation_id,omitempty"`
	PeerUserId     string             `json:"peer_user_id,omitempty"`
	Listing        *entity.ListingRef `json:"listing,omitempty"`
	SenderName     string             `json:"sender_name,omitempty"`
	SenderAvatar   string             `json:"sender_avatar,omitempty"`
	PeerName       string             `json:"peer_name,omitempty"`
	PeerAvatar     string             `json:"peer_avatar,omitempty"`
	Text           string             `json:"text"`
}

// SendMsgResp represents send message response data
type SendMsgResp struct {
	ServerMsgId    string `json:"server_msg_id"`
	ConversationId string `json:"conversation_id"`
	Seq            int64  `json:"seq"`
	ClientMsgId    string `json:"client_msg_id"`
	CreatedAt      int64  `json:"created_at"`
}

// PullMsgReq represents pull messages request data
type PullMsgReq struct {
	ConversationId string `json:"conversation_id"`
	BeginSeq       int64  `json:"begin_seq"`
	EndSeq         int64  `json:"end_seq"`
	Limit          int    `json:"limit"`
}

// PullMsgResp represents pull messages response data
type PullMsgResp struct {
	Messages []*entity.MessageInfo `json:"messages"`
	MaxSeq   int64                 `json:"max_seq"`
}

// MarkReadReq represents mark conversation read request data
type MarkReadReq struct {
	ConversationId string `json:"conversation_id"`
}

// ConvListResp represents directory snapshot response data
type ConvListResp struct {
	Conversations []*entity.ConversationInfo `json:"conversations"`
}

// WatchConvReq represents watch/unwatch conversation request data
type WatchConvReq struct {
	ConversationId string `json:"conversation_id"`
}

// WatchConvResp represents watch conversation response data, carrying
// the current presence of the counterpart so a freshly opened
// conversation view renders without waiting for the first push.
type WatchConvResp struct {
	ConversationId string               `json:"conversation_id"`
	Counterpart    *entity.PresenceInfo `json:"counterpart,omitempty"`
	MaxSeq         int64                `json:"max_seq"`
}

// HeartbeatReq represents presence heartbeat request data
type HeartbeatReq struct {
	ConversationId string `json:"conversation_id"`
}

// SetTypingReq represents set typing flag request data
type SetTypingReq struct {
	ConversationId string `json:"conversation_id"`
	Typing         bool   `json:"typing"`
}

// GetNewestSeqReq represents get newest seq request
type GetNewestSeqReq struct {
	ConversationIds []string `json:"conversation_ids"`
}

// GetNewestSeqResp represents get newest seq response
type GetNewestSeqResp struct {
	Seqs map[string]int64 `json:"seqs"` // conversation_id -> max_seq
}

// PushMsgData represents a pushed message event
type PushMsgData struct {
	Msg *entity.MessageInfo `json:"msg"`
}

// PushReadData represents a pushed read receipt: the reader marked the
// conversation read at read_at, every own message up to then flipped.
type PushReadData struct {
	ConversationId string `json:"conversation_id"`
	ReaderId       string `json:"reader_id"`
	ReadAt         int64  `json:"read_at"`
}

// PushTypingData represents a pushed typing flag change
type PushTypingData struct {
	ConversationId string `json:"conversation_id"`
	UserId         string `json:"user_id"`
	Typing         bool   `json:"typing"`
}

// PushPresenceData represents a pushed last-seen refresh. Online is the
// window-derived value at push time; receivers re-derive it from
// last_seen as the clock advances.
type PushPresenceData struct {
	ConversationId string `json:"conversation_id"`
	UserId         string `json:"user_id"`
	LastSeen       int64  `json:"last_seen"`
	Online         bool   `json:"online"`
}

// PushConvData represents a pushed directory entry update
type PushConvData struct {
	Conversation *entity.ConversationInfo `json:"conversation"`
}

// Encode encodes data to JSON bytes
func Encode(v interface{}) ([]byte, error) {
	return json.Marshal(v)
}

// Decode decodes JSON bytes to struct
func Decode(data []byte, v interface{}) error {
	return json.Unmarshal(data, v)
}
