package entity

// Message represents a single text message in a conversation. Messages
// are immutable after creation except for the one-time read transition.
type Message struct {
	Id             string `json:"id" gorm:"column:id;primaryKey"`
	ConversationId string `json:"conversation_id" gorm:"column:conversation_id;index:idx_conv_seq"`
	Seq            int64  `json:"seq" gorm:"column:seq;index:idx_conv_seq"`
	ClientMsgId    string `json:"client_msg_id" gorm:"column:client_msg_id"`
	SenderId       string `json:"sender_id" gorm:"column:sender_id"`
	Text           string `json:"text" gorm:"column:text"`
	// CreatedAt is server-assigned under the conversation lock and is
	// strictly greater than the previous message's, so log order equals
	// timestamp order even with concurrent senders.
	CreatedAt int64  `json:"created_at" gorm:"column:created_at"`
	Read      bool   `json:"read" gorm:"column:read"`
	ReadAt    *int64 `json:"read_at,omitempty" gorm:"column:read_at"`
}

// TableName returns the table name for Message
func (Message) TableName() string {
	return "messages"
}

// MessageInfo represents message info for API responses
type MessageInfo struct {
	Id             string `json:"id"`
	ConversationId string `json:"conversation_id"`
	Seq            int64  `json:"seq"`
	ClientMsgId    string `json:"client_msg_id"`
	SenderId       string `json:"sender_id"`
	Text           string `json:"text"`
	CreatedAt      int64  `json:"created_at"`
	Read           bool   `json:"read"`
	ReadAt         *int64 `json:"read_at,omitempty"`
}

// ToMessageInfo converts Message to MessageInfo
func (m *Message) ToMessageInfo() *MessageInfo {
	return &MessageInfo{
		Id:             m.Id,
		ConversationId: m.ConversationId,
		Seq:            m.Seq,
		ClientMsgId:    m.ClientMsgId,
		SenderId:       m.SenderId,
		Text:           m.Text,
		CreatedAt:      m.CreatedAt,
		Read:           m.Read,
		ReadAt:         m.ReadAt,
	}
}

// SeqConversation represents conversation sequence info
type SeqConversation struct {
	ConversationId string `json:"conversation_id" gorm:"column:conversation_id;primaryKey"`
	MaxSeq         int64  `json:"max_seq" gorm:"column:max_seq"`
}

// TableName returns the table name for SeqConversation
func (SeqConversation) TableName() string {
	return "seq_conversations"
}
