package entity

import "github.com/mbeoliero/vorbi/pkg/errcode"

// Conversation represents a two-party conversation about a listing.
// The participant pair and listing reference are immutable after
// creation; only the denormalized last-message preview changes.
type Conversation struct {
	Id               int64  `json:"id" gorm:"column:id;primaryKey;autoIncrement"`
	ConversationId   string `json:"conversation_id" gorm:"column:conversation_id;uniqueIndex"`
	ListingId        string `json:"listing_id" gorm:"column:listing_id"`
	ListingTitle     string `json:"listing_title" gorm:"column:listing_title"`
	ListingPrice     string `json:"listing_price" gorm:"column:listing_price"`
	ListingThumbnail string `json:"listing_thumbnail" gorm:"column:listing_thumbnail"`
	LastMessage      string `json:"last_message" gorm:"column:last_message"`
	LastMessageAt    int64  `json:"last_message_at" gorm:"column:last_message_at"`
	CreatedAt        int64  `json:"created_at" gorm:"column:created_at"`
	UpdatedAt        int64  `json:"updated_at" gorm:"column:updated_at"`
}

// TableName returns the table name for Conversation
func (Conversation) TableName() string {
	return "conversations"
}

// Participant is the per-participant slice of a conversation. Each of
// the exactly two rows is owned by one user: unread_count is bumped by
// the peer's sends and reset only by the owner's own mark-read.
type Participant struct {
	Id             int64  `json:"id" gorm:"column:id;primaryKey;autoIncrement"`
	ConversationId string `json:"conversation_id" gorm:"column:conversation_id;uniqueIndex:idx_conv_user"`
	UserId         string `json:"user_id" gorm:"column:user_id;uniqueIndex:idx_conv_user"`
	PeerUserId     string `json:"peer_user_id" gorm:"column:peer_user_id"`
	DisplayName    string `json:"display_name" gorm:"column:display_name"`
	AvatarUrl      string `json:"avatar_url" gorm:"column:avatar_url"`
	UnreadCount    int64  `json:"unread_count" gorm:"column:unread_count"`
	CreatedAt      int64  `json:"created_at" gorm:"column:created_at"`
	UpdatedAt      int64  `json:"updated_at" gorm:"column:updated_at"`
}

// TableName returns the table name for Participant
func (Participant) TableName() string {
	return "conversation_participants"
}

// ListingRef is the denormalized, non-authoritative listing preview
// attached at conversation creation time.
type ListingRef struct {
	Id        string `json:"id"`
	Title     string `json:"title,omitempty"`
	Price     string `json:"price,omitempty"`
	Thumbnail string `json:"thumbnail,omitempty"`
}

// CounterpartInfo identifies the other participant from a viewer's
// perspective.
type CounterpartInfo struct {
	UserId      string `json:"user_id"`
	DisplayName string `json:"display_name"`
	AvatarUrl   string `json:"avatar_url,omitempty"`
}

// Counterpart returns the participant entry that is not the viewer.
// The display metadata comes from the counterpart's own row. Fails with
// ErrMalformedConversation when the viewer is not among the
// participants or the conversation does not have exactly two; access
// control upstream should make both unreachable.
func Counterpart(participants []*Participant, viewerId string) (*CounterpartInfo, error) {
	if len(participants) != 2 {
		return nil, errcode.ErrMalformedConversation
	}

	var viewer, other *Participant
	for _, p := range participants {
		if p.UserId == viewerId {
			viewer = p
		} else {
			other = p
		}
	}
	if viewer == nil || other == nil {
		return nil, errcode.ErrMalformedConversation
	}

	return &CounterpartInfo{
		UserId:      other.UserId,
		DisplayName: other.DisplayName,
		AvatarUrl:   other.AvatarUrl,
	}, nil
}

// ConversationInfo is the inbox view of a conversation for one user:
// everything needed to render a directory entry without touching the
// message log.
type ConversationInfo struct {
	ConversationId string           `json:"conversation_id"`
	Counterpart    *CounterpartInfo `json:"counterpart"`
	Listing        *ListingRef      `json:"listing,omitempty"`
	LastMessage    string           `json:"last_message"`
	LastMessageAt  int64            `json:"last_message_at"`
	UnreadCount    int64            `json:"unread_count"`
	Presence       *PresenceInfo    `json:"presence,omitempty"`
	UpdatedAt      int64            `json:"updated_at"`
}

// ConversationWithState is the joined row scanned by the directory
// query: the shared conversation record plus the owner's participant
// slice and the counterpart's display metadata.
type ConversationWithState struct {
	Conversation
	UserId          string `json:"user_id"`
	PeerUserId      string `json:"peer_user_id"`
	UnreadCount     int64  `json:"unread_count"`
	PeerDisplayName string `json:"peer_display_name"`
	PeerAvatarUrl   string `json:"peer_avatar_url"`
}

// ToInfo converts a joined directory row to the API view.
func (c *ConversationWithState) ToInfo() *ConversationInfo {
	info := &ConversationInfo{
		ConversationId: c.ConversationId,
		Counterpart: &CounterpartInfo{
			UserId:      c.PeerUserId,
			DisplayName: c.PeerDisplayName,
			AvatarUrl:   c.PeerAvatarUrl,
		},
		LastMessage:   c.LastMessage,
		LastMessageAt: c.LastMessageAt,
		UnreadCount:   c.UnreadCount,
		UpdatedAt:     c.UpdatedAt,
	}
	if c.ListingId != "" {
		info.Listing = &ListingRef{
			Id:        c.ListingId,
			Title:     c.ListingTitle,
			Price:     c.ListingPrice,
			Thumbnail: c.ListingThumbnail,
		}
	}
	return info
}
