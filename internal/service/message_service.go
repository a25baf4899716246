package service

import (
	"context"
	"strings"

	"github.com/mbeoliero/kit/log"
	"github.com/mbeoliero/vorbi/internal/entity"
	"github.com/mbeoliero/vorbi/internal/repository"
	"github.com/mbeoliero/vorbi/pkg/errcode"
	"github.com/mbeoliero/vorbi/pkg/idgen"
	"gorm.io/gorm"
)

// MessagePusher delivers log and directory events to live subscribers
type MessagePusher interface {
	AsyncPushMessage(msg *entity.Message, userIds []string, excludeConnId string)
	AsyncPushRead(conversationId, readerId string, readAt int64, userIds []string)
	AsyncPushConversation(userId string, info *entity.ConversationInfo)
}

// The store interfaces below are the slices of the repository layer the
// message log actually touches. Production wires the gorm/redis repos;
// tests substitute in-memory fakes.

type messageStore interface {
	Create(ctx context.Context, tx *gorm.DB, msg *entity.Message) error
	GetByClientMsgId(ctx context.Context, senderId, clientMsgId string) (*entity.Message, error)
	GetByClientMsgIdTx(ctx context.Context, tx *gorm.DB, senderId, clientMsgId string) (*entity.Message, error)
	Pull(ctx context.Context, conversationId string, beginSeq, endSeq int64, limit int) ([]*entity.Message, error)
	Latest(ctx context.Context, conversationId string, limit int) ([]*entity.Message, error)
	MarkConversationRead(ctx context.Context, tx *gorm.DB, conversationId, readerId string, readAt int64) (int64, error)
}

type seqStore interface {
	AllocSeq(ctx context.Context, conversationId string) (int64, error)
	GetMaxSeq(ctx context.Context, conversationId string) (int64, error)
	SyncSeqToMySQLWithTx(ctx context.Context, tx *gorm.DB, conversationId string, maxSeq int64) error
}

type conversationStore interface {
	GetForUpdate(ctx context.Context, tx *gorm.DB, conversationId string) (*entity.Conversation, error)
	CreateWithParticipants(ctx context.Context, tx *gorm.DB, conv *entity.Conversation, participants []*entity.Participant) error
	UpdatePreview(ctx context.Context, tx *gorm.DB, conversationId, lastMessage string, lastMessageAt int64) error
	IncrUnread(ctx context.Context, tx *gorm.DB, conversationId, userId string) error
	ResetUnread(ctx context.Context, tx *gorm.DB, conversationId, userId string) error
	GetParticipant(ctx context.Context, conversationId, userId string) (*entity.Participant, error)
	GetWithState(ctx context.Context, userId, conversationId string) (*entity.ConversationWithState, error)
}

type txRunner interface {
	Transaction(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type typingSetter interface {
	SetTyping(ctx context.Context, conversationId, userId string, isTyping bool) error
}

// MessageService owns the append-only message log of every
// conversation: sends, history pulls and the read transition.
type MessageService struct {
	msgRepo  messageStore
	seqRepo  seqStore
	convRepo conversationStore
	repos    txRunner
	presence typingSetter
	pusher   MessagePusher
}

// NewMessageService creates a new MessageService
func NewMessageService(repos *repository.Repositories, presence *PresenceService) *MessageService {
	return &MessageService{
		msgRepo:  repos.Message,
		seqRepo:  repos.Seq,
		convRepo: repos.Conversation,
		repos:    repos,
		presence: presence,
	}
}

// SetPusher sets the event pusher
func (s *MessageService) SetPusher(pusher MessagePusher) {
	s.pusher = pusher
}

// ParticipantProfile carries the denormalized display metadata captured
// at conversation creation. It may go stale relative to the user
// profile; the directory never treats it as authoritative.
type ParticipantProfile struct {
	DisplayName string `json:"display_name"`
	AvatarUrl   string `json:"avatar_url,omitempty"`
}

// SendMessageRequest represents a send request. Either ConversationId
// targets an existing conversation, or PeerUserId (plus the optional
// listing reference) lazily creates one on first message.
type SendMessageRequest struct {
	ClientMsgId    string              `json:"client_msg_id"`
	ConversationId string              `json:"conversation_id,omitempty"`
	PeerUserId     string              `json:"peer_user_id,omitempty"`
	Listing        *entity.ListingRef  `json:"listing,omitempty"`
	SenderProfile  *ParticipantProfile `json:"sender_profile,omitempty"`
	PeerProfile    *ParticipantProfile `json:"peer_profile,omitempty"`
	Text           string              `json:"text"`
}

// Send appends a message to a conversation's log. The append, the
// preview update and the peer's unread increment commit as one
// transaction under the conversation row lock: concurrent sends to the
// same conversation linearize, sends to different conversations run in
// parallel, and a failure leaves no partial state behind.
func (s *MessageService) Send(ctx context.Context, senderId string, req *SendMessageRequest) (*entity.Message, error) {
	text := strings.TrimSpace(req.Text)
	if text == "" {
		return nil, errcode.ErrEmptyMessage
	}

	conversationId, peerId, err := s.resolveTarget(senderId, req)
	if err != nil {
		return nil, err
	}

	// Idempotent resend: a client retrying with the same client_msg_id
	// gets the original message back instead of a duplicate append.
	if req.ClientMsgId != "" {
		existingMsg, err := s.msgRepo.GetByClientMsgId(ctx, senderId, req.ClientMsgId)
		if err != nil {
			log.CtxError(ctx, "check idempotency failed: %v", err)
			return nil, errcode.ErrInternalServer
		}
		if existingMsg != nil {
			log.CtxDebug(ctx, "duplicate message: client_msg_id=%s", req.ClientMsgId)
			return existingMsg, nil
		}
	}

	var msg *entity.Message
	var duplicate bool

	err = s.repos.Transaction(ctx, func(tx *gorm.DB) error {
		conv, err := s.convRepo.GetForUpdate(ctx, tx, conversationId)
		if err != nil {
			return err
		}
		if conv == nil {
			// Conversations are created lazily on first message.
			if req.PeerUserId == "" {
				return errcode.ErrConvNotFound
			}
			if err := s.createConversation(ctx, tx, conversationId, senderId, req); err != nil {
				return err
			}
			conv, err = s.convRepo.GetForUpdate(ctx, tx, conversationId)
			if err != nil {
				return err
			}
			if conv == nil {
				return errcode.ErrConvNotFound
			}
		}

		// Re-check idempotency under the row lock: a concurrent retry
		// that committed between the fast-path check and here is
		// visible now, so the same client_msg_id cannot append twice.
		if req.ClientMsgId != "" {
			existing, err := s.msgRepo.GetByClientMsgIdTx(ctx, tx, senderId, req.ClientMsgId)
			if err != nil {
				return err
			}
			if existing != nil {
				msg = existing
				duplicate = true
				return nil
			}
		}

		seq, err := s.seqRepo.AllocSeq(ctx, conversationId)
		if err != nil {
			return errcode.ErrSeqAllocFailed.Wrap(err)
		}

		// Server-assigned timestamp, strictly after the previous
		// message. The row lock is what makes this safe.
		createdAt := entity.NowUnixMilli()
		if createdAt <= conv.LastMessageAt {
			createdAt = conv.LastMessageAt + 1
		}

		msgId, err := idgen.NextID()
		if err != nil {
			return err
		}

		msg = &entity.Message{
			Id:             msgId,
			ConversationId: conversationId,
			Seq:            seq,
			ClientMsgId:    req.ClientMsgId,
			SenderId:       senderId,
			Text:           text,
			CreatedAt:      createdAt,
		}

		if err := s.msgRepo.Create(ctx, tx, msg); err != nil {
			return err
		}
		if err := s.seqRepo.SyncSeqToMySQLWithTx(ctx, tx, conversationId, seq); err != nil {
			return err
		}
		if err := s.convRepo.UpdatePreview(ctx, tx, conversationId, text, createdAt); err != nil {
			return err
		}
		return s.convRepo.IncrUnread(ctx, tx, conversationId, peerId)
	})

	if err != nil {
		if e, ok := err.(*errcode.Error); ok {
			return nil, e
		}
		log.CtxError(ctx, "send message failed: %v", err)
		return nil, errcode.ErrDeliveryFailure
	}
	if duplicate {
		log.CtxDebug(ctx, "duplicate message: client_msg_id=%s", req.ClientMsgId)
		return msg, nil
	}

	// Sending is also the end of composing.
	if err := s.presence.SetTyping(ctx, conversationId, senderId, false); err != nil {
		log.CtxWarn(ctx, "clear typing after send failed: %v", err)
	}

	if s.pusher != nil {
		s.pusher.AsyncPushMessage(msg, []string{senderId, peerId}, "")
		s.pushDirectoryUpdate(ctx, conversationId, senderId, peerId)
	}

	log.CtxInfo(ctx, "message sent: conversation_id=%s, sender_id=%s, seq=%d", conversationId, senderId, msg.Seq)
	return msg, nil
}

// resolveTarget determines the conversation id and the peer for a send
func (s *MessageService) resolveTarget(senderId string, req *SendMessageRequest) (conversationId, peerId string, err error) {
	if req.ConversationId != "" {
		userA, userB, _, ok := entity.ParseConversationId(req.ConversationId)
		if !ok {
			return "", "", errcode.ErrMalformedConversation
		}
		switch senderId {
		case userA:
			return req.ConversationId, userB, nil
		case userB:
			return req.ConversationId, userA, nil
		default:
			return "", "", errcode.ErrInvalidParticipant
		}
	}

	if req.PeerUserId == "" {
		return "", "", errcode.ErrInvalidParam
	}
	if req.PeerUserId == senderId {
		return "", "", errcode.ErrSelfConversation
	}

	listingId := ""
	if req.Listing != nil {
		listingId = req.Listing.Id
	}
	return entity.GenConversationId(senderId, req.PeerUserId, listingId), req.PeerUserId, nil
}

// createConversation inserts the conversation and both participant rows
func (s *MessageService) createConversation(ctx context.Context, tx *gorm.DB, conversationId, senderId string, req *SendMessageRequest) error {
	conv := &entity.Conversation{
		ConversationId: conversationId,
	}
	if req.Listing != nil {
		conv.ListingId = req.Listing.Id
		conv.ListingTitle = req.Listing.Title
		conv.ListingPrice = req.Listing.Price
		conv.ListingThumbnail = req.Listing.Thumbnail
	}

	sender := &entity.Participant{
		ConversationId: conversationId,
		UserId:         senderId,
		PeerUserId:     req.PeerUserId,
	}
	peer := &entity.Participant{
		ConversationId: conversationId,
		UserId:         req.PeerUserId,
		PeerUserId:     senderId,
	}
	if req.SenderProfile != nil {
		sender.DisplayName = req.SenderProfile.DisplayName
		sender.AvatarUrl = req.SenderProfile.AvatarUrl
	}
	if req.PeerProfile != nil {
		peer.DisplayName = req.PeerProfile.DisplayName
		peer.AvatarUrl = req.PeerProfile.AvatarUrl
	}

	return s.convRepo.CreateWithParticipants(ctx, tx, conv, []*entity.Participant{sender, peer})
}

// pushDirectoryUpdate refreshes both participants' inbox entries
func (s *MessageService) pushDirectoryUpdate(ctx context.Context, conversationId string, userIds ...string) {
	for _, userId := range userIds {
		row, err := s.convRepo.GetWithState(ctx, userId, conversationId)
		if err != nil || row == nil {
			continue
		}
		s.pusher.AsyncPushConversation(userId, row.ToInfo())
	}
}

// PullMessagesRequest represents a history pull
type PullMessagesRequest struct {
	ConversationId string `json:"conversation_id"`
	BeginSeq       int64  `json:"begin_seq"`
	EndSeq         int64  `json:"end_seq"`
	Limit          int    `json:"limit"`
}

// PullMessages returns a seq-ordered slice of a conversation's log
func (s *MessageService) PullMessages(ctx context.Context, userId string, req *PullMessagesRequest) ([]*entity.Message, int64, error) {
	if !entity.HasParticipant(req.ConversationId, userId) {
		return nil, 0, errcode.ErrInvalidParticipant
	}

	maxSeq, err := s.seqRepo.GetMaxSeq(ctx, req.ConversationId)
	if err != nil {
		log.CtxError(ctx, "get max seq failed: %v", err)
		return nil, 0, errcode.ErrInternalServer
	}

	// No range means "latest page", the open-conversation case.
	if req.BeginSeq == 0 && req.EndSeq == 0 {
		messages, err := s.msgRepo.Latest(ctx, req.ConversationId, req.Limit)
		if err != nil {
			log.CtxError(ctx, "pull latest messages failed: %v", err)
			return nil, 0, errcode.ErrPullFailed
		}
		return messages, maxSeq, nil
	}

	beginSeq := req.BeginSeq
	endSeq := req.EndSeq
	if endSeq == 0 || endSeq > maxSeq {
		endSeq = maxSeq
	}
	if beginSeq > endSeq {
		return []*entity.Message{}, maxSeq, nil
	}

	messages, err := s.msgRepo.Pull(ctx, req.ConversationId, beginSeq, endSeq, req.Limit)
	if err != nil {
		log.CtxError(ctx, "pull messages failed: %v", err)
		return nil, 0, errcode.ErrPullFailed
	}

	return messages, maxSeq, nil
}

// MarkRead flips the read receipt on every unread message from the peer
// and zeroes the reader's unread counter, atomically. Calling it again
// with no new messages is a no-op: the read filter skips already-read
// messages, so read_at is written exactly once per message.
func (s *MessageService) MarkRead(ctx context.Context, readerId, conversationId string) error {
	userA, userB, _, ok := entity.ParseConversationId(conversationId)
	if !ok {
		return errcode.ErrMalformedConversation
	}
	var peerId string
	switch readerId {
	case userA:
		peerId = userB
	case userB:
		peerId = userA
	default:
		return errcode.ErrInvalidParticipant
	}

	readAt := entity.NowUnixMilli()
	var flipped int64

	err := s.repos.Transaction(ctx, func(tx *gorm.DB) error {
		n, err := s.msgRepo.MarkConversationRead(ctx, tx, conversationId, readerId, readAt)
		if err != nil {
			return err
		}
		flipped = n
		return s.convRepo.ResetUnread(ctx, tx, conversationId, readerId)
	})
	if err != nil {
		log.CtxError(ctx, "mark read failed: conversation_id=%s, reader_id=%s, error=%v", conversationId, readerId, err)
		return errcode.ErrInternalServer
	}

	if flipped > 0 && s.pusher != nil {
		// The sender's sessions flip their read indicators; the
		// reader's inbox badge resets.
		s.pusher.AsyncPushRead(conversationId, readerId, readAt, []string{peerId})
		s.pushDirectoryUpdate(ctx, conversationId, readerId)
	}

	return nil
}

// NewestSeq returns the conversation's max seq and the caller's unread
// count, the pair a session needs to decide whether to resync.
func (s *MessageService) NewestSeq(ctx context.Context, userId, conversationId string) (maxSeq, unread int64, err error) {
	if !entity.HasParticipant(conversationId, userId) {
		return 0, 0, errcode.ErrInvalidParticipant
	}

	maxSeq, err = s.seqRepo.GetMaxSeq(ctx, conversationId)
	if err != nil {
		log.CtxError(ctx, "get max seq failed: conversation_id=%s, error=%v", conversationId, err)
		return 0, 0, errcode.ErrInternalServer
	}

	participant, err := s.convRepo.GetParticipant(ctx, conversationId, userId)
	if err != nil {
		log.CtxError(ctx, "get participant failed: conversation_id=%s, error=%v", conversationId, err)
		return 0, 0, errcode.ErrInternalServer
	}
	if participant != nil {
		unread = participant.UnreadCount
	}

	return maxSeq, unread, nil
}
