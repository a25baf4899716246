package service

import (
	"context"

	"github.com/mbeoliero/kit/log"
	"github.com/mbeoliero/vorbi/internal/entity"
	"github.com/mbeoliero/vorbi/internal/repository"
	"github.com/mbeoliero/vorbi/pkg/errcode"
)

// ConversationService is the conversation directory: the per-user inbox
// of conversations with denormalized previews and unread badges. It
// only ever reads conversation and participant rows, never the message
// log itself.
type ConversationService struct {
	convRepo *repository.ConversationRepo
	presence *PresenceService
	repos    *repository.Repositories
}

// NewConversationService creates a new ConversationService
func NewConversationService(repos *repository.Repositories, presence *PresenceService) *ConversationService {
	return &ConversationService{
		convRepo: repos.Conversation,
		presence: presence,
		repos:    repos,
	}
}

// ListConversations returns a user's inbox ordered by most recent
// activity, each entry carrying the counterpart, the listing reference,
// the last-message preview, the unread badge and the counterpart's
// live presence snapshot.
func (s *ConversationService) ListConversations(ctx context.Context, userId string) ([]*entity.ConversationInfo, error) {
	rows, err := s.convRepo.ListByUser(ctx, userId)
	if err != nil {
		log.CtxError(ctx, "list conversations failed: user_id=%s, error=%v", userId, err)
		return nil, errcode.ErrInternalServer
	}

	result := make([]*entity.ConversationInfo, 0, len(rows))
	for _, row := range rows {
		info := row.ToInfo()
		if p, err := s.presence.Snapshot(ctx, row.ConversationId, row.PeerUserId); err == nil {
			info.Presence = p
		}
		result = append(result, info)
	}

	return result, nil
}

// GetConversation returns one inbox entry for a user
func (s *ConversationService) GetConversation(ctx context.Context, userId, conversationId string) (*entity.ConversationInfo, error) {
	if !entity.HasParticipant(conversationId, userId) {
		return nil, errcode.ErrInvalidParticipant
	}

	row, err := s.convRepo.GetWithState(ctx, userId, conversationId)
	if err != nil {
		log.CtxError(ctx, "get conversation failed: user_id=%s, conversation_id=%s, error=%v", userId, conversationId, err)
		return nil, errcode.ErrInternalServer
	}
	if row == nil {
		return nil, errcode.ErrConvNotFound
	}

	info := row.ToInfo()
	if p, err := s.presence.Snapshot(ctx, conversationId, row.PeerUserId); err == nil {
		info.Presence = p
	}
	return info, nil
}

// GetCounterpart derives the other participant's identity for a viewer.
// Thin wrapper over the pure entity.Counterpart, loading the rows.
func (s *ConversationService) GetCounterpart(ctx context.Context, viewerId, conversationId string) (*entity.CounterpartInfo, error) {
	if !entity.HasParticipant(conversationId, viewerId) {
		return nil, errcode.ErrInvalidParticipant
	}

	participants, err := s.convRepo.GetParticipants(ctx, conversationId)
	if err != nil {
		log.CtxError(ctx, "get participants failed: conversation_id=%s, error=%v", conversationId, err)
		return nil, errcode.ErrInternalServer
	}
	if len(participants) == 0 {
		return nil, errcode.ErrConvNotFound
	}

	return entity.Counterpart(participants, viewerId)
}
