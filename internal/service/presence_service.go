package service

import (
	"context"
	"time"

	"github.com/mbeoliero/kit/log"
	"github.com/mbeoliero/vorbi/internal/entity"
	"github.com/mbeoliero/vorbi/internal/repository"
	"github.com/mbeoliero/vorbi/pkg/constant"
	"github.com/mbeoliero/vorbi/pkg/errcode"
)

// PresencePusher delivers presence and typing events to sessions
// currently watching a conversation.
type PresencePusher interface {
	AsyncPushTyping(conversationId, userId string, isTyping bool)
	AsyncPushPresence(conversationId, userId string, lastSeen int64)
}

// PresenceService tracks per-conversation presence signals. Each
// participant's session writes only its own last-seen and typing
// entries; every reader derives online state from the time window, so
// no disconnect notification is ever required.
type PresenceService struct {
	presenceRepo *repository.PresenceRepo
	window       time.Duration
	pusher       PresencePusher
}

// NewPresenceService creates a new PresenceService
func NewPresenceService(repos *repository.Repositories, window time.Duration) *PresenceService {
	if window <= 0 {
		window = constant.OnlineWindow
	}
	return &PresenceService{
		presenceRepo: repos.Presence,
		window:       window,
	}
}

// SetPusher sets the event pusher
func (s *PresenceService) SetPusher(pusher PresencePusher) {
	s.pusher = pusher
}

// Heartbeat refreshes a participant's last-seen timestamp. Sessions
// call it once on open and then on a fixed interval while the
// conversation stays open.
func (s *PresenceService) Heartbeat(ctx context.Context, conversationId, userId string) error {
	if !entity.HasParticipant(conversationId, userId) {
		return errcode.ErrInvalidParticipant
	}

	now := entity.NowUnixMilli()
	if err := s.presenceRepo.SetLastSeen(ctx, conversationId, userId, now); err != nil {
		log.CtxWarn(ctx, "heartbeat failed: conversation_id=%s, user_id=%s, error=%v", conversationId, userId, err)
		return errcode.ErrInternalServer
	}

	if s.pusher != nil {
		s.pusher.AsyncPushPresence(conversationId, userId, now)
	}
	return nil
}

// SetTyping sets or clears a participant's typing flag. Idempotent.
func (s *PresenceService) SetTyping(ctx context.Context, conversationId, userId string, isTyping bool) error {
	if !entity.HasParticipant(conversationId, userId) {
		return errcode.ErrInvalidParticipant
	}

	if err := s.presenceRepo.SetTyping(ctx, conversationId, userId, isTyping); err != nil {
		log.CtxWarn(ctx, "set typing failed: conversation_id=%s, user_id=%s, error=%v", conversationId, userId, err)
		return errcode.ErrInternalServer
	}

	if s.pusher != nil {
		s.pusher.AsyncPushTyping(conversationId, userId, isTyping)
	}
	return nil
}

// Leave is the best-effort offline mark a session issues on navigation
// away or unload. It may never run; the online window covers that.
func (s *PresenceService) Leave(ctx context.Context, conversationId, userId string) error {
	if !entity.HasParticipant(conversationId, userId) {
		return errcode.ErrInvalidParticipant
	}

	if err := s.presenceRepo.MarkOffline(ctx, conversationId, userId); err != nil {
		log.CtxWarn(ctx, "mark offline failed: conversation_id=%s, user_id=%s, error=%v", conversationId, userId, err)
		return errcode.ErrInternalServer
	}

	if s.pusher != nil {
		s.pusher.AsyncPushPresence(conversationId, userId, constant.LastSeenOffline)
		s.pusher.AsyncPushTyping(conversationId, userId, false)
	}
	return nil
}

// Snapshot returns the derived presence of one participant as observed
// right now.
func (s *PresenceService) Snapshot(ctx context.Context, conversationId, userId string) (*entity.PresenceInfo, error) {
	if !entity.HasParticipant(conversationId, userId) {
		return nil, errcode.ErrInvalidParticipant
	}

	lastSeen, err := s.presenceRepo.GetLastSeen(ctx, conversationId, userId)
	if err != nil {
		return nil, errcode.ErrInternalServer.Wrap(err)
	}
	typing, err := s.presenceRepo.GetTyping(ctx, conversationId, userId)
	if err != nil {
		return nil, errcode.ErrInternalServer.Wrap(err)
	}

	return &entity.PresenceInfo{
		UserId:   userId,
		Online:   entity.IsOnline(entity.NowUnixMilli(), lastSeen, s.window),
		LastSeen: lastSeen,
		Typing:   typing,
	}, nil
}

// CounterpartSnapshot returns the peer's presence from the viewer's
// perspective, the shape the chat header renders.
func (s *PresenceService) CounterpartSnapshot(ctx context.Context, conversationId, viewerId string) (*entity.PresenceInfo, error) {
	userA, userB, _, ok := entity.ParseConversationId(conversationId)
	if !ok {
		return nil, errcode.ErrMalformedConversation
	}

	switch viewerId {
	case userA:
		return s.Snapshot(ctx, conversationId, userB)
	case userB:
		return s.Snapshot(ctx, conversationId, userA)
	default:
		return nil, errcode.ErrInvalidParticipant
	}
}
