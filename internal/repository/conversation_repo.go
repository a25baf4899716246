package repository

import (
	"context"
	"errors"

	"github.com/mbeoliero/vorbi/internal/entity"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ConversationRepo is the repository for conversation operations
type ConversationRepo struct {
	db  *gorm.DB
	rdb *redis.Client
}

// NewConversationRepo creates a new ConversationRepo
func NewConversationRepo(db *gorm.DB, rdb *redis.Client) *ConversationRepo {
	return &ConversationRepo{db: db, rdb: rdb}
}

// GetForUpdate loads a conversation with a row lock. Every
// append-and-side-effect step runs under this lock, which is what
// serializes concurrent sends to the same conversation while leaving
// different conversations fully independent.
func (r *ConversationRepo) GetForUpdate(ctx context.Context, tx *gorm.DB, conversationId string) (*entity.Conversation, error) {
	var conv entity.Conversation
	err := tx.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("conversation_id = ?", conversationId).
		First(&conv).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &conv, nil
}

// CreateWithParticipants inserts the conversation record and both
// participant rows. OnConflict DoNothing keeps creation idempotent when
// two first-messages race: the deterministic conversation id guarantees
// both land on the same record.
func (r *ConversationRepo) CreateWithParticipants(ctx context.Context, tx *gorm.DB, conv *entity.Conversation, participants []*entity.Participant) error {
	now := entity.NowUnixMilli()
	conv.CreatedAt = now
	conv.UpdatedAt = now

	err := tx.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "conversation_id"}},
		DoNothing: true,
	}).Create(conv).Error
	if err != nil {
		return err
	}

	for _, p := range participants {
		p.CreatedAt = now
		p.UpdatedAt = now
		err := tx.WithContext(ctx).Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "conversation_id"}, {Name: "user_id"}},
			DoNothing: true,
		}).Create(p).Error
		if err != nil {
			return err
		}
	}

	return nil
}

// UpdatePreview sets the denormalized last-message preview. Called only
// inside the send transaction.
func (r *ConversationRepo) UpdatePreview(ctx context.Context, tx *gorm.DB, conversationId, lastMessage string, lastMessageAt int64) error {
	return tx.WithContext(ctx).
		Model(&entity.Conversation{}).
		Where("conversation_id = ?", conversationId).
		Updates(map[string]interface{}{
			"last_message":    lastMessage,
			"last_message_at": lastMessageAt,
			"updated_at":      entity.NowUnixMilli(),
		}).Error
}

// IncrUnread bumps the unread counter of one participant by one. Runs
// in the send transaction, so each committed send contributes exactly
// one increment regardless of interleaving.
func (r *ConversationRepo) IncrUnread(ctx context.Context, tx *gorm.DB, conversationId, userId string) error {
	return tx.WithContext(ctx).
		Model(&entity.Participant{}).
		Where("conversation_id = ? AND user_id = ?", conversationId, userId).
		Updates(map[string]interface{}{
			"unread_count": gorm.Expr("unread_count + 1"),
			"updated_at":   entity.NowUnixMilli(),
		}).Error
}

// ResetUnread zeroes the unread counter of one participant. Only ever
// called for the reader's own row.
func (r *ConversationRepo) ResetUnread(ctx context.Context, tx *gorm.DB, conversationId, userId string) error {
	return tx.WithContext(ctx).
		Model(&entity.Participant{}).
		Where("conversation_id = ? AND user_id = ?", conversationId, userId).
		Updates(map[string]interface{}{
			"unread_count": 0,
			"updated_at":   entity.NowUnixMilli(),
		}).Error
}

// GetParticipants loads both participant rows of a conversation
func (r *ConversationRepo) GetParticipants(ctx context.Context, conversationId string) ([]*entity.Participant, error) {
	var participants []*entity.Participant
	err := r.db.WithContext(ctx).
		Where("conversation_id = ?", conversationId).
		Find(&participants).Error
	if err != nil {
		return nil, err
	}
	return participants, nil
}

// GetParticipant loads one participant row
func (r *ConversationRepo) GetParticipant(ctx context.Context, conversationId, userId string) (*entity.Participant, error) {
	var p entity.Participant
	err := r.db.WithContext(ctx).
		Where("conversation_id = ? AND user_id = ?", conversationId, userId).
		First(&p).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &p, nil
}

// ListByUser returns the directory rows for a user's inbox, most recent
// activity first. The join pulls the owner's unread counter and the
// counterpart's display metadata so the inbox never needs to touch the
// message log.
func (r *ConversationRepo) ListByUser(ctx context.Context, userId string) ([]*entity.ConversationWithState, error) {
	var results []*entity.ConversationWithState

	err := r.db.WithContext(ctx).
		Table("conversations c").
		Select(`
			c.*,
			p.user_id as user_id,
			p.peer_user_id as peer_user_id,
			p.unread_count as unread_count,
			peer.display_name as peer_display_name,
			peer.avatar_url as peer_avatar_url
		`).
		Joins("JOIN conversation_participants p ON p.conversation_id = c.conversation_id").
		Joins("LEFT JOIN conversation_participants peer ON peer.conversation_id = c.conversation_id AND peer.user_id = p.peer_user_id").
		Where("p.user_id = ?", userId).
		Order("c.last_message_at DESC").
		Scan(&results).Error

	if err != nil {
		return nil, err
	}
	return results, nil
}

// GetWithState returns one directory row for a user
func (r *ConversationRepo) GetWithState(ctx context.Context, userId, conversationId string) (*entity.ConversationWithState, error) {
	var result entity.ConversationWithState

	err := r.db.WithContext(ctx).
		Table("conversations c").
		Select(`
			c.*,
			p.user_id as user_id,
			p.peer_user_id as peer_user_id,
			p.unread_count as unread_count,
			peer.display_name as peer_display_name,
			peer.avatar_url as peer_avatar_url
		`).
		Joins("JOIN conversation_participants p ON p.conversation_id = c.conversation_id").
		Joins("LEFT JOIN conversation_participants peer ON peer.conversation_id = c.conversation_id AND peer.user_id = p.peer_user_id").
		Where("p.user_id = ? AND c.conversation_id = ?", userId, conversationId).
		Scan(&result).Error

	if err != nil {
		return nil, err
	}
	if result.ConversationId == "" {
		return nil, nil
	}
	return &result, nil
}
