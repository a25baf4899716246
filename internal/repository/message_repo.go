package repository

import (
	"context"
	"errors"

	"github.com/mbeoliero/vorbi/internal/entity"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// MessageRepo is the repository for message operations
type MessageRepo struct {
	db  *gorm.DB
	rdb *redis.Client
}

// NewMessageRepo creates a new MessageRepo
func NewMessageRepo(db *gorm.DB, rdb *redis.Client) *MessageRepo {
	return &MessageRepo{db: db, rdb: rdb}
}

// Create appends a message inside the send transaction
func (r *MessageRepo) Create(ctx context.Context, tx *gorm.DB, msg *entity.Message) error {
	return tx.WithContext(ctx).Create(msg).Error
}

// GetByClientMsgId gets a message by sender_id and client_msg_id, used
// as the fast-path idempotent-resend check.
func (r *MessageRepo) GetByClientMsgId(ctx context.Context, senderId, clientMsgId string) (*entity.Message, error) {
	var msg entity.Message
	err := r.db.WithContext(ctx).
		Where("sender_id = ? AND client_msg_id = ?", senderId, clientMsgId).
		First(&msg).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &msg, nil
}

// GetByClientMsgIdTx re-checks for a duplicate inside the send
// transaction. The locking read sees the latest committed row even
// under repeatable-read, so with the conversation row lock held two
// concurrent retries of the same client_msg_id cannot both append.
func (r *MessageRepo) GetByClientMsgIdTx(ctx context.Context, tx *gorm.DB, senderId, clientMsgId string) (*entity.Message, error) {
	var msg entity.Message
	err := tx.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("sender_id = ? AND client_msg_id = ?", senderId, clientMsgId).
		First(&msg).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &msg, nil
}

// Pull returns messages in a conversation within a seq range, ascending.
// limit is capped at 100.
func (r *MessageRepo) Pull(ctx context.Context, conversationId string, beginSeq, endSeq int64, limit int) ([]*entity.Message, error) {
	if limit <= 0 || limit > 100 {
		limit = 100
	}

	var messages []*entity.Message
	err := r.db.WithContext(ctx).
		Where("conversation_id = ? AND seq >= ? AND seq <= ?", conversationId, beginSeq, endSeq).
		Order("seq ASC").
		Limit(limit).
		Find(&messages).Error
	if err != nil {
		return nil, err
	}
	return messages, nil
}

// Latest returns the latest N messages in a conversation, ascending
func (r *MessageRepo) Latest(ctx context.Context, conversationId string, limit int) ([]*entity.Message, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}

	var messages []*entity.Message
	err := r.db.WithContext(ctx).
		Where("conversation_id = ?", conversationId).
		Order("seq DESC").
		Limit(limit).
		Find(&messages).Error
	if err != nil {
		return nil, err
	}

	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}

	return messages, nil
}

// MarkConversationRead flips the one-time read transition on every
// unread message not sent by the reader. The read filter makes the
// operation idempotent and read_at is only ever written once; the
// sender filter keeps a reader from receipting their own messages.
// Returns the number of messages flipped.
func (r *MessageRepo) MarkConversationRead(ctx context.Context, tx *gorm.DB, conversationId, readerId string, readAt int64) (int64, error) {
	result := tx.WithContext(ctx).
		Model(&entity.Message{}).
		Where("conversation_id = ? AND sender_id <> ? AND `read` = ?", conversationId, readerId, false).
		Updates(map[string]interface{}{
			"read":    true,
			"read_at": readAt,
		})
	return result.RowsAffected, result.Error
}
