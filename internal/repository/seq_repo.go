package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/mbeoliero/vorbi/internal/entity"
	"github.com/mbeoliero/vorbi/pkg/constant"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SeqRepo is the repository for per-conversation sequence allocation.
// Seqs give every conversation a strictly increasing order to page
// through history by. They are not guaranteed dense: the Redis INCR
// happens outside the MySQL transaction, so a send that rolls back
// afterwards leaves a hole.
type SeqRepo struct {
	db  *gorm.DB
	rdb *redis.Client
}

// NewSeqRepo creates a new SeqRepo
func NewSeqRepo(db *gorm.DB, rdb *redis.Client) *SeqRepo {
	return &SeqRepo{db: db, rdb: rdb}
}

// AllocSeq allocates the next sequence number for a conversation using
// Redis INCR. Callers hold the conversation row lock, so seq order and
// created_at order always agree.
func (r *SeqRepo) AllocSeq(ctx context.Context, conversationId string) (int64, error) {
	key := fmt.Sprintf(constant.RedisKeySeqConversation(), conversationId)
	seq, err := r.rdb.Incr(ctx, key).Result()
	if err != nil {
		return 0, err
	}
	if seq > 1 {
		return seq, nil
	}

	// A result of 1 means the counter was fresh. If the conversation
	// already has messages the key was evicted; resume from the durable
	// copy. Safe under the row lock held by the caller.
	var seqConv entity.SeqConversation
	err = r.db.WithContext(ctx).Where("conversation_id = ?", conversationId).First(&seqConv).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return seq, nil
		}
		return 0, err
	}
	if seqConv.MaxSeq < seq {
		return seq, nil
	}

	seq = seqConv.MaxSeq + 1
	if err := r.rdb.Set(ctx, key, seq, 0).Err(); err != nil {
		return 0, err
	}
	return seq, nil
}

// GetMaxSeq gets the current max sequence for a conversation
func (r *SeqRepo) GetMaxSeq(ctx context.Context, conversationId string) (int64, error) {
	// Try Redis first
	key := fmt.Sprintf(constant.RedisKeySeqConversation(), conversationId)
	seq, err := r.rdb.Get(ctx, key).Int64()
	if err == nil {
		return seq, nil
	}
	if !errors.Is(err, redis.Nil) {
		return 0, err
	}

	// Fall back to MySQL
	var seqConv entity.SeqConversation
	err = r.db.WithContext(ctx).Where("conversation_id = ?", conversationId).First(&seqConv).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, nil
		}
		return 0, err
	}

	// Restore to Redis
	r.rdb.Set(ctx, key, seqConv.MaxSeq, 0)

	return seqConv.MaxSeq, nil
}

// SyncSeqToMySQLWithTx persists the Redis sequence within the send
// transaction so the durable copy never trails a committed message.
func (r *SeqRepo) SyncSeqToMySQLWithTx(ctx context.Context, tx *gorm.DB, conversationId string, maxSeq int64) error {
	seqConv := &entity.SeqConversation{
		ConversationId: conversationId,
		MaxSeq:         maxSeq,
	}

	return tx.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "conversation_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"max_seq"}),
	}).Create(seqConv).Error
}
