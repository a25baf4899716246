package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mbeoliero/vorbi/pkg/constant"
	"github.com/redis/go-redis/v9"
)

// PresenceRepo stores presence signals in Redis. Keys are scoped to
// (conversation, participant) and each key is written only by its
// owner's session, which is what keeps concurrent participant actions
// from clobbering each other without any locking.
//
// Last-seen keys hold a unix-ms timestamp, never an online boolean:
// online state is always derived from the timestamp and the window.
type PresenceRepo struct {
	rdb       *redis.Client
	typingTTL time.Duration
}

// NewPresenceRepo creates a new PresenceRepo
func NewPresenceRepo(rdb *redis.Client, typingTTL time.Duration) *PresenceRepo {
	if typingTTL <= 0 {
		typingTTL = constant.TypingTTL
	}
	return &PresenceRepo{rdb: rdb, typingTTL: typingTTL}
}

// SetLastSeen records a heartbeat timestamp for a participant. The key
// expires a generous multiple of the online window later; expiry is
// garbage collection, not the offline signal.
func (r *PresenceRepo) SetLastSeen(ctx context.Context, conversationId, userId string, at int64) error {
	key := fmt.Sprintf(constant.RedisKeyLastSeen(), conversationId, userId)
	return r.rdb.Set(ctx, key, at, 24*time.Hour).Err()
}

// GetLastSeen returns a participant's last heartbeat timestamp, 0 when
// none is recorded.
func (r *PresenceRepo) GetLastSeen(ctx context.Context, conversationId, userId string) (int64, error) {
	key := fmt.Sprintf(constant.RedisKeyLastSeen(), conversationId, userId)
	v, err := r.rdb.Get(ctx, key).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, err
	}
	return v, nil
}

// SetTyping sets or clears the typing flag. The flag carries a TTL so a
// session that dies mid-compose cannot leave a permanently stale
// indicator; live sessions refresh it on keystroke activity.
func (r *PresenceRepo) SetTyping(ctx context.Context, conversationId, userId string, isTyping bool) error {
	key := fmt.Sprintf(constant.RedisKeyTyping(), conversationId, userId)
	if isTyping {
		return r.rdb.Set(ctx, key, "1", r.typingTTL).Err()
	}
	return r.rdb.Del(ctx, key).Err()
}

// GetTyping returns whether a participant's typing flag is currently up
func (r *PresenceRepo) GetTyping(ctx context.Context, conversationId, userId string) (bool, error) {
	key := fmt.Sprintf(constant.RedisKeyTyping(), conversationId, userId)
	exists, err := r.rdb.Exists(ctx, key).Result()
	if err != nil {
		return false, err
	}
	return exists > 0, nil
}

// MarkOffline is the best-effort offline mark: last-seen drops to the
// sentinel and the typing flag is cleared. Nothing depends on it
// running; a vanished session ages out of the online window anyway.
func (r *PresenceRepo) MarkOffline(ctx context.Context, conversationId, userId string) error {
	seenKey := fmt.Sprintf(constant.RedisKeyLastSeen(), conversationId, userId)
	typingKey := fmt.Sprintf(constant.RedisKeyTyping(), conversationId, userId)

	pipe := r.rdb.Pipeline()
	pipe.Set(ctx, seenKey, constant.LastSeenOffline, 24*time.Hour)
	pipe.Del(ctx, typingKey)
	_, err := pipe.Exec(ctx)
	return err
}
