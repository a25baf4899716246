package constant

import "time"

// Presence timing. Online state is always derived from the last-seen
// timestamp and OnlineWindow, never read back as a stored flag.
const (
	// OnlineWindow is how long after the last heartbeat a participant
	// still counts as online.
	OnlineWindow = 2 * time.Minute

	// HeartbeatInterval is how often a session refreshes its last-seen
	// timestamp while a conversation is open. Must be well below
	// OnlineWindow so a single missed beat does not flip the state.
	HeartbeatInterval = 30 * time.Second

	// TypingTTL bounds how long a typing flag survives without being
	// refreshed, so a session that dies mid-compose cannot leave a
	// permanently stale indicator.
	TypingTTL = 10 * time.Second

	// TypingIdleTimeout is how long a session keeps the typing flag up
	// after the last keystroke.
	TypingIdleTimeout = 5 * time.Second

	// LastSeenOffline is the sentinel written by a best-effort offline
	// mark when a session leaves a conversation.
	LastSeenOffline = int64(0)
)

// Platform Ids
const (
	PlatformIdUnknown = 0
	PlatformIdIOS     = 1
	PlatformIdAndroid = 2
	PlatformIdWeb     = 5
)

// PlatformIdToName converts platform Id to name
func PlatformIdToName(platformId int) string {
	switch platformId {
	case PlatformIdIOS:
		return "iOS"
	case PlatformIdAndroid:
		return "Android"
	case PlatformIdWeb:
		return "Web"
	default:
		return "Unknown"
	}
}

// ConversationPrefix marks listing-scoped two-party conversation ids.
const ConversationPrefix = "cv_"

// Redis key patterns (without prefix, use RedisKey() to get full key)
const (
	redisKeySeqConversation = "seq:conv:%s"           // seq:conv:{conversation_id}
	redisKeyLastSeen        = "presence:seen:%s:%s"   // presence:seen:{conversation_id}:{user_id}
	redisKeyTyping          = "presence:typing:%s:%s" // presence:typing:{conversation_id}:{user_id}
)

// redisKeyPrefix is the global prefix for all Redis keys
var redisKeyPrefix = "vorbi:"

// InitRedisKeyPrefix initializes the Redis key prefix from config
func InitRedisKeyPrefix(prefix string) {
	if prefix != "" {
		redisKeyPrefix = prefix
	}
}

// GetRedisKeyPrefix returns the current Redis key prefix
func GetRedisKeyPrefix() string {
	return redisKeyPrefix
}

// Redis key getters with prefix
func RedisKeySeqConversation() string { return redisKeyPrefix + redisKeySeqConversation }
func RedisKeyLastSeen() string        { return redisKeyPrefix + redisKeyLastSeen }
func RedisKeyTyping() string          { return redisKeyPrefix + redisKeyTyping }
