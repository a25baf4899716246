package entity

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/mbeoliero/vorbi/pkg/constant"
)

// NowUnixMilli returns current unix timestamp in milliseconds
func NowUnixMilli() int64 {
	return time.Now().UnixMilli()
}

// GenConversationId generates the conversation id for a two-party,
// listing-scoped conversation.
// Format: cv_{min(userA,userB)}:{max(userA,userB)}:{listingId}
// The id is deterministic, so there can never be two conversations for
// the same unordered pair and listing. Uses ":" as separator because
// user ids may contain "_".
func GenConversationId(userA, userB, listingId string) string {
	users := []string{userA, userB}
	sort.Strings(users)
	return fmt.Sprintf("%s%s:%s:%s", constant.ConversationPrefix, users[0], users[1], listingId)
}

// ParseConversationId splits a conversation id into its two participant
// ids and the listing id. Returns ok=false for malformed ids.
func ParseConversationId(conversationId string) (userA, userB, listingId string, ok bool) {
	if !IsConversationId(conversationId) {
		return "", "", "", false
	}
	rest := conversationId[len(constant.ConversationPrefix):]
	parts := strings.Split(rest, ":")
	if len(parts) != 3 || parts[0] == "" || parts[1] == "" || parts[0] == parts[1] {
		return "", "", "", false
	}
	return parts[0], parts[1], parts[2], true
}

// IsConversationId checks whether the id carries the conversation prefix
func IsConversationId(conversationId string) bool {
	return len(conversationId) > len(constant.ConversationPrefix) &&
		strings.HasPrefix(conversationId, constant.ConversationPrefix)
}

// HasParticipant checks whether userId is one of the two participants
// encoded in the conversation id. This is the access check used before
// any repository read, so it must not require a database round trip.
func HasParticipant(conversationId, userId string) bool {
	userA, userB, _, ok := ParseConversationId(conversationId)
	if !ok {
		return false
	}
	return userA == userId || userB == userId
}
