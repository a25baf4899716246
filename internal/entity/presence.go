package entity

import (
	"time"

	"github.com/mbeoliero/vorbi/pkg/constant"
)

// PresenceInfo is the derived presence of one participant within a
// conversation.
type PresenceInfo struct {
	UserId   string `json:"user_id"`
	Online   bool   `json:"online"`
	LastSeen int64  `json:"last_seen"` // unix ms, 0 = never seen / marked offline
	Typing   bool   `json:"typing"`
}

// IsOnline derives online state from a last-seen timestamp. It is a
// pure function of (now, lastSeen): a participant is online while the
// last heartbeat is younger than the window. There is no stored online
// boolean anywhere — a session that vanishes without a goodbye simply
// ages out of the window.
func IsOnline(now, lastSeen int64, window time.Duration) bool {
	if lastSeen <= 0 {
		return false
	}
	return now-lastSeen < window.Milliseconds()
}

// OnlineNow applies IsOnline with the default window at the current time.
func OnlineNow(lastSeen int64) bool {
	return IsOnline(NowUnixMilli(), lastSeen, constant.OnlineWindow)
}
